package valet

import (
	"context"
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoKey is returned when a codec is asked to sign or verify without key
// material. This is a configuration fault, not an invalid token.
var ErrNoKey = errors.New("valet: no key material configured")

type tokenClaims struct {
	Resources []string `json:"res"`
	Operation string   `json:"op"`
	jwt.RegisteredClaims
}

// JWTCodec issues and decodes valet tokens as signed JWTs. One codec handles
// exactly one signing scheme; construct with NewHS256 or NewEd25519.
type JWTCodec struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	ttl       time.Duration
}

var _ Decoder = (*JWTCodec)(nil)

// NewHS256 creates a codec signing and verifying with a shared HMAC secret.
func NewHS256(secret []byte, issuer string, ttl time.Duration) *JWTCodec {
	return &JWTCodec{
		method:    jwt.SigningMethodHS256,
		signKey:   secret,
		verifyKey: secret,
		issuer:    issuer,
		ttl:       ttl,
	}
}

// NewEd25519 creates a codec using an Ed25519 key pair. priv may be nil for
// a verify-only codec.
func NewEd25519(pub ed25519.PublicKey, priv ed25519.PrivateKey, issuer string, ttl time.Duration) *JWTCodec {
	c := &JWTCodec{
		method:    jwt.SigningMethodEdDSA,
		verifyKey: pub,
		issuer:    issuer,
		ttl:       ttl,
	}
	if priv != nil {
		c.signKey = priv
	}
	return c
}

// Issue signs a short-lived valet token granting subject the given operation
// over the given resources.
func (c *JWTCodec) Issue(subject string, resources []string, op Operation) (string, error) {
	if c.signKey == nil {
		return "", ErrNoKey
	}

	now := time.Now().UTC()
	claims := tokenClaims{
		Resources: resources,
		Operation: string(op),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	return jwt.NewWithClaims(c.method, claims).SignedString(c.signKey)
}

// Decode verifies the token's signature and validity window and maps its
// claims onto a Grant. Tokens that fail verification, or that verify but
// carry an incomplete or unknown grant, yield (nil, nil): they are ordinary
// rejections, not faults.
func (c *JWTCodec) Decode(_ context.Context, raw string) (*Grant, error) {
	if c.verifyKey == nil {
		return nil, ErrNoKey
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.verifyKey, nil
	}, jwt.WithValidMethods([]string{c.method.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, nil
	}

	op := Operation(claims.Operation)
	if op != OperationRead && op != OperationWrite {
		return nil, nil
	}
	if claims.Subject == "" || len(claims.Resources) == 0 {
		return nil, nil
	}

	return &Grant{
		Subject:   claims.Subject,
		Resources: claims.Resources,
		Operation: op,
	}, nil
}

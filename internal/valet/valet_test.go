package valet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndDecodeHS256(t *testing.T) {
	t.Parallel()

	codec := NewHS256([]byte("test-secret"), "test-issuer", time.Hour)

	token, err := codec.Issue("alice", []string{"report.pdf", "notes.txt"}, OperationWrite)
	require.NoError(t, err, "Issue error")

	grant, err := codec.Decode(context.Background(), token)
	require.NoError(t, err, "Decode error")
	require.NotNil(t, grant, "expected a grant")
	require.Equal(t, "alice", grant.Subject)
	require.Equal(t, []string{"report.pdf", "notes.txt"}, grant.Resources)
	require.Equal(t, OperationWrite, grant.Operation)
}

func TestIssueAndDecodeEd25519(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err, "generating key pair")

	codec := NewEd25519(pub, priv, "test-issuer", time.Hour)

	token, err := codec.Issue("bob", []string{"data.bin"}, OperationRead)
	require.NoError(t, err, "Issue error")

	grant, err := codec.Decode(context.Background(), token)
	require.NoError(t, err, "Decode error")
	require.NotNil(t, grant, "expected a grant")
	require.Equal(t, "bob", grant.Subject)
	require.Equal(t, OperationRead, grant.Operation)
}

func TestDecodeRejections(t *testing.T) {
	t.Parallel()

	codec := NewHS256([]byte("test-secret"), "test-issuer", time.Hour)
	other := NewHS256([]byte("other-secret"), "test-issuer", time.Hour)

	goodToken, err := codec.Issue("alice", []string{"a.txt"}, OperationRead)
	require.NoError(t, err, "Issue error")

	expiredCodec := NewHS256([]byte("test-secret"), "test-issuer", -time.Minute)
	expiredToken, err := expiredCodec.Issue("alice", []string{"a.txt"}, OperationRead)
	require.NoError(t, err, "Issue error")

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "empty", token: ""},
		{name: "wrong key", token: mustIssue(t, other, "alice", []string{"a.txt"}, OperationRead)},
		{name: "expired", token: expiredToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			grant, err := codec.Decode(context.Background(), tt.token)
			require.NoError(t, err, "rejections must not be faults")
			require.Nil(t, grant, "expected no grant")
		})
	}

	// Sanity check that the codec still accepts its own token.
	grant, err := codec.Decode(context.Background(), goodToken)
	require.NoError(t, err)
	require.NotNil(t, grant)
}

func TestDecodeRejectsUnknownOperation(t *testing.T) {
	t.Parallel()

	codec := NewHS256([]byte("test-secret"), "test-issuer", time.Hour)

	token, err := codec.Issue("alice", []string{"a.txt"}, Operation("delete"))
	require.NoError(t, err, "Issue error")

	grant, err := codec.Decode(context.Background(), token)
	require.NoError(t, err)
	require.Nil(t, grant, "unknown operation must not produce a grant")
}

func TestDecodeWithoutKeyIsFault(t *testing.T) {
	t.Parallel()

	codec := &JWTCodec{}
	grant, err := codec.Decode(context.Background(), "anything")
	require.ErrorIs(t, err, ErrNoKey)
	require.Nil(t, grant)
}

func TestGrantAllows(t *testing.T) {
	t.Parallel()

	grant := &Grant{
		Subject:   "alice",
		Resources: []string{"a.txt", "b.txt"},
		Operation: OperationRead,
	}

	require.True(t, grant.Allows("a.txt", OperationRead))
	require.True(t, grant.Allows("b.txt", OperationRead))
	require.False(t, grant.Allows("a.txt", OperationWrite), "operation mismatch")
	require.False(t, grant.Allows("c.txt", OperationRead), "resource not granted")

	var nilGrant *Grant
	require.False(t, nilGrant.Allows("a.txt", OperationRead), "nil grant allows nothing")
}

func TestCompoundDecoder(t *testing.T) {
	t.Parallel()

	hs := NewHS256([]byte("test-secret"), "test-issuer", time.Hour)
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	ed := NewEd25519(pub, priv, "test-issuer", time.Hour)

	compound := NewCompoundDecoder(hs, ed)

	// Either scheme's token decodes through the compound.
	for _, codec := range []*JWTCodec{hs, ed} {
		token, err := codec.Issue("alice", []string{"a.txt"}, OperationRead)
		require.NoError(t, err)

		grant, err := compound.Decode(context.Background(), token)
		require.NoError(t, err)
		require.NotNil(t, grant)
	}

	// A fault from an earlier decoder stops the chain.
	fault := errors.New("backend down")
	faulty := DecoderFunc(func(context.Context, string) (*Grant, error) {
		return nil, fault
	})
	grant, err := NewCompoundDecoder(faulty, hs).Decode(context.Background(), "anything")
	require.ErrorIs(t, err, fault)
	require.Nil(t, grant)
}

func TestRequireGrant(t *testing.T) {
	t.Parallel()

	codec := NewHS256([]byte("test-secret"), "test-issuer", time.Hour)

	var gotGrant *Grant
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGrant, _ = GrantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := RequireGrant(codec, next)

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/a.txt", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/files/a.txt", nil)
		req.Header.Set(TokenHeader, "garbage")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("decoder fault", func(t *testing.T) {
		faulty := DecoderFunc(func(context.Context, string) (*Grant, error) {
			return nil, errors.New("backend down")
		})
		req := httptest.NewRequest(http.MethodGet, "/files/a.txt", nil)
		req.Header.Set(TokenHeader, "anything")
		rec := httptest.NewRecorder()
		RequireGrant(faulty, next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := codec.Issue("alice", []string{"a.txt"}, OperationRead)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/files/a.txt", nil)
		req.Header.Set(TokenHeader, token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotGrant, "grant must be attached to the request context")
		require.Equal(t, "alice", gotGrant.Subject)
	})
}

func mustIssue(t *testing.T, codec *JWTCodec, subject string, resources []string, op Operation) string {
	t.Helper()
	token, err := codec.Issue(subject, resources, op)
	require.NoError(t, err, "Issue error")
	return token
}

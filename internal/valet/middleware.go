package valet

import (
	"context"
	"log/slog"
	"net/http"
)

// TokenHeader is the request header carrying the raw valet token.
const TokenHeader = "x-valet-token"

type ctxKey int

const grantKey ctxKey = 1

// WithGrant returns a context carrying the decoded grant.
func WithGrant(ctx context.Context, g *Grant) context.Context {
	return context.WithValue(ctx, grantKey, g)
}

// GrantFromContext extracts the grant attached by RequireGrant.
func GrantFromContext(ctx context.Context) (*Grant, bool) {
	g, ok := ctx.Value(grantKey).(*Grant)
	return g, ok
}

// RequireGrant is middleware gating every file-access entry point. Requests
// without a token, or whose token decodes to no grant, are rejected with 401
// before any downstream work. Decoder faults are surfaced as 500 so they
// stay observably distinct from ordinary rejections.
func RequireGrant(dec Decoder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(TokenHeader)
		if raw == "" {
			writeUnauthorized(w)
			return
		}

		grant, err := dec.Decode(r.Context(), raw)
		if err != nil {
			slog.Error("Valet token decode fault", "err", err)
			http.Error(w, `{"error":"token decode fault"}`, http.StatusInternalServerError)
			return
		}
		if grant == nil {
			writeUnauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithGrant(r.Context(), grant)))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
}

// Package auth guards the operator admin API with bearer tokens.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/techview-systems/leadpixel-stack/common/httputil"
	"github.com/techview-systems/leadpixel-stack/funnel/pkg/tokens"
)

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFrom returns the claims RequireAuth stored on ctx.
func ClaimsFrom(ctx context.Context) (*tokens.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*tokens.Claims)
	return c, ok
}

type Middleware struct {
	tokens *tokens.TokenGenerator
}

func NewMiddleware(tg *tokens.TokenGenerator) *Middleware {
	return &Middleware{tokens: tg}
}

func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r.Header.Get("Authorization"))
		if !ok {
			httputil.WriteError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		claims, err := m.tokens.Validate(raw)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, tokens.ErrExpiredToken) {
				msg = "token expired"
			}
			httputil.WriteError(w, http.StatusUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// RequireOperator lets ADMIN through and SELLER only for the operator named
// by the {operatorId} path segment.
func (m *Middleware) RequireOperator(next http.Handler) http.Handler {
	return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFrom(r.Context())
		if !claims.CanManage(r.PathValue("operatorId")) {
			httputil.WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (m *Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := ClaimsFrom(r.Context())
			if claims.Role != role {
				httputil.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

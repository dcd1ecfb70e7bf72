package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/marketplace/pkg/httputil"
)

type contextKeyType string

const principalKey contextKeyType = "principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	AccountID string
	Email     string
	Token     string
}

// TokenValidator checks a bearer token and returns the caller it identifies.
type TokenValidator func(ctx context.Context, token string) (*Principal, error)

// Auth rejects requests without a valid bearer token with 401.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				writeAuthError(w, r, "missing or malformed authorization header")
				return
			}

			p, err := validate(r.Context(), token)
			if err != nil {
				writeAuthError(w, r, "invalid or expired token")
				return
			}
			p.Token = token

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

// AccountIDFromContext returns the authenticated account id or "".
func AccountIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.AccountID
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="marketplace"`)
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: message, RequestID: requestID(r)},
	})
}

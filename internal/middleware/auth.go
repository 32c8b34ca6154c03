package middleware

import (
	"context"
	"net/http"
	"strings"

	"drawtica/internal/i18n"
)

// TokenVerifier resolves a bearer token to an account ID.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

type accountKey struct{}

// OptionalAuth attaches the account of a valid bearer token. Requests without
// an Authorization header pass through anonymously; a header carrying an
// invalid or expired token is rejected with 401 rather than silently
// downgraded to anonymous use.
func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if strings.TrimSpace(header) == "" {
				next.ServeHTTP(w, r)
				return
			}
			accountID, ok := verify(verifier, header)
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", i18n.Unauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithAccountID(r.Context(), accountID)))
		})
	}
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, ok := verify(verifier, r.Header.Get("Authorization"))
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "unauthorized", i18n.Unauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithAccountID(r.Context(), accountID)))
		})
	}
}

func verify(verifier TokenVerifier, header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	accountID, err := verifier.VerifyToken(strings.TrimSpace(token))
	if err != nil || accountID == "" {
		return "", false
	}
	return accountID, true
}

func AccountIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(accountKey{}).(string); ok {
		return v
	}
	return ""
}

func ContextWithAccountID(ctx context.Context, accountID string) context.Context {
	if strings.TrimSpace(accountID) == "" {
		return ctx
	}
	return context.WithValue(ctx, accountKey{}, accountID)
}

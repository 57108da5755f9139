package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey struct{}

// OwnerFromContext returns the identity attached by Middleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ctxKey{}).(string)
	return owner, ok && owner != ""
}

// TokenFromRequest pulls the bearer token from the Authorization header
// or, for websocket upgrades where headers are awkward, the access_token
// query parameter.
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return parts[1], nil
		}
		return "", ErrInvalidToken
	}
	if tok := r.URL.Query().Get("access_token"); tok != "" {
		return tok, nil
	}
	return "", ErrNoToken
}

// Middleware rejects requests without a valid token and stores the
// owner identity in the request context.
func Middleware(issuer *Issuer, reject func(w http.ResponseWriter, status int, msg string)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromRequest(r)
			if err != nil {
				reject(w, http.StatusUnauthorized, "authentication required")
				return
			}
			owner, err := issuer.Verify(token)
			if err != nil {
				reject(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, owner)))
		})
	}
}

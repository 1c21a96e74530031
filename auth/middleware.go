package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ctb/api"

	"go.uber.org/zap"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

// ClaimsFrom returns the verified claims attached by RequireToken.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// RequireToken rejects requests without a valid bearer token and attaches the
// verified claims and subject to the request context.
func RequireToken(tm *TokenManager, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="ctb"`)
				api.WriteError(w, r, http.StatusUnauthorized, "Authorization header required", nil, logger)
				return
			}

			claims, err := tm.Verify(tokenString)
			if err != nil {
				msg := "Invalid or expired token"
				if errors.Is(err, ErrTokenRevoked) {
					msg = "Token has been revoked"
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="ctb", error="invalid_token"`)
				api.WriteError(w, r, http.StatusUnauthorized, msg, err, logger)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = api.WithSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

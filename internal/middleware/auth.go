package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayush/datapulse/backend/internal/httpx"
	"github.com/ayush/datapulse/backend/internal/token"
)

type claimsKey struct{}

// WithClaims stores verified token claims in the context.
func WithClaims(ctx context.Context, c *token.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims attached by RequireToken, or nil.
func ClaimsFromContext(ctx context.Context) *token.Claims {
	c, _ := ctx.Value(claimsKey{}).(*token.Claims)
	return c
}

// RequireToken is middleware that verifies the bearer token through v and
// injects the claims into the request context. Requests without a token
// never reach v.
func RequireToken(v token.TokenVerifier, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tok, err := token.BearerToken(header)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "No token provided")
				return
			}

			claims, err := v.Verify(token.WithAuthorization(r.Context(), header), tok)
			if err != nil {
				entry := log.WithError(err).WithField("path", r.URL.Path)
				if errors.Is(err, token.ErrVerifierUnavailable) {
					entry.Error("token verifier unreachable")
				} else {
					entry.Debug("token rejected")
				}
				httpx.WriteError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// Package token implements the bearer-token contract between services.
//
// Only the identity service holds the signing secret and uses Signer.
// Every other service verifies through RemoteVerifier, which asks the
// identity service's /verify endpoint.
package token

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is the lifetime of an issued token.
const DefaultTTL = time.Hour

var (
	// ErrNoToken means the request carried no bearer token.
	ErrNoToken = errors.New("no token provided")
	// ErrInvalidToken covers malformed, expired and badly signed tokens alike.
	ErrInvalidToken = errors.New("invalid token")
	// ErrVerifierUnavailable means the identity service could not be reached.
	ErrVerifierUnavailable = errors.New("token verifier unavailable")
)

// Claims is the payload of an issued token.
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Signer issues and verifies HS256 tokens with a shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue mints a token for the given user, expiring ttl from now.
func (s *Signer) Issue(userID int64, username string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify is a pure function of token, secret and clock. Every failure
// collapses to ErrInvalidToken.
func (s *Signer) Verify(_ context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", ErrNoToken
	}
	return fields[1], nil
}

type authHeaderKey struct{}

// WithAuthorization records the inbound Authorization header so a
// RemoteVerifier can forward it unchanged.
func WithAuthorization(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, authHeaderKey{}, header)
}

// authorizationFor returns the recorded header when it carries tok, else a
// canonical bearer header.
func authorizationFor(ctx context.Context, tok string) string {
	if raw, ok := ctx.Value(authHeaderKey{}).(string); ok {
		if t, err := BearerToken(raw); err == nil && t == tok {
			return raw
		}
	}
	return "Bearer " + tok
}

// Package auth provides the building blocks of the authentication flow:
// JWT access tokens, bcrypt password hashing, the bearer-token middleware,
// and the OAuth identity providers.
//
// ACCESS TOKENS:
// Access tokens are stateless JWTs — the server verifies them by signature
// alone, no store lookup. The account ID rides in the "sub" claim. Refresh
// tokens are the opposite: opaque random values persisted in the database
// and consumed exactly once (see internal/repository).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "auth-service"

// Token validation failures the caller must distinguish. The middleware
// maps ErrTokenExpired to ACCESS_TOKEN_EXPIRED and everything else that is
// not a missing token to UNAUTHORIZED.
var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// TokenService signs and verifies JWT access tokens.
//
// ttl is the configured access token lifetime. A zero ttl issues tokens
// without an exp claim — they never expire. That mode exists for
// closed-network deployments where revocation happens at the gateway;
// production configs should always set an expiry.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. The secret is the HMAC-SHA256
// signing key; it must be at least 16 characters (32+ random bytes in
// production).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl < 0 {
		return nil, errors.New("auth: token TTL must not be negative")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the configured access token lifetime (0 = no expiry).
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs an access token for the given account ID.
//
// Signing algorithm is HS256 — symmetric, same key signs and verifies,
// which fits a single-service deployment. The subject claim carries the
// internal account ID.
func (s *TokenService) Generate(userID string) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   issuer,
		},
	}
	if s.ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// generateWithDuration issues a token with an explicit lifetime, bypassing
// the configured TTL. Used by tests to mint already-expired tokens.
func (s *TokenService) generateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the account ID from
// its subject claim.
//
// Checks performed by the jwt library: signature, expiry (when present),
// issuer, and signing algorithm. Pinning the algorithm with
// jwt.WithValidMethods prevents algorithm-confusion attacks where an
// attacker submits a token claiming alg "none".
//
// Expired tokens return an error matching ErrTokenExpired; every other
// failure matches ErrTokenInvalid.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: bad claims", ErrTokenInvalid)
	}

	if c.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", ErrTokenInvalid)
	}

	return c.Subject, nil
}

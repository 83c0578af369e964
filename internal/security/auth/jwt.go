package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yourorg/cohort/internal/domain"
)

// TokenTTL is how long an issued session token stays valid.
const TokenTTL = 15 * time.Minute

// Claims is the session token payload: subject (user UUID), issued-at,
// expiry, issuer, and a unique token id. The token id is not consulted
// operationally today; it exists so a revocation list could be added without
// reissuing tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID parses the subject claim into a user identifier.
func (c *Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad subject claim", domain.ErrTokenMalformed)
	}
	return id, nil
}

// TokenManager issues and verifies HS256 session tokens. The signing secret
// is a process-wide value captured at construction. Verification is pure and
// stateless: no server-side session store, no revocation list.
//
// A TokenManager is immutable and safe for concurrent use.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenManager builds a TokenManager. A zero ttl defaults to TokenTTL.
func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if ttl == 0 {
		ttl = TokenTTL
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Issue signs a token for the given subject.
func (tm *TokenManager) Issue(subject uuid.UUID) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			Issuer:    tm.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates signature, issuer, and expiry, returning the claims on
// success. Failures are distinguished so callers can tell an expired session
// (re-login) apart from a tampered or garbled token.
func (tm *TokenManager) Verify(raw string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, domain.ErrTokenSignatureInvalid
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, domain.ErrTokenIssuerMismatch
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, domain.ErrTokenMalformed
		default:
			return nil, fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
		}
	}

	if !token.Valid {
		return nil, domain.ErrTokenMalformed
	}

	return claims, nil
}

// ExtractToken pulls the bearer token out of an Authorization header value.
func ExtractToken(authHeader string) (string, error) {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("%w: invalid authorization header", domain.ErrTokenMalformed)
	}
	return parts[1], nil
}

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/yourorg/cohort/internal/domain"
	"github.com/yourorg/cohort/internal/security/auth"
)

type CallerContextKey struct{}
type ClaimsContextKey struct{}

// TokenVerifier verifies a raw bearer token into claims. Production wiring
// uses auth.TokenManager.
type TokenVerifier interface {
	Verify(raw string) (*auth.Claims, error)
}

// Identity resolves the optional bearer token into the caller's identity.
// A missing Authorization header is not an error: the request proceeds
// anonymously and the services decide what anonymous callers may do. An
// unverifiable token, however, is rejected here with an explicit 401.
// Expired sessions get a distinct reason so clients can prompt a re-login
// instead of reporting tampering.
func Identity(tv TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid authorization header"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tv.Verify(tokenString)
			if err != nil {
				log.Warn("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				if errors.Is(err, domain.ErrTokenExpired) {
					http.Error(w, `{"error":"token expired"}`, http.StatusUnauthorized)
					return
				}
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CallerContextKey{}, userID)
			ctx = context.WithValue(ctx, ClaimsContextKey{}, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext returns the verified caller identity, or nil for an
// anonymous request.
func CallerFromContext(ctx context.Context) *uuid.UUID {
	if v := ctx.Value(CallerContextKey{}); v != nil {
		id := v.(uuid.UUID)
		return &id
	}
	return nil
}

// ClaimsFromContext returns the verified token claims, or nil.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if v := ctx.Value(ClaimsContextKey{}); v != nil {
		return v.(*auth.Claims)
	}
	return nil
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/cohort/internal/infrastructure/logger"
	"github.com/yourorg/cohort/internal/security/auth"
)

func newTestVerifier(t *testing.T, ttl time.Duration) *auth.TokenManager {
	t.Helper()
	return auth.NewTokenManager("test-secret-0123456789", "cohort-test", ttl)
}

func echoCallerHandler(t *testing.T, want *uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := CallerFromContext(r.Context())
		switch {
		case want == nil && got != nil:
			t.Errorf("expected anonymous caller, got %s", got)
		case want != nil && (got == nil || *got != *want):
			t.Errorf("expected caller %s, got %v", want, got)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentityAnonymousPassesThrough(t *testing.T) {
	t.Parallel()

	tm := newTestVerifier(t, time.Minute)
	handler := Identity(tm, logger.NewLogger("error"))(echoCallerHandler(t, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/users/00000000-0000-0000-0000-000000000001", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for anonymous request, got %d", rec.Code)
	}
}

func TestIdentityValidToken(t *testing.T) {
	t.Parallel()

	tm := newTestVerifier(t, time.Minute)
	userID := uuid.New()
	token, err := tm.Issue(userID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		echoCallerHandler(t, &userID).ServeHTTP(w, r)
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			t.Fatal("expected claims in context for verified token")
		}
		if claims.Subject != userID.String() {
			t.Errorf("claims subject = %q, want %q", claims.Subject, userID)
		}
	})
	handler := Identity(tm, logger.NewLogger("error"))(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestIdentityExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	expired := newTestVerifier(t, -time.Minute)
	token, err := expired.Issue(uuid.New())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rejected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run for expired token")
	})
	handler := Identity(expired, logger.NewLogger("error"))(rejected)

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "token expired") {
		t.Fatalf("expected expiry reason, got %q", rec.Body.String())
	}
}

func TestIdentityGarbageTokenRejected(t *testing.T) {
	t.Parallel()

	tm := newTestVerifier(t, time.Minute)
	rejected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run for invalid token")
	})
	handler := Identity(tm, logger.NewLogger("error"))(rejected)

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid token") {
		t.Fatalf("expected invalid-token reason, got %q", rec.Body.String())
	}
}

func TestIdentityMalformedHeaderRejected(t *testing.T) {
	t.Parallel()

	tm := newTestVerifier(t, time.Minute)
	handler := Identity(tm, logger.NewLogger("error"))(http.NotFoundHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/groups", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for non-bearer scheme, got %d", rec.Code)
	}
}

func TestValidateJSONContentType(t *testing.T) {
	t.Parallel()

	handler := ValidateJSONContentType(logger.NewLogger("error"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415 for text/plain body, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for JSON body, got %d", rec.Code)
	}
}

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/cohort/internal/domain"
	"github.com/yourorg/cohort/internal/handler"
	"github.com/yourorg/cohort/internal/infrastructure/logger"
	"github.com/yourorg/cohort/internal/observability/metrics"
	"github.com/yourorg/cohort/internal/reliability/circuitbreaker"
	"github.com/yourorg/cohort/internal/security/audit"
	"github.com/yourorg/cohort/internal/security/auth"
	"github.com/yourorg/cohort/internal/security/middleware"
	"github.com/yourorg/cohort/internal/service"
	"github.com/yourorg/cohort/pkg/cache"
)

// TestServerHelper stands up the full HTTP stack over in-memory storage:
// real hashing, real tokens, real middleware chain, no Postgres or Redis.
type TestServerHelper struct {
	Server *httptest.Server
	Logger *slog.Logger
	Tokens *auth.TokenManager
}

func NewTestServer(t *testing.T) *TestServerHelper {
	t.Helper()

	log := logger.NewLogger("error")

	hasher, err := auth.NewHasher("integration-test-salt")
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	tokens := auth.NewTokenManager("integration-test-secret", "cohort-test", 15*time.Minute)

	breaker := circuitbreaker.NewCircuitBreaker(5, 2, time.Second)
	accounts := service.NewAccountService(newUserStore(), hasher, tokens, log)
	groups := service.NewGroupService(newGroupStore(), cache.NewMemory(), breaker, log)

	auditor := audit.NewLogger(log)
	authHandler := handler.NewAuthHandler(accounts, auditor, log)
	userHandler := handler.NewUserHandler(accounts, log)
	groupHandler := handler.NewGroupHandler(groups, log)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/users/{id}", userHandler.Get)
	mux.HandleFunc("PATCH /api/users/{id}", userHandler.Update)
	mux.HandleFunc("DELETE /api/users/{id}", userHandler.Delete)
	mux.HandleFunc("POST /api/groups", groupHandler.Create)
	mux.HandleFunc("GET /api/groups", groupHandler.List)
	mux.HandleFunc("GET /api/groups/{id}", groupHandler.Get)
	mux.HandleFunc("PATCH /api/groups/{id}", groupHandler.Update)
	mux.HandleFunc("DELETE /api/groups/{id}", groupHandler.Delete)
	mux.HandleFunc("GET /api/groups/{id}/members", groupHandler.Members)
	mux.HandleFunc("POST /api/groups/{id}/members", groupHandler.AddMember)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	root := metrics.HTTPMetricsMiddleware(
		middleware.ValidateJSONContentType(log)(
			middleware.Identity(tokens, log)(metrics.CaptureRoutePattern(mux)),
		),
	)

	server := httptest.NewServer(root)
	t.Cleanup(server.Close)

	return &TestServerHelper{Server: server, Logger: log, Tokens: tokens}
}

func (h *TestServerHelper) URL() string {
	return h.Server.URL
}

// Do issues a JSON request with an optional bearer token.
func (h *TestServerHelper) Do(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	req, err := http.NewRequest(method, h.Server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// AssertStatusCode helper function
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// DecodeJSON decodes a response body into out.
func DecodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// In-memory repository implementations backing the test server.

type userStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*domain.User
	digests map[uuid.UUID]string
}

func newUserStore() *userStore {
	return &userStore{
		users:   make(map[uuid.UUID]*domain.User),
		digests: make(map[uuid.UUID]string),
	}
}

func (s *userStore) Create(_ context.Context, nu *domain.UserCreate, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == nu.Email {
			return domain.ErrDuplicate
		}
	}
	s.users[nu.ID] = &domain.User{ID: nu.ID, Email: nu.Email, Name: nu.Name}
	s.digests[nu.ID] = digest
	return nil
}

func (s *userStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *userStore) GetCredentialsByEmail(_ context.Context, email string) (*domain.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.users {
		if u.Email == email {
			return &domain.Credentials{UserID: id, Digest: s.digests[id]}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *userStore) Update(_ context.Context, edit *domain.UserEdit, digest *string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[edit.ID]
	if !ok {
		return 0, nil
	}
	if edit.Email != nil {
		u.Email = *edit.Email
	}
	if edit.Name != nil {
		u.Name = edit.Name
	}
	if digest != nil {
		s.digests[edit.ID] = *digest
	}
	return 1, nil
}

func (s *userStore) Delete(_ context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return 0, nil
	}
	delete(s.users, id)
	delete(s.digests, id)
	return 1, nil
}

type groupStore struct {
	mu      sync.Mutex
	groups  map[uuid.UUID]*domain.Group
	members map[uuid.UUID]map[uuid.UUID]domain.Membership
}

func newGroupStore() *groupStore {
	return &groupStore{
		groups:  make(map[uuid.UUID]*domain.Group),
		members: make(map[uuid.UUID]map[uuid.UUID]domain.Membership),
	}
}

func (s *groupStore) CreateWithFounder(_ context.Context, gc *domain.GroupCreate, founder uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[gc.ID] = &domain.Group{ID: gc.ID, Name: gc.Name, CreatedAt: gc.CreatedAt}
	s.members[gc.ID] = map[uuid.UUID]domain.Membership{
		founder: {ID: uuid.New(), UserID: founder, GroupID: gc.ID, AddedAt: gc.CreatedAt},
	}
	return nil
}

func (s *groupStore) isMember(member, groupID uuid.UUID) bool {
	ms, ok := s.members[groupID]
	if !ok {
		return false
	}
	_, ok = ms[member]
	return ok
}

func (s *groupStore) GetForMember(_ context.Context, member, groupID uuid.UUID) (*domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isMember(member, groupID) {
		return nil, domain.ErrNotFound
	}
	cp := *s.groups[groupID]
	return &cp, nil
}

func (s *groupStore) ListForMember(_ context.Context, member uuid.UUID) ([]domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Group
	for id, g := range s.groups {
		if s.isMember(member, id) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (s *groupStore) UpdateForMember(_ context.Context, member uuid.UUID, edit *domain.GroupEdit) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isMember(member, edit.ID) {
		return 0, nil
	}
	if edit.Name != nil {
		s.groups[edit.ID].Name = *edit.Name
	}
	return 1, nil
}

func (s *groupStore) DeleteForMember(_ context.Context, member, groupID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isMember(member, groupID) {
		return 0, nil
	}
	delete(s.groups, groupID)
	delete(s.members, groupID)
	return 1, nil
}

func (s *groupStore) ListMembers(_ context.Context, groupID uuid.UUID) ([]domain.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Membership
	for _, m := range s.members[groupID] {
		out = append(out, m)
	}
	return out, nil
}

func (s *groupStore) AddMember(_ context.Context, userID, groupID uuid.UUID, addedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms, ok := s.members[groupID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, exists := ms[userID]; exists {
		return domain.ErrDuplicate
	}
	ms[userID] = domain.Membership{ID: uuid.New(), UserID: userID, GroupID: groupID, AddedAt: addedAt}
	return nil
}

func (s *groupStore) CountOrphaned(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id := range s.groups {
		if len(s.members[id]) == 0 {
			n++
		}
	}
	return n, nil
}

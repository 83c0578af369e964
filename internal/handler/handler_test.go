package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/cohort/internal/domain"
	"github.com/yourorg/cohort/internal/infrastructure/logger"
	"github.com/yourorg/cohort/internal/security/audit"
	"github.com/yourorg/cohort/internal/security/auth"
	"github.com/yourorg/cohort/internal/security/middleware"
	"github.com/yourorg/cohort/internal/service"
)

// In-memory repositories so handler tests exercise real services without a
// database.

type memUserRepo struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*domain.User
	digests map[uuid.UUID]string
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:   make(map[uuid.UUID]*domain.User),
		digests: make(map[uuid.UUID]string),
	}
}

func (r *memUserRepo) Create(_ context.Context, nu *domain.UserCreate, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == nu.Email {
			return domain.ErrDuplicate
		}
	}
	r.users[nu.ID] = &domain.User{ID: nu.ID, Email: nu.Email, Name: nu.Name}
	r.digests[nu.ID] = digest
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetCredentialsByEmail(_ context.Context, email string) (*domain.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.users {
		if u.Email == email {
			return &domain.Credentials{UserID: id, Digest: r.digests[id]}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memUserRepo) Update(_ context.Context, edit *domain.UserEdit, digest *string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[edit.ID]
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
		r.digests[edit.ID] = *digest
	}
	return 1, nil
}

func (r *memUserRepo) Delete(_ context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return 0, nil
	}
	delete(r.users, id)
	delete(r.digests, id)
	return 1, nil
}

type memGroupRepo struct {
	mu      sync.Mutex
	groups  map[uuid.UUID]*domain.Group
	members map[uuid.UUID]map[uuid.UUID]domain.Membership // groupID -> userID -> membership
}

func newMemGroupRepo() *memGroupRepo {
	return &memGroupRepo{
		groups:  make(map[uuid.UUID]*domain.Group),
		members: make(map[uuid.UUID]map[uuid.UUID]domain.Membership),
	}
}

func (r *memGroupRepo) CreateWithFounder(_ context.Context, gc *domain.GroupCreate, founder uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[gc.ID] = &domain.Group{ID: gc.ID, Name: gc.Name, CreatedAt: gc.CreatedAt}
	r.members[gc.ID] = map[uuid.UUID]domain.Membership{
		founder: {ID: uuid.New(), UserID: founder, GroupID: gc.ID, AddedAt: gc.CreatedAt},
	}
	return nil
}

func (r *memGroupRepo) isMember(member, groupID uuid.UUID) bool {
	ms, ok := r.members[groupID]
	if !ok {
		return false
	}
	_, ok = ms[member]
	return ok
}

func (r *memGroupRepo) GetForMember(_ context.Context, member, groupID uuid.UUID) (*domain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isMember(member, groupID) {
		return nil, domain.ErrNotFound
	}
	cp := *r.groups[groupID]
	return &cp, nil
}

func (r *memGroupRepo) ListForMember(_ context.Context, member uuid.UUID) ([]domain.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Group
	for id, g := range r.groups {
		if r.isMember(member, id) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (r *memGroupRepo) UpdateForMember(_ context.Context, member uuid.UUID, edit *domain.GroupEdit) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isMember(member, edit.ID) {
		return 0, nil
	}
	if edit.Name != nil {
		r.groups[edit.ID].Name = *edit.Name
	}
	return 1, nil
}

func (r *memGroupRepo) DeleteForMember(_ context.Context, member, groupID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isMember(member, groupID) {
		return 0, nil
	}
	delete(r.groups, groupID)
	delete(r.members, groupID)
	return 1, nil
}

func (r *memGroupRepo) ListMembers(_ context.Context, groupID uuid.UUID) ([]domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Membership
	for _, m := range r.members[groupID] {
		out = append(out, m)
	}
	return out, nil
}

func (r *memGroupRepo) AddMember(_ context.Context, userID, groupID uuid.UUID, addedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.members[groupID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, exists := ms[userID]; exists {
		return domain.ErrDuplicate
	}
	ms[userID] = domain.Membership{ID: uuid.New(), UserID: userID, GroupID: groupID, AddedAt: addedAt}
	return nil
}

func (r *memGroupRepo) CountOrphaned(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id := range r.groups {
		if len(r.members[id]) == 0 {
			n++
		}
	}
	return n, nil
}

// fixture wires real services, handlers, and the identity middleware into an
// httptest mux, matching the production routing.
type fixture struct {
	server *httptest.Server
	tokens *auth.TokenManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.NewLogger("error")
	hasher, err := auth.NewHasher("test-salt-16bytes")
	require.NoError(t, err)
	tokens := auth.NewTokenManager("test-secret", "cohort-test", time.Minute)

	accounts := service.NewAccountService(newMemUserRepo(), hasher, tokens, log)
	groups := service.NewGroupService(newMemGroupRepo(), nil, nil, log)

	auditor := audit.NewLogger(log)
	authHandler := NewAuthHandler(accounts, auditor, log)
	userHandler := NewUserHandler(accounts, log)
	groupHandler := NewGroupHandler(groups, log)

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

	handler := middleware.Identity(tokens, log)(mux)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &fixture{server: server, tokens: tokens}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeSession(t *testing.T, resp *http.Response) SessionResponse {
	t.Helper()
	var s SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	return s
}

func (f *fixture) register(t *testing.T, email string) SessionResponse {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email:    email,
		Password: "correct horse battery staple",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeSession(t, resp)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	sess := f.register(t, "ada@example.com")
	require.NotEmpty(t, sess.Token)
	require.NotEmpty(t, sess.UserID)

	resp := f.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse battery staple",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	login := decodeSession(t, resp)
	require.Equal(t, sess.UserID, login.UserID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)

	f.register(t, "ada@example.com")
	resp := f.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Email:    "ada@example.com",
		Password: "another password",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRegisterWithSuppliedID(t *testing.T) {
	f := newFixture(t)

	id := "6f1b8d0a-9c1e-4a5b-8d2f-3c4e5a6b7c8d"
	resp := f.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		ID:       &id,
		Email:    "ada@example.com",
		Password: "correct horse battery staple",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sess := decodeSession(t, resp)
	require.Equal(t, id, sess.UserID)

	// The record is reachable under the caller-supplied identifier.
	getResp := f.do(t, http.MethodGet, "/api/users/"+id, sess.Token, nil)
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	bad := "not-a-uuid"
	resp = f.do(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		ID:       &bad,
		Email:    "bob@example.com",
		Password: "another password",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateGroupWithSuppliedIdentity(t *testing.T) {
	f := newFixture(t)
	ada := f.register(t, "ada@example.com")

	id := "0d9e7c5a-1b2f-4e3d-8a6c-5b4f3e2d1c0a"
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	resp := f.do(t, http.MethodPost, "/api/groups", ada.Token, CreateGroupRequest{
		ID:        &id,
		Name:      "analytical engines",
		CreatedAt: &createdAt,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	getResp := f.do(t, http.MethodGet, "/api/groups/"+id, ada.Token, nil)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var group GroupResponse
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&group))
	require.Equal(t, id, group.ID)
	require.True(t, group.CreatedAt.Equal(createdAt))

	bad := "nope"
	resp = f.do(t, http.MethodPost, "/api/groups", ada.Token, CreateGroupRequest{
		ID:   &bad,
		Name: "broken",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginInvalidCredentialsIndistinguishable(t *testing.T) {
	f := newFixture(t)

	f.register(t, "ada@example.com")

	wrongPassword := f.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong",
	})
	unknownEmail := f.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    "nobody@example.com",
		Password: "wrong",
	})

	require.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	require.Equal(t, http.StatusUnauthorized, unknownEmail.StatusCode)

	var a, b ErrorResponse
	require.NoError(t, json.NewDecoder(wrongPassword.Body).Decode(&a))
	require.NoError(t, json.NewDecoder(unknownEmail.Body).Decode(&b))
	require.Equal(t, a, b)
}

func TestGetUserRequiresOwnership(t *testing.T) {
	f := newFixture(t)

	ada := f.register(t, "ada@example.com")
	bob := f.register(t, "bob@example.com")

	// Anonymous read is unauthorized.
	resp := f.do(t, http.MethodGet, "/api/users/"+ada.UserID, "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Another user's token is forbidden.
	resp = f.do(t, http.MethodGet, "/api/users/"+ada.UserID, bob.Token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The owner can read their own record.
	resp = f.do(t, http.MethodGet, "/api/users/"+ada.UserID, ada.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var user UserResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	require.Equal(t, "ada@example.com", user.Email)
}

func TestUpdateUserPasswordChange(t *testing.T) {
	f := newFixture(t)

	ada := f.register(t, "ada@example.com")

	newPassword := "a brand new password"
	resp := f.do(t, http.MethodPatch, "/api/users/"+ada.UserID, ada.Token, UpdateUserRequest{
		Password: &newPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Old password no longer works.
	resp = f.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse battery staple",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// New password does.
	resp = f.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{
		Email:    "ada@example.com",
		Password: newPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)

	ada := f.register(t, "ada@example.com")

	resp := f.do(t, http.MethodDelete, "/api/users/"+ada.UserID, ada.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/users/"+ada.UserID, ada.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGroupLifecycle(t *testing.T) {
	f := newFixture(t)

	ada := f.register(t, "ada@example.com")
	bob := f.register(t, "bob@example.com")

	// Anonymous creation is rejected.
	resp := f.do(t, http.MethodPost, "/api/groups", "", CreateGroupRequest{Name: "readers"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/groups", ada.Token, CreateGroupRequest{Name: "readers"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Founder sees the group.
	resp = f.do(t, http.MethodGet, "/api/groups", ada.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var groups []GroupResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&groups))
	require.Len(t, groups, 1)
	groupID := groups[0].ID

	// Non-member cannot see it.
	resp = f.do(t, http.MethodGet, "/api/groups/"+groupID, bob.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Founder adds the other user, who then gains access.
	resp = f.do(t, http.MethodPost, "/api/groups/"+groupID+"/members", ada.Token, AddMemberRequest{UserID: bob.UserID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/groups/"+groupID, bob.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Member list shows both users.
	resp = f.do(t, http.MethodGet, "/api/groups/"+groupID+"/members", ada.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var members []MembershipResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&members))
	require.Len(t, members, 2)

	// Duplicate enrollment conflicts.
	resp = f.do(t, http.MethodPost, "/api/groups/"+groupID+"/members", ada.Token, AddMemberRequest{UserID: bob.UserID})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Members can rename and delete.
	name := "writers"
	resp = f.do(t, http.MethodPatch, "/api/groups/"+groupID, bob.Token, UpdateGroupRequest{Name: &name})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/groups/"+groupID, ada.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/groups/"+groupID, ada.Token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExpiredTokenExplicit401(t *testing.T) {
	f := newFixture(t)

	expired := auth.NewTokenManager("test-secret", "cohort-test", -time.Minute)
	token, err := expired.Issue(uuid.New())
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/groups", token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "token expired", body.Error)
}

func TestInvalidUUIDPath(t *testing.T) {
	f := newFixture(t)

	ada := f.register(t, "ada@example.com")
	resp := f.do(t, http.MethodGet, "/api/users/not-a-uuid", ada.Token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

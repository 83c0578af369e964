package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/cohort/internal/domain"
	"github.com/yourorg/cohort/internal/observability/metrics"
	"github.com/yourorg/cohort/internal/reliability/circuitbreaker"
	"github.com/yourorg/cohort/internal/security"
	"github.com/yourorg/cohort/pkg/cache"
)

// listCacheTTL bounds staleness of cached group lists. Mutations invalidate
// the caller's entry eagerly; other members converge within the TTL.
const listCacheTTL = 30 * time.Second

// GroupService implements group CRUD and membership queries, scoped to the
// authenticated caller's visible groups. Membership, not creatorship, grants
// read/update/delete rights; the scoping itself lives in the repository's
// member-restricted queries.
type GroupService struct {
	repo    domain.GroupRepository
	store   cache.Store                    // optional list cache; nil disables caching
	breaker *circuitbreaker.CircuitBreaker // optional guard for the cache backend
	logger  *slog.Logger
}

// NewGroupService constructs a GroupService. store and breaker may be nil.
func NewGroupService(repo domain.GroupRepository, store cache.Store, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *GroupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GroupService{repo: repo, store: store, breaker: breaker, logger: logger}
}

// Create inserts the group and enrolls the caller as its first member, both
// in one storage transaction. Returns true on success.
func (s *GroupService) Create(ctx context.Context, caller *uuid.UUID, gc domain.GroupCreate) (bool, error) {
	founder, err := security.RequireAuthenticated(caller, "must be logged in to create groups")
	if err != nil {
		return false, err
	}

	if gc.ID == uuid.Nil {
		gc.ID = uuid.New()
	}
	if gc.CreatedAt.IsZero() {
		gc.CreatedAt = time.Now().UTC()
	}

	if err := s.repo.CreateWithFounder(ctx, &gc, founder); err != nil {
		return false, err
	}

	s.invalidateList(ctx, founder)
	s.logger.Info("group created",
		slog.String("group_id", gc.ID.String()),
		slog.String("founder_id", founder.String()),
	)
	return true, nil
}

// Read returns the group iff the caller is a member; otherwise ErrNotFound,
// indistinguishable from the group not existing.
func (s *GroupService) Read(ctx context.Context, caller *uuid.UUID, groupID uuid.UUID) (*domain.Group, error) {
	member, err := security.RequireAuthenticated(caller, "must be logged in to read groups")
	if err != nil {
		return nil, err
	}
	return s.repo.GetForMember(ctx, member, groupID)
}

// ReadAll returns every group the caller belongs to.
func (s *GroupService) ReadAll(ctx context.Context, caller *uuid.UUID) ([]domain.Group, error) {
	member, err := security.RequireAuthenticated(caller, "must be logged in to list groups")
	if err != nil {
		return nil, err
	}

	key := listCacheKey(member)
	if cached, ok := s.cacheGet(ctx, key); ok {
		var groups []domain.Group
		if err := json.Unmarshal([]byte(cached), &groups); err == nil {
			return groups, nil
		}
		// unreadable entry, fall through to storage
		s.invalidateList(ctx, member)
	}

	groups, err := s.repo.ListForMember(ctx, member)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(groups); err == nil {
		s.cacheSet(ctx, key, string(encoded))
	}
	return groups, nil
}

// Update applies a partial edit to a group the caller is a member of.
// Returns true iff exactly one row changed; editing a group outside the
// caller's membership changes nothing.
func (s *GroupService) Update(ctx context.Context, caller *uuid.UUID, edit domain.GroupEdit) (bool, error) {
	member, err := security.RequireAuthenticated(caller, "must be logged in to update groups")
	if err != nil {
		return false, err
	}

	rows, err := s.repo.UpdateForMember(ctx, member, &edit)
	if err != nil {
		return false, err
	}

	s.invalidateList(ctx, member)
	return rows == 1, nil
}

// Delete removes a group the caller is a member of; memberships cascade in
// storage. Returns true iff exactly one row was removed.
func (s *GroupService) Delete(ctx context.Context, caller *uuid.UUID, groupID uuid.UUID) (bool, error) {
	member, err := security.RequireAuthenticated(caller, "must be logged in to delete groups")
	if err != nil {
		return false, err
	}

	rows, err := s.repo.DeleteForMember(ctx, member, groupID)
	if err != nil {
		return false, err
	}

	s.invalidateList(ctx, member)
	return rows == 1, nil
}

// Members lists the memberships of a group the caller belongs to.
func (s *GroupService) Members(ctx context.Context, caller *uuid.UUID, groupID uuid.UUID) ([]domain.Membership, error) {
	member, err := security.RequireAuthenticated(caller, "must be logged in to list group members")
	if err != nil {
		return nil, err
	}

	// visibility check: the group must be in the caller's membership set
	if _, err := s.repo.GetForMember(ctx, member, groupID); err != nil {
		return nil, err
	}

	return s.repo.ListMembers(ctx, groupID)
}

// AddMember enrolls another user into a group the caller is a member of.
func (s *GroupService) AddMember(ctx context.Context, caller *uuid.UUID, groupID, userID uuid.UUID) (bool, error) {
	member, err := security.RequireAuthenticated(caller, "must be logged in to add group members")
	if err != nil {
		return false, err
	}

	if _, err := s.repo.GetForMember(ctx, member, groupID); err != nil {
		return false, err
	}

	if err := s.repo.AddMember(ctx, userID, groupID, time.Now().UTC()); err != nil {
		return false, err
	}

	s.invalidateList(ctx, member)
	s.invalidateList(ctx, userID)
	s.logger.Info("member added",
		slog.String("group_id", groupID.String()),
		slog.String("user_id", userID.String()),
	)
	return true, nil
}

func listCacheKey(member uuid.UUID) string {
	return "groups:" + member.String()
}

// cacheGet reads through the optional cache, honoring the circuit breaker so
// a dead cache backend degrades to storage reads instead of failing requests.
func (s *GroupService) cacheGet(ctx context.Context, key string) (string, bool) {
	if s.store == nil {
		return "", false
	}
	if s.breaker != nil && !s.breaker.AllowRequest() {
		return "", false
	}

	value, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.recordCacheFailure(err)
		return "", false
	}
	s.recordCacheSuccess()
	if ok {
		metrics.ObserveGroupCache("hit")
	} else {
		metrics.ObserveGroupCache("miss")
	}
	return value, ok
}

func (s *GroupService) cacheSet(ctx context.Context, key, value string) {
	if s.store == nil {
		return
	}
	if s.breaker != nil && !s.breaker.AllowRequest() {
		return
	}
	if err := s.store.Set(ctx, key, value, listCacheTTL); err != nil {
		s.recordCacheFailure(err)
		return
	}
	s.recordCacheSuccess()
}

func (s *GroupService) invalidateList(ctx context.Context, member uuid.UUID) {
	if s.store == nil {
		return
	}
	if s.breaker != nil && !s.breaker.AllowRequest() {
		return
	}
	if err := s.store.Delete(ctx, listCacheKey(member)); err != nil {
		s.recordCacheFailure(err)
		return
	}
	s.recordCacheSuccess()
}

func (s *GroupService) recordCacheFailure(err error) {
	metrics.ObserveGroupCache("error")
	if s.breaker != nil {
		s.breaker.RecordFailure()
	}
	s.logger.Warn("group list cache unavailable", slog.String("error", err.Error()))
}

func (s *GroupService) recordCacheSuccess() {
	if s.breaker != nil {
		s.breaker.RecordSuccess()
	}
}

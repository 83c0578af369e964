package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Group is a user-created collection of accounts. There is no owner/member
// distinction: membership alone grants read, update, and delete rights.
type Group struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// GroupCreate carries the fields to create a group. ID may be supplied by the
// caller; uuid.Nil means the service generates one. A zero CreatedAt is
// stamped with the current time.
type GroupCreate struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// GroupEdit is a partial update keyed by ID.
type GroupEdit struct {
	ID   uuid.UUID
	Name *string
}

// Membership associates a user with a group. It is a pure association record;
// neither side owns it.
type Membership struct {
	ID      uuid.UUID
	AddedAt time.Time
	UserID  uuid.UUID
	GroupID uuid.UUID
}

// GroupRepository defines data access for groups and memberships. Every read
// and mutation is scoped to the given member: rows outside the member's
// groups are invisible to it.
type GroupRepository interface {
	// CreateWithFounder inserts the group and the founder's membership in one
	// transaction. A group must never become visible without its founding
	// membership, or it would be permanently unreachable under member-scoped
	// reads.
	CreateWithFounder(ctx context.Context, group *GroupCreate, founder uuid.UUID) error

	// GetForMember fetches a group the member belongs to; ErrNotFound
	// otherwise.
	GetForMember(ctx context.Context, member, groupID uuid.UUID) (*Group, error)

	// ListForMember returns every group the member belongs to.
	ListForMember(ctx context.Context, member uuid.UUID) ([]Group, error)

	// UpdateForMember applies a partial update, restricted to the member's
	// groups. Returns the number of rows changed.
	UpdateForMember(ctx context.Context, member uuid.UUID, edit *GroupEdit) (int64, error)

	// DeleteForMember removes a group the member belongs to (memberships
	// cascade in storage). Returns the number of rows removed.
	DeleteForMember(ctx context.Context, member, groupID uuid.UUID) (int64, error)

	// ListMembers returns the memberships of a group.
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]Membership, error)

	// AddMember enrolls a user into a group at the given time. Duplicate
	// (user, group) pairs surface as ErrDuplicate.
	AddMember(ctx context.Context, userID, groupID uuid.UUID, addedAt time.Time) error

	// CountOrphaned counts groups with no memberships at all. Such groups are
	// unreachable by every caller; the audit worker watches for them.
	CountOrphaned(ctx context.Context) (int64, error)
}

package security

import (
	"github.com/google/uuid"

	"github.com/yourorg/cohort/internal/domain"
)

// Authorization rules for the service. User records follow a strict owner-only
// rule: only the matching identity may read, update, or delete its own record,
// with no admin override. Group rights are softer and deliberately asymmetric:
// membership, not creatorship, grants visibility and mutation, and that check
// lives in the membership-scoped storage queries rather than here.

// CanActOnUser reports whether the caller, if any, may operate on the target
// user record. True iff a caller is present and equals the target.
func CanActOnUser(caller *uuid.UUID, target uuid.UUID) bool {
	return caller != nil && *caller == target
}

// RequireAuthenticated unwraps the optional caller identity, failing with an
// Unauthenticated error carrying the supplied reason, e.g. "must be logged in
// to create groups". The reason varies by call site so users never get a
// generic failure where a specific one exists.
func RequireAuthenticated(caller *uuid.UUID, reason string) (uuid.UUID, error) {
	if caller == nil {
		return uuid.Nil, domain.Unauthenticated(reason)
	}
	return *caller, nil
}

// RequireSelf combines the two checks for user-record operations: the caller
// must be present and must be the target, otherwise the operation is denied
// with the supplied reason.
func RequireSelf(caller *uuid.UUID, target uuid.UUID, reason string) error {
	if caller == nil {
		return domain.Unauthenticated(reason)
	}
	if *caller != target {
		return domain.Unauthorized(reason)
	}
	return nil
}

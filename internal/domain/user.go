package domain

import (
	"context"

	"github.com/google/uuid"
)

// User represents a registered account. The stored password digest is
// write-only: read paths never select it and it is never serialized in API
// responses.
type User struct {
	ID    uuid.UUID
	Email string // unique
	Name  *string
}

// UserCreate carries the fields needed to register a user. ID may be supplied
// by the caller; uuid.Nil means the service generates one.
type UserCreate struct {
	ID       uuid.UUID
	Email    string
	Password string // plaintext, discarded immediately after hashing
	Name     *string
}

// UserEdit is a partial update keyed by ID. Nil fields are left unchanged.
type UserEdit struct {
	ID       uuid.UUID
	Email    *string
	Password *string // plaintext when present; re-hashed before persisting
	Name     *string
}

// Credentials is the login lookup result: identity plus stored digest.
type Credentials struct {
	UserID uuid.UUID
	Digest string
}

// UserRepository defines data access for users.
type UserRepository interface {
	// Create persists a new user; digest is the already-hashed password.
	// Uniqueness violations surface as ErrDuplicate.
	Create(ctx context.Context, user *UserCreate, digest string) error

	// GetByID fetches id, email, and name. Returns ErrNotFound when the row
	// is absent.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetCredentialsByEmail resolves an email to (user id, digest) for login.
	// Returns ErrNotFound when no such email exists.
	GetCredentialsByEmail(ctx context.Context, email string) (*Credentials, error)

	// Update applies a partial update; digest replaces Password when the edit
	// carries one. Returns the number of rows changed.
	Update(ctx context.Context, edit *UserEdit, digest *string) (int64, error)

	// Delete removes the user row and returns the number of rows removed.
	// Deleting an absent user is not an error; it returns 0.
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

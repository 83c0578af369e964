package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the account and group services. Handlers map these to
// HTTP statuses; services never translate them into transport terms.
var (
	// ErrNotFound covers absent resources and, deliberately, login credential
	// mismatch: unknown email and wrong password are indistinguishable to the
	// caller to prevent account enumeration.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated means no valid identity was presented where one is
	// required. Wrapped with an operation-specific message, see Unauthenticated.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized means a valid identity was presented but is not allowed
	// to act on the target resource.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDuplicate is returned when a storage uniqueness constraint is
	// violated (duplicate email or id).
	ErrDuplicate = errors.New("already exists")

	// ErrMalformedDigest is returned when a stored password digest cannot be
	// decoded, or the hasher is configured with invalid parameters.
	ErrMalformedDigest = errors.New("malformed password digest")

	// Token verification failures. Callers are expected to distinguish expiry
	// from tampering so users see a "log in again" message rather than a
	// generic rejection.
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	ErrTokenIssuerMismatch   = errors.New("token issuer mismatch")
	ErrTokenMalformed        = errors.New("token malformed")
)

// Unauthenticated wraps ErrUnauthenticated with a call-site reason, e.g.
// "must be logged in to create groups".
func Unauthenticated(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthenticated, reason)
}

// Unauthorized wraps ErrUnauthorized with a call-site reason, e.g.
// "must be logged in as the target user to update it".
func Unauthorized(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}

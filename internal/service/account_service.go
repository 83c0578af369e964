package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/yourorg/cohort/internal/domain"
	"github.com/yourorg/cohort/internal/security"
)

// PasswordHasher derives and verifies password digests. The production
// implementation is auth.Hasher; tests substitute fixed-output fakes.
type PasswordHasher interface {
	Generate(password string) (string, error)
	Verify(digest, candidate string) (bool, error)
}

// SessionTokeniser issues signed session tokens for a verified identity.
type SessionTokeniser interface {
	Issue(subject uuid.UUID) (string, error)
}

// Session is what register and login hand back to the transport layer.
type Session struct {
	UserID uuid.UUID
	Token  string
}

// AccountService implements account registration, self-service reads and
// mutations, and login. Authorization follows the owner-only rule: a user
// record can be read, updated, or deleted only by the matching identity.
type AccountService struct {
	repo   domain.UserRepository
	hasher PasswordHasher
	tokens SessionTokeniser
	logger *slog.Logger
}

// NewAccountService constructs an AccountService.
func NewAccountService(repo domain.UserRepository, hasher PasswordHasher, tokens SessionTokeniser, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{repo: repo, hasher: hasher, tokens: tokens, logger: logger}
}

// Register creates an account and returns a session for the new identity.
// The plaintext password is hashed before it touches storage and is not
// retained anywhere past this call.
func (s *AccountService) Register(ctx context.Context, nu domain.UserCreate) (*Session, error) {
	if nu.ID == uuid.Nil {
		nu.ID = uuid.New()
	}

	digest, err := s.hasher.Generate(nu.Password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, err
	}

	if err := s.repo.Create(ctx, &nu, digest); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(nu.ID)
	if err != nil {
		s.logger.Error("failed to issue token",
			slog.String("user_id", nu.ID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("user registered",
		slog.String("user_id", nu.ID.String()),
		slog.String("email", nu.Email),
	)

	return &Session{UserID: nu.ID, Token: token}, nil
}

// Read returns the target user record, digest excluded. Only the owner may
// read it.
func (s *AccountService) Read(ctx context.Context, caller *uuid.UUID, target uuid.UUID) (*domain.User, error) {
	if err := security.RequireSelf(caller, target, "must be logged in to read user"); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, target)
}

// Update applies a partial edit to the caller's own record. A password in the
// edit is re-hashed before persisting. Returns true iff exactly one row
// changed.
func (s *AccountService) Update(ctx context.Context, caller *uuid.UUID, edit domain.UserEdit) (bool, error) {
	if err := security.RequireSelf(caller, edit.ID, "must be logged in to update user"); err != nil {
		return false, err
	}

	var digest *string
	if edit.Password != nil {
		d, err := s.hasher.Generate(*edit.Password)
		if err != nil {
			s.logger.Error("failed to hash password", slog.String("error", err.Error()))
			return false, err
		}
		digest = &d
	}

	rows, err := s.repo.Update(ctx, &edit, digest)
	if err != nil {
		return false, err
	}

	s.logger.Info("user updated", slog.String("user_id", edit.ID.String()))
	return rows == 1, nil
}

// Delete removes the caller's own record. Returns true iff exactly one row
// was removed; deleting an absent record is not an error.
func (s *AccountService) Delete(ctx context.Context, caller *uuid.UUID, target uuid.UUID) (bool, error) {
	if err := security.RequireSelf(caller, target, "must be logged in to delete user"); err != nil {
		return false, err
	}

	rows, err := s.repo.Delete(ctx, target)
	if err != nil {
		return false, err
	}

	s.logger.Info("user deleted", slog.String("user_id", target.String()))
	return rows == 1, nil
}

// Login verifies credentials and returns a session. Unknown email and wrong
// password both fail with ErrNotFound so callers cannot enumerate accounts.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	creds, err := s.repo.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Info("login attempt with unknown email", slog.String("email", email))
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(creds.Digest, password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Info("login failed with wrong password", slog.String("email", email))
		return nil, domain.ErrNotFound
	}

	token, err := s.tokens.Issue(creds.UserID)
	if err != nil {
		s.logger.Error("failed to issue token",
			slog.String("user_id", creds.UserID.String()),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", creds.UserID.String()))
	return &Session{UserID: creds.UserID, Token: token}, nil
}

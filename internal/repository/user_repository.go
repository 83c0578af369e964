package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourorg/cohort/internal/domain"
)

const pqUniqueViolation = "23505"

// PostgresUserRepository implements domain.UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresUserRepository creates a new user repository.
func NewPostgresUserRepository(db *sql.DB, logger *slog.Logger) *PostgresUserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresUserRepository{db: db, logger: logger}
}

// Create inserts a user row with the hashed digest in the password column.
func (r *PostgresUserRepository) Create(ctx context.Context, user *domain.UserCreate, digest string) error {
	query := `
		INSERT INTO users (id, email, password, name)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, digest, user.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, domain.ErrDuplicate)
		}
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID fetches a user by id. The password column is never selected here.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user := &domain.User{}
	var name sql.NullString

	query := `
		SELECT id, email, name
		FROM users
		WHERE id = $1
	`

	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("failed to get user by id",
			slog.String("id", id.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if name.Valid {
		user.Name = &name.String
	}
	return user, nil
}

// GetCredentialsByEmail resolves an email to (id, digest) for login.
func (r *PostgresUserRepository) GetCredentialsByEmail(ctx context.Context, email string) (*domain.Credentials, error) {
	creds := &domain.Credentials{}

	query := `
		SELECT id, password
		FROM users
		WHERE email = $1
	`

	err := r.db.QueryRowContext(ctx, query, email).Scan(&creds.UserID, &creds.Digest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get credentials by email: %w", err)
	}

	return creds, nil
}

// Update applies a partial update; absent fields keep their stored value.
func (r *PostgresUserRepository) Update(ctx context.Context, edit *domain.UserEdit, digest *string) (int64, error) {
	query := `
		UPDATE users
		SET email    = COALESCE($2, email),
		    password = COALESCE($3, password),
		    name     = COALESCE($4, name)
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, edit.ID, edit.Email, digest, edit.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("user %s: %w", edit.ID, domain.ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows, nil
}

// Delete removes a user row. Zero rows means the user was already gone.
func (r *PostgresUserRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

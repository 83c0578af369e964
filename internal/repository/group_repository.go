package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/yourorg/cohort/internal/domain"
)

const pqForeignKeyViolation = "23503"

// PostgresGroupRepository implements domain.GroupRepository using PostgreSQL.
// Visibility is enforced in SQL: every member-scoped statement joins or
// subqueries users_groups, so rows outside the member's groups are never
// touched.
type PostgresGroupRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresGroupRepository creates a new group repository.
func NewPostgresGroupRepository(db *sql.DB, logger *slog.Logger) *PostgresGroupRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGroupRepository{db: db, logger: logger}
}

// CreateWithFounder inserts the group and the founder's membership in a
// single transaction. Without the membership the group would be invisible to
// everyone forever, so a partial insert must never become visible.
func (r *PostgresGroupRepository) CreateWithFounder(ctx context.Context, group *domain.GroupCreate, founder uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (id, name, created_at) VALUES ($1, $2, $3)`,
		group.ID, group.Name, group.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("group %s: %w", group.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("failed to create group: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users_groups (id, added_at, user_id, group_id) VALUES ($1, $2, $3, $4)`,
		uuid.New(), group.CreatedAt, founder, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to create founding membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group creation: %w", err)
	}
	return nil
}

// GetForMember fetches a group through the membership join; a group the
// member does not belong to is indistinguishable from one that does not
// exist.
func (r *PostgresGroupRepository) GetForMember(ctx context.Context, member, groupID uuid.UUID) (*domain.Group, error) {
	group := &domain.Group{}

	query := `
		SELECT g.id, g.name, g.created_at
		FROM groups g
		JOIN users_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1 AND g.id = $2
	`

	err := r.db.QueryRowContext(ctx, query, member, groupID).Scan(&group.ID, &group.Name, &group.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("failed to get group",
			slog.String("group_id", groupID.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return group, nil
}

// ListForMember returns every group the member belongs to.
func (r *PostgresGroupRepository) ListForMember(ctx context.Context, member uuid.UUID) ([]domain.Group, error) {
	query := `
		SELECT g.id, g.name, g.created_at
		FROM groups g
		JOIN users_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY g.created_at
	`

	rows, err := r.db.QueryContext(ctx, query, member)
	if err != nil {
		r.logger.Error("failed to list groups",
			slog.String("user_id", member.String()),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// UpdateForMember applies a partial update restricted to the member's groups.
func (r *PostgresGroupRepository) UpdateForMember(ctx context.Context, member uuid.UUID, edit *domain.GroupEdit) (int64, error) {
	query := `
		UPDATE groups
		SET name = COALESCE($3, name)
		WHERE id = $2
		  AND id IN (SELECT group_id FROM users_groups WHERE user_id = $1)
	`

	result, err := r.db.ExecContext(ctx, query, member, edit.ID, edit.Name)
	if err != nil {
		return 0, fmt.Errorf("failed to update group: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows, nil
}

// DeleteForMember removes a group the member belongs to; memberships cascade
// via the foreign key.
func (r *PostgresGroupRepository) DeleteForMember(ctx context.Context, member, groupID uuid.UUID) (int64, error) {
	query := `
		DELETE FROM groups
		WHERE id = $2
		  AND id IN (SELECT group_id FROM users_groups WHERE user_id = $1)
	`

	result, err := r.db.ExecContext(ctx, query, member, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete group: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows, nil
}

// ListMembers returns the memberships of a group.
func (r *PostgresGroupRepository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]domain.Membership, error) {
	query := `
		SELECT id, added_at, user_id, group_id
		FROM users_groups
		WHERE group_id = $1
		ORDER BY added_at
	`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []domain.Membership
	for rows.Next() {
		var m domain.Membership
		if err := rows.Scan(&m.ID, &m.AddedAt, &m.UserID, &m.GroupID); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember enrolls a user into a group.
func (r *PostgresGroupRepository) AddMember(ctx context.Context, userID, groupID uuid.UUID, addedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users_groups (id, added_at, user_id, group_id) VALUES ($1, $2, $3, $4)`,
		uuid.New(), addedAt, userID, groupID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("membership: %w", domain.ErrDuplicate)
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// CountOrphaned counts groups that have lost every membership. They are
// unreachable under member-scoped reads; the audit worker reports them.
func (r *PostgresGroupRepository) CountOrphaned(ctx context.Context) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM groups g
		WHERE NOT EXISTS (SELECT 1 FROM users_groups ug WHERE ug.group_id = g.id)
	`

	var n int64
	if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orphaned groups: %w", err)
	}
	return n, nil
}

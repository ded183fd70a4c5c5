package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlite.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, username, display_name, role, manager_id, department, active, lark_open_id`

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(sqlite.Executor(ctx, r.db.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		if err = notFound(err, "user", id); !isNotFound(err) {
			r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		return nil, err
	}
	return user, nil
}

// ListActive retrieves all active users ordered by ID
func (r *UserRepository) ListActive(ctx context.Context) ([]*entity.User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users WHERE active = 1 ORDER BY id`)
}

// ListActiveByRole retrieves the active holders of a role ordered by ID
func (r *UserRepository) ListActiveByRole(ctx context.Context, role string) ([]*entity.User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users WHERE active = 1 AND role = ? ORDER BY id`, role)
}

// Upsert inserts or replaces a user record
func (r *UserRepository) Upsert(ctx context.Context, user *entity.User) error {
	if user.ID <= 0 {
		return fmt.Errorf("user id must be positive, got %d", user.ID)
	}

	query := `
		INSERT INTO users (id, username, display_name, role, manager_id, department, active, lark_open_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			display_name = excluded.display_name,
			role = excluded.role,
			manager_id = excluded.manager_id,
			department = excluded.department,
			active = excluded.active,
			lark_open_id = excluded.lark_open_id,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.DisplayName,
		user.Role,
		nullID(user.ManagerID),
		user.Department,
		user.Active,
		user.LarkOpenID,
	)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.Int64("id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *UserRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.User, error) {
	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*entity.User, error) {
	var user entity.User
	var managerID sql.NullInt64
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.Role,
		&managerID,
		&user.Department,
		&user.Active,
		&user.LarkOpenID,
	)
	if err != nil {
		return nil, err
	}
	user.ManagerID = idPtr(managerID)
	return &user, nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqlite.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

const notificationColumns = `id, user_id, event_id, request_id, event_type, message,
	created_at, read_at, delivered_at`

// Create inserts a notification and assigns its ID
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			user_id, event_id, request_id, event_type, message,
			created_at, read_at, delivered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx, query,
		n.UserID,
		n.EventID,
		n.RequestID,
		n.EventType,
		n.Message,
		n.CreatedAt,
		nullTime(n.ReadAt),
		nullTime(n.DeliveredAt),
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.Int64("user_id", n.UserID),
			zap.Int64("event_id", n.EventID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	n.ID = id
	return nil
}

// GetByID retrieves a notification by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`

	n, err := scanNotification(sqlite.Executor(ctx, r.db.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		if err = notFound(err, "notification", id); !isNotFound(err) {
			r.logger.Error("Failed to get notification", zap.Int64("id", id), zap.Error(err))
			return nil, fmt.Errorf("failed to get notification: %w", err)
		}
		return nil, err
	}
	return n, nil
}

// ListByUser retrieves a user's feed, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	args := []interface{}{userID}
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// CountUnread counts a user's unread notifications
func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := sqlite.Executor(ctx, r.db.DB).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read_at IS NULL`, userID,
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count unread notifications", zap.Int64("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead stamps read_at once; marking an already read notification is a no-op
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64, at time.Time) error {
	exec := sqlite.Executor(ctx, r.db.DB)
	result, err := exec.ExecContext(ctx,
		`UPDATE notifications SET read_at = ? WHERE id = ? AND read_at IS NULL`, at, id)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	err = exec.QueryRowContext(ctx, `SELECT 1 FROM notifications WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("notification %d: %w", id, domainwf.ErrNotFound)
	}
	return err
}

// ListUndelivered retrieves notifications awaiting external delivery, oldest first
func (r *NotificationRepository) ListUndelivered(ctx context.Context, limit int) ([]*entity.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE delivered_at IS NULL ORDER BY id`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.query(ctx, query, args...)
}

// MarkDelivered stamps delivered_at
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	result, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx,
		`UPDATE notifications SET delivered_at = ? WHERE id = ?`, at, id)
	if err != nil {
		r.logger.Error("Failed to mark notification delivered", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification delivered: %w", err)
	}
	return requireAffected(result, "notification", id)
}

func (r *NotificationRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Notification, error) {
	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []*entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var n entity.Notification
	var readAt, deliveredAt sql.NullTime
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.EventID,
		&n.RequestID,
		&n.EventType,
		&n.Message,
		&n.CreatedAt,
		&readAt,
		&deliveredAt,
	)
	if err != nil {
		return nil, err
	}
	n.ReadAt = timePtr(readAt)
	n.DeliveredAt = timePtr(deliveredAt)
	return &n, nil
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/event"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// EventRepository implements port.EventRepository
type EventRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *sqlite.DB, logger *zap.Logger) port.EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes an event to the audit log and assigns its ID
func (r *EventRepository) Append(ctx context.Context, evt *event.Event) error {
	query := `
		INSERT INTO request_events (
			request_id, event_type, actor_id, message, correlation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx, query,
		evt.RequestID,
		string(evt.Type),
		nullID(evt.ActorID),
		evt.Message,
		evt.CorrelationID,
		evt.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("request %d: %w", evt.RequestID, domainwf.ErrNotFound)
		}
		r.logger.Error("Failed to append event",
			zap.Int64("request_id", evt.RequestID),
			zap.String("event_type", string(evt.Type)),
			zap.Error(err))
		return fmt.Errorf("failed to append event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	evt.ID = id
	return nil
}

// ListByRequest retrieves the audit trail of a request in append order
func (r *EventRepository) ListByRequest(ctx context.Context, requestID int64) ([]*event.Event, error) {
	query := `
		SELECT id, request_id, event_type, actor_id, message, correlation_id, created_at
		FROM request_events
		WHERE request_id = ?
		ORDER BY id
	`

	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list events", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		var evt event.Event
		var eventType string
		var actorID sql.NullInt64
		if err := rows.Scan(
			&evt.ID,
			&evt.RequestID,
			&eventType,
			&actorID,
			&evt.Message,
			&evt.CorrelationID,
			&evt.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		evt.Type = event.Type(eventType)
		evt.ActorID = idPtr(actorID)
		events = append(events, &evt)
	}
	return events, rows.Err()
}

// Verify interface compliance
var _ port.EventRepository = (*EventRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sqlite.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `id, request_type, workflow_key, owner_id, title, body, payload, steps,
	current_step, status, created_at, updated_at, decided_at, decided_by`

// Create inserts a request with its step snapshot and assigns its ID
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) error {
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	steps, err := json.Marshal(req.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}

	query := `
		INSERT INTO requests (
			request_type, workflow_key, owner_id, title, body, payload, steps,
			current_step, status, created_at, updated_at, decided_at, decided_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx, query,
		req.Type,
		req.WorkflowKey,
		req.OwnerID,
		req.Title,
		req.Body,
		string(payload),
		string(steps),
		req.CurrentStep,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
		nullTime(req.DecidedAt),
		nullID(req.DecidedBy),
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = ?`

	req, err := scanRequest(sqlite.Executor(ctx, r.db.DB).QueryRowContext(ctx, query, id))
	if err != nil {
		if err = notFound(err, "request", id); !isNotFound(err) {
			r.logger.Error("Failed to get request by ID", zap.Int64("id", id), zap.Error(err))
			return nil, fmt.Errorf("failed to get request: %w", err)
		}
		return nil, err
	}
	return req, nil
}

// Update persists status, current step and decision fields
func (r *RequestRepository) Update(ctx context.Context, req *entity.Request) error {
	query := `
		UPDATE requests
		SET status = ?, current_step = ?, updated_at = ?, decided_at = ?, decided_by = ?
		WHERE id = ?
	`

	result, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx, query,
		req.Status,
		req.CurrentStep,
		req.UpdatedAt,
		nullTime(req.DecidedAt),
		nullID(req.DecidedBy),
		req.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.Int64("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update request: %w", err)
	}
	return requireAffected(result, "request", req.ID)
}

// List retrieves requests matching filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
	var conds []string
	var args []interface{}
	if filter.OwnerID != 0 {
		conds = append(conds, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		conds = append(conds, "request_type = ?")
		args = append(args, filter.Type)
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"

	switch {
	case filter.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	case filter.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// CountPendingByWorkflow counts pending requests created from a workflow
func (r *RequestRepository) CountPendingByWorkflow(ctx context.Context, workflowKey string) (int, error) {
	var count int
	err := sqlite.Executor(ctx, r.db.DB).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE workflow_key = ? AND status = ?`,
		workflowKey, entity.RequestStatusPending,
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count pending requests", zap.String("workflow_key", workflowKey), zap.Error(err))
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return count, nil
}

func scanRequest(row rowScanner) (*entity.Request, error) {
	var req entity.Request
	var payload, steps string
	var decidedAt sql.NullTime
	var decidedBy sql.NullInt64

	err := row.Scan(
		&req.ID,
		&req.Type,
		&req.WorkflowKey,
		&req.OwnerID,
		&req.Title,
		&req.Body,
		&payload,
		&steps,
		&req.CurrentStep,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
		&decidedAt,
		&decidedBy,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(payload), &req.Payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload of request %d: %w", req.ID, err)
	}
	if err := json.Unmarshal([]byte(steps), &req.Steps); err != nil {
		return nil, fmt.Errorf("failed to decode steps of request %d: %w", req.ID, err)
	}
	req.DecidedAt = timePtr(decidedAt)
	req.DecidedBy = idPtr(decidedBy)
	return &req, nil
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)

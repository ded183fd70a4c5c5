package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// WorkflowRepository implements port.WorkflowRepository
type WorkflowRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sqlite.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

const workflowColumns = `workflow_key, name, request_type, category, scope_kind, scope_value,
	enabled, is_default, created_at, updated_at`

// Get retrieves a definition and its steps by key
func (r *WorkflowRepository) Get(ctx context.Context, key string) (*entity.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions WHERE workflow_key = ?`

	def, err := scanWorkflow(sqlite.Executor(ctx, r.db.DB).QueryRowContext(ctx, query, key))
	if err != nil {
		if err = notFound(err, "workflow", key); !isNotFound(err) {
			r.logger.Error("Failed to get workflow", zap.String("key", key), zap.Error(err))
		}
		return nil, err
	}

	if err := r.attachSteps(ctx, []*entity.WorkflowDefinition{def}); err != nil {
		return nil, err
	}
	return def, nil
}

// List retrieves definitions matching filter ordered by request type then key
func (r *WorkflowRepository) List(ctx context.Context, filter entity.WorkflowFilter) ([]*entity.WorkflowDefinition, error) {
	var conds []string
	var args []interface{}
	if filter.RequestType != "" {
		conds = append(conds, "request_type = ?")
		args = append(args, filter.RequestType)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.EnabledOnly {
		conds = append(conds, "enabled = 1")
	}
	if filter.Department != "" {
		conds = append(conds, "(scope_kind <> ? OR scope_value = ?)")
		args = append(args, entity.ScopeDept, filter.Department)
	}

	query := `SELECT ` + workflowColumns + ` FROM workflow_definitions`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY request_type, workflow_key"

	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list workflows", zap.Error(err))
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var defs []*entity.WorkflowDefinition
	for rows.Next() {
		def, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}

	if err := r.attachSteps(ctx, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// ListByRequestType retrieves every definition for a request type
func (r *WorkflowRepository) ListByRequestType(ctx context.Context, requestType string) ([]*entity.WorkflowDefinition, error) {
	return r.List(ctx, entity.WorkflowFilter{RequestType: requestType})
}

// Save inserts or replaces a definition and rewrites its step list
func (r *WorkflowRepository) Save(ctx context.Context, def *entity.WorkflowDefinition) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := sqlite.Executor(ctx, r.db.DB)

		_, err := exec.ExecContext(ctx, `
			INSERT INTO workflow_definitions (`+workflowColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(workflow_key) DO UPDATE SET
				name = excluded.name,
				request_type = excluded.request_type,
				category = excluded.category,
				scope_kind = excluded.scope_kind,
				scope_value = excluded.scope_value,
				enabled = excluded.enabled,
				is_default = excluded.is_default,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at
		`,
			def.Key, def.Name, def.RequestType, def.Category, def.ScopeKind, def.ScopeValue,
			def.Enabled, def.IsDefault, def.CreatedAt, def.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to save workflow", zap.String("key", def.Key), zap.Error(err))
			return fmt.Errorf("failed to save workflow: %w", err)
		}

		if _, err := exec.ExecContext(ctx, `DELETE FROM workflow_steps WHERE workflow_key = ?`, def.Key); err != nil {
			return fmt.Errorf("failed to clear workflow steps: %w", err)
		}

		for _, step := range def.Steps {
			_, err := exec.ExecContext(ctx, `
				INSERT INTO workflow_steps (
					workflow_key, step_order, step_key, assignee_kind, assignee_value,
					condition_kind, condition_value
				) VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
				def.Key, step.StepOrder, step.StepKey, step.AssigneeKind, step.AssigneeValue,
				step.ConditionKind, step.ConditionValue,
			)
			if err != nil {
				r.logger.Error("Failed to save workflow step",
					zap.String("key", def.Key), zap.Int("step_order", step.StepOrder), zap.Error(err))
				return fmt.Errorf("failed to save workflow step %d: %w", step.StepOrder, err)
			}
		}
		return nil
	})
}

// Delete removes a definition; steps cascade
func (r *WorkflowRepository) Delete(ctx context.Context, key string) error {
	result, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx,
		`DELETE FROM workflow_definitions WHERE workflow_key = ?`, key)
	if err != nil {
		r.logger.Error("Failed to delete workflow", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	return requireAffected(result, "workflow", key)
}

func (r *WorkflowRepository) attachSteps(ctx context.Context, defs []*entity.WorkflowDefinition) error {
	if len(defs) == 0 {
		return nil
	}

	byKey := make(map[string]*entity.WorkflowDefinition, len(defs))
	args := make([]interface{}, 0, len(defs))
	for _, def := range defs {
		def.Steps = []entity.StepDefinition{}
		byKey[def.Key] = def
		args = append(args, def.Key)
	}

	query := `
		SELECT workflow_key, step_order, step_key, assignee_kind, assignee_value,
			condition_kind, condition_value
		FROM workflow_steps
		WHERE workflow_key IN (` + placeholders(len(args)) + `)
		ORDER BY workflow_key, step_order
	`
	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to load workflow steps", zap.Error(err))
		return fmt.Errorf("failed to load workflow steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var step entity.StepDefinition
		if err := rows.Scan(
			&key,
			&step.StepOrder,
			&step.StepKey,
			&step.AssigneeKind,
			&step.AssigneeValue,
			&step.ConditionKind,
			&step.ConditionValue,
		); err != nil {
			return fmt.Errorf("failed to scan workflow step: %w", err)
		}
		if def, ok := byKey[key]; ok {
			def.Steps = append(def.Steps, step)
		}
	}
	return rows.Err()
}

func scanWorkflow(row rowScanner) (*entity.WorkflowDefinition, error) {
	var def entity.WorkflowDefinition
	err := row.Scan(
		&def.Key,
		&def.Name,
		&def.RequestType,
		&def.Category,
		&def.ScopeKind,
		&def.ScopeValue,
		&def.Enabled,
		&def.IsDefault,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// Verify interface compliance
var _ port.WorkflowRepository = (*WorkflowRepository)(nil)

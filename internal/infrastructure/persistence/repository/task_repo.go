package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *sqlite.DB, logger *zap.Logger) port.TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `t.id, t.request_id, t.step_order, t.step_key, t.assignee_kind, t.status,
	t.decided_at, t.decided_by, t.comment, t.created_at`

// Create inserts a task together with its frozen assignee set
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := sqlite.Executor(ctx, r.db.DB)

		result, err := exec.ExecContext(ctx, `
			INSERT INTO tasks (
				request_id, step_order, step_key, assignee_kind, status,
				decided_at, decided_by, comment, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			task.RequestID,
			task.StepOrder,
			task.StepKey,
			task.AssigneeKind,
			task.Status,
			nullTime(task.DecidedAt),
			nullID(task.DecidedBy),
			task.Comment,
			task.CreatedAt,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("request %d: %w", task.RequestID, domainwf.ErrNotFound)
			}
			r.logger.Error("Failed to create task", zap.Int64("request_id", task.RequestID), zap.Error(err))
			return fmt.Errorf("failed to create task: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		for pos, userID := range task.AssigneeUserIDs {
			if _, err := exec.ExecContext(ctx,
				`INSERT OR IGNORE INTO task_assignees (task_id, user_id, position) VALUES (?, ?, ?)`,
				id, userID, pos,
			); err != nil {
				r.logger.Error("Failed to add task assignee", zap.Int64("task_id", id), zap.Error(err))
				return fmt.Errorf("failed to add task assignee: %w", err)
			}
		}

		task.ID = id
		return nil
	})
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	tasks, err := r.query(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task %d: %w", id, domainwf.ErrNotFound)
	}
	return tasks[0], nil
}

// ListByRequest retrieves every task of a request in creation order
func (r *TaskRepository) ListByRequest(ctx context.Context, requestID int64) ([]*entity.Task, error) {
	return r.query(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.request_id = ? ORDER BY t.id`, requestID)
}

// Update persists status and decision fields
func (r *TaskRepository) Update(ctx context.Context, task *entity.Task) error {
	result, err := sqlite.Executor(ctx, r.db.DB).ExecContext(ctx, `
		UPDATE tasks SET status = ?, decided_at = ?, decided_by = ?, comment = ?
		WHERE id = ?
	`,
		task.Status,
		nullTime(task.DecidedAt),
		nullID(task.DecidedBy),
		task.Comment,
		task.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update task", zap.Int64("id", task.ID), zap.Error(err))
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireAffected(result, "task", task.ID)
}

// ListPendingByAssignee retrieves the open tasks a user may decide
func (r *TaskRepository) ListPendingByAssignee(ctx context.Context, userID int64) ([]*entity.Task, error) {
	return r.query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		JOIN task_assignees a ON a.task_id = t.id
		WHERE a.user_id = ? AND t.status = ?
		ORDER BY t.id
	`, userID, entity.TaskStatusPending)
}

// ListStalled retrieves open tasks with an empty assignee set
func (r *TaskRepository) ListStalled(ctx context.Context) ([]*entity.Task, error) {
	return r.query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.status = ?
			AND NOT EXISTS (SELECT 1 FROM task_assignees a WHERE a.task_id = t.id)
		ORDER BY t.id
	`, entity.TaskStatusPending)
}

func (r *TaskRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.Task, error) {
	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	var tasks []*entity.Task
	for rows.Next() {
		var task entity.Task
		var decidedAt sql.NullTime
		var decidedBy sql.NullInt64
		if err := rows.Scan(
			&task.ID,
			&task.RequestID,
			&task.StepOrder,
			&task.StepKey,
			&task.AssigneeKind,
			&task.Status,
			&decidedAt,
			&decidedBy,
			&task.Comment,
			&task.CreatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.DecidedAt = timePtr(decidedAt)
		task.DecidedBy = idPtr(decidedBy)
		tasks = append(tasks, &task)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	if err := r.attachAssignees(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) attachAssignees(ctx context.Context, tasks []*entity.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[int64]*entity.Task, len(tasks))
	args := make([]interface{}, 0, len(tasks))
	for _, task := range tasks {
		task.AssigneeUserIDs = []int64{}
		byID[task.ID] = task
		args = append(args, task.ID)
	}

	rows, err := sqlite.Executor(ctx, r.db.DB).QueryContext(ctx, `
		SELECT task_id, user_id FROM task_assignees
		WHERE task_id IN (`+placeholders(len(args))+`)
		ORDER BY task_id, position
	`, args...)
	if err != nil {
		r.logger.Error("Failed to load task assignees", zap.Error(err))
		return fmt.Errorf("failed to load task assignees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, userID int64
		if err := rows.Scan(&taskID, &userID); err != nil {
			return fmt.Errorf("failed to scan task assignee: %w", err)
		}
		if task, ok := byID[taskID]; ok {
			task.AssigneeUserIDs = append(task.AssigneeUserIDs, userID)
		}
	}
	return rows.Err()
}

// Verify interface compliance
var _ port.TaskRepository = (*TaskRepository)(nil)

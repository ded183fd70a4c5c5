package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

type taskRepo struct {
	s *Store
}

func (r *taskRepo) Create(ctx context.Context, task *entity.Task) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.requests[task.RequestID]; !ok {
			return fmt.Errorf("request %d: %w", task.RequestID, domainwf.ErrNotFound)
		}
		r.s.nextTaskID++
		task.ID = r.s.nextTaskID
		r.s.tasks[task.ID] = cloneTask(task)
		return nil
	})
}

func (r *taskRepo) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	var out *entity.Task
	r.s.read(func() {
		if t, ok := r.s.tasks[id]; ok {
			out = cloneTask(t)
		}
	})
	if out == nil {
		return nil, fmt.Errorf("task %d: %w", id, domainwf.ErrNotFound)
	}
	return out, nil
}

func (r *taskRepo) ListByRequest(ctx context.Context, requestID int64) ([]*entity.Task, error) {
	return r.collect(func(t *entity.Task) bool { return t.RequestID == requestID }), nil
}

func (r *taskRepo) Update(ctx context.Context, task *entity.Task) error {
	return r.s.write(ctx, func() error {
		existing, ok := r.s.tasks[task.ID]
		if !ok {
			return fmt.Errorf("task %d: %w", task.ID, domainwf.ErrNotFound)
		}
		updated := cloneTask(existing)
		updated.Status = task.Status
		updated.DecidedAt = cloneTime(task.DecidedAt)
		updated.DecidedBy = cloneID(task.DecidedBy)
		updated.Comment = task.Comment
		r.s.tasks[task.ID] = updated
		return nil
	})
}

func (r *taskRepo) ListPendingByAssignee(ctx context.Context, userID int64) ([]*entity.Task, error) {
	return r.collect(func(t *entity.Task) bool { return t.IsPending() && t.HasAssignee(userID) }), nil
}

func (r *taskRepo) ListStalled(ctx context.Context) ([]*entity.Task, error) {
	return r.collect(func(t *entity.Task) bool { return t.IsStalled() }), nil
}

func (r *taskRepo) collect(match func(*entity.Task) bool) []*entity.Task {
	var out []*entity.Task
	r.s.read(func() {
		for _, t := range r.s.tasks {
			if match(t) {
				out = append(out, cloneTask(t))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ port.TaskRepository = (*taskRepo)(nil)

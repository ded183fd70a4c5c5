package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

type requestRepo struct {
	s *Store
}

func (r *requestRepo) Create(ctx context.Context, req *entity.Request) error {
	return r.s.write(ctx, func() error {
		r.s.nextRequestID++
		req.ID = r.s.nextRequestID
		r.s.requests[req.ID] = cloneRequest(req)
		return nil
	})
}

func (r *requestRepo) GetByID(ctx context.Context, id int64) (*entity.Request, error) {
	var out *entity.Request
	r.s.read(func() {
		if req, ok := r.s.requests[id]; ok {
			out = cloneRequest(req)
		}
	})
	if out == nil {
		return nil, fmt.Errorf("request %d: %w", id, domainwf.ErrNotFound)
	}
	return out, nil
}

func (r *requestRepo) Update(ctx context.Context, req *entity.Request) error {
	return r.s.write(ctx, func() error {
		existing, ok := r.s.requests[req.ID]
		if !ok {
			return fmt.Errorf("request %d: %w", req.ID, domainwf.ErrNotFound)
		}
		updated := cloneRequest(existing)
		updated.Status = req.Status
		updated.CurrentStep = req.CurrentStep
		updated.UpdatedAt = req.UpdatedAt
		updated.DecidedAt = cloneTime(req.DecidedAt)
		updated.DecidedBy = cloneID(req.DecidedBy)
		r.s.requests[req.ID] = updated
		return nil
	})
}

func (r *requestRepo) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
	var out []*entity.Request
	r.s.read(func() {
		for _, req := range r.s.requests {
			if filter.OwnerID != 0 && req.OwnerID != filter.OwnerID {
				continue
			}
			if filter.Status != "" && req.Status != filter.Status {
				continue
			}
			if filter.Type != "" && req.Type != filter.Type {
				continue
			}
			out = append(out, cloneRequest(req))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *requestRepo) CountPendingByWorkflow(ctx context.Context, workflowKey string) (int, error) {
	count := 0
	r.s.read(func() {
		for _, req := range r.s.requests {
			if req.WorkflowKey == workflowKey && req.Status == entity.RequestStatusPending {
				count++
			}
		}
	})
	return count, nil
}

var _ port.RequestRepository = (*requestRepo)(nil)

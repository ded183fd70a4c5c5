package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

type workflowRepo struct {
	s *Store
}

func (r *workflowRepo) Get(ctx context.Context, key string) (*entity.WorkflowDefinition, error) {
	var out *entity.WorkflowDefinition
	r.s.read(func() {
		if w, ok := r.s.workflows[key]; ok {
			out = cloneWorkflow(w)
		}
	})
	if out == nil {
		return nil, fmt.Errorf("workflow %q: %w", key, domainwf.ErrNotFound)
	}
	return out, nil
}

func (r *workflowRepo) List(ctx context.Context, filter entity.WorkflowFilter) ([]*entity.WorkflowDefinition, error) {
	var out []*entity.WorkflowDefinition
	r.s.read(func() {
		for _, w := range r.s.workflows {
			if filter.RequestType != "" && w.RequestType != filter.RequestType {
				continue
			}
			if filter.Category != "" && w.Category != filter.Category {
				continue
			}
			if filter.EnabledOnly && !w.Enabled {
				continue
			}
			if filter.Department != "" && !w.AppliesTo(filter.Department) {
				continue
			}
			out = append(out, cloneWorkflow(w))
		}
	})
	sortWorkflows(out)
	return out, nil
}

func (r *workflowRepo) ListByRequestType(ctx context.Context, requestType string) ([]*entity.WorkflowDefinition, error) {
	return r.List(ctx, entity.WorkflowFilter{RequestType: requestType})
}

func (r *workflowRepo) Save(ctx context.Context, def *entity.WorkflowDefinition) error {
	return r.s.write(ctx, func() error {
		r.s.workflows[def.Key] = cloneWorkflow(def)
		return nil
	})
}

func (r *workflowRepo) Delete(ctx context.Context, key string) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.workflows[key]; !ok {
			return fmt.Errorf("workflow %q: %w", key, domainwf.ErrNotFound)
		}
		delete(r.s.workflows, key)
		return nil
	})
}

func sortWorkflows(defs []*entity.WorkflowDefinition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].RequestType != defs[j].RequestType {
			return defs[i].RequestType < defs[j].RequestType
		}
		return defs[i].Key < defs[j].Key
	})
}

var _ port.WorkflowRepository = (*workflowRepo)(nil)

// Package catalog stores workflow definitions and picks the one that applies to a request.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Catalog manages workflow definitions
type Catalog interface {
	Resolve(ctx context.Context, requestType, department string) (*entity.WorkflowDefinition, error)
	Get(ctx context.Context, key string) (*entity.WorkflowDefinition, error)
	Upsert(ctx context.Context, def *entity.WorkflowDefinition) (*entity.WorkflowDefinition, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, filter entity.WorkflowFilter) ([]*entity.WorkflowDefinition, error)
	ListAvailable(ctx context.Context, department string) ([]*entity.WorkflowDefinition, error)
}

type catalogImpl struct {
	workflowRepo port.WorkflowRepository
	requestRepo  port.RequestRepository
	txManager    port.TransactionManager
	logger       Logger
	now          func() time.Time
}

// Option configures the catalog
type Option func(*catalogImpl)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *catalogImpl) {
		c.now = now
	}
}

// NewCatalog creates a new Catalog
func NewCatalog(
	workflowRepo port.WorkflowRepository,
	requestRepo port.RequestRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...Option,
) Catalog {
	c := &catalogImpl{
		workflowRepo: workflowRepo,
		requestRepo:  requestRepo,
		txManager:    txManager,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve picks the enabled definition for a request type: the department tier
// first, then the global tier. A tier with one candidate resolves to it; with
// several, only an is_default candidate resolves.
func (c *catalogImpl) Resolve(ctx context.Context, requestType, department string) (*entity.WorkflowDefinition, error) {
	defs, err := c.workflowRepo.ListByRequestType(ctx, requestType)
	if err != nil {
		return nil, fmt.Errorf("list workflows for %q: %w", requestType, err)
	}

	var deptTier, globalTier []*entity.WorkflowDefinition
	for _, def := range defs {
		if !def.Enabled {
			continue
		}
		switch {
		case def.ScopeKind == entity.ScopeDept && department != "" && def.ScopeValue == department:
			deptTier = append(deptTier, def)
		case def.ScopeKind == entity.ScopeGlobal:
			globalTier = append(globalTier, def)
		}
	}

	for _, tier := range [][]*entity.WorkflowDefinition{deptTier, globalTier} {
		if def := pick(tier); def != nil {
			return def, nil
		}
	}

	return nil, fmt.Errorf("%w: type=%s dept=%s", domainwf.ErrNoApplicableWorkflow, requestType, department)
}

func pick(candidates []*entity.WorkflowDefinition) *entity.WorkflowDefinition {
	if len(candidates) == 1 {
		return candidates[0]
	}
	for _, def := range candidates {
		if def.IsDefault {
			return def
		}
	}
	return nil
}

// Get returns an enabled definition
func (c *catalogImpl) Get(ctx context.Context, key string) (*entity.WorkflowDefinition, error) {
	def, err := c.workflowRepo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !def.Enabled {
		return nil, fmt.Errorf("workflow %q is disabled: %w", key, domainwf.ErrNotFound)
	}
	return def, nil
}

// Upsert validates and stores a definition with its full step list in one transaction
func (c *catalogImpl) Upsert(ctx context.Context, def *entity.WorkflowDefinition) (*entity.WorkflowDefinition, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: definition is required", domainwf.ErrInvalidDefinition)
	}

	Normalize(def)
	if err := Validate(def); err != nil {
		return nil, err
	}

	err := c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		siblings, err := c.workflowRepo.ListByRequestType(txCtx, def.RequestType)
		if err != nil {
			return fmt.Errorf("list workflows: %w", err)
		}

		now := c.now()
		def.CreatedAt = now
		for _, other := range siblings {
			if other.Key == def.Key {
				def.CreatedAt = other.CreatedAt
				continue
			}
			if def.IsDefault && other.IsDefault && def.SameScope(other) {
				return fmt.Errorf("%w: %q is already the default for type=%s scope=%s",
					domainwf.ErrInvalidDefinition, other.Key, def.RequestType, scopeLabel(def))
			}
		}
		def.UpdatedAt = now

		return c.workflowRepo.Save(txCtx, def)
	})
	if err != nil {
		if !errors.Is(err, domainwf.ErrInvalidDefinition) {
			c.logger.Error("Failed to upsert workflow", "key", def.Key, "error", err)
		}
		return nil, err
	}

	c.logger.Info("Workflow upserted",
		"key", def.Key,
		"request_type", def.RequestType,
		"scope", scopeLabel(def),
		"steps", len(def.Steps),
		"is_default", def.IsDefault,
	)
	return def, nil
}

// Delete removes a definition unless a pending request still references it
func (c *catalogImpl) Delete(ctx context.Context, key string) error {
	return c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := c.workflowRepo.Get(txCtx, key); err != nil {
			return err
		}

		pending, err := c.requestRepo.CountPendingByWorkflow(txCtx, key)
		if err != nil {
			return fmt.Errorf("count pending requests: %w", err)
		}
		if pending > 0 {
			return fmt.Errorf("%w: %d pending requests use %q", domainwf.ErrInUse, pending, key)
		}

		if err := c.workflowRepo.Delete(txCtx, key); err != nil {
			return err
		}
		c.logger.Info("Workflow deleted", "key", key)
		return nil
	})
}

// List returns definitions matching the filter
func (c *catalogImpl) List(ctx context.Context, filter entity.WorkflowFilter) ([]*entity.WorkflowDefinition, error) {
	return c.workflowRepo.List(ctx, filter)
}

// ListAvailable returns the enabled definitions a member of department may submit against
func (c *catalogImpl) ListAvailable(ctx context.Context, department string) ([]*entity.WorkflowDefinition, error) {
	return c.workflowRepo.List(ctx, entity.WorkflowFilter{Department: department, EnabledOnly: true})
}

func scopeLabel(def *entity.WorkflowDefinition) string {
	if def.ScopeKind == entity.ScopeDept {
		return entity.ScopeDept + ":" + def.ScopeValue
	}
	return entity.ScopeGlobal
}

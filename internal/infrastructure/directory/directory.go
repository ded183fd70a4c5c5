// Package directory serves user lookups for assignee resolution from the local users table.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

// DefaultTimeout bounds every lookup when none is configured
const DefaultTimeout = 2 * time.Second

// Adapter implements port.Directory on top of a UserRepository. Every call
// is bounded by a timeout; failures other than a missing user surface as
// ErrInfrastructure so callers retry instead of treating them as a decision.
type Adapter struct {
	users   port.UserRepository
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a directory adapter
func New(users port.UserRepository, timeout time.Duration, logger *zap.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{users: users, timeout: timeout, logger: logger}
}

// GetUser returns the user or an error wrapping ErrNotFound
func (a *Adapter) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	user, err := a.users.GetByID(ctx, id)
	if err != nil {
		return nil, a.fail(ctx, "get user", err, zap.Int64("user_id", id))
	}
	return user, nil
}

// ListActiveByRole returns active users holding role
func (a *Adapter) ListActiveByRole(ctx context.Context, role string) ([]*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	users, err := a.users.ListActiveByRole(ctx, role)
	if err != nil {
		return nil, a.fail(ctx, "list role members", err, zap.String("role", role))
	}
	return users, nil
}

// ListActive returns every active user
func (a *Adapter) ListActive(ctx context.Context) ([]*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	users, err := a.users.ListActive(ctx)
	if err != nil {
		return nil, a.fail(ctx, "list active users", err)
	}
	return users, nil
}

func (a *Adapter) fail(ctx context.Context, op string, err error, fields ...zap.Field) error {
	if errors.Is(err, domainwf.ErrNotFound) {
		return err
	}

	fields = append(fields, zap.String("operation", op), zap.Error(err))
	if ctx.Err() != nil {
		fields = append(fields, zap.Duration("timeout", a.timeout))
		a.logger.Warn("Directory lookup timed out", fields...)
	} else {
		a.logger.Error("Directory lookup failed", fields...)
	}
	return fmt.Errorf("%w: directory %s: %v", domainwf.ErrInfrastructure, op, err)
}

var _ port.Directory = (*Adapter)(nil)

package port

import (
	"context"
	"time"

	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
)

// Lookups of a missing record return an error wrapping workflow.ErrNotFound.

// WorkflowRepository defines persistence operations for WorkflowDefinition
type WorkflowRepository interface {
	Get(ctx context.Context, key string) (*entity.WorkflowDefinition, error)
	List(ctx context.Context, filter entity.WorkflowFilter) ([]*entity.WorkflowDefinition, error)
	ListByRequestType(ctx context.Context, requestType string) ([]*entity.WorkflowDefinition, error)
	// Save inserts or replaces the definition together with its full step list
	Save(ctx context.Context, def *entity.WorkflowDefinition) error
	Delete(ctx context.Context, key string) error
}

// RequestRepository defines persistence operations for Request
type RequestRepository interface {
	Create(ctx context.Context, req *entity.Request) error
	GetByID(ctx context.Context, id int64) (*entity.Request, error)
	// Update persists status, current step and decision fields
	Update(ctx context.Context, req *entity.Request) error
	List(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error)
	CountPendingByWorkflow(ctx context.Context, workflowKey string) (int, error)
}

// TaskRepository defines persistence operations for Task and its frozen assignee set
type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id int64) (*entity.Task, error)
	ListByRequest(ctx context.Context, requestID int64) ([]*entity.Task, error)
	// Update persists status and decision fields; assignees are never rewritten
	Update(ctx context.Context, task *entity.Task) error
	ListPendingByAssignee(ctx context.Context, userID int64) ([]*entity.Task, error)
	ListStalled(ctx context.Context) ([]*entity.Task, error)
}

// EventRepository is the append-only audit log
type EventRepository interface {
	Append(ctx context.Context, evt *event.Event) error
	ListByRequest(ctx context.Context, requestID int64) ([]*event.Event, error)
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetByID(ctx context.Context, id int64) (*entity.Notification, error)
	ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, id int64, at time.Time) error
	ListUndelivered(ctx context.Context, limit int) ([]*entity.Notification, error)
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
}

// UserRepository is the local store behind the Directory
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	ListActive(ctx context.Context) ([]*entity.User, error)
	ListActiveByRole(ctx context.Context, role string) ([]*entity.User, error)
	Upsert(ctx context.Context, user *entity.User) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

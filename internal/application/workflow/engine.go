// Package workflow runs approval requests through their step snapshot:
// step activation, task decisions, quorum, withdraw and void.
package workflow

import (
	"context"

	"github.com/garyjia/oa-approval/internal/domain/entity"
)

// Engine drives request and task state
type Engine interface {
	// CreateRequest resolves the workflow, snapshots its steps and activates step 1.
	// A request whose manager step cannot be resolved is returned voided, not as an error.
	CreateRequest(ctx context.Context, in CreateRequestInput) (*entity.Request, error)

	// DecideTask records an assignee's decision and advances the request
	DecideTask(ctx context.Context, taskID, actorID int64, decision, comment string) (*entity.Task, error)

	// AddSigner lets an assignee of a pending task bring another user into the
	// same step. The new task is decided like its siblings; existing tasks keep
	// their assignees.
	AddSigner(ctx context.Context, taskID, actorID, userID int64) (*entity.Task, error)

	// WithdrawRequest lets the owner cancel a request nobody has decided on yet
	WithdrawRequest(ctx context.Context, requestID, actorID int64) (*entity.Request, error)

	// VoidRequest lets an administrator cancel any pending request
	VoidRequest(ctx context.Context, requestID, adminID int64, reason string) (*entity.Request, error)

	// OverrideTask lets an administrator decide any pending task, including stalled ones
	OverrideTask(ctx context.Context, taskID, adminID int64, decision, comment string) (*entity.Task, error)

	GetRequest(ctx context.Context, requestID int64) (*entity.RequestDetail, error)
	ListRequests(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error)
	ListInbox(ctx context.Context, userID int64) ([]*entity.InboxItem, error)
	ListStalledTasks(ctx context.Context) ([]*entity.InboxItem, error)
}

// CreateRequestInput carries a new submission. WorkflowKey is optional;
// when empty the catalog resolves one from the type and the owner's department.
type CreateRequestInput struct {
	OwnerID     int64                  `json:"-"`
	Type        string                 `json:"type" binding:"required"`
	WorkflowKey string                 `json:"workflow_key"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Payload     map[string]interface{} `json:"payload"`
}

// PayloadValidator checks a payload against the schema of its request type
type PayloadValidator interface {
	Validate(requestType string, payload map[string]interface{}) error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

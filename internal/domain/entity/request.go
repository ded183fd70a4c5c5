package entity

import (
	"time"

	"github.com/garyjia/oa-approval/internal/domain/event"
)

// Request is a typed approval request routed through a workflow snapshot.
type Request struct {
	ID          int64                  `json:"id"`
	Type        string                 `json:"type"`
	WorkflowKey string                 `json:"workflow_key"`
	OwnerID     int64                  `json:"owner_id"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	Steps       []StepDefinition       `json:"steps"`
	CurrentStep int                    `json:"current_step"`
	Status      string                 `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	DecidedAt   *time.Time             `json:"decided_at,omitempty"`
	DecidedBy   *int64                 `json:"decided_by,omitempty"`
}

// IsPending reports whether the request still accepts decisions.
func (r *Request) IsPending() bool {
	return r.Status == RequestStatusPending
}

// Step returns the snapshot step with the given order, or nil.
func (r *Request) Step(order int) *StepDefinition {
	for i := range r.Steps {
		if r.Steps[i].StepOrder == order {
			return &r.Steps[i]
		}
	}
	return nil
}

// LastStepOrder returns the highest step order of the snapshot.
func (r *Request) LastStepOrder() int {
	last := 0
	for _, s := range r.Steps {
		if s.StepOrder > last {
			last = s.StepOrder
		}
	}
	return last
}

// RequestFilter narrows ListRequests results.
type RequestFilter struct {
	OwnerID int64  `form:"owner_id"`
	Status  string `form:"status"`
	Type    string `form:"type"`
	Limit   int    `form:"limit"`
	Offset  int    `form:"offset"`
}

// RequestDetail is the read-only projection used by detail views and exports.
type RequestDetail struct {
	Request *Request       `json:"request"`
	Tasks   []*Task        `json:"tasks"`
	Events  []*event.Event `json:"events"`
}

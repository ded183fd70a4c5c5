package entity

import "time"

// Task is a decidable unit of work created when a step activates.
// AssigneeUserIDs is frozen at creation; an empty set means the task
// can only be completed by an administrator override.
type Task struct {
	ID              int64      `json:"id"`
	RequestID       int64      `json:"request_id"`
	StepOrder       int        `json:"step_order"`
	StepKey         string     `json:"step_key"`
	AssigneeKind    string     `json:"assignee_kind"`
	Status          string     `json:"status"`
	AssigneeUserIDs []int64    `json:"assignee_user_ids"`
	DecidedAt       *time.Time `json:"decided_at,omitempty"`
	DecidedBy       *int64     `json:"decided_by,omitempty"`
	Comment         string     `json:"comment,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// IsPending reports whether the task is still open.
func (t *Task) IsPending() bool {
	return t.Status == TaskStatusPending
}

// IsDecided reports whether an approver acted on the task.
func (t *Task) IsDecided() bool {
	return t.Status == TaskStatusApproved || t.Status == TaskStatusRejected
}

// IsStalled reports whether nobody but an administrator can decide the task.
func (t *Task) IsStalled() bool {
	return t.IsPending() && len(t.AssigneeUserIDs) == 0
}

// HasAssignee reports whether userID may decide the task.
func (t *Task) HasAssignee(userID int64) bool {
	for _, id := range t.AssigneeUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// InboxItem pairs a pending task with its request.
type InboxItem struct {
	Task    *Task    `json:"task"`
	Request *Request `json:"request"`
}

package memory

import (
	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
)

func cloneWorkflow(w *entity.WorkflowDefinition) *entity.WorkflowDefinition {
	cp := *w
	cp.Steps = append([]entity.StepDefinition(nil), w.Steps...)
	return &cp
}

func cloneRequest(r *entity.Request) *entity.Request {
	cp := *r
	cp.Steps = append([]entity.StepDefinition(nil), r.Steps...)
	if r.Payload != nil {
		cp.Payload = make(map[string]interface{}, len(r.Payload))
		for k, v := range r.Payload {
			cp.Payload[k] = v
		}
	}
	cp.DecidedAt = cloneTime(r.DecidedAt)
	cp.DecidedBy = cloneID(r.DecidedBy)
	return &cp
}

func cloneTask(t *entity.Task) *entity.Task {
	cp := *t
	cp.AssigneeUserIDs = append([]int64{}, t.AssigneeUserIDs...)
	cp.DecidedAt = cloneTime(t.DecidedAt)
	cp.DecidedBy = cloneID(t.DecidedBy)
	return &cp
}

func cloneEvent(e *event.Event) *event.Event {
	cp := *e
	cp.ActorID = cloneID(e.ActorID)
	cp.Payload = nil
	return &cp
}

func cloneNotification(n *entity.Notification) *entity.Notification {
	cp := *n
	cp.ReadAt = cloneTime(n.ReadAt)
	cp.DeliveredAt = cloneTime(n.DeliveredAt)
	return &cp
}

func cloneUser(u *entity.User) *entity.User {
	cp := *u
	cp.ManagerID = cloneID(u.ManagerID)
	return &cp
}

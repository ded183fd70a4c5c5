package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/oa-approval/internal/application/condition"
	"github.com/garyjia/oa-approval/internal/application/emitter"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

var terminalEvents = map[domainwf.Trigger]event.Type{
	domainwf.TriggerApprove:  event.TypeRequestApproved,
	domainwf.TriggerReject:   event.TypeRequestRejected,
	domainwf.TriggerWithdraw: event.TypeWithdrawn,
	domainwf.TriggerVoid:     event.TypeVoided,
}

// activate walks the snapshot from step order `from`, skipping steps whose
// condition does not apply, and creates tasks for the first step that does.
// Running past the last step approves the request on behalf of actor.
func (e *engineImpl) activate(ctx context.Context, batch *emitter.Batch, req *entity.Request, owner *entity.User, from int, actor *int64) error {
	in := condition.Input{Payload: req.Payload, OwnerDepartment: owner.Department}

	for order := from; order <= req.LastStepOrder(); order++ {
		step := req.Step(order)
		if step == nil {
			return fmt.Errorf("request %d has no step %d", req.ID, order)
		}

		if !e.evaluator.Applies(*step, in) {
			e.logger.Info("Step skipped",
				"request_id", req.ID,
				"step_order", step.StepOrder,
				"step_key", step.StepKey,
				"condition_kind", step.ConditionKind,
				"condition_value", step.ConditionValue,
			)
			continue
		}

		assignees, err := e.resolver.Resolve(ctx, *step, owner)
		if errors.Is(err, domainwf.ErrNoManagerConfigured) {
			e.logger.Warn("Voiding request, manager not configured",
				"request_id", req.ID,
				"owner_id", req.OwnerID,
				"step_order", step.StepOrder,
				"error", err.Error(),
			)
			msg := fmt.Sprintf("Request voided: step %d (%s) needs the owner's manager but none is configured",
				step.StepOrder, step.StepKey)
			return e.finish(ctx, batch, req, domainwf.TriggerVoid, nil, msg)
		}
		if err != nil {
			return fmt.Errorf("resolve assignees for step %d: %w", step.StepOrder, err)
		}

		req.CurrentStep = step.StepOrder
		req.UpdatedAt = e.now()
		if err := e.requestRepo.Update(ctx, req); err != nil {
			return fmt.Errorf("update request %d: %w", req.ID, err)
		}
		return e.createTasks(ctx, batch, req, *step, assignees)
	}

	return e.finish(ctx, batch, req, domainwf.TriggerApprove, actor, "Request approved")
}

// createTasks creates one task per resolved user for quorum steps and a
// single shared task otherwise. An empty assignee set yields one stalled task.
func (e *engineImpl) createTasks(ctx context.Context, batch *emitter.Batch, req *entity.Request, step entity.StepDefinition, assignees []int64) error {
	groups := [][]int64{assignees}
	if entity.IsQuorumKind(step.AssigneeKind) && len(assignees) > 0 {
		groups = make([][]int64, 0, len(assignees))
		for _, id := range assignees {
			groups = append(groups, []int64{id})
		}
	}

	for _, ids := range groups {
		task := &entity.Task{
			RequestID:       req.ID,
			StepOrder:       step.StepOrder,
			StepKey:         step.StepKey,
			AssigneeKind:    step.AssigneeKind,
			Status:          entity.TaskStatusPending,
			AssigneeUserIDs: append([]int64{}, ids...),
			CreatedAt:       e.now(),
		}
		if err := e.taskRepo.Create(ctx, task); err != nil {
			return fmt.Errorf("create task for step %d: %w", step.StepOrder, err)
		}

		msg := fmt.Sprintf("Step %d (%s) assigned to %s", step.StepOrder, step.StepKey, describeAssignees(ids))
		if task.IsStalled() {
			msg = fmt.Sprintf("Step %d (%s) has no eligible approver; administrator action required", step.StepOrder, step.StepKey)
			e.logger.Warn("Task stalled, no assignees resolved",
				"request_id", req.ID,
				"task_id", task.ID,
				"step_order", step.StepOrder,
				"assignee_kind", step.AssigneeKind,
				"assignee_value", step.AssigneeValue,
			)
		}
		if err := e.record(ctx, batch, req, event.TypeTaskCreated, nil, msg, taskPayload(task)); err != nil {
			return err
		}
	}
	return nil
}

// stepComplete reports whether approving task completes its step. users_any
// completes on the first approval; every other kind waits until no task of
// the step is left unapproved, which covers users_all fan-out and added
// signers. Siblings are re-read so the check sees the state committed under
// the request lock.
func (e *engineImpl) stepComplete(ctx context.Context, task *entity.Task) (bool, error) {
	if task.AssigneeKind == entity.AssigneeUsersAny {
		return true, nil
	}

	tasks, err := e.taskRepo.ListByRequest(ctx, task.RequestID)
	if err != nil {
		return false, fmt.Errorf("list sibling tasks: %w", err)
	}
	for _, t := range tasks {
		if t.StepOrder == task.StepOrder && t.Status != entity.TaskStatusApproved {
			return false, nil
		}
	}
	return true, nil
}

// finish moves the request to a terminal state, supersedes whatever is still
// pending and records the terminal event.
func (e *engineImpl) finish(ctx context.Context, batch *emitter.Batch, req *entity.Request, trigger domainwf.Trigger, actor *int64, message string) error {
	next, err := domainwf.TransitionRequest(ctx, req.Status, trigger)
	if err != nil {
		return fmt.Errorf("request %d: %w", req.ID, err)
	}

	if err := e.supersedePending(ctx, req.ID, 0); err != nil {
		return err
	}

	now := e.now()
	req.Status = next.String()
	req.DecidedAt = &now
	req.DecidedBy = actor
	req.UpdatedAt = now
	if err := e.requestRepo.Update(ctx, req); err != nil {
		return fmt.Errorf("update request %d: %w", req.ID, err)
	}

	return e.record(ctx, batch, req, terminalEvents[trigger], actor, message, nil)
}

// supersedePending closes pending tasks of the request; stepOrder 0 means every step.
func (e *engineImpl) supersedePending(ctx context.Context, requestID int64, stepOrder int) error {
	tasks, err := e.taskRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	for _, t := range tasks {
		if !t.IsPending() || (stepOrder != 0 && t.StepOrder != stepOrder) {
			continue
		}
		next, err := domainwf.TransitionTask(ctx, t.Status, domainwf.TriggerSupersede)
		if err != nil {
			return fmt.Errorf("task %d: %w", t.ID, err)
		}
		now := e.now()
		t.Status = next.String()
		t.DecidedAt = &now
		if err := e.taskRepo.Update(ctx, t); err != nil {
			return fmt.Errorf("supersede task %d: %w", t.ID, err)
		}
	}
	return nil
}

func (e *engineImpl) record(ctx context.Context, batch *emitter.Batch, req *entity.Request, eventType event.Type, actor *int64, message string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{}, 1)
	}
	payload[event.PayloadOwnerID] = req.OwnerID
	_, err := batch.Record(ctx, eventType, req.ID, actor, message, payload)
	return err
}

func taskPayload(task *entity.Task) map[string]interface{} {
	return map[string]interface{}{
		event.PayloadTaskID:    task.ID,
		event.PayloadAssignees: append([]int64(nil), task.AssigneeUserIDs...),
		event.PayloadStalled:   task.IsStalled(),
	}
}

func describeAssignees(ids []int64) string {
	if len(ids) == 1 {
		return fmt.Sprintf("user %d", ids[0])
	}
	return fmt.Sprintf("%d users", len(ids))
}

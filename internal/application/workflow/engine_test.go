package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

func TestScenario_ConditionFalseFinalStepAutoApproves(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := h.create(userAlice, "expense", map[string]interface{}{"amount": 500.0})
	assert.Equal(t, entity.RequestStatusPending, req.Status)
	assert.Equal(t, 1, req.CurrentStep)

	task := h.taskFor(req.ID, userBob)
	decided, err := h.engine.DecideTask(ctx, task.ID, userBob, "approve", "ok")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusApproved, decided.Status)

	d := h.detail(req.ID)
	assert.Equal(t, entity.RequestStatusApproved, d.Request.Status)
	require.NotNil(t, d.Request.DecidedBy)
	assert.Equal(t, userBob, *d.Request.DecidedBy)
	assert.Len(t, d.Tasks, 1, "finance step must never create a task")
	assert.Equal(t, []event.Type{
		event.TypeCreated, event.TypeTaskCreated, event.TypeTaskDecided, event.TypeRequestApproved,
	}, h.eventTypes(req.ID))
}

func TestScenario_FinanceRejectsAndLateRetryFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	req := h.create(userAlice, "expense", map[string]interface{}{"amount": 5000.0})
	managerTask := h.taskFor(req.ID, userBob)
	_, err := h.engine.DecideTask(ctx, managerTask.ID, userBob, "approve", "")
	require.NoError(t, err)

	financeTask := h.taskFor(req.ID, userFay)
	assert.ElementsMatch(t, []int64{userFay, userFred}, financeTask.AssigneeUserIDs)
	assert.Equal(t, 2, h.detail(req.ID).Request.CurrentStep)

	_, err = h.engine.DecideTask(ctx, financeTask.ID, userFay, "reject", "receipt missing")
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusRejected, h.detail(req.ID).Request.Status)

	eventsBefore := len(h.detail(req.ID).Events)
	_, err = h.engine.DecideTask(ctx, managerTask.ID, userBob, "approve", "")
	assert.True(t, errors.Is(err, domainwf.ErrAlreadyDecided))
	assert.Equal(t, domainwf.CodeAlreadyDecided, domainwf.ErrorCode(err))
	assert.Len(t, h.detail(req.ID).Events, eventsBefore, "a rejected retry records nothing")

	_, err = h.engine.DecideTask(ctx, financeTask.ID, userFred, "approve", "")
	assert.True(t, errors.Is(err, domainwf.ErrAlreadyDecided))
}

func TestScenario_UsersAnyFirstApprovalWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.singleStepWorkflow("purchase", entity.StepDefinition{AssigneeKind: entity.AssigneeUsersAny, AssigneeValue: "7,8,9"})

	req := h.create(userAlice, "purchase", nil)
	tasks := h.pendingTasks(req.ID)
	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Len(t, task.AssigneeUserIDs, 1)
		assert.Equal(t, 1, task.StepOrder)
	}

	taskA := h.taskFor(req.ID, userQuorumA)
	taskC := h.taskFor(req.ID, userQuorumC)
	_, err := h.engine.DecideTask(ctx, h.taskFor(req.ID, userQuorumB).ID, userQuorumB, "approve", "")
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusApproved, h.detail(req.ID).Request.Status)

	_, err = h.engine.DecideTask(ctx, taskA.ID, userQuorumA, "approve", "")
	assert.True(t, errors.Is(err, domainwf.ErrAlreadyDecided))
	_, err = h.engine.DecideTask(ctx, taskC.ID, userQuorumC, "reject", "")
	assert.True(t, errors.Is(err, domainwf.ErrAlreadyDecided))

	statuses := map[int64]string{}
	for _, task := range h.detail(req.ID).Tasks {
		statuses[task.AssigneeUserIDs[0]] = task.Status
	}
	assert.Equal(t, map[int64]string{
		userQuorumA: entity.TaskStatusSuperseded,
		userQuorumB: entity.TaskStatusApproved,
		userQuorumC: entity.TaskStatusSuperseded,
	}, statuses)
}

func TestUsersAll_RequiresEveryApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.singleStepWorkflow("contract", entity.StepDefinition{AssigneeKind: entity.AssigneeUsersAll, AssigneeValue: "7;8;9"})

	req := h.create(userAlice, "contract", nil)
	for i, user := range []int64{userQuorumA, userQuorumB, userQuorumC} {
		_, err := h.engine.DecideTask(ctx, h.taskFor(req.ID, user).ID, user, "approve", "")
		require.NoError(t, err)

		status := h.detail(req.ID).Request.Status
		if i < 2 {
			assert.Equal(t, entity.RequestStatusPending, status, "after %d approvals", i+1)
		} else {
			assert.Equal(t, entity.RequestStatusApproved, status)
		}
	}
}

func TestUsersAll_RejectWinsRegardlessOfOrder(t *testing.T) {
	orders := [][]string{
		{"reject", "approve", "approve"},
		{"approve", "reject", "approve"},
		{"approve", "approve", "reject"},
	}
	users := []int64{userQuorumA, userQuorumB, userQuorumC}

	for _, decisions := range orders {
		h := newHarness(t)
		ctx := context.Background()
		h.singleStepWorkflow("contract", entity.StepDefinition{AssigneeKind: entity.AssigneeUsersAll, AssigneeValue: "7,8,9"})
		req := h.create(userAlice, "contract", nil)

		for i, decision := range decisions {
			pending := h.pendingTasks(req.ID)
			if len(pending) == 0 {
				break
			}
			_, err := h.engine.DecideTask(ctx, h.taskFor(req.ID, users[i]).ID, users[i], decision, "")
			require.NoError(t, err)
		}

		d := h.detail(req.ID)
		assert.Equal(t, entity.RequestStatusRejected, d.Request.Status, "decisions %v", decisions)
		assert.Empty(t, h.pendingTasks(req.ID))
	}
}

func TestDecideTask_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(userAlice, "expense", map[string]interface{}{"amount": 200.0})
	task := h.taskFor(req.ID, userBob)

	_, err := h.engine.DecideTask(ctx, task.ID, userFay, "approve", "")
	assert.True(t, errors.Is(err, domainwf.ErrNotAuthorized))

	_, err = h.engine.DecideTask(ctx, task.ID, userBob, "maybe", "")
	assert.True(t, errors.Is(err, domainwf.ErrInvalidDecision))

	_, err = h.engine.DecideTask(ctx, 9999, userBob, "approve", "")
	assert.True(t, errors.Is(err, domainwf.ErrNotFound))

	assert.Equal(t, entity.TaskStatusPending, h.taskFor(req.ID, userBob).Status)
	assert.Equal(t, entity.RequestStatusPending, h.detail(req.ID).Request.Status)
}

func TestDecideTask_AuthorizationCheckedBeforeStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(userAlice, "expense", map[string]interface{}{"amount": 200.0})
	task := h.taskFor(req.ID, userBob)
	_, err := h.engine.DecideTask(ctx, task.ID, userBob, "approve", "")
	require.NoError(t, err)

	_, err = h.engine.DecideTask(ctx, task.ID, userFay, "approve", "")
	assert.True(t, errors.Is(err, domainwf.ErrNotAuthorized))
}

func TestDecideTask_IdempotentRetryRecordsNoEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(userAlice, "expense", map[string]interface{}{"amount": 5000.0})
	task := h.taskFor(req.ID, userBob)

	_, err := h.engine.DecideTask(ctx, task.ID, userBob, "approve", "")
	require.NoError(t, err)
	before := h.eventTypes(req.ID)

	_, err = h.engine.DecideTask(ctx, task.ID, userBob, "approve", "")
	assert.True(t, errors.Is(err, domainwf.ErrAlreadyDecided))
	assert.Equal(t, before, h.eventTypes(req.ID))
}

func TestCreateRequest_AllStepsSkippedApprovesImmediately(t *testing.T) {
	h := newHarness(t)
	h.upsert(&entity.WorkflowDefinition{
		Key: "loan_big", RequestType: "loan", Enabled: true,
		Steps: []entity.StepDefinition{
			{StepOrder: 1, StepKey: "cfo", AssigneeKind: entity.AssigneeUser, AssigneeValue: "3",
				ConditionKind: entity.ConditionMinAmount, ConditionValue: "100000"},
		},
	})

	req := h.create(userAlice, "loan", map[string]interface{}{"amount": 10.0})
	assert.Equal(t, entity.RequestStatusApproved, req.Status)
	assert.Nil(t, req.DecidedBy, "system approval has no actor")
	assert.Empty(t, h.detail(req.ID).Tasks)
	assert.Equal(t, []event.Type{event.TypeCreated, event.TypeRequestApproved}, h.eventTypes(req.ID))
}

func TestCreateRequest_NoManagerVoids(t *testing.T) {
	h := newHarness(t)

	req := h.create(userNina, "expense", map[string]interface{}{"amount": 50.0})
	assert.Equal(t, entity.RequestStatusVoided, req.Status)

	d := h.detail(req.ID)
	assert.Empty(t, d.Tasks)
	last := d.Events[len(d.Events)-1]
	assert.Equal(t, event.TypeVoided, last.Type)
	assert.True(t, last.IsSystem())
	assert.Contains(t, last.Message, "manager")
	assert.True(t, h.logger.warned("Voiding request, manager not configured"))
}

func TestDecideTask_NoManagerAtLaterStepVoids(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.upsert(&entity.WorkflowDefinition{
		Key: "trip", RequestType: "trip", Enabled: true,
		Steps: []entity.StepDefinition{
			{StepOrder: 1, StepKey: "travel_desk", AssigneeKind: entity.AssigneeUser, AssigneeValue: "3"},
			{StepOrder: 2, StepKey: "manager", AssigneeKind: entity.AssigneeManager},
		},
	})

	req := h.create(userNina, "trip", nil)
	task, err := h.engine.DecideTask(ctx, h.taskFor(req.ID, userFay).ID, userFay, "approve", "")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusApproved, task.Status)
	assert.Equal(t, entity.RequestStatusVoided, h.detail(req.ID).Request.Status)
}

func TestCreateRequest_StalledTaskNeedsAdminOverride(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.singleStepWorkflow("legal_review", entity.StepDefinition{AssigneeKind: entity.AssigneeRole, AssigneeValue: "legal"})

	req := h.create(userAlice, "legal_review", nil)
	assert.Equal(t, entity.RequestStatusPending, req.Status)
	assert.True(t, h.logger.warned("Task stalled, no assignees resolved"))

	stalled, err := h.engine.ListStalledTasks(ctx)
	require.NoError(t, err)
	require.Len(t, stalled, 1)
	assert.Equal(t, req.ID, stalled[0].Request.ID)
	assert.Empty(t, stalled[0].Task.AssigneeUserIDs)

	_, err = h.engine.OverrideTask(ctx, stalled[0].Task.ID, userBob, "approve", "")
	assert.True(t, errors.Is(err, domainwf.ErrNotAuthorized))

	task, err := h.engine.OverrideTask(ctx, stalled[0].Task.ID, userAdam, "approve", "legal is on leave")
	require.NoError(t, err)
	require.NotNil(t, task.DecidedBy)
	assert.Equal(t, userAdam, *task.DecidedBy)
	assert.Equal(t, entity.RequestStatusApproved, h.detail(req.ID).Request.Status)

	stalled, err = h.engine.ListStalledTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, stalled)
}

func TestWithdrawRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("owner withdraws before any decision", func(t *testing.T) {
		h := newHarness(t)
		req := h.create(userAlice, "expense", map[string]interface{}{"amount": 5000.0})

		_, err := h.engine.WithdrawRequest(ctx, req.ID, userBob)
		assert.True(t, errors.Is(err, domainwf.ErrNotOwner))

		withdrawn, err := h.engine.WithdrawRequest(ctx, req.ID, userAlice)
		require.NoError(t, err)
		assert.Equal(t, entity.RequestStatusWithdrawn, withdrawn.Status)
		assert.Empty(t, h.pendingTasks(req.ID))
		assert.Equal(t, entity.TaskStatusSuperseded, h.detail(req.ID).Tasks[0].Status)

		_, err = h.engine.WithdrawRequest(ctx, req.ID, userAlice)
		assert.True(t, errors.Is(err, domainwf.ErrAlreadyDecided))
	})

	t.Run("blocked once a task was decided", func(t *testing.T) {
		h := newHarness(t)
		req := h.create(userAlice, "expense", map[string]interface{}{"amount": 5000.0})
		_, err := h.engine.DecideTask(ctx, h.taskFor(req.ID, userBob).ID, userBob, "approve", "")
		require.NoError(t, err)

		_, err = h.engine.WithdrawRequest(ctx, req.ID, userAlice)
		assert.True(t, errors.Is(err, domainwf.ErrAlreadyDecided))
		assert.Equal(t, entity.RequestStatusPending, h.detail(req.ID).Request.Status)
	})

	t.Run("unknown request", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.engine.WithdrawRequest(ctx, 404, userAlice)
		assert.True(t, errors.Is(err, domainwf.ErrNotFound))
	})
}

func TestVoidRequest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(userAlice, "expense", map[string]interface{}{"amount": 5000.0})

	_, err := h.engine.VoidRequest(ctx, req.ID, userAlice, "changed my mind")
	assert.True(t, errors.Is(err, domainwf.ErrNotAuthorized))

	voided, err := h.engine.VoidRequest(ctx, req.ID, userAdam, "duplicate submission")
	require.NoError(t, err)
	assert.Equal(t, entity.RequestStatusVoided, voided.Status)

	d := h.detail(req.ID)
	last := d.Events[len(d.Events)-1]
	assert.Equal(t, event.TypeVoided, last.Type)
	require.NotNil(t, last.ActorID)
	assert.Equal(t, userAdam, *last.ActorID)
	assert.Contains(t, last.Message, "duplicate submission")

	_, err = h.engine.VoidRequest(ctx, req.ID, userAdam, "")
	assert.True(t, errors.Is(err, domainwf.ErrAlreadyDecided))
}

func TestRequestKeepsStepSnapshotAfterCatalogEdit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(userAlice, "expense", map[string]interface{}{"amount": 5000.0})

	h.upsert(&entity.WorkflowDefinition{
		Key: "expense_std", RequestType: "expense", Enabled: true, IsDefault: true,
		Steps: []entity.StepDefinition{
			{StepOrder: 1, StepKey: "manager", AssigneeKind: entity.AssigneeManager},
			{StepOrder: 2, StepKey: "ops", AssigneeKind: entity.AssigneeRole, AssigneeValue: "staff"},
		},
	})

	_, err := h.engine.DecideTask(ctx, h.taskFor(req.ID, userBob).ID, userBob, "approve", "")
	require.NoError(t, err)

	next := h.taskFor(req.ID, userFay)
	assert.Equal(t, "finance", next.StepKey)
	assert.Equal(t, "finance", h.detail(req.ID).Request.Steps[1].StepKey)
}

func TestCreateRequest_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.singleStepWorkflow("leave", entity.StepDefinition{AssigneeKind: entity.AssigneeManager})

	tests := []struct {
		name string
		in   CreateRequestInput
		want error
	}{
		{"missing type", CreateRequestInput{OwnerID: userAlice}, domainwf.ErrInvalidPayload},
		{"unknown owner", CreateRequestInput{OwnerID: 404, Type: "leave", Payload: map[string]interface{}{"days": 1}}, domainwf.ErrInvalidPayload},
		{"schema violation", CreateRequestInput{OwnerID: userAlice, Type: "expense", Payload: map[string]interface{}{"amount": -5.0}}, domainwf.ErrInvalidPayload},
		{"no workflow for type", CreateRequestInput{OwnerID: userAlice, Type: "sabbatical"}, domainwf.ErrNoApplicableWorkflow},
		{"explicit key for other type", CreateRequestInput{OwnerID: userAlice, Type: "leave", WorkflowKey: "expense_std", Payload: map[string]interface{}{"days": 1}}, domainwf.ErrInvalidPayload},
		{"explicit key missing", CreateRequestInput{OwnerID: userAlice, Type: "leave", WorkflowKey: "nope", Payload: map[string]interface{}{"days": 1}}, domainwf.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.CreateRequest(ctx, tt.in)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	all, err := h.engine.ListRequests(ctx, entity.RequestFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateRequest_ExplicitWorkflowKey(t *testing.T) {
	h := newHarness(t)
	h.upsert(&entity.WorkflowDefinition{
		Key: "expense_fast", RequestType: "expense", Enabled: true,
		Steps: []entity.StepDefinition{{StepOrder: 1, StepKey: "finance", AssigneeKind: entity.AssigneeRole, AssigneeValue: "finance"}},
	})

	req, err := h.engine.CreateRequest(context.Background(), CreateRequestInput{
		OwnerID: userAlice, Type: "expense", WorkflowKey: "expense_fast",
		Payload: map[string]interface{}{"amount": 80.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "expense_fast", req.WorkflowKey)
	assert.NotNil(t, h.taskFor(req.ID, userFred))
}

func TestInfrastructureFailureLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := h.create(userAlice, "expense", map[string]interface{}{"amount": 5000.0})
	task := h.taskFor(req.ID, userBob)
	before := h.eventTypes(req.ID)

	h.directory.setDown(true)
	_, err := h.engine.DecideTask(ctx, task.ID, userBob, "approve", "")
	require.Error(t, err)
	assert.Equal(t, domainwf.CodeInfrastructure, domainwf.ErrorCode(err))

	h.directory.setDown(false)
	assert.Equal(t, entity.TaskStatusPending, h.taskFor(req.ID, userBob).Status, "decision rolled back")
	assert.Equal(t, before, h.eventTypes(req.ID))

	_, err = h.engine.DecideTask(ctx, task.ID, userBob, "approve", "")
	require.NoError(t, err)
}

func TestListInbox(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.create(userAlice, "expense", map[string]interface{}{"amount": 10.0})
	second := h.create(userAlice, "expense", map[string]interface{}{"amount": 20.0})

	inbox, err := h.engine.ListInbox(ctx, userBob)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, first.ID, inbox[0].Request.ID)
	assert.Equal(t, second.ID, inbox[1].Request.ID)

	_, err = h.engine.DecideTask(ctx, inbox[0].Task.ID, userBob, "approve", "")
	require.NoError(t, err)

	inbox, err = h.engine.ListInbox(ctx, userBob)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)

	empty, err := h.engine.ListInbox(ctx, userFay)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConcurrentUsersAllApprovalsCompleteOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.singleStepWorkflow("contract", entity.StepDefinition{AssigneeKind: entity.AssigneeUsersAll, AssigneeValue: "7,8,9"})
	req := h.create(userAlice, "contract", nil)

	users := []int64{userQuorumA, userQuorumB, userQuorumC}
	tasks := make([]*entity.Task, len(users))
	for i, u := range users {
		tasks[i] = h.taskFor(req.ID, u)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(users))
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.engine.DecideTask(ctx, tasks[i].ID, users[i], "approve", "")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, entity.RequestStatusApproved, h.detail(req.ID).Request.Status)

	approvals := 0
	for _, typ := range h.eventTypes(req.ID) {
		if typ == event.TypeRequestApproved {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals)
}

func TestConcurrentUsersAnyApprovalsOneWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.singleStepWorkflow("purchase", entity.StepDefinition{AssigneeKind: entity.AssigneeUsersAny, AssigneeValue: "all"})
	req := h.create(userAlice, "purchase", nil)

	pending := h.pendingTasks(req.ID)
	for _, task := range pending {
		assert.NotEqual(t, userAlice, task.AssigneeUserIDs[0], "owner is not an approver of their own request")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, conflicted := 0, 0
	for _, task := range pending {
		wg.Add(1)
		go func(task *entity.Task) {
			defer wg.Done()
			_, err := h.engine.DecideTask(ctx, task.ID, task.AssigneeUserIDs[0], "approve", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domainwf.ErrAlreadyDecided):
				conflicted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(task)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, len(pending)-1, conflicted)
	assert.Equal(t, entity.RequestStatusApproved, h.detail(req.ID).Request.Status)
}

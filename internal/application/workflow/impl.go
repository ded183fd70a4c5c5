package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/oa-approval/internal/application/assignee"
	"github.com/garyjia/oa-approval/internal/application/catalog"
	"github.com/garyjia/oa-approval/internal/application/condition"
	"github.com/garyjia/oa-approval/internal/application/emitter"
	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
	"github.com/garyjia/oa-approval/pkg/utils"
)

const (
	defaultAdminRole = "admin"
	defaultListLimit = 50
	maxListLimit     = 500
)

// Repositories groups the stores the engine mutates
type Repositories struct {
	Requests port.RequestRepository
	Tasks    port.TaskRepository
	Events   port.EventRepository
	Tx       port.TransactionManager
}

type engineImpl struct {
	requestRepo port.RequestRepository
	taskRepo    port.TaskRepository
	eventRepo   port.EventRepository
	txManager   port.TransactionManager
	catalog     catalog.Catalog
	directory   port.Directory
	resolver    *assignee.Resolver
	evaluator   *condition.Evaluator
	emitter     *emitter.Emitter
	validator   PayloadValidator
	metrics     port.Metrics
	logger      Logger
	locks       *requestLocks
	adminRole   string
	now         func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithPayloadValidator sets the per-type payload schema check run by CreateRequest
func WithPayloadValidator(v PayloadValidator) EngineOption {
	return func(e *engineImpl) {
		e.validator = v
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m port.Metrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithAdminRole sets the directory role allowed to void requests and override tasks
func WithAdminRole(role string) EngineOption {
	return func(e *engineImpl) {
		if role != "" {
			e.adminRole = role
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	repos Repositories,
	cat catalog.Catalog,
	directory port.Directory,
	em *emitter.Emitter,
	logger Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		requestRepo: repos.Requests,
		taskRepo:    repos.Tasks,
		eventRepo:   repos.Events,
		txManager:   repos.Tx,
		catalog:     cat,
		directory:   directory,
		resolver:    assignee.NewResolver(directory),
		evaluator:   condition.NewEvaluator(logger),
		emitter:     em,
		metrics:     port.NopMetrics{},
		logger:      logger,
		locks:       newRequestLocks(),
		adminRole:   defaultAdminRole,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CreateRequest validates the submission, binds it to a workflow and activates step 1
func (e *engineImpl) CreateRequest(ctx context.Context, in CreateRequestInput) (req *entity.Request, err error) {
	defer e.observe("create_request", time.Now(), &err)

	in.Type = strings.TrimSpace(in.Type)
	in.WorkflowKey = strings.TrimSpace(in.WorkflowKey)
	if in.OwnerID <= 0 {
		return nil, fmt.Errorf("%w: owner is required", domainwf.ErrInvalidPayload)
	}
	if in.Type == "" {
		return nil, fmt.Errorf("%w: type is required", domainwf.ErrInvalidPayload)
	}
	if e.validator != nil {
		if verr := e.validator.Validate(in.Type, in.Payload); verr != nil {
			return nil, fmt.Errorf("%w: %v", domainwf.ErrInvalidPayload, verr)
		}
	}

	owner, err := e.directory.GetUser(ctx, in.OwnerID)
	if err != nil {
		if errors.Is(err, domainwf.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown owner %d", domainwf.ErrInvalidPayload, in.OwnerID)
		}
		return nil, err
	}
	if !owner.Active {
		return nil, fmt.Errorf("%w: owner %d is inactive", domainwf.ErrInvalidPayload, in.OwnerID)
	}

	def, err := e.selectWorkflow(ctx, in, owner)
	if err != nil {
		return nil, err
	}

	now := e.now()
	req = &entity.Request{
		Type:        in.Type,
		WorkflowKey: def.Key,
		OwnerID:     owner.ID,
		Title:       utils.SanitizeString(in.Title),
		Body:        utils.SanitizeString(in.Body),
		Payload:     copyPayload(in.Payload),
		Steps:       append([]entity.StepDefinition(nil), def.Steps...),
		Status:      entity.RequestStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	batch := e.emitter.Begin()
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.requestRepo.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		msg := fmt.Sprintf("%s request submitted using workflow %s", req.Type, req.WorkflowKey)
		if err := e.record(txCtx, batch, req, event.TypeCreated, &owner.ID, msg, nil); err != nil {
			return err
		}
		return e.activate(txCtx, batch, req, owner, 1, nil)
	})
	if err != nil {
		e.logFailure("CreateRequest failed", err, "owner_id", in.OwnerID, "type", in.Type)
		return nil, err
	}
	batch.Publish(ctx)

	e.logger.Info("Request created",
		"request_id", req.ID,
		"type", req.Type,
		"workflow_key", req.WorkflowKey,
		"status", req.Status,
		"current_step", req.CurrentStep,
		"correlation_id", batch.CorrelationID(),
	)
	return req, nil
}

func (e *engineImpl) selectWorkflow(ctx context.Context, in CreateRequestInput, owner *entity.User) (*entity.WorkflowDefinition, error) {
	if in.WorkflowKey == "" {
		return e.catalog.Resolve(ctx, in.Type, owner.Department)
	}

	def, err := e.catalog.Get(ctx, in.WorkflowKey)
	if err != nil {
		return nil, err
	}
	if def.RequestType != in.Type {
		return nil, fmt.Errorf("%w: workflow %s serves %s requests, not %s",
			domainwf.ErrInvalidPayload, def.Key, def.RequestType, in.Type)
	}
	if !def.AppliesTo(owner.Department) {
		return nil, fmt.Errorf("%w: workflow %s is not available to department %q",
			domainwf.ErrInvalidPayload, def.Key, owner.Department)
	}
	return def, nil
}

// DecideTask records an assignee's approve or reject
func (e *engineImpl) DecideTask(ctx context.Context, taskID, actorID int64, decision, comment string) (task *entity.Task, err error) {
	defer e.observe("decide_task", time.Now(), &err)
	return e.decide(ctx, taskID, actorID, decision, comment, false)
}

// OverrideTask decides a pending task on behalf of its assignees
func (e *engineImpl) OverrideTask(ctx context.Context, taskID, adminID int64, decision, comment string) (task *entity.Task, err error) {
	defer e.observe("override_task", time.Now(), &err)

	if err := e.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	return e.decide(ctx, taskID, adminID, decision, comment, true)
}

func (e *engineImpl) decide(ctx context.Context, taskID, actorID int64, decision, comment string, override bool) (*entity.Task, error) {
	trigger, err := decisionTrigger(decision)
	if err != nil {
		return nil, err
	}

	current, err := e.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.lock(ctx, current.RequestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var decided *entity.Task
	batch := e.emitter.Begin()
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		task, err := e.taskRepo.GetByID(txCtx, taskID)
		if err != nil {
			return err
		}
		if !override && !task.HasAssignee(actorID) {
			return fmt.Errorf("%w: user %d is not an assignee of task %d", domainwf.ErrNotAuthorized, actorID, taskID)
		}
		if !task.IsPending() {
			return fmt.Errorf("%w: task %d is %s", domainwf.ErrAlreadyDecided, taskID, task.Status)
		}

		req, err := e.requestRepo.GetByID(txCtx, task.RequestID)
		if err != nil {
			return err
		}
		if !req.IsPending() {
			return fmt.Errorf("%w: request %d is %s", domainwf.ErrAlreadyDecided, req.ID, req.Status)
		}

		next, err := domainwf.TransitionTask(txCtx, task.Status, trigger)
		if err != nil {
			return fmt.Errorf("task %d: %w", task.ID, err)
		}
		now := e.now()
		task.Status = next.String()
		task.DecidedAt = &now
		task.DecidedBy = &actorID
		task.Comment = utils.SanitizeString(comment)
		if err := e.taskRepo.Update(txCtx, task); err != nil {
			return fmt.Errorf("update task %d: %w", task.ID, err)
		}
		decided = task

		msg := fmt.Sprintf("Step %d (%s) %s by user %d", task.StepOrder, task.StepKey, task.Status, actorID)
		if override {
			msg = fmt.Sprintf("Step %d (%s) %s by administrator %d (override)", task.StepOrder, task.StepKey, task.Status, actorID)
		}
		if task.Comment != "" {
			msg += ": " + task.Comment
		}
		if err := e.record(txCtx, batch, req, event.TypeTaskDecided, &actorID, msg, taskPayload(task)); err != nil {
			return err
		}

		if trigger == domainwf.TriggerReject {
			return e.finish(txCtx, batch, req, domainwf.TriggerReject, &actorID,
				fmt.Sprintf("Request rejected at step %d (%s)", task.StepOrder, task.StepKey))
		}

		complete, err := e.stepComplete(txCtx, task)
		if err != nil || !complete {
			return err
		}
		if err := e.supersedePending(txCtx, req.ID, task.StepOrder); err != nil {
			return err
		}

		owner, err := e.loadOwner(txCtx, req.OwnerID)
		if err != nil {
			return err
		}
		return e.activate(txCtx, batch, req, owner, task.StepOrder+1, &actorID)
	})
	if err != nil {
		e.logFailure("Task decision failed", err, "task_id", taskID, "actor_id", actorID, "decision", decision)
		return nil, err
	}
	batch.Publish(ctx)

	e.logger.Info("Task decided",
		"task_id", decided.ID,
		"request_id", decided.RequestID,
		"status", decided.Status,
		"actor_id", actorID,
		"override", override,
		"correlation_id", batch.CorrelationID(),
	)
	return decided, nil
}

// AddSigner creates an extra pending task for userID in the step of taskID
func (e *engineImpl) AddSigner(ctx context.Context, taskID, actorID, userID int64) (task *entity.Task, err error) {
	defer e.observe("add_signer", time.Now(), &err)

	signer, err := e.directory.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domainwf.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user %d", domainwf.ErrInvalidPayload, userID)
		}
		return nil, err
	}
	if !signer.Active {
		return nil, fmt.Errorf("%w: user %d is inactive", domainwf.ErrInvalidPayload, userID)
	}

	current, err := e.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.lock(ctx, current.RequestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	batch := e.emitter.Begin()
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		source, err := e.taskRepo.GetByID(txCtx, taskID)
		if err != nil {
			return err
		}
		if !source.HasAssignee(actorID) {
			return fmt.Errorf("%w: user %d is not an assignee of task %d", domainwf.ErrNotAuthorized, actorID, taskID)
		}
		if !source.IsPending() {
			return fmt.Errorf("%w: task %d is %s", domainwf.ErrAlreadyDecided, taskID, source.Status)
		}

		req, err := e.requestRepo.GetByID(txCtx, source.RequestID)
		if err != nil {
			return err
		}
		if !req.IsPending() {
			return fmt.Errorf("%w: request %d is %s", domainwf.ErrAlreadyDecided, req.ID, req.Status)
		}
		if userID == req.OwnerID {
			return fmt.Errorf("%w: the owner of request %d cannot approve it", domainwf.ErrInvalidPayload, req.ID)
		}

		siblings, err := e.taskRepo.ListByRequest(txCtx, req.ID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		for _, t := range siblings {
			if t.StepOrder == source.StepOrder && t.IsPending() && t.HasAssignee(userID) {
				return fmt.Errorf("%w: user %d already holds task %d", domainwf.ErrInvalidPayload, userID, t.ID)
			}
		}

		task = &entity.Task{
			RequestID:       req.ID,
			StepOrder:       source.StepOrder,
			StepKey:         source.StepKey,
			AssigneeKind:    source.AssigneeKind,
			Status:          entity.TaskStatusPending,
			AssigneeUserIDs: []int64{userID},
			CreatedAt:       e.now(),
		}
		if err := e.taskRepo.Create(txCtx, task); err != nil {
			return fmt.Errorf("create task for step %d: %w", source.StepOrder, err)
		}

		msg := fmt.Sprintf("Step %d (%s) signer user %d added by user %d", task.StepOrder, task.StepKey, userID, actorID)
		return e.record(txCtx, batch, req, event.TypeTaskCreated, &actorID, msg, taskPayload(task))
	})
	if err != nil {
		e.logFailure("Add signer failed", err, "task_id", taskID, "actor_id", actorID, "user_id", userID)
		return nil, err
	}
	batch.Publish(ctx)

	e.logger.Info("Signer added",
		"task_id", task.ID,
		"source_task_id", taskID,
		"request_id", task.RequestID,
		"user_id", userID,
		"actor_id", actorID,
		"correlation_id", batch.CorrelationID(),
	)
	return task, nil
}

// WithdrawRequest cancels a request on behalf of its owner
func (e *engineImpl) WithdrawRequest(ctx context.Context, requestID, actorID int64) (req *entity.Request, err error) {
	defer e.observe("withdraw_request", time.Now(), &err)

	unlock, err := e.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	batch := e.emitter.Begin()
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = e.requestRepo.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		if req.OwnerID != actorID {
			return fmt.Errorf("%w: user %d does not own request %d", domainwf.ErrNotOwner, actorID, requestID)
		}
		if !req.IsPending() {
			return fmt.Errorf("%w: request %d is %s", domainwf.ErrAlreadyDecided, requestID, req.Status)
		}

		tasks, err := e.taskRepo.ListByRequest(txCtx, requestID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		for _, t := range tasks {
			if t.IsDecided() {
				return fmt.Errorf("%w: task %d of request %d was already %s", domainwf.ErrAlreadyDecided, t.ID, requestID, t.Status)
			}
		}

		return e.finish(txCtx, batch, req, domainwf.TriggerWithdraw, &actorID, "Request withdrawn by owner")
	})
	if err != nil {
		e.logFailure("Withdraw failed", err, "request_id", requestID, "actor_id", actorID)
		return nil, err
	}
	batch.Publish(ctx)

	e.logger.Info("Request withdrawn", "request_id", requestID, "actor_id", actorID)
	return req, nil
}

// VoidRequest cancels a pending request on an administrator's behalf
func (e *engineImpl) VoidRequest(ctx context.Context, requestID, adminID int64, reason string) (req *entity.Request, err error) {
	defer e.observe("void_request", time.Now(), &err)

	if err := e.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}

	unlock, err := e.lock(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	batch := e.emitter.Begin()
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		req, err = e.requestRepo.GetByID(txCtx, requestID)
		if err != nil {
			return err
		}
		if !req.IsPending() {
			return fmt.Errorf("%w: request %d is %s", domainwf.ErrAlreadyDecided, requestID, req.Status)
		}

		msg := "Request voided by administrator"
		if reason = utils.SanitizeString(reason); reason != "" {
			msg += ": " + reason
		}
		return e.finish(txCtx, batch, req, domainwf.TriggerVoid, &adminID, msg)
	})
	if err != nil {
		e.logFailure("Void failed", err, "request_id", requestID, "admin_id", adminID)
		return nil, err
	}
	batch.Publish(ctx)

	e.logger.Info("Request voided", "request_id", requestID, "admin_id", adminID)
	return req, nil
}

// GetRequest returns a request with its tasks and audit trail
func (e *engineImpl) GetRequest(ctx context.Context, requestID int64) (*entity.RequestDetail, error) {
	req, err := e.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	tasks, err := e.taskRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	events, err := e.eventRepo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return &entity.RequestDetail{Request: req, Tasks: tasks, Events: events}, nil
}

// ListRequests returns requests matching filter, newest first
func (e *engineImpl) ListRequests(ctx context.Context, filter entity.RequestFilter) ([]*entity.Request, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return e.requestRepo.List(ctx, filter)
}

// ListInbox returns the pending tasks userID may decide
func (e *engineImpl) ListInbox(ctx context.Context, userID int64) ([]*entity.InboxItem, error) {
	tasks, err := e.taskRepo.ListPendingByAssignee(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list inbox of user %d: %w", userID, err)
	}
	return e.withRequests(ctx, tasks)
}

// ListStalledTasks returns pending tasks nobody but an administrator can decide
func (e *engineImpl) ListStalledTasks(ctx context.Context) ([]*entity.InboxItem, error) {
	tasks, err := e.taskRepo.ListStalled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stalled tasks: %w", err)
	}
	return e.withRequests(ctx, tasks)
}

func (e *engineImpl) withRequests(ctx context.Context, tasks []*entity.Task) ([]*entity.InboxItem, error) {
	requests := make(map[int64]*entity.Request)
	items := make([]*entity.InboxItem, 0, len(tasks))
	for _, t := range tasks {
		req, ok := requests[t.RequestID]
		if !ok {
			var err error
			req, err = e.requestRepo.GetByID(ctx, t.RequestID)
			if err != nil {
				return nil, err
			}
			requests[t.RequestID] = req
		}
		items = append(items, &entity.InboxItem{Task: t, Request: req})
	}
	return items, nil
}

func (e *engineImpl) requireAdmin(ctx context.Context, userID int64) error {
	user, err := e.directory.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domainwf.ErrNotFound) {
			return fmt.Errorf("%w: unknown user %d", domainwf.ErrNotAuthorized, userID)
		}
		return err
	}
	if !user.Active || user.Role != e.adminRole {
		return fmt.Errorf("%w: user %d is not an administrator", domainwf.ErrNotAuthorized, userID)
	}
	return nil
}

// loadOwner returns the request owner. An owner removed from the directory
// still gets an activation; manager steps then void the request.
func (e *engineImpl) loadOwner(ctx context.Context, ownerID int64) (*entity.User, error) {
	owner, err := e.directory.GetUser(ctx, ownerID)
	if err == nil {
		return owner, nil
	}
	if errors.Is(err, domainwf.ErrNotFound) {
		e.logger.Warn("Request owner missing from directory", "owner_id", ownerID)
		return &entity.User{ID: ownerID}, nil
	}
	return nil, err
}

func (e *engineImpl) lock(ctx context.Context, requestID int64) (func(), error) {
	unlock, err := e.locks.acquire(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for request %d: %v", domainwf.ErrInfrastructure, requestID, err)
	}
	return unlock, nil
}

func (e *engineImpl) observe(operation string, start time.Time, err *error) {
	e.metrics.ObserveOperation(operation, *err, time.Since(start))
}

// logFailure logs unexpected failures at error level and business rejections at info.
func (e *engineImpl) logFailure(msg string, err error, keysAndValues ...interface{}) {
	code := domainwf.ErrorCode(err)
	keysAndValues = append(keysAndValues, "code", code, "error", err.Error())
	if code == domainwf.CodeInternal || code == domainwf.CodeInfrastructure {
		e.logger.Error(msg, keysAndValues...)
		return
	}
	e.logger.Info(msg, keysAndValues...)
}

func decisionTrigger(decision string) (domainwf.Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case entity.DecisionApprove:
		return domainwf.TriggerApprove, nil
	case entity.DecisionReject:
		return domainwf.TriggerReject, nil
	}
	return "", fmt.Errorf("%w: %q must be approve or reject", domainwf.ErrInvalidDecision, decision)
}

func copyPayload(payload map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}

package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/garyjia/oa-approval/internal/application/catalog"
	"github.com/garyjia/oa-approval/internal/application/emitter"
	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
	"github.com/garyjia/oa-approval/internal/infrastructure/directory"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/memory"
	"github.com/garyjia/oa-approval/pkg/utils"
)

// Directory fixture
const (
	userAlice   int64 = 1 // rd employee reporting to bob
	userBob     int64 = 2 // rd manager
	userFay     int64 = 3 // finance
	userFred    int64 = 4 // finance
	userAdam    int64 = 5 // admin
	userNina    int64 = 6 // rd employee without manager
	userQuorumA int64 = 7
	userQuorumB int64 = 8
	userQuorumC int64 = 9
)

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) Info(msg string, keysAndValues ...interface{}) {}

func (l *recordingLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, keysAndValues ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

func (l *recordingLogger) warned(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, w := range l.warns {
		if w == msg {
			return true
		}
	}
	return false
}

// flakyDirectory fails every call while down is set
type flakyDirectory struct {
	port.Directory
	mu   sync.Mutex
	down bool
}

func (d *flakyDirectory) setDown(down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = down
}

func (d *flakyDirectory) isDown() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.down
}

func (d *flakyDirectory) GetUser(ctx context.Context, id int64) (*entity.User, error) {
	if d.isDown() {
		return nil, fmt.Errorf("%w: directory unreachable", domainwf.ErrInfrastructure)
	}
	return d.Directory.GetUser(ctx, id)
}

func (d *flakyDirectory) ListActiveByRole(ctx context.Context, role string) ([]*entity.User, error) {
	if d.isDown() {
		return nil, fmt.Errorf("%w: directory unreachable", domainwf.ErrInfrastructure)
	}
	return d.Directory.ListActiveByRole(ctx, role)
}

type harness struct {
	t         *testing.T
	store     *memory.Store
	catalog   catalog.Catalog
	directory *flakyDirectory
	engine    Engine
	logger    *recordingLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	bob := userBob
	users := []*entity.User{
		{ID: userAlice, Username: "alice", Role: "employee", ManagerID: &bob, Department: "rd", Active: true},
		{ID: userBob, Username: "bob", Role: "manager", Department: "rd", Active: true},
		{ID: userFay, Username: "fay", Role: "finance", Department: "finance", Active: true},
		{ID: userFred, Username: "fred", Role: "finance", Department: "finance", Active: true},
		{ID: userAdam, Username: "adam", Role: "admin", Department: "it", Active: true},
		{ID: userNina, Username: "nina", Role: "employee", Department: "rd", Active: true},
		{ID: userQuorumA, Username: "qa", Role: "staff", Department: "ops", Active: true},
		{ID: userQuorumB, Username: "qb", Role: "staff", Department: "ops", Active: true},
		{ID: userQuorumC, Username: "qc", Role: "staff", Department: "ops", Active: true},
	}
	for _, u := range users {
		require.NoError(t, store.Users().Upsert(ctx, u))
	}

	logger := &recordingLogger{}
	dir := &flakyDirectory{Directory: directory.New(store.Users(), time.Second, nil)}
	cat := catalog.NewCatalog(store.Workflows(), store.Requests(), store, logger)
	em := emitter.New(store.Events())
	eng := NewEngine(
		Repositories{Requests: store.Requests(), Tasks: store.Tasks(), Events: store.Events(), Tx: store},
		cat, dir, em, logger,
		WithPayloadValidator(utils.NewPayloadValidator()),
	)

	h := &harness{t: t, store: store, catalog: cat, directory: dir, engine: eng, logger: logger}
	h.upsert(&entity.WorkflowDefinition{
		Key: "expense_std", RequestType: "expense", Enabled: true, IsDefault: true,
		Steps: []entity.StepDefinition{
			{StepOrder: 1, StepKey: "manager", AssigneeKind: entity.AssigneeManager},
			{StepOrder: 2, StepKey: "finance", AssigneeKind: entity.AssigneeRole, AssigneeValue: "finance",
				ConditionKind: entity.ConditionMinAmount, ConditionValue: "1000"},
		},
	})
	return h
}

func (h *harness) upsert(def *entity.WorkflowDefinition) {
	h.t.Helper()
	_, err := h.catalog.Upsert(context.Background(), def)
	require.NoError(h.t, err)
}

func (h *harness) singleStepWorkflow(requestType string, step entity.StepDefinition) {
	h.t.Helper()
	step.StepOrder = 1
	if step.StepKey == "" {
		step.StepKey = step.AssigneeKind
	}
	h.upsert(&entity.WorkflowDefinition{
		Key: requestType + "_flow", RequestType: requestType, Enabled: true,
		Steps: []entity.StepDefinition{step},
	})
}

func (h *harness) create(owner int64, requestType string, payload map[string]interface{}) *entity.Request {
	h.t.Helper()
	req, err := h.engine.CreateRequest(context.Background(), CreateRequestInput{
		OwnerID: owner, Type: requestType, Title: requestType + " request", Payload: payload,
	})
	require.NoError(h.t, err)
	return req
}

func (h *harness) detail(requestID int64) *entity.RequestDetail {
	h.t.Helper()
	d, err := h.engine.GetRequest(context.Background(), requestID)
	require.NoError(h.t, err)
	return d
}

func (h *harness) pendingTasks(requestID int64) []*entity.Task {
	h.t.Helper()
	var out []*entity.Task
	for _, t := range h.detail(requestID).Tasks {
		if t.IsPending() {
			out = append(out, t)
		}
	}
	return out
}

func (h *harness) taskFor(requestID, userID int64) *entity.Task {
	h.t.Helper()
	for _, t := range h.pendingTasks(requestID) {
		if t.HasAssignee(userID) {
			return t
		}
	}
	h.t.Fatalf("no pending task for user %d on request %d", userID, requestID)
	return nil
}

func (h *harness) eventTypes(requestID int64) []event.Type {
	h.t.Helper()
	var types []event.Type
	for _, e := range h.detail(requestID).Events {
		types = append(types, e.Type)
	}
	return types
}

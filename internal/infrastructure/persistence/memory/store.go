// Package memory keeps every repository in process memory. It backs tests
// and the "memory" database driver; data does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
)

type contextKey string

const txKey contextKey = "memory-tx"

// Store holds all tables and implements port.TransactionManager.
// Transactions are serialized and roll back by restoring a snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	workflows     map[string]*entity.WorkflowDefinition
	requests      map[int64]*entity.Request
	tasks         map[int64]*entity.Task
	events        []*event.Event
	notifications map[int64]*entity.Notification
	users         map[int64]*entity.User

	nextRequestID      int64
	nextTaskID         int64
	nextEventID        int64
	nextNotificationID int64

	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		workflows:     make(map[string]*entity.WorkflowDefinition),
		requests:      make(map[int64]*entity.Request),
		tasks:         make(map[int64]*entity.Task),
		notifications: make(map[int64]*entity.Notification),
		users:         make(map[int64]*entity.User),
		now:           time.Now,
	}
}

// WithTransaction implements port.TransactionManager
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := s.snapshot()
	s.mu.RUnlock()

	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			s.restore(snap)
			s.mu.Unlock()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, true)); err != nil {
		return err
	}
	committed = true
	return nil
}

// Workflows returns the workflow repository view
func (s *Store) Workflows() port.WorkflowRepository { return &workflowRepo{s: s} }

// Requests returns the request repository view
func (s *Store) Requests() port.RequestRepository { return &requestRepo{s: s} }

// Tasks returns the task repository view
func (s *Store) Tasks() port.TaskRepository { return &taskRepo{s: s} }

// Events returns the event repository view
func (s *Store) Events() port.EventRepository { return &eventRepo{s: s} }

// Notifications returns the notification repository view
func (s *Store) Notifications() port.NotificationRepository { return &notificationRepo{s: s} }

// Users returns the user repository view
func (s *Store) Users() port.UserRepository { return &userRepo{s: s} }

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey).(bool)
	return v
}

// write runs fn under the table lock. Outside a transaction it also takes the
// transaction lock so a concurrent rollback cannot discard it.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *Store) read(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

type snapshot struct {
	workflows     map[string]*entity.WorkflowDefinition
	requests      map[int64]*entity.Request
	tasks         map[int64]*entity.Task
	events        []*event.Event
	notifications map[int64]*entity.Notification
	users         map[int64]*entity.User
	ids           [4]int64
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		workflows:     make(map[string]*entity.WorkflowDefinition, len(s.workflows)),
		requests:      make(map[int64]*entity.Request, len(s.requests)),
		tasks:         make(map[int64]*entity.Task, len(s.tasks)),
		events:        append([]*event.Event(nil), s.events...),
		notifications: make(map[int64]*entity.Notification, len(s.notifications)),
		users:         make(map[int64]*entity.User, len(s.users)),
		ids:           [4]int64{s.nextRequestID, s.nextTaskID, s.nextEventID, s.nextNotificationID},
	}
	// Stored values are replaced on write, never mutated in place,
	// so copying the maps is enough.
	for k, v := range s.workflows {
		snap.workflows[k] = v
	}
	for k, v := range s.requests {
		snap.requests[k] = v
	}
	for k, v := range s.tasks {
		snap.tasks[k] = v
	}
	for k, v := range s.notifications {
		snap.notifications[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.workflows = snap.workflows
	s.requests = snap.requests
	s.tasks = snap.tasks
	s.events = snap.events
	s.notifications = snap.notifications
	s.users = snap.users
	s.nextRequestID, s.nextTaskID, s.nextEventID, s.nextNotificationID = snap.ids[0], snap.ids[1], snap.ids[2], snap.ids[3]
}

var _ port.TransactionManager = (*Store)(nil)

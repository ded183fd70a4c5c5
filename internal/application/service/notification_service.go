// Package service holds application services that sit beside the engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/oa-approval/internal/application/dispatcher"
	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

const defaultNotificationLimit = 50

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NotificationService turns request events into per-user notifications and serves the feed
type NotificationService interface {
	// Register subscribes the fan-out handler on every event type
	Register(d dispatcher.Dispatcher)

	// HandleEvent writes the notifications for one committed event
	HandleEvent(ctx context.Context, evt *event.Event) error

	List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
	UnreadCount(ctx context.Context, userID int64) (int, error)
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	requestRepo      port.RequestRepository
	directory        port.Directory
	txManager        port.TransactionManager
	adminRole        string
	logger           Logger
	now              func() time.Time
}

// NewNotificationService creates a new NotificationService. Stalled tasks
// are announced to active users holding adminRole.
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	requestRepo port.RequestRepository,
	directory port.Directory,
	txManager port.TransactionManager,
	adminRole string,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		requestRepo:      requestRepo,
		directory:        directory,
		txManager:        txManager,
		adminRole:        adminRole,
		logger:           logger,
		now:              time.Now,
	}
}

func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeAll("notification-fanout", s.HandleEvent)
}

func (s *notificationServiceImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	recipients, err := s.recipients(ctx, evt)
	if err != nil {
		s.logger.Error("Failed to resolve notification recipients",
			"event_id", evt.ID,
			"request_id", evt.RequestID,
			"event_type", evt.Type,
			"error", err,
		)
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	message := s.compose(ctx, evt)
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, userID := range recipients {
			n := &entity.Notification{
				UserID:    userID,
				EventID:   evt.ID,
				RequestID: evt.RequestID,
				EventType: evt.Type.String(),
				Message:   message,
				CreatedAt: s.now(),
			}
			if err := s.notificationRepo.Create(txCtx, n); err != nil {
				return fmt.Errorf("create notification for user %d: %w", userID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to store notifications",
			"event_id", evt.ID,
			"request_id", evt.RequestID,
			"error", err,
		)
		return err
	}

	s.logger.Info("Notifications created",
		"event_id", evt.ID,
		"request_id", evt.RequestID,
		"event_type", evt.Type,
		"recipients", len(recipients),
	)
	return nil
}

// recipients: task_created goes to the task's assignees, or to administrators
// when the task is stalled; decisions and terminal transitions go to the owner.
// The actor is never notified of their own action.
func (s *notificationServiceImpl) recipients(ctx context.Context, evt *event.Event) ([]int64, error) {
	var ids []int64

	switch evt.Type {
	case event.TypeTaskCreated:
		ids = evt.GetPayloadIDs(event.PayloadAssignees)
		if len(ids) == 0 {
			admins, err := s.directory.ListActiveByRole(ctx, s.adminRole)
			if err != nil {
				return nil, fmt.Errorf("list administrators: %w", err)
			}
			for _, a := range admins {
				ids = append(ids, a.ID)
			}
		}

	case event.TypeTaskDecided, event.TypeRequestApproved, event.TypeRequestRejected,
		event.TypeWithdrawn, event.TypeVoided:
		ownerID := evt.GetPayloadInt(event.PayloadOwnerID)
		if ownerID == 0 {
			req, err := s.requestRepo.GetByID(ctx, evt.RequestID)
			if err != nil {
				return nil, fmt.Errorf("load request: %w", err)
			}
			ownerID = req.OwnerID
		}
		ids = []int64{ownerID}

	default:
		return nil, nil
	}

	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] || (evt.ActorID != nil && *evt.ActorID == id) {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}

func (s *notificationServiceImpl) compose(ctx context.Context, evt *event.Event) string {
	req, err := s.requestRepo.GetByID(ctx, evt.RequestID)
	if err != nil {
		return evt.Message
	}
	label := fmt.Sprintf("[%s #%d]", req.Type, req.ID)
	if req.Title != "" {
		label = fmt.Sprintf("[%s #%d %s]", req.Type, req.ID, req.Title)
	}
	return label + " " + evt.Message
}

func (s *notificationServiceImpl) List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	return s.notificationRepo.ListByUser(ctx, userID, unreadOnly, limit)
}

// MarkRead marks a notification read. Another user's notification reads as not found.
func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID, notificationID int64) error {
	n, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return fmt.Errorf("notification %d: %w", notificationID, domainwf.ErrNotFound)
	}
	if n.IsRead() {
		return nil
	}
	if err := s.notificationRepo.MarkRead(ctx, notificationID, s.now()); err != nil {
		if !errors.Is(err, domainwf.ErrNotFound) {
			s.logger.Error("Failed to mark notification read", "notification_id", notificationID, "error", err)
		}
		return err
	}
	return nil
}

func (s *notificationServiceImpl) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notificationRepo.CountUnread(ctx, userID)
}

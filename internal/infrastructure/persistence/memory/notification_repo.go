package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

type notificationRepo struct {
	s *Store
}

func (r *notificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	return r.s.write(ctx, func() error {
		r.s.nextNotificationID++
		n.ID = r.s.nextNotificationID
		r.s.notifications[n.ID] = cloneNotification(n)
		return nil
	})
}

func (r *notificationRepo) GetByID(ctx context.Context, id int64) (*entity.Notification, error) {
	var out *entity.Notification
	r.s.read(func() {
		if n, ok := r.s.notifications[id]; ok {
			out = cloneNotification(n)
		}
	})
	if out == nil {
		return nil, fmt.Errorf("notification %d: %w", id, domainwf.ErrNotFound)
	}
	return out, nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	var out []*entity.Notification
	r.s.read(func() {
		for _, n := range r.s.notifications {
			if n.UserID != userID || (unreadOnly && n.IsRead()) {
				continue
			}
			out = append(out, cloneNotification(n))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	count := 0
	r.s.read(func() {
		for _, n := range r.s.notifications {
			if n.UserID == userID && !n.IsRead() {
				count++
			}
		}
	})
	return count, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id int64, at time.Time) error {
	return r.s.write(ctx, func() error {
		n, ok := r.s.notifications[id]
		if !ok {
			return fmt.Errorf("notification %d: %w", id, domainwf.ErrNotFound)
		}
		if n.ReadAt != nil {
			return nil
		}
		updated := cloneNotification(n)
		updated.ReadAt = &at
		r.s.notifications[id] = updated
		return nil
	})
}

func (r *notificationRepo) ListUndelivered(ctx context.Context, limit int) ([]*entity.Notification, error) {
	var out []*entity.Notification
	r.s.read(func() {
		for _, n := range r.s.notifications {
			if n.DeliveredAt == nil {
				out = append(out, cloneNotification(n))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepo) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	return r.s.write(ctx, func() error {
		n, ok := r.s.notifications[id]
		if !ok {
			return fmt.Errorf("notification %d: %w", id, domainwf.ErrNotFound)
		}
		updated := cloneNotification(n)
		updated.DeliveredAt = &at
		r.s.notifications[id] = updated
		return nil
	})
}

var _ port.NotificationRepository = (*notificationRepo)(nil)

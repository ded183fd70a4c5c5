package memory

import (
	"context"
	"fmt"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/event"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

type eventRepo struct {
	s *Store
}

func (r *eventRepo) Append(ctx context.Context, evt *event.Event) error {
	return r.s.write(ctx, func() error {
		if _, ok := r.s.requests[evt.RequestID]; !ok {
			return fmt.Errorf("request %d: %w", evt.RequestID, domainwf.ErrNotFound)
		}
		r.s.nextEventID++
		evt.ID = r.s.nextEventID
		r.s.events = append(r.s.events, cloneEvent(evt))
		return nil
	})
}

func (r *eventRepo) ListByRequest(ctx context.Context, requestID int64) ([]*event.Event, error) {
	var out []*event.Event
	r.s.read(func() {
		for _, evt := range r.s.events {
			if evt.RequestID == requestID {
				out = append(out, cloneEvent(evt))
			}
		}
	})
	return out, nil
}

var _ port.EventRepository = (*eventRepo)(nil)

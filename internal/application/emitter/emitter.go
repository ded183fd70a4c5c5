// Package emitter appends request events to the audit log inside the engine's
// transaction and publishes them to the dispatcher once the transaction commits.
package emitter

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/oa-approval/internal/application/dispatcher"
	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/event"
)

// Emitter records and publishes events
type Emitter struct {
	eventRepo  port.EventRepository
	dispatcher dispatcher.Dispatcher
	metrics    port.Metrics
	sync       bool
	now        func() time.Time
}

// Option configures the emitter
type Option func(*Emitter)

// WithDispatcher sets the dispatcher events are published to after commit
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(e *Emitter) {
		e.dispatcher = d
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m port.Metrics) Option {
	return func(e *Emitter) {
		e.metrics = m
	}
}

// WithSynchronousPublish makes Publish wait for handlers. Used by the CLI and tests.
func WithSynchronousPublish() Option {
	return func(e *Emitter) {
		e.sync = true
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) {
		e.now = now
	}
}

// New creates an Emitter
func New(eventRepo port.EventRepository, opts ...Option) *Emitter {
	e := &Emitter{
		eventRepo: eventRepo,
		metrics:   port.NopMetrics{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Batch collects the events of one engine operation under a shared correlation id
type Batch struct {
	emitter       *Emitter
	correlationID string
	events        []*event.Event
}

// Begin starts a batch
func (e *Emitter) Begin() *Batch {
	return &Batch{emitter: e, correlationID: event.NewCorrelationID()}
}

// CorrelationID returns the id stamped on every event of the batch
func (b *Batch) CorrelationID() string {
	return b.correlationID
}

// Events returns the events recorded so far
func (b *Batch) Events() []*event.Event {
	return b.events
}

// Record appends an event to the audit log using ctx, which must carry the
// caller's transaction so the event commits or rolls back with the state it describes.
func (b *Batch) Record(ctx context.Context, eventType event.Type, requestID int64, actorID *int64, message string, payload map[string]interface{}) (*event.Event, error) {
	evt := event.NewEvent(eventType, requestID, actorID, message, b.correlationID)
	evt.CreatedAt = b.emitter.now()
	for k, v := range payload {
		evt.Payload[k] = v
	}

	if err := b.emitter.eventRepo.Append(ctx, evt); err != nil {
		return nil, fmt.Errorf("append %s event for request %d: %w", eventType, requestID, err)
	}
	b.events = append(b.events, evt)
	return evt, nil
}

// Publish hands the batch to the dispatcher. Call only after the transaction committed.
func (b *Batch) Publish(ctx context.Context) {
	e := b.emitter
	for _, evt := range b.events {
		e.metrics.EventRecorded(evt.Type)
		if e.dispatcher == nil {
			continue
		}
		if e.sync {
			// handler failures are logged by the dispatcher; the event is already committed
			_ = e.dispatcher.Dispatch(ctx, evt)
			continue
		}
		e.dispatcher.DispatchAsync(ctx, evt)
	}
	b.events = nil
}

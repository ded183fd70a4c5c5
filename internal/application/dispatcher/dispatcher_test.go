package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/oa-approval/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func (m *mockLogger) HasError(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.errors {
		if e == msg {
			return true
		}
	}
	return false
}

func newEvent(t event.Type) *event.Event {
	return event.NewEvent(t, 1, nil, "test", "corr-1")
}

func TestSubscribe(t *testing.T) {
	t.Run("handlers run in registration order", func(t *testing.T) {
		d := NewDispatcher()
		var order []int

		d.Subscribe(event.TypeCreated, func(ctx context.Context, evt *event.Event) error {
			order = append(order, 1)
			return nil
		})
		d.Subscribe(event.TypeCreated, func(ctx context.Context, evt *event.Event) error {
			order = append(order, 2)
			return nil
		})

		if err := d.Dispatch(context.Background(), newEvent(event.TypeCreated)); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if len(order) != 2 || order[0] != 1 || order[1] != 2 {
			t.Errorf("expected [1 2], got %v", order)
		}
	})

	t.Run("handlers only see their event type", func(t *testing.T) {
		d := NewDispatcher()
		called := false
		d.Subscribe(event.TypeVoided, func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})

		if err := d.Dispatch(context.Background(), newEvent(event.TypeWithdrawn)); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}
		if called {
			t.Error("handler for voided should not run on withdrawn")
		}
	})

	t.Run("auto-generated names are unique per type", func(t *testing.T) {
		d := NewDispatcher()
		noop := func(ctx context.Context, evt *event.Event) error { return nil }
		d.Subscribe(event.TypeCreated, noop)
		d.Subscribe(event.TypeCreated, noop)

		handlers := d.ListHandlers(event.TypeCreated)
		if len(handlers) != 2 {
			t.Fatalf("expected 2 handlers, got %d", len(handlers))
		}
		if handlers[0].Name == handlers[1].Name {
			t.Errorf("expected distinct names, both are %q", handlers[0].Name)
		}
	})
}

func TestSubscribeAll(t *testing.T) {
	d := NewDispatcher()
	var seen []event.Type
	d.SubscribeAll("recorder", func(ctx context.Context, evt *event.Event) error {
		seen = append(seen, evt.Type)
		return nil
	})

	for _, typ := range event.AllTypes {
		if err := d.Dispatch(context.Background(), newEvent(typ)); err != nil {
			t.Fatalf("dispatch %s failed: %v", typ, err)
		}
	}

	if len(seen) != len(event.AllTypes) {
		t.Fatalf("expected %d events, got %d", len(event.AllTypes), len(seen))
	}
	for i, typ := range event.AllTypes {
		if seen[i] != typ {
			t.Errorf("position %d: expected %s, got %s", i, typ, seen[i])
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	calls := 0
	d.SubscribeNamed(event.TypeTaskCreated, "notify", func(ctx context.Context, evt *event.Event) error {
		calls++
		return nil
	})
	d.Unsubscribe(event.TypeTaskCreated, "notify")

	if err := d.Dispatch(context.Background(), newEvent(event.TypeTaskCreated)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("expected unsubscribed handler not to run, ran %d times", calls)
	}
}

func TestDispatch(t *testing.T) {
	t.Run("stops at first error", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		secondCalled := false
		d.SubscribeNamed(event.TypeTaskDecided, "fails", func(ctx context.Context, evt *event.Event) error {
			return errors.New("boom")
		})
		d.SubscribeNamed(event.TypeTaskDecided, "after", func(ctx context.Context, evt *event.Event) error {
			secondCalled = true
			return nil
		})

		err := d.Dispatch(context.Background(), newEvent(event.TypeTaskDecided))
		if err == nil {
			t.Fatal("expected error")
		}
		if secondCalled {
			t.Error("handler after the failing one should not run")
		}
		if !logger.HasError("Handler error") {
			t.Error("expected handler error to be logged")
		}
	})

	t.Run("recovers panics", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		d.Subscribe(event.TypeRequestApproved, func(ctx context.Context, evt *event.Event) error {
			panic("handler exploded")
		})

		err := d.Dispatch(context.Background(), newEvent(event.TypeRequestApproved))
		if err == nil {
			t.Fatal("expected error from panicking handler")
		}
		if !logger.HasError("Handler panic recovered") {
			t.Error("expected panic to be logged")
		}
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("handlers complete before Close returns", func(t *testing.T) {
		d := NewDispatcher()
		var count atomic.Int32
		for i := 0; i < 3; i++ {
			d.Subscribe(event.TypeCreated, func(ctx context.Context, evt *event.Event) error {
				time.Sleep(5 * time.Millisecond)
				count.Add(1)
				return nil
			})
		}

		d.DispatchAsync(context.Background(), newEvent(event.TypeCreated))
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if got := count.Load(); got != 3 {
			t.Errorf("expected 3 handler runs, got %d", got)
		}
	})

	t.Run("handlers survive caller cancellation", func(t *testing.T) {
		d := NewDispatcher()
		var ctxErr atomic.Value
		started := make(chan struct{})
		release := make(chan struct{})
		d.Subscribe(event.TypeCreated, func(ctx context.Context, evt *event.Event) error {
			close(started)
			<-release
			if err := ctx.Err(); err != nil {
				ctxErr.Store(err)
			}
			return nil
		})

		ctx, cancel := context.WithCancel(context.Background())
		d.DispatchAsync(ctx, newEvent(event.TypeCreated))
		<-started
		cancel()
		close(release)
		_ = d.Close()

		if v := ctxErr.Load(); v != nil {
			t.Errorf("expected detached context, handler saw %v", v)
		}
	})

	t.Run("rejected after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		called := false
		d.Subscribe(event.TypeCreated, func(ctx context.Context, evt *event.Event) error {
			called = true
			return nil
		})
		_ = d.Close()

		d.DispatchAsync(context.Background(), newEvent(event.TypeCreated))
		if called {
			t.Error("handler should not run after close")
		}
		if logger.ErrorCount() != 1 {
			t.Errorf("expected one logged error, got %d", logger.ErrorCount())
		}
		if err := d.Dispatch(context.Background(), newEvent(event.TypeCreated)); err == nil {
			t.Error("expected sync dispatch to fail after close")
		}
	})
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	if err := d.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := d.Close(); err == nil {
		t.Error("expected second close to fail")
	}
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher()
	var count atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d.Subscribe(event.TypeTaskCreated, func(ctx context.Context, evt *event.Event) error {
				count.Add(1)
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = d.Dispatch(context.Background(), newEvent(event.TypeTaskCreated))
		}()
	}
	wg.Wait()

	count.Store(0)
	if err := d.Dispatch(context.Background(), newEvent(event.TypeTaskCreated)); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if got := count.Load(); got != 10 {
		t.Errorf("expected 10 handlers after concurrent subscribe, got %d", got)
	}
}

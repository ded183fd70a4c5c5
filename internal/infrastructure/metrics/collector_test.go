package metrics

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/oa-approval/internal/domain/event"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

func TestCollector_CountsOperations(t *testing.T) {
	c := NewCollector()

	c.ObserveOperation("decide_task", nil, 3*time.Millisecond)
	c.ObserveOperation("decide_task", fmt.Errorf("task 9: %w", domainwf.ErrAlreadyDecided), time.Millisecond)
	c.ObserveOperation("create_request", domainwf.ErrNoApplicableWorkflow, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.operationsTotal.WithLabelValues("decide_task", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operationsTotal.WithLabelValues("decide_task", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejectedTotal.WithLabelValues("decide_task", domainwf.CodeAlreadyDecided)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejectedTotal.WithLabelValues("create_request", domainwf.CodeNoApplicableWorkflow)))
	assert.Equal(t, 2, testutil.CollectAndCount(c.operationLatency))
}

func TestCollector_EventsAndDeliveries(t *testing.T) {
	c := NewCollector()

	c.EventRecorded(event.TypeCreated)
	c.EventRecorded(event.TypeTaskCreated)
	c.EventRecorded(event.TypeTaskCreated)
	c.NotificationDelivered(nil)
	c.NotificationDelivered(assert.AnError)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.eventsTotal.WithLabelValues("task_created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notificationsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notificationsTotal.WithLabelValues("error")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.EventRecorded(event.TypeVoided)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `approval_events_total{event_type="voided"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

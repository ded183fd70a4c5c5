// Package metrics exposes engine and delivery measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/event"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

const namespace = "approval"

// Collector implements port.Metrics on its own registry
type Collector struct {
	registry *prometheus.Registry

	operationsTotal    *prometheus.CounterVec
	operationLatency   *prometheus.HistogramVec
	rejectedTotal      *prometheus.CounterVec
	eventsTotal        *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
}

// NewCollector creates a collector with a fresh registry that also carries
// the Go runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		operationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of engine operations by result.",
		}, []string{"operation", "result"}),
		operationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency distribution for engine operations.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5,
			},
		}, []string{"operation"}),
		rejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_operations_total",
			Help:      "Total number of failed engine operations by error code.",
		}, []string{"operation", "code"}),
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of request events recorded by type.",
		}, []string{"event_type"}),
		notificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_total",
			Help:      "Total number of external notification deliveries by result.",
		}, []string{"result"}),
	}
}

// ObserveOperation records the outcome and latency of an engine operation
func (c *Collector) ObserveOperation(operation string, err error, elapsed time.Duration) {
	c.operationLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
	if err != nil {
		c.operationsTotal.WithLabelValues(operation, "error").Inc()
		c.rejectedTotal.WithLabelValues(operation, domainwf.ErrorCode(err)).Inc()
		return
	}
	c.operationsTotal.WithLabelValues(operation, "ok").Inc()
}

// EventRecorded counts a committed request event
func (c *Collector) EventRecorded(eventType event.Type) {
	c.eventsTotal.WithLabelValues(eventType.String()).Inc()
}

// NotificationDelivered counts an external delivery attempt
func (c *Collector) NotificationDelivered(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.notificationsTotal.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Verify interface compliance
var _ port.Metrics = (*Collector)(nil)

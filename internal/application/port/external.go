package port

import (
	"context"
	"io"
	"time"

	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
)

// Directory is the read-only user lookup used for assignee resolution.
// Implementations bound every call with a timeout and report failures
// as workflow.ErrInfrastructure.
type Directory interface {
	GetUser(ctx context.Context, id int64) (*entity.User, error)
	ListActiveByRole(ctx context.Context, role string) ([]*entity.User, error)
	ListActive(ctx context.Context) ([]*entity.User, error)
}

// MessageSender delivers notification text to an external chat channel
type MessageSender interface {
	SendText(ctx context.Context, openID string, content string) error
}

// ReportExporter renders requests and their audit trail into a document
type ReportExporter interface {
	ExportRequests(ctx context.Context, w io.Writer, details []*entity.RequestDetail) error
}

// Metrics records engine and delivery measurements
type Metrics interface {
	ObserveOperation(operation string, err error, elapsed time.Duration)
	EventRecorded(eventType event.Type)
	NotificationDelivered(err error)
}

// NopMetrics discards all measurements
type NopMetrics struct{}

func (NopMetrics) ObserveOperation(string, error, time.Duration) {}
func (NopMetrics) EventRecorded(event.Type)                      {}
func (NopMetrics) NotificationDelivered(error)                   {}

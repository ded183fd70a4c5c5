package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

// DeliveryWorkerConfig holds configuration for the notification delivery worker
type DeliveryWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	SendTimeout  time.Duration
	// MaxAttempts bounds retries of one notification before it is given up.
	MaxAttempts int
}

// DefaultDeliveryWorkerConfig returns default configuration
func DefaultDeliveryWorkerConfig() DeliveryWorkerConfig {
	return DeliveryWorkerConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
		SendTimeout:  10 * time.Second,
		MaxAttempts:  5,
	}
}

// DeliveryStats is a snapshot of worker counters
type DeliveryStats struct {
	Delivered int       `json:"delivered"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	Abandoned int       `json:"abandoned"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

// NotificationDeliveryWorker pushes undelivered notifications to the
// external chat channel. Notifications of users without a chat identity
// are in-app only and are marked delivered without sending.
type NotificationDeliveryWorker struct {
	config DeliveryWorkerConfig

	notificationRepo port.NotificationRepository
	directory        port.Directory
	sender           port.MessageSender
	metrics          port.Metrics
	logger           *zap.Logger
	now              func() time.Time

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	attempts  map[int64]int
	stats     DeliveryStats
}

// NewNotificationDeliveryWorker creates a new delivery worker. sender may be
// nil, in which case every notification is treated as in-app only.
func NewNotificationDeliveryWorker(
	config DeliveryWorkerConfig,
	notificationRepo port.NotificationRepository,
	directory port.Directory,
	sender port.MessageSender,
	metrics port.Metrics,
	logger *zap.Logger,
) *NotificationDeliveryWorker {
	defaults := DefaultDeliveryWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaults.SendTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationDeliveryWorker{
		config:           config,
		notificationRepo: notificationRepo,
		directory:        directory,
		sender:           sender,
		metrics:          metrics,
		logger:           logger,
		now:              time.Now,
		attempts:         make(map[int64]int),
	}
}

// Start begins the worker polling loop
func (w *NotificationDeliveryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("notification delivery worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("NotificationDeliveryWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop gracefully terminates the worker and waits for the current batch
func (w *NotificationDeliveryWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("NotificationDeliveryWorker stopped",
		zap.Int("delivered", stats.Delivered),
		zap.Int("failed", stats.Failed))
	return nil
}

// Name returns the worker name for identification
func (w *NotificationDeliveryWorker) Name() string {
	return "NotificationDeliveryWorker"
}

// Stats returns a copy of the worker counters
func (w *NotificationDeliveryWorker) Stats() DeliveryStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *NotificationDeliveryWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Poll loop context cancelled")
			return
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Failed to deliver notifications", zap.Error(err))
			}
		}
	}
}

// ProcessBatch delivers one batch of undelivered notifications and returns
// how many were marked delivered. A directory outage aborts the batch so the
// remaining notifications are retried on the next poll.
func (w *NotificationDeliveryWorker) ProcessBatch(ctx context.Context) (int, error) {
	pending, err := w.notificationRepo.ListUndelivered(ctx, w.config.BatchSize)
	if err != nil {
		w.recordRun(err)
		return 0, fmt.Errorf("failed to list undelivered notifications: %w", err)
	}

	marked := 0
	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		ok, err := w.deliver(ctx, n)
		if err != nil {
			w.recordRun(err)
			return marked, err
		}
		if ok {
			marked++
		}
	}
	w.recordRun(nil)
	return marked, nil
}

// deliver handles one notification. It reports whether the notification was
// marked delivered; an error means the batch should stop.
func (w *NotificationDeliveryWorker) deliver(ctx context.Context, n *entity.Notification) (bool, error) {
	user, err := w.directory.GetUser(ctx, n.UserID)
	switch {
	case errors.Is(err, domainwf.ErrNotFound):
		return w.markDelivered(ctx, n, &w.stats.Skipped)
	case err != nil:
		return false, fmt.Errorf("failed to look up recipient %d: %w", n.UserID, err)
	}

	if w.sender == nil || user.LarkOpenID == "" || !user.Active {
		return w.markDelivered(ctx, n, &w.stats.Skipped)
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
	err = w.sender.SendText(sendCtx, user.LarkOpenID, n.Message)
	cancel()
	w.metrics.NotificationDelivered(err)

	if err == nil {
		return w.markDelivered(ctx, n, &w.stats.Delivered)
	}

	w.mu.Lock()
	w.attempts[n.ID]++
	attempts := w.attempts[n.ID]
	w.stats.Failed++
	w.mu.Unlock()

	if attempts < w.config.MaxAttempts {
		w.logger.Warn("Notification delivery failed, will retry",
			zap.Int64("notification_id", n.ID),
			zap.Int64("user_id", n.UserID),
			zap.Int("attempt", attempts),
			zap.Error(err))
		return false, nil
	}

	w.logger.Error("Giving up notification delivery",
		zap.Int64("notification_id", n.ID),
		zap.Int64("user_id", n.UserID),
		zap.Int("attempts", attempts),
		zap.Error(err))
	return w.markDelivered(ctx, n, &w.stats.Abandoned)
}

func (w *NotificationDeliveryWorker) markDelivered(ctx context.Context, n *entity.Notification, counter *int) (bool, error) {
	if err := w.notificationRepo.MarkDelivered(ctx, n.ID, w.now()); err != nil {
		return false, fmt.Errorf("failed to mark notification %d delivered: %w", n.ID, err)
	}
	w.mu.Lock()
	delete(w.attempts, n.ID)
	*counter++
	w.mu.Unlock()
	return true, nil
}

func (w *NotificationDeliveryWorker) recordRun(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.LastRun = w.now()
	w.stats.LastError = ""
	if err != nil {
		w.stats.LastError = err.Error()
	}
}

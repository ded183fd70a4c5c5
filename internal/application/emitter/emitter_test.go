package emitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/oa-approval/internal/application/dispatcher"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
	"github.com/garyjia/oa-approval/internal/infrastructure/persistence/memory"
)

type countingMetrics struct {
	recorded map[event.Type]int
}

func (m *countingMetrics) ObserveOperation(string, error, time.Duration) {}
func (m *countingMetrics) NotificationDelivered(error)                   {}
func (m *countingMetrics) EventRecorded(t event.Type)                    { m.recorded[t]++ }

func seedRequest(t *testing.T, store *memory.Store) int64 {
	t.Helper()
	req := &entity.Request{Type: "leave", OwnerID: 1, Status: entity.RequestStatusPending}
	require.NoError(t, store.Requests().Create(context.Background(), req))
	return req.ID
}

func TestBatch_RecordAndPublish(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	requestID := seedRequest(t, store)

	d := dispatcher.NewDispatcher()
	var published []*event.Event
	d.SubscribeAll("collector", func(ctx context.Context, evt *event.Event) error {
		published = append(published, evt)
		return nil
	})

	fixed := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	metrics := &countingMetrics{recorded: map[event.Type]int{}}
	em := New(store.Events(), WithDispatcher(d), WithSynchronousPublish(), WithMetrics(metrics),
		WithClock(func() time.Time { return fixed }))

	owner := int64(1)
	batch := em.Begin()
	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := batch.Record(txCtx, event.TypeCreated, requestID, &owner, "submitted", nil); err != nil {
			return err
		}
		_, err := batch.Record(txCtx, event.TypeTaskCreated, requestID, nil, "step 1",
			map[string]interface{}{event.PayloadTaskID: int64(7)})
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, published, "nothing is published before Publish")

	batch.Publish(ctx)

	require.Len(t, published, 2)
	assert.Equal(t, event.TypeCreated, published[0].Type)
	assert.Equal(t, int64(7), published[1].GetPayloadInt(event.PayloadTaskID))
	assert.Equal(t, published[0].CorrelationID, published[1].CorrelationID)
	assert.Equal(t, batch.CorrelationID(), published[0].CorrelationID)
	assert.Equal(t, fixed, published[0].CreatedAt)
	assert.Equal(t, 1, metrics.recorded[event.TypeTaskCreated])

	stored, err := store.Events().ListByRequest(ctx, requestID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "submitted", stored[0].Message)
	assert.Less(t, stored[0].ID, stored[1].ID)
}

func TestBatch_RollbackDiscardsEvents(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	requestID := seedRequest(t, store)
	em := New(store.Events())

	batch := em.Begin()
	err := store.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := batch.Record(txCtx, event.TypeVoided, requestID, nil, "voided", nil); err != nil {
			return err
		}
		return errors.New("later step failed")
	})
	require.Error(t, err)

	stored, err := store.Events().ListByRequest(ctx, requestID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestBatch_RecordUnknownRequest(t *testing.T) {
	em := New(memory.NewStore().Events())
	_, err := em.Begin().Record(context.Background(), event.TypeCreated, 99, nil, "x", nil)
	assert.Error(t, err)
}

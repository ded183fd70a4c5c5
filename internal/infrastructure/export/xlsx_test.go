package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/garyjia/oa-approval/internal/domain/entity"
	"github.com/garyjia/oa-approval/internal/domain/event"
)

func TestXLSXExporter_ExportRequests(t *testing.T) {
	created := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	decided := created.Add(2 * time.Hour)
	bob := int64(2)

	details := []*entity.RequestDetail{
		{
			Request: &entity.Request{
				ID: 7, Type: "expense", WorkflowKey: "expense_std", OwnerID: 1, Title: "Taxi",
				Status: entity.RequestStatusApproved, CurrentStep: 1,
				CreatedAt: created, DecidedAt: &decided, DecidedBy: &bob,
			},
			Tasks: []*entity.Task{
				{ID: 11, RequestID: 7, StepOrder: 1, StepKey: "manager", AssigneeKind: entity.AssigneeManager,
					AssigneeUserIDs: []int64{2}, Status: entity.TaskStatusApproved, DecidedAt: &decided,
					DecidedBy: &bob, Comment: "fine"},
			},
			Events: []*event.Event{
				{ID: 1, RequestID: 7, Type: event.TypeCreated, Message: "created", CorrelationID: "c1", CreatedAt: created},
				{ID: 2, RequestID: 7, Type: event.TypeRequestApproved, ActorID: &bob, Message: "approved", CorrelationID: "c2", CreatedAt: decided},
			},
		},
		{
			Request: &entity.Request{ID: 8, Type: "leave", WorkflowKey: "leave_std", OwnerID: 6, Title: "Vacation",
				Status: entity.RequestStatusVoided, CreatedAt: created},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewXLSXExporter().ExportRequests(context.Background(), &buf, details))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{requestsSheet, tasksSheet, eventsSheet}, f.GetSheetList())

	rows, err := f.GetRows(requestsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, []string{"7", "expense", "expense_std", "1", "Taxi", "approved", "1",
		"2026-03-02 09:30:00", "2026-03-02 11:30:00", "2"}, rows[1])
	assert.Equal(t, "voided", rows[2][5])

	tasks, err := f.GetRows(tasksSheet)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "fine", tasks[1][9])

	events, err := f.GetRows(eventsSheet)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "system", events[1][3])
	assert.Equal(t, "request_approved", events[2][2])
	assert.Equal(t, "2", events[2][3])
}

func TestXLSXExporter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := NewXLSXExporter().ExportRequests(ctx, &buf, []*entity.RequestDetail{
		{Request: &entity.Request{ID: 1}},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

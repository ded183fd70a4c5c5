// Package export renders request audit trails as spreadsheets.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/domain/entity"
)

const (
	requestsSheet = "Requests"
	tasksSheet    = "Tasks"
	eventsSheet   = "Events"
	timeLayout    = "2006-01-02 15:04:05"
)

var (
	requestHeader = []interface{}{"ID", "Type", "Workflow", "Owner", "Title", "Status", "Current Step", "Created", "Decided", "Decided By"}
	taskHeader    = []interface{}{"Task ID", "Request ID", "Step", "Step Key", "Assignee Kind", "Assignees", "Status", "Decided", "Decided By", "Comment"}
	eventHeader   = []interface{}{"Event ID", "Request ID", "Type", "Actor", "Message", "Correlation ID", "Created"}
)

// XLSXExporter implements port.ReportExporter with excelize
type XLSXExporter struct{}

// NewXLSXExporter creates a new spreadsheet exporter
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ExportRequests writes one workbook with a sheet each for requests, tasks and events
func (e *XLSXExporter) ExportRequests(ctx context.Context, w io.Writer, details []*entity.RequestDetail) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", requestsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{tasksSheet, eventsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	requests := &sheetWriter{f: f, sheet: requestsSheet}
	tasks := &sheetWriter{f: f, sheet: tasksSheet}
	events := &sheetWriter{f: f, sheet: eventsSheet}
	requests.header(requestHeader, bold)
	tasks.header(taskHeader, bold)
	events.header(eventHeader, bold)

	for _, d := range details {
		if err := ctx.Err(); err != nil {
			return err
		}
		r := d.Request
		requests.row(r.ID, r.Type, r.WorkflowKey, r.OwnerID, r.Title, r.Status, r.CurrentStep,
			formatTime(&r.CreatedAt), formatTime(r.DecidedAt), formatID(r.DecidedBy))

		for _, t := range d.Tasks {
			tasks.row(t.ID, t.RequestID, t.StepOrder, t.StepKey, t.AssigneeKind, formatIDs(t.AssigneeUserIDs),
				t.Status, formatTime(t.DecidedAt), formatID(t.DecidedBy), t.Comment)
		}
		for _, evt := range d.Events {
			actor := formatID(evt.ActorID)
			if actor == "" {
				actor = "system"
			}
			events.row(evt.ID, evt.RequestID, evt.Type.String(), actor, evt.Message, evt.CorrelationID,
				formatTime(&evt.CreatedAt))
		}
	}

	for _, sw := range []*sheetWriter{requests, tasks, events} {
		if sw.err != nil {
			return fmt.Errorf("failed to write sheet %s: %w", sw.sheet, sw.err)
		}
		if err := f.SetPanes(sw.sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return fmt.Errorf("failed to freeze header of %s: %w", sw.sheet, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// sheetWriter appends rows and keeps the first error
type sheetWriter struct {
	f     *excelize.File
	sheet string
	next  int
	err   error
}

func (s *sheetWriter) header(values []interface{}, style int) {
	s.row(values...)
	if s.err != nil {
		return
	}
	last, err := excelize.CoordinatesToCellName(len(values), 1)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetCellStyle(s.sheet, "A1", last, style)
}

func (s *sheetWriter) row(values ...interface{}) {
	if s.err != nil {
		return
	}
	s.next++
	cell, err := excelize.CoordinatesToCellName(1, s.next)
	if err != nil {
		s.err = err
		return
	}
	s.err = s.f.SetSheetRow(s.sheet, cell, &values)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}

func formatIDs(ids []int64) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%d", id)
	}
	return out
}

// Verify interface compliance
var _ port.ReportExporter = (*XLSXExporter)(nil)

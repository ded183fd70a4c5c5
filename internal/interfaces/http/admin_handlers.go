package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// maxExportRequests bounds one export call
const maxExportRequests = 500

// UpsertWorkflow handles PUT /api/admin/workflows/:key
func (h *Handlers) UpsertWorkflow(c *gin.Context) {
	var def entity.WorkflowDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		badRequest(c, domainwf.CodeInvalidDefinition, "invalid workflow body: "+err.Error())
		return
	}

	key := c.Param("key")
	if def.Key != "" && def.Key != key {
		badRequest(c, domainwf.CodeInvalidDefinition,
			fmt.Sprintf("body key %q does not match path key %q", def.Key, key))
		return
	}
	def.Key = key

	saved, err := h.catalog.Upsert(c.Request.Context(), &def)
	if err != nil {
		h.fail(c, "upsert_workflow", err)
		return
	}
	h.logger.Info("Workflow upserted", "key", saved.Key, "actor_id", actorID(c))
	ok(c, saved)
}

// DeleteWorkflow handles DELETE /api/admin/workflows/:key
func (h *Handlers) DeleteWorkflow(c *gin.Context) {
	key := c.Param("key")
	if err := h.catalog.Delete(c.Request.Context(), key); err != nil {
		h.fail(c, "delete_workflow", err)
		return
	}
	h.logger.Info("Workflow deleted", "key", key, "actor_id", actorID(c))
	c.Status(http.StatusNoContent)
}

// VoidRequest handles POST /api/admin/requests/:id/void
func (h *Handlers) VoidRequest(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid request id")
		return
	}

	var body VoidRequestBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, domainwf.CodeInvalidPayload, "invalid void body: "+err.Error())
			return
		}
	}

	req, err := h.engine.VoidRequest(c.Request.Context(), id, actorID(c), body.Reason)
	if err != nil {
		h.fail(c, "void_request", err)
		return
	}
	ok(c, req)
}

// OverrideTask handles POST /api/admin/tasks/:id/override
func (h *Handlers) OverrideTask(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid task id")
		return
	}

	var body DecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, domainwf.CodeInvalidDecision, "invalid decision body: "+err.Error())
		return
	}

	task, err := h.engine.OverrideTask(c.Request.Context(), id, actorID(c), body.Decision, body.Comment)
	if err != nil {
		h.fail(c, "override_task", err)
		return
	}
	ok(c, task)
}

// ListStalledTasks handles GET /api/admin/tasks/stalled
func (h *Handlers) ListStalledTasks(c *gin.Context) {
	items, err := h.engine.ListStalledTasks(c.Request.Context())
	if err != nil {
		h.fail(c, "list_stalled_tasks", err)
		return
	}
	if items == nil {
		items = []*entity.InboxItem{}
	}
	ok(c, items)
}

// ExportRequests handles GET /api/admin/requests/export. It streams an xlsx
// workbook of the matching requests with their tasks and audit trail.
func (h *Handlers) ExportRequests(c *gin.Context) {
	if h.exporter == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, Response{Success: false, Error: "export disabled"})
		return
	}

	var filter entity.RequestFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid query parameters")
		return
	}
	if filter.Limit <= 0 || filter.Limit > maxExportRequests {
		filter.Limit = maxExportRequests
	}

	ctx := c.Request.Context()
	requests, err := h.engine.ListRequests(ctx, filter)
	if err != nil {
		h.fail(c, "export_requests", err)
		return
	}

	details := make([]*entity.RequestDetail, 0, len(requests))
	for _, req := range requests {
		detail, err := h.engine.GetRequest(ctx, req.ID)
		if err != nil {
			h.fail(c, "export_requests", err)
			return
		}
		details = append(details, detail)
	}

	var buf bytes.Buffer
	if err := h.exporter.ExportRequests(ctx, &buf, details); err != nil {
		h.fail(c, "export_requests", err)
		return
	}

	filename := fmt.Sprintf("requests-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

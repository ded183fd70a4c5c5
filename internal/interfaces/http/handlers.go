package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/oa-approval/internal/application/catalog"
	"github.com/garyjia/oa-approval/internal/application/port"
	"github.com/garyjia/oa-approval/internal/application/service"
	"github.com/garyjia/oa-approval/internal/application/workflow"
	"github.com/garyjia/oa-approval/internal/domain/entity"
	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine        workflow.Engine
	catalog       catalog.Catalog
	notifications service.NotificationService
	directory     port.Directory
	exporter      port.ReportExporter
	adminRole     string
	logger        Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	return &Handlers{
		engine:        deps.Engine,
		catalog:       deps.Catalog,
		notifications: deps.Notifications,
		directory:     deps.Directory,
		exporter:      deps.Exporter,
		adminRole:     deps.AdminRole,
		logger:        logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DecisionRequest is the body of decision and override calls
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
}

// AddSignerRequest is the body of an add-signer call
type AddSignerRequest struct {
	UserID int64 `json:"user_id" binding:"required,gt=0"`
}

// VoidRequestBody is the body of an administrative void
type VoidRequestBody struct {
	Reason string `json:"reason"`
}

// NotificationFeed is the response of the notification list
type NotificationFeed struct {
	Items       []*entity.Notification `json:"items"`
	UnreadCount int                    `json:"unread_count"`
}

// NotificationQuery represents query parameters for the feed
type NotificationQuery struct {
	UnreadOnly bool `form:"unread_only"`
	Limit      int  `form:"limit"`
}

// Version is reported by the health check
var Version = "1.0.0"

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
	})
}

// CreateRequest handles POST /api/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var in workflow.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid request body: "+err.Error())
		return
	}
	in.OwnerID = actorID(c)

	req, err := h.engine.CreateRequest(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "create_request", err)
		return
	}
	created(c, req)
}

// ListRequests handles GET /api/requests. Non-administrators only see their own requests.
func (h *Handlers) ListRequests(c *gin.Context) {
	var filter entity.RequestFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid query parameters")
		return
	}

	isAdmin, err := h.isAdmin(c)
	if err != nil {
		h.fail(c, "list_requests", err)
		return
	}
	if !isAdmin {
		filter.OwnerID = actorID(c)
	}

	requests, err := h.engine.ListRequests(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list_requests", err)
		return
	}
	if requests == nil {
		requests = []*entity.Request{}
	}
	ok(c, requests)
}

// GetRequest handles GET /api/requests/:id. The owner, any task assignee and
// administrators may read a request.
func (h *Handlers) GetRequest(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid request id")
		return
	}

	detail, err := h.engine.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get_request", err)
		return
	}

	if !canView(detail, actorID(c)) {
		isAdmin, err := h.isAdmin(c)
		if err != nil {
			h.fail(c, "get_request", err)
			return
		}
		if !isAdmin {
			h.fail(c, "get_request", domainwf.ErrNotAuthorized)
			return
		}
	}
	ok(c, detail)
}

func canView(detail *entity.RequestDetail, userID int64) bool {
	if detail.Request.OwnerID == userID {
		return true
	}
	for _, t := range detail.Tasks {
		if t.HasAssignee(userID) {
			return true
		}
	}
	return false
}

// WithdrawRequest handles POST /api/requests/:id/withdraw
func (h *Handlers) WithdrawRequest(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid request id")
		return
	}

	req, err := h.engine.WithdrawRequest(c.Request.Context(), id, actorID(c))
	if err != nil {
		h.fail(c, "withdraw_request", err)
		return
	}
	ok(c, req)
}

// DecideTask handles POST /api/tasks/:id/decision
func (h *Handlers) DecideTask(c *gin.Context) {
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

	task, err := h.engine.DecideTask(c.Request.Context(), id, actorID(c), body.Decision, body.Comment)
	if err != nil {
		h.fail(c, "decide_task", err)
		return
	}
	ok(c, task)
}

// AddSigner handles POST /api/tasks/:id/signers
func (h *Handlers) AddSigner(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid task id")
		return
	}

	var body AddSignerRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid signer body: "+err.Error())
		return
	}

	task, err := h.engine.AddSigner(c.Request.Context(), id, actorID(c), body.UserID)
	if err != nil {
		h.fail(c, "add_signer", err)
		return
	}
	created(c, task)
}

// ListInbox handles GET /api/inbox
func (h *Handlers) ListInbox(c *gin.Context) {
	items, err := h.engine.ListInbox(c.Request.Context(), actorID(c))
	if err != nil {
		h.fail(c, "list_inbox", err)
		return
	}
	if items == nil {
		items = []*entity.InboxItem{}
	}
	ok(c, items)
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	var q NotificationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid query parameters")
		return
	}

	ctx := c.Request.Context()
	items, err := h.notifications.List(ctx, actorID(c), q.UnreadOnly, q.Limit)
	if err != nil {
		h.fail(c, "list_notifications", err)
		return
	}
	unread, err := h.notifications.UnreadCount(ctx, actorID(c))
	if err != nil {
		h.fail(c, "list_notifications", err)
		return
	}
	if items == nil {
		items = []*entity.Notification{}
	}
	ok(c, NotificationFeed{Items: items, UnreadCount: unread})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid notification id")
		return
	}

	if err := h.notifications.MarkRead(c.Request.Context(), actorID(c), id); err != nil {
		h.fail(c, "mark_notification_read", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListWorkflows handles GET /api/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	var filter entity.WorkflowFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, domainwf.CodeInvalidPayload, "invalid query parameters")
		return
	}

	defs, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list_workflows", err)
		return
	}
	if defs == nil {
		defs = []*entity.WorkflowDefinition{}
	}
	ok(c, defs)
}

// ListAvailableWorkflows handles GET /api/workflows/available: the enabled
// definitions that apply to the actor's department.
func (h *Handlers) ListAvailableWorkflows(c *gin.Context) {
	ctx := c.Request.Context()

	department := ""
	user, err := h.directory.GetUser(ctx, actorID(c))
	switch {
	case err == nil:
		department = user.Department
	case domainwf.ErrorCode(err) != domainwf.CodeNotFound:
		h.fail(c, "list_available_workflows", err)
		return
	}

	defs, err := h.catalog.ListAvailable(ctx, department)
	if err != nil {
		h.fail(c, "list_available_workflows", err)
		return
	}
	if defs == nil {
		defs = []*entity.WorkflowDefinition{}
	}
	ok(c, defs)
}

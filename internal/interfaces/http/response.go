package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

const codeUnauthenticated = "unauthenticated"

var errBadID = errors.New("invalid id")

// statusForCode maps stable error codes to HTTP status
func statusForCode(code string) int {
	switch code {
	case domainwf.CodeInvalidPayload, domainwf.CodeInvalidDefinition, domainwf.CodeInvalidDecision:
		return http.StatusBadRequest
	case domainwf.CodeNotAuthorized, domainwf.CodeNotOwner:
		return http.StatusForbidden
	case domainwf.CodeNotFound:
		return http.StatusNotFound
	case domainwf.CodeAlreadyDecided, domainwf.CodeInUse:
		return http.StatusConflict
	case domainwf.CodeNoApplicableWorkflow, domainwf.CodeNoManagerConfigured:
		return http.StatusUnprocessableEntity
	case domainwf.CodeInfrastructure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// fail writes err as its stable code. Only validation errors carry their
// message to the caller; everything else is logged.
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	code := domainwf.ErrorCode(err)
	msg := code
	if domainwf.IsValidation(err) {
		msg = err.Error()
	}

	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "operation", op, "code", code, "error", err)
	}

	c.AbortWithStatusJSON(status, Response{Success: false, Error: msg, Code: code})
}

// badRequest reports malformed input that never reached the application layer
func badRequest(c *gin.Context, code, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Success: false, Error: msg, Code: code})
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

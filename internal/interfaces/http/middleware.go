package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	domainwf "github.com/garyjia/oa-approval/internal/domain/workflow"
)

// ActorHeader carries the authenticated user id set by the upstream gateway
const ActorHeader = "X-User-ID"

const (
	actorKey = "actor_id"
	adminKey = "actor_is_admin"
)

// RequireActor rejects requests without a valid actor header
func (h *Handlers) RequireActor(c *gin.Context) {
	raw := strings.TrimSpace(c.GetHeader(ActorHeader))
	id, err := strconv.ParseInt(raw, 10, 64)
	if raw == "" || err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
			Success: false,
			Error:   "missing or invalid " + ActorHeader + " header",
			Code:    codeUnauthenticated,
		})
		return
	}
	c.Set(actorKey, id)
	c.Next()
}

// RequireAdmin rejects actors that do not hold the administrator role
func (h *Handlers) RequireAdmin(c *gin.Context) {
	isAdmin, err := h.isAdmin(c)
	if err != nil {
		h.fail(c, "require_admin", err)
		return
	}
	if !isAdmin {
		h.fail(c, "require_admin", domainwf.ErrNotAuthorized)
		return
	}
	c.Next()
}

func actorID(c *gin.Context) int64 {
	return c.GetInt64(actorKey)
}

// isAdmin looks the actor up once per request. An actor missing from the
// directory is not an administrator.
func (h *Handlers) isAdmin(c *gin.Context) (bool, error) {
	if v, exists := c.Get(adminKey); exists {
		return v.(bool), nil
	}

	user, err := h.directory.GetUser(c.Request.Context(), actorID(c))
	switch {
	case err == nil:
	case domainwf.ErrorCode(err) == domainwf.CodeNotFound:
		c.Set(adminKey, false)
		return false, nil
	default:
		return false, err
	}

	isAdmin := user.Active && user.Role == h.adminRole
	c.Set(adminKey, isAdmin)
	return isAdmin, nil
}

package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/image-annotation/internal/application/service"
	"github.com/garyjia/image-annotation/internal/application/workflow"
	"github.com/garyjia/image-annotation/internal/domain/apperr"
)

// UserIDHeader carries the caller's user ID. Authenticating that ID is the job of whatever
// sits in front of this service.
const UserIDHeader = "X-User-ID"

const actorKey = "actor"

// identityMiddleware resolves the caller into a workflow.Actor before any handler runs
func identityMiddleware(users service.UserService, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + UserIDHeader + " header",
			})
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "invalid " + UserIDHeader + " header",
			})
			return
		}

		user, err := users.GetUser(c.Request.Context(), id)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
					Success: false,
					Error:   "unknown user",
				})
				return
			}
			logger.Error("Failed to resolve caller", "user_id", id, "error", err)
			writeError(c, logger, err)
			c.Abort()
			return
		}

		c.Set(actorKey, workflow.ActorOf(user))
		c.Next()
	}
}

// actorFrom returns the actor stored by identityMiddleware
func actorFrom(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}

// statusOf maps the error taxonomy onto HTTP status codes
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindInvalid:
		return http.StatusBadRequest
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the response envelope. Unclassified errors are logged and hidden.
func writeError(c *gin.Context, logger Logger, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)

	msg := err.Error()
	if kind == apperr.KindUnknown {
		logger.Error("Unclassified error", "path", c.Request.URL.Path, "error", err)
		msg = "internal error"
	}

	c.JSON(status, Response{
		Success: false,
		Error:   msg,
		Kind:    kind.String(),
	})
}

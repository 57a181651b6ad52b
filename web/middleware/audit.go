package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/web/service"
	"github.com/taskboard/taskboard/web/session"
)

// AuditMiddleware records successful state-changing requests of the
// authenticated user once the handler has run.
func AuditMiddleware(audit *service.AuditLogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !isMutation(c.Request.Method) || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		user := session.GetLoginUser(c)
		if user == nil {
			return
		}
		details := map[string]any{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}
		if id := c.Param("id"); id != "" {
			details["resource_id"] = id
		}
		if err := audit.LogAction(c.Request.Context(), user.Id, actionFor(c.Request.Method), c.ClientIP(), c.GetHeader("User-Agent"), details); err != nil {
			logger.Warning("failed to log audit action:", err)
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func actionFor(method string) string {
	switch method {
	case http.MethodPost:
		return "CREATE"
	case http.MethodDelete:
		return "DELETE"
	default:
		return "UPDATE"
	}
}

// Package controller holds the HTTP handlers. Each controller registers its
// routes on a gin group and answers with the entity.Msg envelope.
package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/web/service"
	"github.com/taskboard/taskboard/web/session"
)

// BaseController provides the audit hook shared by controllers.
type BaseController struct {
	audit *service.AuditLogService
}

// record writes an audit entry for userID. Failures are logged, never surfaced.
func (a *BaseController) record(c *gin.Context, userID uint, action string, details map[string]any) {
	if a.audit == nil {
		return
	}
	if err := a.audit.LogAction(c.Request.Context(), userID, action, getRemoteIp(c), c.GetHeader("User-Agent"), details); err != nil {
		logger.Warning("audit", action, "failed:", err)
	}
}

func currentUserID(c *gin.Context) uint {
	if user := session.GetLoginUser(c); user != nil {
		return user.Id
	}
	return 0
}

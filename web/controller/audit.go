package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/web/service"
)

// AuditController lets admins browse and prune the audit log.
type AuditController struct {
	auditService *service.AuditLogService
	retention    int
}

func NewAuditController(g *gin.RouterGroup, audit *service.AuditLogService, retentionDays int) *AuditController {
	a := &AuditController{auditService: audit, retention: retentionDays}
	a.initRouter(g)
	return a
}

func (a *AuditController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/audit")
	g.GET("", a.getAuditLogs)
	g.POST("/clean", a.cleanOldLogs)
}

type auditQuery struct {
	UserID uint   `form:"user_id"`
	Action string `form:"action"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

func (a *AuditController) getAuditLogs(c *gin.Context) {
	var q auditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondErr(c, common.Fail(common.ErrValidation, "Invalid query: "+err.Error()))
		return
	}
	if q.Limit == 0 {
		q.Limit = 50
	}
	logs, total, err := a.auditService.GetAuditLogs(c.Request.Context(), q.UserID, q.Action, q.Limit, q.Offset)
	if err != nil {
		respondErr(c, err)
		return
	}
	jsonObj(c, gin.H{"logs": logs, "total": total})
}

// cleanOldLogs prunes entries older than ?days, defaulting to the configured retention.
func (a *AuditController) cleanOldLogs(c *gin.Context) {
	days := a.retention
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondErr(c, common.Fail(common.ErrValidation, "days must be a positive integer"))
			return
		}
		days = n
	}
	removed, err := a.auditService.CleanOldLogs(c.Request.Context(), days)
	if err != nil {
		respondErr(c, err)
		return
	}
	jsonMsgObj(c, http.StatusOK, "Old audit logs removed", gin.H{"removed": removed})
}

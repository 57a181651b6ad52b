package controller

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/web/entity"
	"github.com/taskboard/taskboard/web/middleware"
	"github.com/taskboard/taskboard/web/service"
)

const (
	statusesPath     = "/statuses"
	statusesCacheTTL = 5 * time.Minute
)

// StatusController lists statuses to every user and lets admins edit them.
type StatusController struct {
	statuses *service.StatusService
}

func NewStatusController(g *gin.RouterGroup, statuses *service.StatusService) *StatusController {
	a := &StatusController{statuses: statuses}
	a.initRouter(g)
	return a
}

func (a *StatusController) initRouter(g *gin.RouterGroup) {
	g = g.Group(statusesPath)
	g.GET("", middleware.CacheMiddleware(statusesCacheTTL), a.list)

	admin := g.Group("", middleware.RequireRole(model.RoleAdmin))
	admin.POST("", a.create)
	admin.PUT("/:id", a.update)
	admin.DELETE("/:id", a.delete)
}

func (a *StatusController) list(c *gin.Context) {
	statuses, err := a.statuses.ListStatuses(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	jsonObj(c, statuses)
}

func (a *StatusController) create(c *gin.Context) {
	var form entity.StatusForm
	if !bindJSON(c, &form) {
		return
	}
	status, err := a.statuses.CreateStatus(c.Request.Context(), form.Name)
	if err != nil {
		respondErr(c, err)
		return
	}
	middleware.InvalidateCache(c.Request.Context(), statusesPath)
	jsonMsgObj(c, http.StatusCreated, "Status created", status)
}

func (a *StatusController) update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var form entity.StatusForm
	if !bindJSON(c, &form) {
		return
	}
	status, err := a.statuses.UpdateStatus(c.Request.Context(), id, form.Name)
	if err != nil {
		respondErr(c, err)
		return
	}
	middleware.InvalidateCache(c.Request.Context(), statusesPath)
	jsonObj(c, status)
}

func (a *StatusController) delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := a.statuses.DeleteStatus(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	middleware.InvalidateCache(c.Request.Context(), statusesPath)
	jsonMsg(c, http.StatusOK, "Status deleted")
}

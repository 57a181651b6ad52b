package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/common"
)

const maxLogCount = 1000

// ServerController exposes process diagnostics to admins.
type ServerController struct{}

func NewServerController(g *gin.RouterGroup) *ServerController {
	a := &ServerController{}
	a.initRouter(g)
	return a
}

func (a *ServerController) initRouter(g *gin.RouterGroup) {
	g.GET("/logs", a.getLogs)
}

// getLogs returns the newest buffered log lines. Query: count (default 100), level.
func (a *ServerController) getLogs(c *gin.Context) {
	count := 100
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondErr(c, common.Fail(common.ErrValidation, "count must be a positive integer"))
			return
		}
		count = min(n, maxLogCount)
	}
	jsonObj(c, logger.GetLogs(count, c.DefaultQuery("level", "DEBUG")))
}

package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/web/middleware"
	"github.com/taskboard/taskboard/web/service"
	"github.com/taskboard/taskboard/web/session"
)

// Services bundles what the controllers depend on.
type Services struct {
	Auth      *service.AuthService
	Tokens    *service.TokenService
	Users     *service.UserService
	Tasks     *service.TaskService
	Statuses  *service.StatusService
	Audit     *service.AuditLogService
	Transport session.Transport

	LoginRatePerMin int
	AuditRetention  int
}

// APIController mounts every JSON route on g.
type APIController struct {
	authController   *AuthController
	taskController   *TaskController
	statusController *StatusController
	userController   *UserController
	auditController  *AuditController
	serverController *ServerController
}

func NewAPIController(g *gin.RouterGroup, s *Services) *APIController {
	a := &APIController{}
	a.initRouter(g, s)
	return a
}

func (a *APIController) initRouter(g *gin.RouterGroup, s *Services) {
	a.authController = NewAuthController(g, s.Auth, s.Tokens, s.Transport, s.Audit, s.LoginRatePerMin)

	authed := g.Group("", middleware.AccessAuth(s.Auth, s.Transport), middleware.AuditMiddleware(s.Audit))
	a.taskController = NewTaskController(authed, s.Tasks)
	a.statusController = NewStatusController(authed, s.Statuses)

	admin := authed.Group("", middleware.RequireRole(model.RoleAdmin))
	a.userController = NewUserController(admin, s.Users, s.Audit)
	a.auditController = NewAuditController(admin, s.Audit, s.AuditRetention)
	a.serverController = NewServerController(admin)
}

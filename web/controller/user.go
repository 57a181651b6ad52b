package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/web/entity"
	"github.com/taskboard/taskboard/web/service"
)

// UserController is the admin roster under /users. The group it receives
// must already enforce the admin role.
type UserController struct {
	BaseController
	users *service.UserService
}

func NewUserController(g *gin.RouterGroup, users *service.UserService, audit *service.AuditLogService) *UserController {
	a := &UserController{BaseController: BaseController{audit: audit}, users: users}
	a.initRouter(g)
	return a
}

func (a *UserController) initRouter(g *gin.RouterGroup) {
	g = g.Group("/users")
	g.GET("", a.list)
	g.POST("/invite", a.invite)
	g.PUT("/:id/role", a.updateRole)
	g.PUT("/:id/active", a.setActive)
	g.DELETE("/:id", a.delete)
}

func (a *UserController) list(c *gin.Context) {
	users, err := a.users.ListUsers(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	jsonObj(c, users)
}

func (a *UserController) invite(c *gin.Context) {
	var form entity.InviteForm
	if !bindJSON(c, &form) {
		return
	}
	user, err := a.users.Invite(c.Request.Context(), form.Name, form.Email, form.Role)
	if err != nil {
		respondErr(c, err)
		return
	}
	a.record(c, currentUserID(c), service.ActionInvite, map[string]any{"user_id": user.Id, "role": user.Role})
	jsonMsgObj(c, http.StatusCreated, "Invitation sent", entity.NewUserSummary(user))
}

func (a *UserController) updateRole(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var form entity.RoleForm
	if !bindJSON(c, &form) {
		return
	}
	user, err := a.users.UpdateRole(c.Request.Context(), currentUserID(c), id, form.Role)
	if err != nil {
		respondErr(c, err)
		return
	}
	a.record(c, currentUserID(c), service.ActionRoleChange, map[string]any{"user_id": id, "role": form.Role})
	jsonObj(c, entity.NewUserSummary(user))
}

func (a *UserController) setActive(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var form entity.ActiveForm
	if !bindJSON(c, &form) {
		return
	}
	user, err := a.users.SetActive(c.Request.Context(), currentUserID(c), id, *form.IsActive)
	if err != nil {
		respondErr(c, err)
		return
	}
	a.record(c, currentUserID(c), service.ActionActiveChange, map[string]any{"user_id": id, "is_active": *form.IsActive})
	jsonObj(c, entity.NewUserSummary(user))
}

func (a *UserController) delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := a.users.DeleteUser(c.Request.Context(), currentUserID(c), id); err != nil {
		respondErr(c, err)
		return
	}
	a.record(c, currentUserID(c), service.ActionUserDelete, map[string]any{"user_id": id})
	jsonMsg(c, http.StatusOK, "User deleted")
}

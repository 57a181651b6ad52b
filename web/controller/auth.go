package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/util/metrics"
	"github.com/taskboard/taskboard/web/entity"
	"github.com/taskboard/taskboard/web/middleware"
	"github.com/taskboard/taskboard/web/service"
	"github.com/taskboard/taskboard/web/session"
)

// AuthController exposes the session lifecycle under /auth.
type AuthController struct {
	BaseController
	auth      *service.AuthService
	tokens    *service.TokenService
	transport session.Transport
}

func NewAuthController(g *gin.RouterGroup, auth *service.AuthService, tokens *service.TokenService,
	transport session.Transport, audit *service.AuditLogService, loginRatePerMin int,
) *AuthController {
	a := &AuthController{
		BaseController: BaseController{audit: audit},
		auth:           auth,
		tokens:         tokens,
		transport:      transport,
	}
	a.initRouter(g, loginRatePerMin)
	return a
}

func (a *AuthController) initRouter(g *gin.RouterGroup, loginRatePerMin int) {
	g = g.Group("/auth")
	limit := middleware.RateLimitMiddleware(middleware.DefaultRateLimitConfig(loginRatePerMin))
	access := middleware.AccessAuth(a.auth, a.transport)

	g.POST("/signup", limit, middleware.OptionalAccess(a.auth, a.transport), a.signup)
	g.POST("/login", limit, a.login)
	g.PUT("/reset-password", limit, a.resetPassword)
	g.POST("/refresh", middleware.RefreshAuth(a.auth, a.transport), a.refresh)
	g.POST("/logout", access, a.logout)
	g.GET("/me", access, a.me)
}

func (a *AuthController) signup(c *gin.Context) {
	var form entity.SignupForm
	if !bindJSON(c, &form) {
		return
	}
	user, err := a.auth.Signup(c.Request.Context(), &form, session.GetLoginUser(c))
	metrics.AuthEvents.WithLabelValues("signup", metrics.Outcome(err)).Inc()
	if err != nil {
		respondErr(c, err)
		return
	}
	a.record(c, user.Id, service.ActionSignup, map[string]any{"role": user.Role, "by": currentUserID(c)})
	jsonMsgObj(c, http.StatusCreated, "User created, a temporary password has been sent by email", entity.NewUserSummary(user))
}

func (a *AuthController) login(c *gin.Context) {
	var form entity.LoginForm
	if !bindJSON(c, &form) {
		return
	}
	result, err := a.auth.Login(c.Request.Context(), form.EmailOrUsername, form.Password)
	metrics.AuthEvents.WithLabelValues("login", metrics.Outcome(err)).Inc()
	if err != nil {
		a.record(c, 0, service.ActionLoginFailed, map[string]any{"login": form.EmailOrUsername, "reason": err.Error()})
		respondErr(c, err)
		return
	}
	if err := a.setTokens(c, result.AccessToken, result.RefreshToken); err != nil {
		respondErr(c, err)
		return
	}
	a.record(c, result.User.Id, service.ActionLogin, nil)
	jsonMsgObj(c, http.StatusOK, "Logged in", entity.LoginResult{
		User:         entity.NewUserSummary(result.User),
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

func (a *AuthController) setTokens(c *gin.Context, access, refresh string) error {
	if err := a.transport.Set(c, session.AccessCookie, access, a.tokens.AccessTTL()); err != nil {
		return err
	}
	return a.transport.Set(c, session.RefreshCookie, refresh, a.tokens.RefreshTTL())
}

func (a *AuthController) resetPassword(c *gin.Context) {
	var form entity.ResetPasswordForm
	if !bindJSON(c, &form) {
		return
	}
	user, err := a.auth.ResetPassword(c.Request.Context(), &form)
	metrics.AuthEvents.WithLabelValues("reset_password", metrics.Outcome(err)).Inc()
	if err != nil {
		respondErr(c, err)
		return
	}
	a.record(c, user.Id, service.ActionResetPassword, nil)
	jsonMsg(c, http.StatusOK, "Password updated, you can now log in")
}

func (a *AuthController) refresh(c *gin.Context) {
	user := session.GetLoginUser(c)
	access, err := a.auth.Refresh(user)
	metrics.AuthEvents.WithLabelValues("refresh", metrics.Outcome(err)).Inc()
	if err != nil {
		respondErr(c, err)
		return
	}
	if err := a.transport.Set(c, session.AccessCookie, access, a.tokens.AccessTTL()); err != nil {
		respondErr(c, err)
		return
	}
	jsonMsg(c, http.StatusOK, "Access token refreshed")
}

func (a *AuthController) logout(c *gin.Context) {
	user := session.GetLoginUser(c)
	err := a.auth.Logout(c.Request.Context(), user.Id)
	session.ClearSession(c, a.transport)
	metrics.AuthEvents.WithLabelValues("logout", metrics.Outcome(err)).Inc()
	if err != nil {
		respondErr(c, err)
		return
	}
	a.record(c, user.Id, service.ActionLogout, nil)
	jsonMsg(c, http.StatusOK, "Logged out")
}

func (a *AuthController) me(c *gin.Context) {
	jsonObj(c, entity.NewUserSummary(session.GetLoginUser(c)))
}

// Package middleware contains the gin middleware chain of the API: identity,
// authorization, throttling, CORS, metrics and request logging.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/util/metrics"
	"github.com/taskboard/taskboard/web/entity"
	"github.com/taskboard/taskboard/web/service"
	"github.com/taskboard/taskboard/web/session"
)

func abortWithError(c *gin.Context, err error) {
	msg := entity.NewErrorMsg(err)
	c.AbortWithStatusJSON(msg.StatusCode, msg)
}

// AccessAuth requires a valid access token cookie and attaches its user to the request.
func AccessAuth(auth *service.AuthService, transport session.Transport) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := transport.Read(c, session.AccessCookie)
		if err != nil {
			abortWithError(c, common.Fail(common.ErrUnauthorized, "Missing access token"))
			return
		}
		user, err := auth.AuthenticateAccess(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		session.SetLoginUser(c, user)
		c.Next()
	}
}

// OptionalAccess attaches the user when a valid access token is present and
// lets the request through either way.
func OptionalAccess(auth *service.AuthService, transport session.Transport) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := transport.Read(c, session.AccessCookie); err == nil {
			if user, err := auth.AuthenticateAccess(c.Request.Context(), token); err == nil {
				session.SetLoginUser(c, user)
			}
		}
		c.Next()
	}
}

// RefreshAuth requires a refresh token cookie backed by a live stored session.
func RefreshAuth(auth *service.AuthService, transport session.Transport) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := transport.Read(c, session.RefreshCookie)
		if err != nil {
			metrics.AuthEvents.WithLabelValues("refresh", "failure").Inc()
			abortWithError(c, common.Fail(common.ErrUnauthorized, "Missing refresh token"))
			return
		}
		user, err := auth.AuthenticateRefresh(c.Request.Context(), token)
		if err != nil {
			metrics.AuthEvents.WithLabelValues("refresh", "failure").Inc()
			abortWithError(c, err)
			return
		}
		session.SetLoginUser(c, user)
		c.Next()
	}
}

// NoRoute answers unknown paths with the envelope.
func NoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, entity.Msg{StatusCode: http.StatusNotFound, Message: "Not Found"})
}

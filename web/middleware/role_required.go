package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/web/session"
)

// RequireRole runs after an identity middleware and lets through only users
// holding one of roles.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		user := session.GetLoginUser(c)
		if user == nil {
			abortWithError(c, common.Fail(common.ErrUnauthorized, "Authentication required"))
			return
		}
		if !allowed[user.Role] {
			abortWithError(c, common.Fail(common.ErrForbidden, "You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}

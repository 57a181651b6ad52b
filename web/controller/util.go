package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taskboard/taskboard/logger"
	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/web/entity"
)

// getRemoteIp returns the client address. Forwarded-IP headers count only
// when the peer is a configured trusted proxy.
func getRemoteIp(c *gin.Context) string {
	return c.ClientIP()
}

// jsonMsg answers with an envelope carrying only a message.
func jsonMsg(c *gin.Context, status int, msg string) {
	jsonMsgObj(c, status, msg, nil)
}

// jsonObj answers 200 with data in the envelope.
func jsonObj(c *gin.Context, obj any) {
	jsonMsgObj(c, http.StatusOK, "", obj)
}

func jsonMsgObj(c *gin.Context, status int, msg string, obj any) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	c.JSON(status, entity.Msg{StatusCode: status, Message: msg, Data: obj})
}

// respondErr maps err onto the envelope. Unexpected errors are logged and
// reported without detail.
func respondErr(c *gin.Context, err error) {
	msg := entity.NewErrorMsg(err)
	if !common.IsCoded(err) {
		logger.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(msg.StatusCode, msg)
}

// bindJSON decodes and validates the body, answering 400 on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondErr(c, common.Fail(common.ErrValidation, "Invalid request payload: "+err.Error()))
		return false
	}
	return true
}

// paramID parses the :id path parameter, answering 400 when it is not a positive integer.
func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondErr(c, common.Fail(common.ErrValidation, "Invalid id"))
		return 0, false
	}
	return uint(id), true
}

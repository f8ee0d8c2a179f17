package response

import (
	"net/http"

	"talk-chat/internal/service"
	"talk-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Every failure leaves the API as {"error": "<message>"}.
type ErrorBody struct {
	Error string `json:"error"`
}

// MessageBody is the body of operations that only acknowledge.
type MessageBody struct {
	Message string `json:"message"`
}

// OK writes v with status 200.
func OK(c *gin.Context, v interface{}) {
	c.JSON(http.StatusOK, v)
}

// Message writes {"message": msg} with status 200.
func Message(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, MessageBody{Message: msg})
}

// Error aborts the request with status and {"error": msg}.
func Error(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: msg})
}

func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, msg)
}

// Unauthorized is the reply for a missing, stale or expired credential.
func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

// FromError maps a service error to its status. Anything else is logged and
// answered as an opaque 500.
func FromError(c *gin.Context, err error) {
	if se, ok := service.AsError(err); ok {
		if se.Err != nil {
			_ = c.Error(se.Err)
		}
		if se.Kind == service.KindUpstream {
			logger.Error("upstream failure",
				zap.String("path", c.Request.URL.Path),
				zap.String("message", se.Message),
				zap.Error(se.Err),
			)
		}
		Error(c, se.Kind.Status(), se.Message)
		return
	}

	_ = c.Error(err)
	logger.Error("unhandled error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	Error(c, http.StatusInternalServerError, "internal server error")
}

package jwt

import (
	"talk-chat/pkg/logger"
	"talk-chat/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextUserIDKey is where RequireTicket stores the authenticated user id.
const ContextUserIDKey = "ticket_user_id"

// RequireTicket authenticates the request from the ?ticket= query parameter.
func (s *TicketService) RequireTicket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := s.Validate(c.Query("ticket"))
		if err != nil {
			logger.Debug("websocket ticket rejected", zap.Error(err), zap.String("ip", c.ClientIP()))
			response.Unauthorized(c)
			return
		}
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the id stored by RequireTicket.
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

package handler

import (
	"context"
	"net/http"
	"time"

	"talk-chat/config"
	"talk-chat/pkg/logger"
	"talk-chat/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps collects what the router needs. Realtime and Health may be nil.
type Deps struct {
	Config   *config.Config
	Auth     AuthAPI
	Users    UserAPI
	Chats    ChatAPI
	Upload   UploadAPI
	Sessions SessionResolver
	Tickets  TicketIssuer
	Limiter  *RateLimiter

	// Realtime is the websocket chain: ticket check followed by the upgrade.
	Realtime []gin.HandlerFunc
	Health   func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(logger.Recovery())
	router.Use(logger.RequestLogger())
	router.Use(metrics.GinMiddleware())
	router.Use(CORS(d.Config.CORS))
	router.Use(BodyLimit(MaxBodyBytes))

	authH := NewAuthHandler(d.Auth)
	userH := NewUserHandler(d.Users)
	chatH := NewChatHandler(d.Chats, d.Tickets)
	uploadH := NewUploadHandler(d.Upload)

	session := RequireSession(d.Sessions)
	limit := func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		limit = d.Limiter.Middleware()
	}

	router.GET("/health", health(d.Health))
	router.GET("/metrics", metrics.Handler())
	if len(d.Realtime) > 0 {
		router.GET("/ws", d.Realtime...)
	}

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth", limit)
		{
			auth.POST("/send-code", authH.SendCode)
			auth.POST("/register", authH.Register)
			auth.POST("/login", authH.Login)
		}

		users := v1.Group("/users", session)
		{
			users.GET("", userH.List)
			users.GET("/me", userH.Me)
			users.PUT("/me", userH.UpdateProfile)
			users.GET("/search", userH.Search)
			users.POST("/ban", userH.Ban)
			users.POST("/unban", userH.Unban)
			users.POST("/set-role", userH.SetRole)
		}

		chats := v1.Group("/chats", session)
		{
			chats.GET("", chatH.List)
			chats.POST("", chatH.Create)
			chats.POST("/send", chatH.Send)
			chats.GET("/messages", chatH.Messages)
			chats.GET("/contacts", chatH.Contacts)
			chats.POST("/contacts", chatH.AddContact)
			chats.GET("/ws-ticket", chatH.Ticket)
		}

		v1.POST("/upload/avatar", session, uploadH.Avatar)
	}

	fn := router.Group("/fn")
	{
		fn.Any("/auth", limit, authActions(authH).dispatch)
		fn.Any("/users", session, userActions(userH).dispatch)
		fn.Any("/chats", session, chatActions(chatH).dispatch)
		fn.Any("/upload", postOnly, session, uploadH.Avatar)
	}

	return router
}

func health(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if check != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				status, code = "db-down", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status, "time": time.Now().UTC().Format(time.RFC3339)})
	}
}

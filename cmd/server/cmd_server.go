package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"talk-chat/config"
	"talk-chat/internal/handler"
	"talk-chat/internal/model"
	"talk-chat/internal/repository"
	"talk-chat/internal/service"
	dbPkg "talk-chat/pkg/db"
	"talk-chat/pkg/jwt"
	"talk-chat/pkg/logger"
	"talk-chat/pkg/mail"
	redisPkg "talk-chat/pkg/redis"
	"talk-chat/pkg/storage"
	"talk-chat/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serverCommand = &cobra.Command{
	Use:   "server",
	Short: "run the HTTP API and websocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverCommandImpl()
	},
}

func serverCommandImpl() error {
	// 1. config and logging
	cfg := config.LoadConfig(configPath)
	log, err := logger.InitLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log.Info("starting talk chat",
		zap.String("port", cfg.Server.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("db_host", cfg.Database.Host),
		zap.String("db_name", cfg.Database.Database),
		zap.String("mail_transport", cfg.Mail.Transport),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.String("log_level", cfg.Log.Level),
	)
	if cfg.Session.TicketSecret == "change-me" {
		log.Warn("TICKET_SECRET is the built-in default; set it before exposing the server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. database
	gdb, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := dbPkg.CloseDB(); err != nil {
			log.Error("close database", zap.Error(err))
		}
	}()
	if err := dbPkg.AutoMigrate(gdb, model.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// 3. collaborators
	var mailer service.Mailer
	switch {
	case cfg.Mail.Transport == "kafka":
		outbox := mail.NewOutbox(cfg.Kafka)
		defer func() { _ = outbox.Close() }()
		mailer = outbox
	case cfg.Mail.MailEnabled():
		mailer = mail.NewSMTPSender(cfg.Mail)
	default:
		log.Warn("no mail transport configured: verification codes are returned in API responses, do not run like this in production")
	}

	blobs, err := storage.NewS3Store(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init blob storage: %w", err)
	}

	var (
		presence service.Presence
		tracker  websocket.PresenceTracker
		sweeper  *redisPkg.Presence
	)
	if cfg.Redis.Enabled {
		rdb, err := redisPkg.NewClient(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		sweeper = redisPkg.NewPresence(rdb)
		presence, tracker = sweeper, sweeper
	}

	// 4. services
	tx := dbPkg.NewTxManager(gdb)
	users := repository.NewUserRepository(gdb)
	chats := repository.NewChatRepository(gdb)
	hub := websocket.NewManager()

	sessionSvc := service.NewSessionService(repository.NewSessionRepository(gdb), cfg.Session.TTL)
	authSvc := service.NewAuthService(users, repository.NewVerificationRepository(gdb), tx, sessionSvc, mailer, cfg.Session.CodeTTL)
	userSvc := service.NewUserService(users)
	chatSvc := service.NewChatService(users, chats, repository.NewContactRepository(gdb), tx, hub, presence)
	uploadSvc := service.NewUploadService(users, blobs)
	tickets := jwt.NewTicketService(cfg.Session)

	// 5. router
	gin.SetMode(cfg.Server.Mode)
	limiter := handler.NewRateLimiter(cfg.RateLimit, 2*time.Minute)
	defer limiter.Stop()

	router := handler.NewRouter(handler.Deps{
		Config:   cfg,
		Auth:     authSvc,
		Users:    userSvc,
		Chats:    chatSvc,
		Upload:   uploadSvc,
		Sessions: sessionSvc,
		Tickets:  tickets,
		Limiter:  limiter,
		Realtime: []gin.HandlerFunc{
			tickets.RequireTicket(),
			websocket.NewHandler(hub, tracker, cfg.WebSocket).Serve,
		},
		Health: dbPkg.HealthCheck,
	})

	// 6. serve until signalled
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if sweeper != nil {
		g.Go(func() error {
			sweepPresence(gctx, sweeper)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func sweepPresence(ctx context.Context, p *redisPkg.Presence) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Sweep(ctx)
			if err != nil {
				logger.Warn("presence sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("presence sweep", zap.Int("removed", n))
			}
		}
	}
}

func init() {
	rootCommand.AddCommand(serverCommand)
}

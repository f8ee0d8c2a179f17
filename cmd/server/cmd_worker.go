package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"talk-chat/config"
	"talk-chat/internal/worker"
	"talk-chat/pkg/logger"
	"talk-chat/pkg/mail"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var workerCommand = &cobra.Command{
	Use:   "worker",
	Short: "deliver queued verification mails from Kafka over SMTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return workerCommandImpl()
	},
}

func workerCommandImpl() error {
	cfg := config.LoadConfig(configPath)
	log, err := logger.InitLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	smtpCfg := cfg.Mail
	smtpCfg.Transport = "smtp"
	if !smtpCfg.MailEnabled() {
		return errors.New("worker needs SMTP_HOST, SMTP_USER and SMTP_PASSWORD")
	}

	w := worker.NewWorker(logger.WithField("component", "mail-worker"), worker.NewKafkaReader(cfg.Kafka), mail.NewSMTPSender(smtpCfg))
	w.Start()
	log.Info("mail worker running",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("group", cfg.Kafka.Group),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return w.Stop()
}

func init() {
	rootCommand.AddCommand(workerCommand)
}

package main

import (
	"fmt"

	"talk-chat/config"
	"talk-chat/internal/model"
	dbPkg "talk-chat/pkg/db"
	"talk-chat/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCommand = &cobra.Command{
	Use:   "migrate",
	Short: "create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return migrateCommandImpl()
	},
}

func migrateCommandImpl() error {
	cfg := config.LoadConfig(configPath)
	log, err := logger.InitLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gdb, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = dbPkg.CloseDB() }()

	if err := dbPkg.AutoMigrate(gdb, model.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("schema migrated", zap.String("driver", cfg.Database.Driver), zap.String("database", cfg.Database.Database))
	return nil
}

func init() {
	rootCommand.AddCommand(migrateCommand)
}

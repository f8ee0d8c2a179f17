package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"talk-chat/config"
	dbPkg "talk-chat/pkg/db"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Child tables first.
var tables = []string{
	"messages",
	"chat_participants",
	"chats",
	"contacts",
	"sessions",
	"verification_codes",
	"users",
}

var (
	configPath string
	assumeYes  bool
)

var rootCommand = &cobra.Command{
	Use:   "reset_db",
	Short: "delete every row of every table, keeping the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCommand.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	rootCommand.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadConfig(configPath)

	gdb, err := dbPkg.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = dbPkg.CloseDB() }()

	fmt.Printf("Connected to %s database %q\n", cfg.Database.Driver, cfg.Database.Database)

	if !assumeYes {
		fmt.Printf("\nWARNING: this clears ALL DATA in %s\n", strings.Join(tables, ", "))
		fmt.Print("Type 'YES' to confirm: ")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(answer) != "YES" {
			fmt.Println("Operation cancelled")
			return nil
		}
	}

	if cfg.Database.Driver == "mysql" {
		err = resetMySQL(gdb)
	} else {
		err = resetPostgres(gdb)
	}
	if err != nil {
		return err
	}

	fmt.Println("\nDatabase reset completed, ids restart at 1")
	return nil
}

func resetPostgres(db *gorm.DB) error {
	stmt := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE"
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	for _, t := range tables {
		fmt.Printf("Cleared %s\n", t)
	}
	return nil
}

func resetMySQL(db *gorm.DB) error {
	// TRUNCATE needs FK checks off, and the setting is per connection.
	return db.Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SET FOREIGN_KEY_CHECKS=0").Error; err != nil {
			return err
		}
		defer conn.Exec("SET FOREIGN_KEY_CHECKS=1")

		for _, t := range tables {
			fmt.Printf("Clearing %s... ", t)
			if err := conn.Exec("TRUNCATE TABLE " + t).Error; err != nil {
				fmt.Printf("failed: %v\n", err)
				return fmt.Errorf("truncate %s: %w", t, err)
			}
			fmt.Println("ok")
		}
		return nil
	})
}

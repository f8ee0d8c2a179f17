package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCommand = &cobra.Command{
	Use:           "talkchat",
	Short:         "Talk Chat messaging backend",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serverCommandImpl()
	},
}

func init() {
	rootCommand.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default $CONFIG_FILE or config/config.yaml)")
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

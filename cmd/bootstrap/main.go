// Package main 运维命令入口：表结构迁移与任务清理
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"adventure-story-api/internal/config"
	"adventure-story-api/pkg/logger"
)

// Version 构建时注入
var Version = "dev"

func newRootCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:           "bootstrap",
		Short:         "Maintenance commands for the adventure story API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (defaults to $CONFIG_DIR or ./configs)")

	load := func() (*config.Config, error) {
		if configDir != "" {
			return config.LoadFromDir(configDir)
		}
		return config.Load()
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newMigrateCmd(load))
	cmd.AddCommand(newSweepCmd(load))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bootstrap %s\n", Version)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func main() {
	_ = godotenv.Load()
	logger.Init("info", "text")
	os.Exit(execute(newRootCmd()))
}

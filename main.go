package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// @title Todo API
// @version 1.0
// @description Create, list, update, complete and delete todos

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath /api

var (
	version    = "dev"
	configPath string
	addr       string
	backend    string
)

var rootCmd = &cobra.Command{
	Use:          "todo-app",
	Short:        "To-do list API server",
	Version:      version,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the todo API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		if addr != "" {
			cfg.Server.Addr = addr
		}
		if backend != "" {
			cfg.Store.Backend = backend
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		gin.SetMode(gin.ReleaseMode)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "config file path")
	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides config")
	serveCmd.Flags().StringVar(&backend, "store", "", "store backend (mongo, dynamodb, memory)")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

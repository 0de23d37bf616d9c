// Package main implements the orderflow binary. One binary serves the HTTP
// API, runs task workers, drives the periodic scheduler, or does all three.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/orderflow/orderflow/internal/config"
	"github.com/orderflow/orderflow/internal/platform/logger"
)

// role selects which parts of the application a process runs.
type role int

const (
	roleServer role = 1 << iota
	roleWorker
	roleScheduler

	roleAll = roleServer | roleWorker | roleScheduler
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "orderflow",
		Short:        "Asynchronous order fulfillment",
		Long:         "orderflow accepts orders over HTTP and fulfills them on Redis-backed task workers.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")

	root.AddCommand(
		newRunCommand("server", "Serve the HTTP API", roleServer, &configFile),
		newRunCommand("worker", "Consume and execute tasks", roleWorker, &configFile),
		newRunCommand("scheduler", "Enqueue periodic tasks", roleScheduler, &configFile),
		newRunCommand("all", "Run the API, workers and scheduler in one process", roleAll, &configFile),
	)
	return root
}

func newRunCommand(use, short string, roles role, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configFile, roles)
		},
	}
}

// run loads configuration, builds the application and blocks until a
// signal arrives or a component fails.
func run(ctx context.Context, configFile string, roles role) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"redis_addr", cfg.Redis.Addr,
		"queues", cfg.Task.Queues)

	app, err := newApplication(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.run(ctx, roles)
}

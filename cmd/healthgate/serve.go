package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/healthgate"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve <config.toml>",
		Short: "Run the supervisor daemon",
		Long: `Load a TOML config, register every service, and run the admin HTTP
server until SIGINT or SIGTERM. With server.autostart = true the whole
stack is brought up in dependency order before the server accepts
requests; on shutdown everything is stopped in reverse order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(args[0])
		},
	}
}

func runServe(configPath string) error {
	cfg, err := healthgate.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	healthgate.SetupLogging(cfg.LogLevel)

	sup := healthgate.New()
	if err := sup.Load(cfg.Services); err != nil {
		return fmt.Errorf("register services: %w", err)
	}
	if cfg.Journal != nil && cfg.Journal.Path != "" {
		if err := sup.UseJournal(cfg.Journal.Path); err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
	}

	metricsEnabled := cfg.Metrics != nil && cfg.Metrics.Enabled
	if metricsEnabled {
		if err := healthgate.RegisterMetricsDefault(); err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		if cfg.Metrics.Listen != "" {
			go func() {
				if err := healthgate.ServeMetrics(cfg.Metrics.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("metrics server stopped", "error", err)
				}
			}()
		}
	}

	listen := "127.0.0.1:8080"
	basePath := "/api"
	var stopWait time.Duration
	autostart := false
	if cfg.Server != nil {
		if cfg.Server.Listen != "" {
			listen = cfg.Server.Listen
		}
		if cfg.Server.BasePath != "" {
			basePath = cfg.Server.BasePath
		}
		stopWait = cfg.Server.StopWait
		autostart = cfg.Server.Autostart
	}

	rep := healthgate.NewReporter(sup, cfg.Report.DiskPath)

	if autostart {
		slog.Info("autostarting services", "count", len(cfg.Services))
		if err := sup.StartAll(context.Background()); err != nil {
			sup.StopAll(stopWait)
			return fmt.Errorf("autostart: %w", err)
		}
	}

	srv := healthgate.NewHTTPServer(listen, basePath, sup, rep, metricsEnabled)
	slog.Info("admin server listening", "addr", listen, "base_path", basePath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	sup.StopAll(stopWait)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
	}
	return nil
}

package main

import (
	"context"
	"deployd/internal/api"
	"deployd/internal/auth"
	"deployd/internal/classifier"
	"deployd/internal/command"
	"deployd/internal/config"
	"deployd/internal/health"
	"deployd/internal/inventory"
	"deployd/internal/job"
	"deployd/internal/notify"
	"deployd/internal/observability"
	"deployd/internal/orchestrator"
	"deployd/internal/template"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port      string
		configDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadServiceConfig()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("config-dir") {
				cfg.ConfigDir = configDir
				if os.Getenv("USERS_FILE") == "" {
					cfg.UsersFile = filepath.Join(configDir, "users.json")
				}
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "8080", "API listen port (overrides PORT)")
	cmd.Flags().StringVar(&configDir, "config-dir", "./config", "configuration directory (overrides CONFIG_DIR)")
	return cmd
}

func serve(ctx context.Context, cfg *config.ServiceConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}

	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.HistoryFile), 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}
	registry := job.NewRegistry(cfg.HistoryFile)
	if _, err := registry.Load(); err != nil {
		return err
	}

	checker := health.NewChecker(
		health.DirReadable("config", cfg.ConfigDir),
		health.DirWritable("history", filepath.Dir(cfg.HistoryFile)),
		health.ToolsOnPath("tools", cfg.Tools.SQLClient, cfg.Tools.AnsiblePlaybook, cfg.Tools.Ansible, cfg.Tools.Kubectl),
	)

	store := inventory.NewStore(cfg.ConfigDir)
	orchCfg := orchestrator.Config{
		Runner:        command.NewExecRunner(),
		Inventory:     store,
		ArtifactDir:   cfg.ArtifactDir,
		SQLDir:        cfg.SQLDir,
		WorkDir:       cfg.WorkDir,
		Tools:         cfg.Tools,
		MaxConcurrent: cfg.MaxConcurrentJobs,
		Metrics:       metrics,
	}

	if cfg.Tools.DockerExec {
		docker, err := command.NewDockerExecutor()
		if err != nil {
			return err
		}
		defer docker.Close()
		orchCfg.Docker = docker
		checker.Add(health.Dependency("docker", docker))
		slog.Info("Container exec enabled for helm upgrades")
	}

	notifier := notify.NewDispatcher(notify.LoadConfigFromEnv(), metrics)
	orchCfg.Notifier = notifier

	templates := template.NewLoader(filepath.Join(cfg.ConfigDir, "templates"))
	orchCfg.Templates = templates

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := templates.Watch(watchCtx); err != nil {
			slog.Warn("Template watcher stopped", "error", err)
		}
	}()

	orch := orchestrator.New(registry, orchCfg)

	tokens, generated, err := auth.NewManager(cfg.JWTSecret, cfg.TokenExpiry)
	if err != nil {
		return err
	}
	if generated {
		slog.Warn("No JWT_SECRET_FILE configured - using a random secret, tokens will not survive a restart")
	}

	router := api.NewRouter(api.RouterConfig{
		Orchestrator:  orch,
		Templates:     templates,
		Inventory:     store,
		Classifier:    classifier.NewPatternClassifier(),
		Tokens:        tokens,
		Users:         auth.NewUserStore(cfg.UsersFile),
		LoginLimiter:  auth.NewLoginLimiter(12*time.Second, 5),
		Callbacks:     notifier,
		Metrics:       metrics,
		HealthChecker: checker,
	})

	apiServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 2)

	go func() {
		slog.Info("Starting API server", "port", cfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	go func() {
		slog.Info("Starting metrics server", "port", cfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	shutdownServers := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed", "error", err)
		runErr = err
	case <-ctx.Done():
		slog.Info("Context cancelled")
	}

	// Phase 1: fail readiness so load balancers stop sending traffic
	checker.SetShuttingDown()
	if runErr == nil && cfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", cfg.ShutdownDrainWait)
		time.Sleep(cfg.ShutdownDrainWait)
	}

	// Phase 2: stop accepting requests, finish in-flight ones
	slog.Info("Starting graceful shutdown")
	shutdownServers(25 * time.Second)
	stopWatch()

	// Phase 3: let running deployments finish
	jobCtx, jobCancel := context.WithTimeout(context.Background(), cfg.ShutdownJobWait)
	defer jobCancel()
	if err := orch.Wait(jobCtx); err != nil {
		slog.Warn("Deployments still running at shutdown", "error", err)
	}

	// Phase 4: final history snapshot
	if err := registry.Flush(); err != nil {
		slog.Error("Failed to write history snapshot", "error", err)
	}

	// Phase 5: drain callbacks
	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer notifyCancel()
	if err := notifier.Close(notifyCtx); err != nil {
		slog.Warn("Notifier shutdown error", "error", err)
	}
	stats := notifier.Stats()
	slog.Info("Callback stats",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)

	slog.Info("Shutdown complete")
	return runErr
}

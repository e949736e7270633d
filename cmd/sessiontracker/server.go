package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/sessiontracker/internal/config"
	"github.com/goodtune/sessiontracker/internal/metrics"
	"github.com/goodtune/sessiontracker/internal/rest"
	"github.com/goodtune/sessiontracker/internal/session"
	"github.com/goodtune/sessiontracker/internal/systemd"
	"github.com/goodtune/sessiontracker/internal/users"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the sessiontracker server",
	Long:  `Start the sessiontracker REST API and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger, rotator := setupLogger(cfg.Logging, os.Stdout)
	log.Logger = logger
	if rotator != nil {
		defer rotator.Close()
	}

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting sessiontracker")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	event := logger.Info().Str("type", cfg.Storage.Type)
	if cfg.Storage.Type == "redis" {
		event = event.Str("redis_host", cfg.Storage.Redis.Host).Int("redis_port", cfg.Storage.Redis.Port)
	} else {
		event = event.Str("path", cfg.Storage.Path)
	}
	event.Msg("Storage initialized")

	// Initialize user checker
	checker := users.NewChecker(store.Users(), users.Config{
		CacheSize: cfg.Users.CacheSize,
		CacheTTL:  config.ParseDuration(cfg.Users.CacheTTL, 5*time.Minute),
	}, logger)

	// Initialize session service
	service := session.NewService(store.Sessions(), checker, session.Config{
		DailyBudget:    cfg.Sessions.Budget(),
		RequireEndTime: cfg.Sessions.RequireEndTime,
		ClampBudget:    cfg.Sessions.ClampBudget,
	}, logger)

	logger.Info().
		Dur("daily_budget", cfg.Sessions.Budget()).
		Bool("require_end_time", cfg.Sessions.RequireEndTime).
		Bool("clamp_budget", cfg.Sessions.ClampBudget).
		Msg("Session service initialized")

	// Initialize API server
	shutdownTimeout := config.ParseDuration(cfg.Server.ShutdownTimeout, 10*time.Second)
	apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
	apiServer := rest.NewServer(rest.Config{
		ListenAddr:      apiAddr,
		ReadTimeout:     config.ParseDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout:    config.ParseDuration(cfg.Server.WriteTimeout, 15*time.Second),
		ShutdownTimeout: shutdownTimeout,
		RateLimit:       cfg.API.RateLimit,
		RateLimitWindow: config.ParseDuration(cfg.API.RateLimitWindow, time.Minute),
		AllowedOrigins:  cfg.API.AllowedOrigins,
		StorageType:     cfg.Storage.Type,
	}, service, checker, logger)

	if sdListeners.API != nil {
		apiServer.SetListener(sdListeners.API)
	}
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// Initialize Metrics Server; port 0 disables it
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	logger.Info().Msg("sessiontracker startup complete")

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go systemd.RunWatchdog(ctx, logger)

	// Wait for signals (shutdown or log reopen)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")
			break
		}
		if rotator == nil {
			continue
		}
		logger.Info().Msg("SIGHUP received, rotating log file")
		if err := rotator.Rotate(); err != nil {
			logger.Error().Err(err).Msg("Failed to rotate log file")
		}
	}
	signal.Stop(sigChan)

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}
	cancel()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	if metricsServer != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := metricsServer.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
		stopCancel()
	}

	logger.Info().Msg("sessiontracker stopped")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/api"
	"github.com/analog-buddy/iotdash/internal/dashboard"
	"github.com/analog-buddy/iotdash/internal/ingest"
	"github.com/analog-buddy/iotdash/internal/logging"
	"github.com/analog-buddy/iotdash/internal/metrics"
	"github.com/analog-buddy/iotdash/internal/telemetry"
)

const dashboardQueue = 256

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and the telemetry API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}
}

func runServe(parent context.Context, flags *rootFlags) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting iotdash",
		zap.String("version", version),
		zap.String("logFile", logger.FilePath()))

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go rotateOnHangup(ctx, hup, logger)

	m := metrics.New()
	hub := telemetry.NewHub(cfg.Hub, logger.Logger, m)
	ingestor := ingest.New(hub, m, logger.Logger)

	// The server-wide session backs the device endpoints. Viewer pages get
	// sessions of their own.
	session, err := dashboard.NewSession(cfg.Dashboard, nil, logger.Logger,
		dashboard.WithDiscoveryHook(func(deviceID string) {
			m.DeviceDiscovered()
			logger.Info("device discovered", zap.String("device", deviceID))
		}))
	if err != nil {
		hub.Stop()
		return fmt.Errorf("failed to create dashboard session: %w", err)
	}
	loop := dashboard.NewLoop(session, dashboardQueue)

	followErr := make(chan error, 1)
	go func() {
		followErr <- loop.Follow(ctx, hub.Attach(ctx, ""))
	}()

	if cfg.Upstream.URL != "" {
		upstream := ingest.NewUpstream(cfg.Upstream, ingestor, logger.Logger)
		go func() {
			if err := upstream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("upstream stopped", zap.Error(err))
			}
		}()
	}

	server := api.NewServer(cfg, hub, ingestor, loop, logger.Logger,
		api.WithVersion(version),
		api.WithMetrics(m))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.Server.Addr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
		if runErr != nil {
			logger.Error("http server failed", zap.Error(runErr))
		}
	case runErr = <-followErr:
		logger.Error("dashboard loop stopped", zap.Error(runErr))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping HTTP server", zap.Error(err))
	}
	hub.Stop()
	loop.Close()

	logger.Info("iotdash shutdown complete")
	return runErr
}

// rotateOnHangup starts a new log file on every signal until ctx is done.
func rotateOnHangup(ctx context.Context, hup <-chan os.Signal, logger *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := logger.Rotate(); err != nil {
				logger.Error("log rotation failed", zap.Error(err))
				continue
			}
			logger.Info("log file rotated", zap.String("logFile", logger.FilePath()))
		}
	}
}

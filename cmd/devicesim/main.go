// Command devicesim posts simulated sensor readings to an iotdash server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/config"
	"github.com/analog-buddy/iotdash/internal/logging"
	"github.com/analog-buddy/iotdash/internal/simulator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		target     string
		intervalMs int
		devices    []string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:          "devicesim",
		Short:        "Simulate IoT sensor boards posting to iotdash",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := simulator.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if target != "" {
				cfg.Target.BaseURL = target
			}
			if intervalMs > 0 {
				cfg.IntervalMs = intervalMs
			}
			if len(devices) > 0 {
				cfg.Devices = cfg.Devices[:0]
				for _, id := range devices {
					cfg.Devices = append(cfg.Devices, simulator.DefaultDevice(id))
				}
			}

			logCfg := config.Default().Logging
			logCfg.Level = logLevel
			logger, err := logging.New(logCfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sim := simulator.New(cfg, logger.Logger)
			if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			sent, failed := sim.Stats()
			logger.Info("devicesim finished", zap.Int64("sent", sent), zap.Int64("failed", failed))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "path to a YAML simulator configuration")
	f.StringVar(&target, "target", "", "base URL of the iotdash server")
	f.IntVar(&intervalMs, "interval-ms", 0, "posting interval in milliseconds")
	f.StringSliceVar(&devices, "device", nil, "device id to simulate, repeatable")
	f.StringVar(&logLevel, "log-level", "info", "log level")
	return cmd
}

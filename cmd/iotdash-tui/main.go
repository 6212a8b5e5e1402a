// Command iotdash-tui renders an iotdash server's telemetry in the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/config"
	"github.com/analog-buddy/iotdash/internal/logging"
	"github.com/analog-buddy/iotdash/internal/tui"
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
		server     string
		device     string
		source     string
		logFile    string
		altScreen  bool
	)

	cmd := &cobra.Command{
		Use:          "iotdash-tui",
		Short:        "Terminal dashboard for an iotdash server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if source != "" {
				cfg.Dashboard.ProportionSource = source
				if err := config.Validate(cfg); err != nil {
					return err
				}
			}

			// The terminal belongs to the dashboard, so logs only go to a file.
			logger := zap.NewNop()
			if logFile != "" {
				cfg.Logging.File = logFile
				l, err := logging.New(cfg.Logging)
				if err != nil {
					return err
				}
				defer func() { _ = l.Close() }()
				logger = l.Logger
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			feedCfg := cfg.Upstream
			feedCfg.URL = streamURL(server, device)
			feed := tui.NewFeed(ctx, feedCfg, logger)
			go feed.Run(ctx)

			model, err := tui.NewModel(cfg.Dashboard, feed, logger)
			if err != nil {
				return err
			}

			opts := []tea.ProgramOption{tea.WithContext(ctx)}
			if altScreen {
				opts = append(opts, tea.WithAltScreen())
			}
			_, err = tea.NewProgram(model, opts...).Run()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&configPath, "config", "", "path to an iotdash YAML configuration")
	f.StringVar(&server, "server", "ws://localhost:8000", "iotdash server, ws:// or wss://")
	f.StringVar(&device, "device", "", "follow only this device")
	f.StringVar(&source, "proportion-source", "", "what the proportion bars follow: message or selected")
	f.StringVar(&logFile, "log-file", "", "write logs to this rotating file")
	f.BoolVar(&altScreen, "alt-screen", true, "use the terminal alternate screen buffer")
	return cmd
}

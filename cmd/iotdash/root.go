package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/analog-buddy/iotdash/internal/config"
)

// version is overwritten by ldflags at release time.
var version = "dev"

type rootFlags struct {
	configPath string
	addr       string
	upstream   string
	logLevel   string
	logFile    string
	source     string
	capacity   int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	serve := newServeCmd(flags)

	root := &cobra.Command{
		Use:   "iotdash",
		Short: "Live IoT telemetry dashboard",
		Long: `iotdash receives temperature, humidity and brightness readings from IoT
devices and serves a live dashboard of them: a trend chart of the selected
device and proportion gauges of the latest reading.`,
		Example: `  Serve on the default port:            $ iotdash
  Relay an IoT hub bridge:              $ iotdash serve --upstream ws://bridge:9000/messages
  Use a configuration file:             $ iotdash serve --config ./iotdash.yaml`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to a YAML configuration file (default ./"+config.DefaultFile+" when present)")
	pf.StringVar(&flags.addr, "addr", "", "HTTP listen address")
	pf.StringVar(&flags.upstream, "upstream", "", "WebSocket URL of an upstream telemetry feed")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFile, "log-file", "", "also write logs to this rotating file")
	pf.StringVar(&flags.source, "proportion-source", "", "what the proportion gauges follow: message or selected")
	pf.IntVar(&flags.capacity, "buffer-capacity", 0, "readings kept per device")

	root.CompletionOptions.HiddenDefaultCmd = true
	root.AddCommand(serve, newVersionCmd())
	return root
}

// loadConfig layers flags over defaults, the YAML file and the environment.
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.upstream != "" {
		cfg.Upstream.URL = f.upstream
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFile != "" {
		cfg.Logging.File = f.logFile
	}
	if f.source != "" {
		cfg.Dashboard.ProportionSource = f.source
	}
	if f.capacity != 0 {
		cfg.Dashboard.BufferCapacity = f.capacity
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "iotdash %s\n", version)
		},
	}
}

package simulator

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the complete configuration for the device simulator.
type Config struct {
	Target     TargetConfig   `yaml:"target"`
	IntervalMs int            `yaml:"intervalMs"`
	Seed       uint64         `yaml:"seed"`
	Devices    []DeviceConfig `yaml:"devices"`
}

// TargetConfig holds the iotdash server to post to.
type TargetConfig struct {
	BaseURL    string `yaml:"baseUrl"`
	TimeoutSec int    `yaml:"timeoutSec"`
}

// DeviceConfig describes one simulated board.
type DeviceConfig struct {
	ID          string      `yaml:"id"`
	IntervalMs  int         `yaml:"intervalMs"` // 0 uses the global interval
	Temperature ChannelWalk `yaml:"temperature"`
	Humidity    ChannelWalk `yaml:"humidity"`
	Brightness  ChannelWalk `yaml:"brightness"`
}

// ChannelWalk is a bounded random walk for one channel.
type ChannelWalk struct {
	Start           float64 `yaml:"start"`
	Step            float64 `yaml:"step"`
	Min             float64 `yaml:"min"`
	Max             float64 `yaml:"max"`
	DropProbability float64 `yaml:"dropProbability"` // chance the reading is left out
	Decimals        int     `yaml:"decimals"`
}

// DefaultConfig returns the default configuration: one board posting every
// two seconds to a local server.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			BaseURL:    "http://localhost:8000",
			TimeoutSec: 5,
		},
		IntervalMs: 2000,
		Seed:       1,
		Devices: []DeviceConfig{
			DefaultDevice("esp32-1"),
		},
	}
}

// DefaultDevice returns a board with indoor-like readings.
func DefaultDevice(id string) DeviceConfig {
	return DeviceConfig{
		ID:          id,
		Temperature: ChannelWalk{Start: 22, Step: 0.4, Min: -10, Max: 45, Decimals: 1},
		Humidity:    ChannelWalk{Start: 45, Step: 1.5, Min: 0, Max: 100, Decimals: 1},
		Brightness:  ChannelWalk{Start: 2000, Step: 120, Min: 0, Max: 4095},
	}
}

// Interval returns the global posting interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

// Timeout returns the HTTP client timeout.
func (t TargetConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSec) * time.Second
}

// LoadConfig loads the defaults, then path if set, then environment overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load simulator config from %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	// A file that lists devices replaces the default board.
	cfg.Devices = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	if len(cfg.Devices) == 0 {
		cfg.Devices = DefaultConfig().Devices
	}

	// Channels a device leaves out walk like the default board.
	for i := range cfg.Devices {
		dev := &cfg.Devices[i]
		def := DefaultDevice(dev.ID)
		for _, pair := range []struct{ walk, def *ChannelWalk }{
			{&dev.Temperature, &def.Temperature},
			{&dev.Humidity, &def.Humidity},
			{&dev.Brightness, &def.Brightness},
		} {
			if *pair.walk == (ChannelWalk{}) {
				*pair.walk = *pair.def
			}
		}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) error {
	if target := os.Getenv("IOTDASH_SIM_TARGET"); target != "" {
		cfg.Target.BaseURL = target
	}

	if interval := os.Getenv("IOTDASH_SIM_INTERVAL_MS"); interval != "" {
		ms, err := strconv.Atoi(interval)
		if err != nil {
			return fmt.Errorf("IOTDASH_SIM_INTERVAL_MS: %w", err)
		}
		cfg.IntervalMs = ms
	}

	if ids := os.Getenv("IOTDASH_SIM_DEVICES"); ids != "" {
		cfg.Devices = nil
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.Devices = append(cfg.Devices, DefaultDevice(id))
			}
		}
	}
	return nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if !strings.HasPrefix(cfg.Target.BaseURL, "http://") && !strings.HasPrefix(cfg.Target.BaseURL, "https://") {
		return fmt.Errorf("target base url %q must be http or https", cfg.Target.BaseURL)
	}
	if cfg.Target.TimeoutSec <= 0 {
		return fmt.Errorf("target timeout %d seconds must be positive", cfg.Target.TimeoutSec)
	}
	if cfg.IntervalMs < 10 {
		return fmt.Errorf("interval %dms is below the 10ms floor", cfg.IntervalMs)
	}
	if len(cfg.Devices) == 0 {
		return fmt.Errorf("at least one device must be configured")
	}

	seen := make(map[string]bool, len(cfg.Devices))
	for _, dev := range cfg.Devices {
		if dev.ID == "" {
			return fmt.Errorf("device id must be set")
		}
		if seen[dev.ID] {
			return fmt.Errorf("duplicate device id %s", dev.ID)
		}
		seen[dev.ID] = true
		if dev.IntervalMs != 0 && dev.IntervalMs < 10 {
			return fmt.Errorf("device %s: interval %dms is below the 10ms floor", dev.ID, dev.IntervalMs)
		}

		for name, walk := range map[string]ChannelWalk{
			"temperature": dev.Temperature,
			"humidity":    dev.Humidity,
			"brightness":  dev.Brightness,
		} {
			if walk.Min > walk.Max {
				return fmt.Errorf("device %s: %s min %.2f exceeds max %.2f", dev.ID, name, walk.Min, walk.Max)
			}
			if walk.Step < 0 {
				return fmt.Errorf("device %s: %s step must not be negative", dev.ID, name)
			}
			if walk.DropProbability < 0 || walk.DropProbability > 1 {
				return fmt.Errorf("device %s: %s drop probability must be within [0, 1]", dev.ID, name)
			}
		}
	}
	return nil
}

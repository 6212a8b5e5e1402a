package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// DefaultFile is read when no explicit path is given and it exists.
const DefaultFile = "iotdash.yaml"

// Load merges defaults + optional YAML file + IOTDASH_* environment overrides.
// An explicit path must exist; the default file is optional.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	} else if _, err := os.Stat(DefaultFile); err == nil {
		if err := loadFromFile(cfg, DefaultFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", DefaultFile, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile unmarshals a YAML file over cfg; keys absent from the file keep
// their current values.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.UnmarshalStrict(data, cfg)
}

// applyEnvOverrides applies IOTDASH_* environment variables to the config.
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("IOTDASH_ADDR"); val != "" {
		cfg.Server.Addr = val
	}

	if val := os.Getenv("IOTDASH_BUFFER_CAPACITY"); val != "" {
		size, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("IOTDASH_BUFFER_CAPACITY: %w", err)
		}
		cfg.Dashboard.BufferCapacity = size
	}

	if val := os.Getenv("IOTDASH_PROPORTION_SOURCE"); val != "" {
		cfg.Dashboard.ProportionSource = val
	}

	if val := os.Getenv("IOTDASH_LOCATION"); val != "" {
		cfg.Dashboard.Location = val
	}

	if val := os.Getenv("IOTDASH_UPSTREAM_URL"); val != "" {
		cfg.Upstream.URL = val
	}

	if val := os.Getenv("IOTDASH_HEARTBEAT_INTERVAL_SEC"); val != "" {
		sec, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("IOTDASH_HEARTBEAT_INTERVAL_SEC: %w", err)
		}
		cfg.Hub.HeartbeatIntervalSec = sec
	}

	if val := os.Getenv("IOTDASH_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}

	if val := os.Getenv("IOTDASH_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}

	if val := os.Getenv("IOTDASH_LOG_FILE"); val != "" {
		cfg.Logging.File = val
	}

	return nil
}

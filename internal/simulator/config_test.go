package simulator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, validateConfig(cfg))
	assert.Equal(t, "http://localhost:8000", cfg.Target.BaseURL)
	assert.Len(t, cfg.Devices, 1)
	assert.Equal(t, "esp32-1", cfg.Devices[0].ID)
}

func TestLoadConfigFromFile(t *testing.T) {
	yaml := `
target:
  baseUrl: http://dash.local:9000
  timeoutSec: 3
intervalMs: 500
seed: 42
devices:
  - id: kitchen
    temperature: {start: 20, step: 1, min: 0, max: 40}
    humidity: {start: 50, step: 2, min: 0, max: 100, dropProbability: 0.5}
    brightness: {start: 100, step: 10, min: 0, max: 4095}
  - id: garage
    intervalMs: 1000
`
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://dash.local:9000", cfg.Target.BaseURL)
	assert.Equal(t, 500, cfg.IntervalMs)
	assert.Equal(t, uint64(42), cfg.Seed)
	require.Len(t, cfg.Devices, 2)
	assert.Equal(t, "kitchen", cfg.Devices[0].ID)
	assert.InDelta(t, 0.5, cfg.Devices[0].Humidity.DropProbability, 1e-9)
	assert.Equal(t, 1000, cfg.Devices[1].IntervalMs)
	assert.Equal(t, DefaultDevice("garage").Brightness, cfg.Devices[1].Brightness)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("IOTDASH_SIM_TARGET", "http://other:8080")
	t.Setenv("IOTDASH_SIM_INTERVAL_MS", "250")
	t.Setenv("IOTDASH_SIM_DEVICES", "a, b ,,c")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://other:8080", cfg.Target.BaseURL)
	assert.Equal(t, 250, cfg.IntervalMs)
	require.Len(t, cfg.Devices, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{cfg.Devices[0].ID, cfg.Devices[1].ID, cfg.Devices[2].ID})
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("IOTDASH_SIM_INTERVAL_MS", "soon")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad scheme", func(c *Config) { c.Target.BaseURL = "ftp://x" }},
		{"zero timeout", func(c *Config) { c.Target.TimeoutSec = 0 }},
		{"interval floor", func(c *Config) { c.IntervalMs = 5 }},
		{"no devices", func(c *Config) { c.Devices = nil }},
		{"empty id", func(c *Config) { c.Devices[0].ID = "" }},
		{"duplicate id", func(c *Config) { c.Devices = append(c.Devices, DefaultDevice("esp32-1")) }},
		{"device interval", func(c *Config) { c.Devices[0].IntervalMs = 1 }},
		{"min above max", func(c *Config) { c.Devices[0].Humidity.Min = 200 }},
		{"negative step", func(c *Config) { c.Devices[0].Brightness.Step = -1 }},
		{"drop probability", func(c *Config) { c.Devices[0].Temperature.DropProbability = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

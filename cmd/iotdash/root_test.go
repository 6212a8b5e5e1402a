package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFlagsOverrideFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iotdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":7000\"\ndashboard:\n  bufferCapacity: 10\n"), 0o600))

	flags := &rootFlags{configPath: path, addr: ":9000", source: "selected", upstream: "ws://bridge:9000/messages"}
	cfg, err := flags.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 10, cfg.Dashboard.BufferCapacity)
	assert.Equal(t, "selected", cfg.Dashboard.ProportionSource)
	assert.Equal(t, "ws://bridge:9000/messages", cfg.Upstream.URL)
}

func TestLoadConfigValidatesFlags(t *testing.T) {
	flags := &rootFlags{configPath: filepath.Join(t.TempDir(), "missing.yaml")}
	_, err := flags.loadConfig()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "iotdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))
	flags = &rootFlags{configPath: path, source: "sometimes"}
	_, err = flags.loadConfig()
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "iotdash dev\n", out.String())
}

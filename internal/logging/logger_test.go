package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/config"
)

func TestNewConsoleLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Logging

	l, err := newWithStderr(cfg, &buf)
	require.NoError(t, err)

	l.Info("device discovered", zap.String("device", "D1"))
	l.Debug("hidden at info level")
	require.NoError(t, l.Close())

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "device discovered")
	assert.NotContains(t, out, "hidden at info level")
	assert.Empty(t, l.FilePath())
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Logging
	cfg.Format = "json"
	cfg.Level = "debug"

	l, err := newWithStderr(cfg, &buf)
	require.NoError(t, err)
	l.Debug("message dropped", zap.String("reason", "incomplete"))
	require.NoError(t, l.Close())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "message dropped", entry["msg"])
	assert.Equal(t, "incomplete", entry["reason"])
	assert.Equal(t, "debug", entry["level"])
}

func TestFileSink(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Logging
	cfg.File = filepath.Join(t.TempDir(), "logs", "iotdash.log")

	l, err := newWithStderr(cfg, &buf)
	require.NoError(t, err)
	assert.Equal(t, cfg.File, l.FilePath())

	l.Info("written to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"written to file"`)
}

func TestInvalidLevel(t *testing.T) {
	cfg := config.Default().Logging
	cfg.Level = "loud"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRotateWithoutFile(t *testing.T) {
	l, err := newWithStderr(config.Default().Logging, &bytes.Buffer{})
	require.NoError(t, err)
	assert.NoError(t, l.Rotate())
}

package simulator

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analog-buddy/iotdash/internal/telemetry"
)

type capture struct {
	mu       sync.Mutex
	paths    []string
	payloads []telemetry.IotData
	status   int
}

func (c *capture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	data, err := telemetry.ParseDevicePayload(body)
	c.mu.Lock()
	c.paths = append(c.paths, r.URL.EscapedPath())
	if err == nil {
		c.payloads = append(c.payloads, data)
	}
	status := c.status
	c.mu.Unlock()
	w.WriteHeader(status)
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func testConfig(baseURL string, ids ...string) *Config {
	cfg := DefaultConfig()
	cfg.Target.BaseURL = baseURL
	cfg.IntervalMs = 10
	cfg.Devices = nil
	for _, id := range ids {
		cfg.Devices = append(cfg.Devices, DefaultDevice(id))
	}
	return cfg
}

func TestSimulatorPostsEveryDevice(t *testing.T) {
	rec := &capture{status: http.StatusNoContent}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	sim := New(testConfig(srv.URL, "esp32-1", "living room"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.count() >= 4 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Contains(t, rec.paths, "/api/v1/devices/esp32-1/messages")
	assert.Contains(t, rec.paths, "/api/v1/devices/living%20room/messages")
	for _, p := range rec.payloads {
		assert.False(t, p.Empty())
	}

	sent, failed := sim.Stats()
	assert.GreaterOrEqual(t, sent, int64(4))
	assert.Zero(t, failed)
}

func TestSimulatorCountsRejectedPosts(t *testing.T) {
	rec := &capture{status: http.StatusBadRequest}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	sim := New(testConfig(srv.URL, "esp32-1"), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sim.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, failed := sim.Stats()
		return failed >= 2
	}, 2*time.Second, 10*time.Millisecond)
	sent, _ := sim.Stats()
	assert.Zero(t, sent)
}

func TestDeviceWalkStaysInBounds(t *testing.T) {
	cfg := DefaultDevice("d")
	cfg.Temperature = ChannelWalk{Start: 100, Step: 5, Min: 0, Max: 10}
	dev := newDevice(cfg, rand.New(rand.NewPCG(7, 0)))

	for range 500 {
		data := dev.next()
		require.NotNil(t, data.Temperature)
		assert.GreaterOrEqual(t, *data.Temperature, 0.0)
		assert.LessOrEqual(t, *data.Temperature, 10.0)
		require.NotNil(t, data.Brightness)
		assert.LessOrEqual(t, *data.Brightness, 4095.0)
	}
}

func TestDeviceKeepsOneChannel(t *testing.T) {
	cfg := DefaultDevice("d")
	cfg.Temperature.DropProbability = 1
	cfg.Humidity.DropProbability = 1
	cfg.Brightness.DropProbability = 1
	dev := newDevice(cfg, rand.New(rand.NewPCG(1, 2)))

	for range 20 {
		data := dev.next()
		assert.NotNil(t, data.Temperature)
		assert.Nil(t, data.Humidity)
		assert.Nil(t, data.Brightness)
	}
}

func TestDeviceSeedIsDeterministic(t *testing.T) {
	a := newDevice(DefaultDevice("d"), rand.New(rand.NewPCG(3, 0)))
	b := newDevice(DefaultDevice("d"), rand.New(rand.NewPCG(3, 0)))
	for range 10 {
		assert.Equal(t, a.next(), b.next())
	}
}

func TestRound(t *testing.T) {
	assert.InDelta(t, 22.4, round(22.4449, 1), 1e-9)
	assert.InDelta(t, 2001, round(2000.5, 0), 1e-9)
}

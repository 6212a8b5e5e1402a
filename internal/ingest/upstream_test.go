package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analog-buddy/iotdash/internal/config"
)

func testUpstreamConfig(url string) config.UpstreamConfig {
	cfg := config.Default().Upstream
	cfg.URL = url
	cfg.ReconnectInitialMs = 10
	cfg.ReconnectMaxSec = 1
	return cfg
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestUpstreamRelaysAndReconnects(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connections.Add(1)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"MessageDate":"2025-03-01T10:00:00Z","DeviceId":"A","IotData":{"humidity":40}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		// drop the connection so the client has to reconnect
	}))
	defer server.Close()

	pub := &recorder{}
	up := NewUpstream(testUpstreamConfig(wsURL(server)), New(pub, nil, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- up.Run(ctx) }()

	require.Eventually(t, func() bool {
		return connections.Load() >= 2 && len(pub.all()) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	for _, msg := range pub.all() {
		assert.Equal(t, "A", msg.DeviceID)
	}
}

func TestUpstreamRetriesWhenUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(server)
	server.Close()

	up := NewUpstream(testUpstreamConfig(url), New(&recorder{}, nil, nil), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := up.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUpstreamRequiresURL(t *testing.T) {
	up := NewUpstream(testUpstreamConfig(""), New(&recorder{}, nil, nil), nil)
	assert.Error(t, up.Run(context.Background()))
}

func TestNextDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextDelay(time.Second, 2, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextDelay(20*time.Second, 2, 30*time.Second))
	assert.Equal(t, time.Second, nextDelay(time.Second, 0.5, 30*time.Second))
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/config"
)

// Upstream relays messages from a WebSocket feed, such as an IoT hub bridge,
// into an Ingestor. It reconnects with exponential backoff until its context
// is cancelled.
type Upstream struct {
	cfg      config.UpstreamConfig
	ingestor *Ingestor
	dialer   *websocket.Dialer
	logger   *zap.Logger
}

// NewUpstream creates a client for cfg.URL.
func NewUpstream(cfg config.UpstreamConfig, ingestor *Ingestor, logger *zap.Logger) *Upstream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Upstream{
		cfg:      cfg,
		ingestor: ingestor,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger.Named("upstream"),
	}
}

// Run connects and relays until ctx is cancelled. It returns ctx.Err().
func (u *Upstream) Run(ctx context.Context) error {
	if u.cfg.URL == "" {
		return errors.New("upstream url is not set")
	}

	delay := u.cfg.ReconnectInitial()
	for {
		connected, err := u.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = u.cfg.ReconnectInitial()
		}
		u.logger.Warn("upstream disconnected",
			zap.String("url", u.cfg.URL),
			zap.Duration("retryIn", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = nextDelay(delay, u.cfg.ReconnectBackoff, u.cfg.ReconnectMax())
	}
}

// session dials once and reads until the connection fails. connected reports
// whether the handshake succeeded.
func (u *Upstream) session(ctx context.Context) (connected bool, err error) {
	conn, resp, err := u.dialer.DialContext(ctx, u.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	u.logger.Info("upstream connected", zap.String("url", u.cfg.URL))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		// Rejections are counted and logged by the ingestor.
		_, _ = u.ingestor.AcceptMessage(data, SourceUpstream)
	}
}

func nextDelay(current time.Duration, factor float64, limit time.Duration) time.Duration {
	if factor < 1 {
		factor = 1
	}
	next := time.Duration(math.Min(float64(current)*factor, float64(limit)))
	if next <= 0 {
		return limit
	}
	return next
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/dashboard"
	"github.com/analog-buddy/iotdash/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueue      = 64
)

var errSlowViewer = errors.New("viewer send queue full")

// Frame types sent to dashboard viewers.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// ViewerFrame is one message sent to a dashboard viewer.
type ViewerFrame struct {
	Type    string              `json:"type"`
	Data    *dashboard.Snapshot `json:"data,omitempty"`
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
}

// ViewerCommand is one message received from a dashboard viewer.
type ViewerCommand struct {
	Type     string `json:"type"`
	DeviceID string `json:"deviceId"`
}

// wsClient pairs a connection with its outbound queue. Only writePump writes
// to the connection.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger
}

func newWSClient(conn *websocket.Conn, logger *zap.Logger) *wsClient {
	return &wsClient{
		conn:   conn,
		send:   make(chan []byte, sendQueue),
		logger: logger,
	}
}

// enqueue queues a frame without blocking.
func (c *wsClient) enqueue(frame []byte) error {
	select {
	case c.send <- frame:
		return nil
	default:
		return errSlowViewer
	}
}

// readPump reads text frames until the connection fails, then cancels ctx.
// onMessage runs on the read goroutine.
func (c *wsClient) readPump(ctx context.Context, cancel context.CancelFunc, onMessage func([]byte)) {
	defer cancel()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if onMessage != nil {
			onMessage(data)
		}
	}
}

// writePump drains the send queue and pings until ctx is done, then closes
// the connection.
func (c *wsClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handleTelemetryWS handles GET /telemetry/ws: every accepted message as a
// JSON text frame. ?device= restricts the stream to one device.
func (s *Server) handleTelemetryWS(w http.ResponseWriter, r *http.Request) {
	if s.telemetryHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Telemetry service not available", nil)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newWSClient(conn, s.logger)
	sub := s.telemetryHub.Attach(ctx, r.URL.Query().Get("device"))
	defer s.telemetryHub.Detach(sub)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		client.readPump(ctx, cancel, nil)
	}()
	go func() {
		defer wg.Done()
		client.writePump(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case event := <-sub.Events:
			if event.Type != telemetry.EventTelemetry || event.Message == nil {
				continue
			}
			payload, err := event.Payload()
			if err != nil {
				s.logger.Error("encode telemetry", zap.Error(err))
				continue
			}
			if err := client.enqueue(payload); err != nil {
				s.logger.Warn("closing slow telemetry stream", zap.String("subscriber", sub.ID))
				return
			}
		}
	}
}

// handleDashboardWS handles GET /dashboard/ws. Each connection owns a private
// dashboard session fed from the hub; the connection's goroutine is the only
// one that touches it. Snapshots go out after every change, select commands
// come in.
func (s *Server) handleDashboardWS(w http.ResponseWriter, r *http.Request) {
	if s.telemetryHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Telemetry service not available", nil)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newWSClient(conn, s.logger)
	view := dashboard.ViewFunc(func(snap dashboard.Snapshot) error {
		return client.sendFrame(ViewerFrame{Type: FrameSnapshot, Data: &snap})
	})
	session, err := dashboard.NewSession(s.dashboardCfg, view, s.logger)
	if err != nil {
		s.logger.Error("create viewer session", zap.Error(err))
		conn.Close()
		return
	}
	defer session.Close()

	sub := s.telemetryHub.Attach(ctx, "")
	defer s.telemetryHub.Detach(sub)

	s.metrics.ViewerAttached(1)
	defer s.metrics.ViewerAttached(-1)
	viewerID := sub.ID
	s.logger.Info("viewer connected", zap.String("viewer", viewerID), zap.String("remote", r.RemoteAddr))
	defer s.logger.Info("viewer disconnected", zap.String("viewer", viewerID))

	commands := make(chan ViewerCommand)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		client.readPump(ctx, cancel, func(data []byte) {
			var cmd ViewerCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				_ = client.sendFrame(ViewerFrame{Type: FrameError, Code: "BAD_REQUEST", Message: "command is not valid JSON"})
				return
			}
			select {
			case commands <- cmd:
			case <-ctx.Done():
			}
		})
	}()
	go func() {
		defer wg.Done()
		client.writePump(ctx)
	}()
	defer wg.Wait()
	defer cancel()

	if err := client.sendFrame(ViewerFrame{Type: FrameSnapshot, Data: ptr(session.Snapshot())}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case event := <-sub.Events:
			if event.Type != telemetry.EventTelemetry || event.Message == nil {
				continue
			}
			if err := session.Apply(*event.Message); err != nil {
				if errors.Is(err, errSlowViewer) {
					s.logger.Warn("closing slow viewer", zap.String("viewer", viewerID))
					return
				}
				s.logger.Debug("viewer session rejected message", zap.Error(err))
			}
		case cmd := <-commands:
			if err := s.handleViewerCommand(session, cmd); err != nil {
				if errors.Is(err, errSlowViewer) {
					return
				}
				status, _ := ToAPIError(err)
				code := "BAD_REQUEST"
				if status == http.StatusNotFound {
					code = "NOT_FOUND"
				}
				_ = client.sendFrame(ViewerFrame{Type: FrameError, Code: code, Message: err.Error()})
			}
		}
	}
}

func (s *Server) handleViewerCommand(session *dashboard.Session, cmd ViewerCommand) error {
	switch cmd.Type {
	case "select":
		return session.Select(cmd.DeviceID)
	default:
		return NewAPIError("BAD_REQUEST", "unknown command "+cmd.Type, http.StatusBadRequest, nil)
	}
}

func (c *wsClient) sendFrame(frame ViewerFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func ptr[T any](v T) *T {
	return &v
}

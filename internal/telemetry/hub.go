package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/config"
	"github.com/analog-buddy/iotdash/internal/metrics"
)

// Event types.
const (
	EventReady     = "ready"
	EventTelemetry = "telemetry"
	EventHeartbeat = "heartbeat"
)

// Event is one item delivered by the hub. Telemetry events carry Message,
// control events carry Data.
type Event struct {
	ID      int64                  `json:"id,omitempty"`
	Type    string                 `json:"type"`
	Device  string                 `json:"device,omitempty"`
	Message *Message               `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Payload returns the JSON body sent to stream clients.
func (e Event) Payload() ([]byte, error) {
	if e.Message != nil {
		return json.Marshal(e.Message)
	}
	return json.Marshal(e.Data)
}

// Subscriber is one consumer attached to the hub.
type Subscriber struct {
	ID     string
	Device string // empty receives every device
	Events chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Done is closed when the subscriber is detached or the hub stops.
func (s *Subscriber) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *Subscriber) wants(event Event) bool {
	return s.Device == "" || event.Device == "" || event.Device == s.Device
}

// Hub fans accepted telemetry out to subscribers with per-device buffering.
//
// LOCK ORDERING:
// 1. h.mu - protects subscribers, deviceIDs, buffers and heartbeat state
// 2. EventBuffer.mu - protects an individual buffer
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	deviceIDs   map[string]*int64 // Monotonic event IDs per device
	buffers     map[string]*EventBuffer

	config  config.HubConfig
	logger  *zap.Logger
	metrics *metrics.Metrics

	heartbeatTicker *time.Ticker
	stopHeartbeat   chan struct{}

	done    chan struct{}
	stopped atomic.Bool
	wg      sync.WaitGroup
}

// NewHub creates a telemetry hub.
func NewHub(cfg config.HubConfig, logger *zap.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		deviceIDs:   make(map[string]*int64),
		buffers:     make(map[string]*EventBuffer),
		config:      cfg,
		logger:      logger.Named("hub"),
		metrics:     m,
		done:        make(chan struct{}),
	}
}

// Attach registers an in-process subscriber. Device filters telemetry events
// to one device; pass "" for all devices. Callers must Detach when done.
func (h *Hub) Attach(ctx context.Context, device string) *Subscriber {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscriber{
		ID:     uuid.NewString(),
		Device: device,
		Events: make(chan Event, h.config.SubscriberQueue),
		ctx:    subCtx,
		cancel: cancel,
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	if len(h.subscribers) == 1 && h.heartbeatTicker == nil && !h.stopped.Load() {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	h.metrics.SubscriberAttached(1)
	h.logger.Debug("subscriber attached", zap.String("subscriber", sub.ID), zap.String("device", device))
	return sub
}

// Detach removes a subscriber and cancels it. Events is never closed; consumers
// watch Done.
func (h *Hub) Detach(sub *Subscriber) {
	h.mu.Lock()
	_, exists := h.subscribers[sub.ID]
	delete(h.subscribers, sub.ID)

	// Stop heartbeat if no subscribers remain
	if len(h.subscribers) == 0 {
		h.stopHeartbeatLocked()
	}
	h.mu.Unlock()

	if exists {
		h.metrics.SubscriberAttached(-1)
		h.logger.Debug("subscriber detached", zap.String("subscriber", sub.ID))
	}
	sub.cancel()
}

// Subscribe serves an SSE stream with Last-Event-ID resume support. The
// optional ?device= query parameter restricts telemetry to one device. It
// blocks until the client disconnects or the hub stops.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	lastEventID := int64(0)
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if id, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil {
			lastEventID = id
		}
	}
	device := r.URL.Query().Get("device")

	sub := h.Attach(ctx, device)
	defer h.Detach(sub)

	if err := writeSSE(w, h.readyEvent(device)); err != nil {
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	if lastEventID > 0 && device != "" {
		for _, event := range h.Replay(device, lastEventID) {
			if err := writeSSE(w, event); err != nil {
				return fmt.Errorf("failed to replay events: %w", err)
			}
		}
	}

	for {
		select {
		case <-sub.Done():
			return nil
		case event := <-sub.Events:
			if err := writeSSE(w, event); err != nil {
				return nil
			}
		}
	}
}

// Publish assigns an event ID, buffers telemetry for its device and delivers
// the event to every interested subscriber. A subscriber whose queue stays full
// for the slow-subscriber timeout misses the event.
func (h *Hub) Publish(event Event) {
	if h.stopped.Load() {
		return
	}

	if event.ID == 0 {
		event.ID = h.nextEventID(event.Device)
	}

	if event.Device != "" {
		h.bufferEvent(event)
	}

	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		if sub.wants(event) {
			subs = append(subs, sub)
		}
	}
	h.mu.RUnlock()

	timeout := h.config.SlowSubscriberTimeout()
	for _, sub := range subs {
		h.deliver(sub, event, timeout)
	}
}

func (h *Hub) deliver(sub *Subscriber, event Event, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-sub.Done():
	case <-h.done:
	case sub.Events <- event:
	case <-timer.C:
		h.metrics.Dropped(metrics.ReasonSlow)
		h.logger.Debug("dropping event for slow subscriber",
			zap.String("subscriber", sub.ID), zap.Int64("event", event.ID))
	}
}

// PublishMessage publishes an accepted telemetry message.
func (h *Hub) PublishMessage(msg Message) {
	h.Publish(Event{
		Type:    EventTelemetry,
		Device:  msg.DeviceID,
		Message: &msg,
	})
}

// Replay returns the buffered events of a device after lastID.
func (h *Hub) Replay(device string, lastID int64) []Event {
	h.mu.RLock()
	buffer, exists := h.buffers[device]
	h.mu.RUnlock()

	if !exists {
		return nil
	}
	return buffer.EventsAfter(lastID)
}

// ReplayDepth returns the number of replayable events per device.
func (h *Hub) ReplayDepth() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	depth := make(map[string]int, len(h.buffers))
	for id, buffer := range h.buffers {
		depth[id] = buffer.Size()
	}
	return depth
}

// SubscriberCount returns the number of attached subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) readyEvent(device string) Event {
	h.mu.RLock()
	devices := make([]string, 0, len(h.buffers))
	for id := range h.buffers {
		devices = append(devices, id)
	}
	h.mu.RUnlock()

	return Event{
		ID:   h.nextEventID(""),
		Type: EventReady,
		Data: map[string]interface{}{
			"device":  device,
			"devices": devices,
		},
	}
}

// nextEventID returns the next monotonic event ID for a device.
func (h *Hub) nextEventID(device string) int64 {
	if device == "" {
		device = "global"
	}

	h.mu.RLock()
	counter, exists := h.deviceIDs[device]
	h.mu.RUnlock()

	if exists {
		return atomic.AddInt64(counter, 1)
	}

	h.mu.Lock()
	// Double-check: another goroutine might have created it
	counter, exists = h.deviceIDs[device]
	if !exists {
		var initial int64
		counter = &initial
		h.deviceIDs[device] = counter
	}
	h.mu.Unlock()

	return atomic.AddInt64(counter, 1)
}

// bufferEvent adds an event to its device's replay buffer. Buffers are never
// removed, so the reference stays valid after h.mu is released.
func (h *Hub) bufferEvent(event Event) {
	h.mu.Lock()
	buffer, exists := h.buffers[event.Device]
	if !exists {
		buffer = NewEventBuffer(h.config.ReplayBufferSize)
		h.buffers[event.Device] = buffer
	}
	h.mu.Unlock()

	buffer.Add(event)
}

// startHeartbeat starts the heartbeat ticker. Caller must hold h.mu.
func (h *Hub) startHeartbeat() {
	interval := h.config.HeartbeatInterval()
	if jitter := h.config.HeartbeatJitter(); jitter > 0 {
		// Spread clients of several hubs apart
		interval += time.Duration(rand.Int64N(int64(jitter)))
	}

	h.heartbeatTicker = time.NewTicker(interval)
	h.stopHeartbeat = make(chan struct{})

	ticker := h.heartbeatTicker
	stop := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ticker.C:
				h.Publish(Event{
					Type: EventHeartbeat,
					Data: map[string]interface{}{
						"ts": time.Now().UTC().Format(time.RFC3339),
					},
				})
			case <-stop:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// stopHeartbeatLocked stops the heartbeat goroutine. Caller must hold h.mu.
func (h *Hub) stopHeartbeatLocked() {
	if h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
	}
	if h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
}

// Stop detaches every subscriber and waits for hub goroutines.
func (h *Hub) Stop() {
	if !h.stopped.CompareAndSwap(false, true) {
		return
	}
	close(h.done)

	h.mu.Lock()
	h.stopHeartbeatLocked()
	subs := h.subscribers
	h.subscribers = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.cancel()
		h.metrics.SubscriberAttached(-1)
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		h.logger.Warn("hub goroutines did not stop in time")
	}
}

// writeSSE writes one event in text/event-stream framing and flushes.
func writeSSE(w http.ResponseWriter, event Event) error {
	if event.ID > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

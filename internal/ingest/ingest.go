package ingest

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/metrics"
	"github.com/analog-buddy/iotdash/internal/telemetry"
)

// Ingest sources, used as the metrics label.
const (
	SourceHTTP     = "http"
	SourceDevice   = "device"
	SourceUpstream = "upstream"
)

// Publisher receives accepted messages.
type Publisher interface {
	PublishMessage(msg telemetry.Message)
}

// Ingestor validates inbound telemetry and publishes what passes.
type Ingestor struct {
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// New creates an Ingestor.
func New(publisher Publisher, m *metrics.Metrics, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		publisher: publisher,
		metrics:   m,
		logger:    logger.Named("ingest"),
		now:       time.Now,
	}
}

// AcceptMessage parses a full message body and publishes it.
func (i *Ingestor) AcceptMessage(raw []byte, source string) (telemetry.Message, error) {
	msg, err := telemetry.ParseMessage(raw)
	if err != nil {
		i.reject(source, "", err)
		return telemetry.Message{}, err
	}
	i.accept(source, msg)
	return msg, nil
}

// AcceptDevicePayload parses the body a device posts for itself, stamps it
// with the device id and the arrival time, and publishes it.
func (i *Ingestor) AcceptDevicePayload(deviceID string, raw []byte) (telemetry.Message, error) {
	data, err := telemetry.ParseDevicePayload(raw)
	if err != nil {
		i.reject(SourceDevice, deviceID, err)
		return telemetry.Message{}, err
	}
	msg := telemetry.NewMessage(deviceID, i.now(), data)
	if err := msg.Validate(); err != nil {
		i.reject(SourceDevice, deviceID, err)
		return telemetry.Message{}, err
	}
	i.accept(SourceDevice, msg)
	return msg, nil
}

func (i *Ingestor) accept(source string, msg telemetry.Message) {
	i.metrics.Received(source)
	i.logger.Debug("message accepted",
		zap.String("source", source),
		zap.String("device", msg.DeviceID),
		zap.Time("messageDate", msg.MessageDate))
	i.publisher.PublishMessage(msg)
}

func (i *Ingestor) reject(source, deviceID string, err error) {
	reason := metrics.ReasonMalformed
	if errors.Is(err, telemetry.ErrIncomplete) {
		reason = metrics.ReasonIncomplete
	}
	i.metrics.Dropped(reason)
	i.logger.Warn("message rejected",
		zap.String("source", source),
		zap.String("device", deviceID),
		zap.String("reason", reason),
		zap.Error(err))
}

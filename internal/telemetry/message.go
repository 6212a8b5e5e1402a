package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrMalformed reports a payload that is not a decodable message.
	ErrMalformed = errors.New("MALFORMED")
	// ErrIncomplete reports a message without a timestamp, device id or any channel value.
	ErrIncomplete = errors.New("INCOMPLETE")
)

// IotData carries the optional channel values of a reading. It is also the body
// devices post directly.
type IotData struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Brightness  *float64 `json:"brightness,omitempty"`
}

// Empty reports whether no channel carries a value.
func (d IotData) Empty() bool {
	return d.Temperature == nil && d.Humidity == nil && d.Brightness == nil
}

// Message is one telemetry reading as relayed by the IoT hub.
type Message struct {
	MessageDate time.Time `json:"MessageDate"`
	DeviceID    string    `json:"DeviceId"`
	IotData     IotData   `json:"IotData"`
}

// NewMessage stamps a device payload with its device id and arrival time.
func NewMessage(deviceID string, at time.Time, data IotData) Message {
	return Message{
		MessageDate: at.UTC(),
		DeviceID:    deviceID,
		IotData:     data,
	}
}

// Validate applies the presence checks: a timestamp, a device id and at least
// one channel value.
func (m Message) Validate() error {
	if m.MessageDate.IsZero() {
		return fmt.Errorf("%w: missing MessageDate", ErrIncomplete)
	}
	if m.DeviceID == "" {
		return fmt.Errorf("%w: missing DeviceId", ErrIncomplete)
	}
	if m.IotData.Empty() {
		return fmt.Errorf("%w: no channel values", ErrIncomplete)
	}
	return nil
}

// wireMessage mirrors Message with a loosely typed timestamp.
type wireMessage struct {
	MessageDate json.RawMessage `json:"MessageDate"`
	DeviceID    string          `json:"DeviceId"`
	IotData     *IotData        `json:"IotData"`
}

// ParseMessage decodes and validates one message. Decoding failures wrap
// ErrMalformed, failed presence checks wrap ErrIncomplete.
func ParseMessage(data []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	ts, err := parseTimestamp(wire.MessageDate)
	if err != nil {
		return Message{}, fmt.Errorf("%w: MessageDate: %v", ErrMalformed, err)
	}

	msg := Message{
		MessageDate: ts,
		DeviceID:    wire.DeviceID,
	}
	if wire.IotData != nil {
		msg.IotData = *wire.IotData
	}

	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// ParseDevicePayload decodes the body a device posts for itself.
func ParseDevicePayload(data []byte) (IotData, error) {
	var payload IotData
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return IotData{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if payload.Empty() {
		return IotData{}, fmt.Errorf("%w: no channel values", ErrIncomplete)
	}
	return payload, nil
}

// parseTimestamp accepts RFC 3339 strings and epoch milliseconds. A missing or
// null timestamp yields the zero time.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339Nano, s)
	}

	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported timestamp %s", raw)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Float returns a pointer to v, for building IotData literals.
func Float(v float64) *float64 {
	return &v
}

package dashboard

import (
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
)

// ErrDuplicateDevice is returned when registering a device id twice.
var ErrDuplicateDevice = errors.New("DUPLICATE_DEVICE")

// Registry holds one Buffer per device in discovery order.
type Registry struct {
	buffers []*Buffer
	ids     mapset.Set[string]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ids: mapset.NewThreadUnsafeSet[string](),
	}
}

// Find returns the buffer of a device.
func (r *Registry) Find(deviceID string) (*Buffer, bool) {
	if !r.ids.Contains(deviceID) {
		return nil, false
	}
	for _, b := range r.buffers {
		if b.DeviceID() == deviceID {
			return b, true
		}
	}
	return nil, false
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	return len(r.buffers)
}

// Register appends a buffer. A second buffer for an already registered device
// is rejected and the registry is left unchanged.
func (r *Registry) Register(b *Buffer) error {
	if !r.ids.Add(b.DeviceID()) {
		return fmt.Errorf("%w: %s", ErrDuplicateDevice, b.DeviceID())
	}
	r.buffers = append(r.buffers, b)
	return nil
}

// Devices returns the registered device ids in discovery order.
func (r *Registry) Devices() []string {
	ids := make([]string, len(r.buffers))
	for i, b := range r.buffers {
		ids[i] = b.DeviceID()
	}
	return ids
}

// Buffers returns the registered buffers in discovery order.
func (r *Registry) Buffers() []*Buffer {
	out := make([]*Buffer, len(r.buffers))
	copy(out, r.buffers)
	return out
}

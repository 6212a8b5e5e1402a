package dashboard

import (
	"fmt"
	"time"
)

// Channel identifies one measured quantity.
type Channel int

const (
	Temperature Channel = iota
	Humidity
	Brightness
)

// ChannelCount is the number of channels a reading carries.
const ChannelCount = 3

var channelNames = [ChannelCount]string{"temperature", "humidity", "brightness"}

// String returns the channel's wire name.
func (c Channel) String() string {
	if c < 0 || int(c) >= ChannelCount {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// Channels lists every channel in display order.
func Channels() []Channel {
	return []Channel{Temperature, Humidity, Brightness}
}

// Reading is one timestamped set of channel values. A nil value means the
// device reported no data for that channel.
type Reading struct {
	Time   time.Time
	Values [ChannelCount]*float64
}

// Value returns the value of a channel, nil when absent.
func (r Reading) Value(ch Channel) *float64 {
	return r.Values[ch]
}

// Buffer is the fixed-capacity history of one device. The timestamp sequence
// and the three channel sequences always have the same length and are trimmed
// together, so index i in each belongs to the same reading.
type Buffer struct {
	deviceID string
	capacity int
	times    []time.Time
	series   [ChannelCount][]*float64
}

// NewBuffer creates an empty buffer. Capacity must be positive.
func NewBuffer(deviceID string, capacity int) *Buffer {
	if capacity <= 0 {
		panic(fmt.Sprintf("dashboard: buffer capacity must be positive, got %d", capacity))
	}
	b := &Buffer{
		deviceID: deviceID,
		capacity: capacity,
		times:    make([]time.Time, 0, capacity),
	}
	for i := range b.series {
		b.series[i] = make([]*float64, 0, capacity)
	}
	return b
}

// Append stores one reading. Absent channels are kept as nil, never as zero.
// When the buffer grows past capacity the oldest reading is dropped from every
// sequence.
func (b *Buffer) Append(ts time.Time, temperature, humidity, brightness *float64) {
	b.times = append(b.times, ts)
	for ch, v := range [ChannelCount]*float64{temperature, humidity, brightness} {
		b.series[ch] = append(b.series[ch], clone(v))
	}

	if len(b.times) > b.capacity {
		b.times = b.times[1:]
		for ch := range b.series {
			b.series[ch] = b.series[ch][1:]
		}
	}
}

// DeviceID returns the id of the device the buffer belongs to.
func (b *Buffer) DeviceID() string {
	return b.deviceID
}

// Capacity returns the maximum number of readings kept.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Len returns the number of readings held.
func (b *Buffer) Len() int {
	return len(b.times)
}

// Latest returns the newest reading, false when the buffer is empty.
func (b *Buffer) Latest() (Reading, bool) {
	n := len(b.times)
	if n == 0 {
		return Reading{}, false
	}
	return b.at(n - 1), true
}

// Times returns a copy of the timestamp sequence, oldest first.
func (b *Buffer) Times() []time.Time {
	out := make([]time.Time, len(b.times))
	copy(out, b.times)
	return out
}

// Series returns a copy of one channel sequence, oldest first.
func (b *Buffer) Series(ch Channel) []*float64 {
	out := make([]*float64, len(b.series[ch]))
	for i, v := range b.series[ch] {
		out[i] = clone(v)
	}
	return out
}

// Readings returns every held reading, oldest first.
func (b *Buffer) Readings() []Reading {
	out := make([]Reading, len(b.times))
	for i := range b.times {
		out[i] = b.at(i)
	}
	return out
}

func (b *Buffer) at(i int) Reading {
	r := Reading{Time: b.times[i]}
	for ch := range b.series {
		r.Values[ch] = clone(b.series[ch][i])
	}
	return r
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

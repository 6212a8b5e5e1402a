package config

import "time"

// Proportion view sources.
const (
	// ProportionFromMessage binds the proportion views to the message that just
	// arrived, whichever device sent it.
	ProportionFromMessage = "message"
	// ProportionFromSelected binds the proportion views to the selected device.
	ProportionFromSelected = "selected"
)

// Config is the complete iotdash configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Hub       HubConfig       `yaml:"hub"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeoutSec  int    `yaml:"readTimeoutSec"`
	WriteTimeoutSec int    `yaml:"writeTimeoutSec"`
	IdleTimeoutSec  int    `yaml:"idleTimeoutSec"`
}

// DashboardConfig holds per-session settings.
type DashboardConfig struct {
	// BufferCapacity is the number of readings kept per device.
	BufferCapacity int `yaml:"bufferCapacity"`
	// ProportionSource is ProportionFromMessage or ProportionFromSelected.
	ProportionSource string `yaml:"proportionSource"`
	// Location names the time zone used for trend labels ("Local", "UTC", ...).
	Location string         `yaml:"location"`
	Channels ChannelsConfig `yaml:"channels"`
}

// ChannelsConfig describes the three telemetry channels.
type ChannelsConfig struct {
	Temperature ChannelConfig `yaml:"temperature"`
	Humidity    ChannelConfig `yaml:"humidity"`
	Brightness  ChannelConfig `yaml:"brightness"`
}

// ChannelConfig describes how one channel is displayed.
type ChannelConfig struct {
	Label     string  `yaml:"label"`
	AxisLabel string  `yaml:"axisLabel"`
	Unit      string  `yaml:"unit"`
	Max       float64 `yaml:"max"`
}

// HubConfig holds fan-out and SSE settings.
type HubConfig struct {
	HeartbeatIntervalSec    int `yaml:"heartbeatIntervalSec"`
	HeartbeatJitterMs       int `yaml:"heartbeatJitterMs"`
	ReplayBufferSize        int `yaml:"replayBufferSize"`
	SubscriberQueue         int `yaml:"subscriberQueue"`
	SlowSubscriberTimeoutMs int `yaml:"slowSubscriberTimeoutMs"`
}

// UpstreamConfig configures the optional upstream WebSocket feed.
type UpstreamConfig struct {
	URL                string  `yaml:"url"`
	ReconnectInitialMs int     `yaml:"reconnectInitialMs"`
	ReconnectBackoff   float64 `yaml:"reconnectBackoff"`
	ReconnectMaxSec    int     `yaml:"reconnectMaxSec"`
}

// LoggingConfig configures the zap logger and its optional rotating file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeoutSec:  30,
			WriteTimeoutSec: 30,
			IdleTimeoutSec:  120,
		},
		Dashboard: DashboardConfig{
			BufferCapacity:   50,
			ProportionSource: ProportionFromMessage,
			Location:         "Local",
			Channels: ChannelsConfig{
				Temperature: ChannelConfig{Label: "Temperature", AxisLabel: "Temperature (ºC)", Unit: "°C", Max: 40},
				Humidity:    ChannelConfig{Label: "Humidity", AxisLabel: "Humidity (%)", Unit: "%", Max: 100},
				Brightness:  ChannelConfig{Label: "Brightness", AxisLabel: "Brightness", Unit: "", Max: 4095},
			},
		},
		Hub: HubConfig{
			HeartbeatIntervalSec:    15,
			HeartbeatJitterMs:       2000,
			ReplayBufferSize:        50,
			SubscriberQueue:         100,
			SlowSubscriberTimeoutMs: 100,
		},
		Upstream: UpstreamConfig{
			ReconnectInitialMs: 1000,
			ReconnectBackoff:   2.0,
			ReconnectMaxSec:    30,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// ReadTimeout returns the HTTP read timeout.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSec) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSec) * time.Second
}

// IdleTimeout returns the HTTP idle timeout.
func (s ServerConfig) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSec) * time.Second
}

// HeartbeatInterval returns the SSE heartbeat period.
func (h HubConfig) HeartbeatInterval() time.Duration {
	return time.Duration(h.HeartbeatIntervalSec) * time.Second
}

// HeartbeatJitter returns the heartbeat jitter.
func (h HubConfig) HeartbeatJitter() time.Duration {
	return time.Duration(h.HeartbeatJitterMs) * time.Millisecond
}

// SlowSubscriberTimeout returns how long a publish waits on a full subscriber queue.
func (h HubConfig) SlowSubscriberTimeout() time.Duration {
	return time.Duration(h.SlowSubscriberTimeoutMs) * time.Millisecond
}

// ReconnectInitial returns the first reconnect delay.
func (u UpstreamConfig) ReconnectInitial() time.Duration {
	return time.Duration(u.ReconnectInitialMs) * time.Millisecond
}

// ReconnectMax returns the reconnect delay ceiling.
func (u UpstreamConfig) ReconnectMax() time.Duration {
	return time.Duration(u.ReconnectMaxSec) * time.Second
}

// LoadLocation resolves the configured trend label time zone.
func (d DashboardConfig) LoadLocation() (*time.Location, error) {
	if d.Location == "" || d.Location == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(d.Location)
}

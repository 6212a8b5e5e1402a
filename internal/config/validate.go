package config

import (
	"fmt"
	"slices"

	"go.uber.org/zap/zapcore"
)

// Validate checks the merged configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(cfg.Server); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	if err := validateDashboard(cfg.Dashboard); err != nil {
		return fmt.Errorf("dashboard validation failed: %w", err)
	}

	if err := validateHub(cfg.Hub); err != nil {
		return fmt.Errorf("hub validation failed: %w", err)
	}

	if err := validateUpstream(cfg.Upstream); err != nil {
		return fmt.Errorf("upstream validation failed: %w", err)
	}

	if err := validateLogging(cfg.Logging); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	return nil
}

func validateServer(s ServerConfig) error {
	if s.Addr == "" {
		return fmt.Errorf("addr must be set")
	}
	if s.ReadTimeoutSec <= 0 || s.WriteTimeoutSec <= 0 || s.IdleTimeoutSec <= 0 {
		return fmt.Errorf("timeouts must be positive, got read=%d write=%d idle=%d",
			s.ReadTimeoutSec, s.WriteTimeoutSec, s.IdleTimeoutSec)
	}
	return nil
}

func validateDashboard(d DashboardConfig) error {
	if d.BufferCapacity <= 0 {
		return fmt.Errorf("buffer capacity must be positive, got %d", d.BufferCapacity)
	}

	sources := []string{ProportionFromMessage, ProportionFromSelected}
	if !slices.Contains(sources, d.ProportionSource) {
		return fmt.Errorf("invalid proportion source %q, must be one of: %v", d.ProportionSource, sources)
	}

	if _, err := d.LoadLocation(); err != nil {
		return fmt.Errorf("invalid location %q: %w", d.Location, err)
	}

	channels := map[string]ChannelConfig{
		"temperature": d.Channels.Temperature,
		"humidity":    d.Channels.Humidity,
		"brightness":  d.Channels.Brightness,
	}
	for name, ch := range channels {
		if ch.Max <= 0 {
			return fmt.Errorf("channel %s max must be positive, got %v", name, ch.Max)
		}
	}

	return nil
}

func validateHub(h HubConfig) error {
	if h.HeartbeatIntervalSec <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %ds", h.HeartbeatIntervalSec)
	}

	// Jitter must be non-negative and at most half the interval
	if h.HeartbeatJitterMs < 0 {
		return fmt.Errorf("heartbeat jitter must be non-negative, got %dms", h.HeartbeatJitterMs)
	}
	if h.HeartbeatJitter() > h.HeartbeatInterval()/2 {
		return fmt.Errorf("heartbeat jitter %v exceeds 50%% of interval %v", h.HeartbeatJitter(), h.HeartbeatInterval())
	}

	if h.ReplayBufferSize <= 0 {
		return fmt.Errorf("replay buffer size must be positive, got %d", h.ReplayBufferSize)
	}
	if h.SubscriberQueue <= 0 {
		return fmt.Errorf("subscriber queue must be positive, got %d", h.SubscriberQueue)
	}
	if h.SlowSubscriberTimeoutMs <= 0 {
		return fmt.Errorf("slow subscriber timeout must be positive, got %dms", h.SlowSubscriberTimeoutMs)
	}
	return nil
}

func validateUpstream(u UpstreamConfig) error {
	if u.ReconnectInitialMs <= 0 {
		return fmt.Errorf("reconnect initial must be positive, got %dms", u.ReconnectInitialMs)
	}
	if u.ReconnectBackoff < 1.0 || u.ReconnectBackoff > 10.0 {
		return fmt.Errorf("reconnect backoff must be in [1.0, 10.0], got %v", u.ReconnectBackoff)
	}
	if u.ReconnectMax() < u.ReconnectInitial() {
		return fmt.Errorf("reconnect max %v must be >= initial %v", u.ReconnectMax(), u.ReconnectInitial())
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		return err
	}
	if l.Format != "console" && l.Format != "json" {
		return fmt.Errorf("invalid log format %q, must be console or json", l.Format)
	}
	if l.File != "" && l.MaxSizeMB <= 0 {
		return fmt.Errorf("max size must be positive when logging to a file, got %d", l.MaxSizeMB)
	}
	return nil
}

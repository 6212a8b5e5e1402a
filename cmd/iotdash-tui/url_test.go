package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamURL(t *testing.T) {
	tests := []struct {
		server, device, want string
	}{
		{"ws://localhost:8000", "", "ws://localhost:8000/api/v1/telemetry/ws"},
		{"http://localhost:8000/", "", "ws://localhost:8000/api/v1/telemetry/ws"},
		{"https://dash.example", "", "wss://dash.example/api/v1/telemetry/ws"},
		{"ws://h", "living room", "ws://h/api/v1/telemetry/ws?device=living+room"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, streamURL(tt.server, tt.device))
	}
}

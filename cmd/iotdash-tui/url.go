package main

import (
	"net/url"
	"strings"
)

// streamURL builds the raw telemetry WebSocket URL of a server. http schemes
// are mapped to their ws counterparts.
func streamURL(server, device string) string {
	base := strings.TrimRight(server, "/")
	switch {
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	}
	u := base + "/api/v1/telemetry/ws"
	if device != "" {
		u += "?device=" + url.QueryEscape(device)
	}
	return u
}

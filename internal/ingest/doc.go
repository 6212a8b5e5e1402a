// Package ingest accepts telemetry from outside the process: message bodies
// posted over HTTP, device payloads posted by the firmware, and an optional
// upstream WebSocket feed. Every path applies the same validation before
// handing the message to the hub.
package ingest

// Package telemetry defines the inbound device message and the hub that fans
// accepted messages out to dashboard sessions and SSE clients.
//
// The hub keeps the last N events per device so SSE clients can resume with a
// Last-Event-ID header after reconnecting.
package telemetry

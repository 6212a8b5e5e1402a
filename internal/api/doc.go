// Package api implements the HTTP surface of iotdash.
//
// It serves the embedded dashboard page, the JSON API under /api/v1, the
// ingest endpoints, the SSE and WebSocket telemetry streams, the per-viewer
// dashboard WebSocket and the Prometheus metrics endpoint. JSON responses use
// one envelope: {result, data | code, message, details, correlationId}.
package api

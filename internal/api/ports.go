package api

import (
	"context"
	"net/http"

	"github.com/analog-buddy/iotdash/internal/dashboard"
	"github.com/analog-buddy/iotdash/internal/ingest"
	"github.com/analog-buddy/iotdash/internal/telemetry"
)

// TelemetryPort defines the minimal interface the API needs from the telemetry hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
	Attach(ctx context.Context, device string) *telemetry.Subscriber
	Detach(sub *telemetry.Subscriber)
	SubscriberCount() int
	ReplayDepth() map[string]int
}

// IngestPort defines the minimal interface the API needs to accept telemetry.
type IngestPort interface {
	AcceptMessage(raw []byte, source string) (telemetry.Message, error)
	AcceptDevicePayload(deviceID string, raw []byte) (telemetry.Message, error)
}

// DashboardPort runs queries against the server-wide dashboard session.
type DashboardPort interface {
	Do(ctx context.Context, fn func(*dashboard.Session) error) error
}

// Compile-time assertions for port conformance
var _ TelemetryPort = (*telemetry.Hub)(nil)
var _ IngestPort = (*ingest.Ingestor)(nil)
var _ DashboardPort = (*dashboard.Loop)(nil)

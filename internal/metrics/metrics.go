// Package metrics exposes the Prometheus collectors of the iotdash service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "iotdash"

// Drop reasons.
const (
	ReasonMalformed  = "malformed"
	ReasonIncomplete = "incomplete"
	ReasonSlow       = "slow_subscriber"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MessagesReceived  *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	DevicesDiscovered prometheus.Counter
	Viewers           prometheus.Gauge
	Subscribers       prometheus.Gauge
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Telemetry messages accepted, by ingest source.",
		}, []string{"source"}),
		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Telemetry messages discarded, by reason.",
		}, []string{"reason"}),
		DevicesDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "devices_discovered_total",
			Help:      "Devices seen for the first time by the server-wide session.",
		}),
		Viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers",
			Help:      "Dashboard viewer sessions currently attached.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_subscribers",
			Help:      "Hub subscribers currently attached.",
		}),
	}

	m.registry.MustRegister(
		m.MessagesReceived,
		m.MessagesDropped,
		m.DevicesDiscovered,
		m.Viewers,
		m.Subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Received counts an accepted message.
func (m *Metrics) Received(source string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(source).Inc()
}

// Dropped counts a discarded message.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

// DeviceDiscovered counts a new device.
func (m *Metrics) DeviceDiscovered() {
	if m == nil {
		return
	}
	m.DevicesDiscovered.Inc()
}

// ViewerAttached adjusts the viewer gauge by delta.
func (m *Metrics) ViewerAttached(delta int) {
	if m == nil {
		return
	}
	m.Viewers.Add(float64(delta))
}

// SubscriberAttached adjusts the subscriber gauge by delta.
func (m *Metrics) SubscriberAttached(delta int) {
	if m == nil {
		return
	}
	m.Subscribers.Add(float64(delta))
}

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/dashboard"
	"github.com/analog-buddy/iotdash/internal/ingest"
)

const (
	apiV1 = "/api/v1"

	maxBodyBytes = 64 << 10

	defaultChartWidth  = 1024
	defaultChartHeight = 400
	maxChartSide       = 4096
)

// RegisterRoutes registers every endpoint on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/", s.staticHandler())

	mux.HandleFunc(apiV1+"/", func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	})
	mux.HandleFunc(apiV1+"/health", s.handleHealth)
	mux.HandleFunc(apiV1+"/capabilities", s.handleCapabilities)

	mux.HandleFunc(apiV1+"/messages", s.handleMessages)
	mux.HandleFunc(apiV1+"/devices", s.handleDevices)
	mux.HandleFunc(apiV1+"/devices/{id}", s.handleDeviceByID)
	mux.HandleFunc(apiV1+"/devices/{id}/messages", s.handleDeviceMessages)
	mux.HandleFunc(apiV1+"/devices/{id}/chart.png", s.handleDeviceChart)
	mux.HandleFunc(apiV1+"/devices/{id}/export.xlsx", s.handleDeviceExport)

	mux.HandleFunc(apiV1+"/telemetry", s.handleTelemetry)
	mux.HandleFunc(apiV1+"/telemetry/ws", s.handleTelemetryWS)
	mux.HandleFunc(apiV1+"/dashboard/ws", s.handleDashboardWS)

	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		fmt.Sprintf("Only %s method is allowed", method), nil)
	return false
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	subsystems := map[string]bool{
		"telemetry": s.telemetryHub != nil,
		"ingest":    s.ingestor != nil,
		"dashboard": s.dashboard != nil,
	}

	deviceCount := 0
	if s.dashboard != nil {
		err := s.dashboard.Do(r.Context(), func(sess *dashboard.Session) error {
			deviceCount = sess.Registry().Count()
			return nil
		})
		if err != nil {
			subsystems["dashboard"] = false
		}
	}

	subscribers := 0
	replayDepth := map[string]int{}
	if s.telemetryHub != nil {
		subscribers = s.telemetryHub.SubscriberCount()
		replayDepth = s.telemetryHub.ReplayDepth()
	}

	status := "ok"
	for _, healthy := range subsystems {
		if !healthy {
			status = "degraded"
		}
	}

	health := map[string]interface{}{
		"status":      status,
		"uptimeSec":   time.Since(s.startTime).Seconds(),
		"version":     s.version,
		"subsystems":  subsystems,
		"deviceCount": deviceCount,
		"subscribers": subscribers,
		"replayDepth": replayDepth,
	}

	if status == "ok" {
		WriteSuccess(w, health)
		return
	}
	WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
		"One or more subsystems are unavailable", health)
}

// handleCapabilities handles GET /capabilities
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	chans := s.dashboardCfg.Channels
	channels := make([]map[string]interface{}, 0, dashboard.ChannelCount)
	for i, c := range [dashboard.ChannelCount]struct {
		name  string
		label string
		axis  string
		unit  string
		max   float64
	}{
		{dashboard.Temperature.String(), chans.Temperature.Label, chans.Temperature.AxisLabel, chans.Temperature.Unit, chans.Temperature.Max},
		{dashboard.Humidity.String(), chans.Humidity.Label, chans.Humidity.AxisLabel, chans.Humidity.Unit, chans.Humidity.Max},
		{dashboard.Brightness.String(), chans.Brightness.Label, chans.Brightness.AxisLabel, chans.Brightness.Unit, chans.Brightness.Max},
	} {
		channels = append(channels, map[string]interface{}{
			"index":     i,
			"name":      c.name,
			"label":     c.label,
			"axisLabel": c.axis,
			"unit":      c.unit,
			"max":       c.max,
		})
	}

	WriteSuccess(w, map[string]interface{}{
		"version":          s.version,
		"channels":         channels,
		"bufferCapacity":   s.dashboardCfg.BufferCapacity,
		"proportionSource": s.dashboardCfg.ProportionSource,
		"telemetry":        []string{"sse", "websocket"},
		"ingest":           []string{"message", "device-payload"},
		"upstream":         s.upstreamURL != "",
	})
}

// handleMessages handles POST /messages with a full telemetry message.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.ingestor == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Ingest not available", nil)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	if _, err := s.ingestor.AcceptMessage(body, ingest.SourceHTTP); err != nil {
		WriteAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceMessages handles POST /devices/{id}/messages with a device payload.
func (s *Server) handleDeviceMessages(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.ingestor == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Ingest not available", nil)
		return
	}

	body, err := readBody(w, r)
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	if _, err := s.ingestor.AcceptDevicePayload(r.PathValue("id"), body); err != nil {
		WriteAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDevices handles GET /devices
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireDashboard(w) {
		return
	}

	var list map[string]interface{}
	err := s.dashboard.Do(r.Context(), func(sess *dashboard.Session) error {
		devices := sess.Registry().Devices()
		list = map[string]interface{}{
			"devices":  devices,
			"count":    len(devices),
			"label":    sess.DeviceCountLabel(),
			"selected": sess.Selected(),
		}
		return nil
	})
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, list)
}

// handleDeviceByID handles GET /devices/{id}
func (s *Server) handleDeviceByID(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireDashboard(w) {
		return
	}

	view, _, err := s.deviceView(r)
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	WriteSuccess(w, view)
}

// handleDeviceChart handles GET /devices/{id}/chart.png
func (s *Server) handleDeviceChart(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireDashboard(w) {
		return
	}

	width, err := sizeParam(r, "width", defaultChartWidth)
	if err != nil {
		WriteAPIError(w, err)
		return
	}
	height, err := sizeParam(r, "height", defaultChartHeight)
	if err != nil {
		WriteAPIError(w, err)
		return
	}

	view, loc, err := s.deviceView(r)
	if err != nil {
		WriteAPIError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := dashboard.RenderTrendPNG(&buf, view.Trend, loc, width, height); err != nil {
		if !errors.Is(err, dashboard.ErrNoData) {
			s.logger.Error("chart render failed", zap.String("device", view.Device), zap.Error(err))
		}
		WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// handleDeviceExport handles GET /devices/{id}/export.xlsx
func (s *Server) handleDeviceExport(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) || !s.requireDashboard(w) {
		return
	}

	view, _, err := s.deviceView(r)
	if err != nil {
		WriteAPIError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := dashboard.ExportXLSX(&buf, view.Trend); err != nil {
		s.logger.Error("export failed", zap.String("device", view.Device), zap.Error(err))
		WriteAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", view.Device+".xlsx"))
	_, _ = w.Write(buf.Bytes())
}

// handleTelemetry handles GET /telemetry (SSE)
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.telemetryHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Telemetry service not available", nil)
		return
	}

	// The stream outlives the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	if err := s.telemetryHub.Subscribe(r.Context(), w, r); err != nil {
		s.logger.Debug("telemetry stream ended", zap.Error(err))
	}
}

func (s *Server) requireDashboard(w http.ResponseWriter) bool {
	if s.dashboard != nil {
		return true
	}
	WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Dashboard not available", nil)
	return false
}

// deviceView returns the server-wide session's view of the device in the
// path, with the session's label location.
func (s *Server) deviceView(r *http.Request) (dashboard.DeviceView, *time.Location, error) {
	id := r.PathValue("id")
	if id == "" {
		return dashboard.DeviceView{}, nil, fmt.Errorf("%w: device id is required", ErrBadRequest)
	}

	var (
		view dashboard.DeviceView
		loc  *time.Location
	)
	err := s.dashboard.Do(r.Context(), func(sess *dashboard.Session) error {
		var err error
		view, err = sess.Device(id)
		loc = sess.Location()
		return err
	})
	return view, loc, err
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return body, nil
}

func sizeParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 || v > maxChartSide {
		return 0, fmt.Errorf("%w: %s must be between 1 and %d", ErrBadRequest, name, maxChartSide)
	}
	return v, nil
}

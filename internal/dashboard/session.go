package dashboard

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/config"
	"github.com/analog-buddy/iotdash/internal/telemetry"
)

var (
	// ErrUnknownDevice is returned when selecting a device that never reported.
	ErrUnknownDevice = errors.New("UNKNOWN_DEVICE")
	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("SESSION_CLOSED")
)

// View renders snapshots. Redraw is called on the session's goroutine.
type View interface {
	Redraw(Snapshot) error
}

// ViewFunc adapts a function to View.
type ViewFunc func(Snapshot) error

// Redraw calls f.
func (f ViewFunc) Redraw(s Snapshot) error {
	return f(s)
}

// Option configures a Session.
type Option func(*Session)

// WithDiscoveryHook registers a function called once per newly seen device.
func WithDiscoveryHook(fn func(deviceID string)) Option {
	return func(s *Session) {
		s.onDiscover = fn
	}
}

// Session is one viewer's dashboard: the device registry, the selected device,
// and the trend and proportion views bound to them.
type Session struct {
	capacity int
	source   string
	loc      *time.Location
	channels [ChannelCount]config.ChannelConfig

	registry   *Registry
	selected   string
	gauges     [ChannelCount]*float64
	countLabel string

	view       View
	logger     *zap.Logger
	onDiscover func(string)
	closed     bool
}

// NewSession creates an empty session. A nil view is allowed for sessions that
// are only queried.
func NewSession(cfg config.DashboardConfig, view View, logger *zap.Logger, opts ...Option) (*Session, error) {
	if cfg.BufferCapacity <= 0 {
		return nil, fmt.Errorf("buffer capacity must be positive, got %d", cfg.BufferCapacity)
	}
	loc, err := cfg.LoadLocation()
	if err != nil {
		return nil, fmt.Errorf("load location: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	source := cfg.ProportionSource
	if source == "" {
		source = config.ProportionFromMessage
	}

	s := &Session{
		capacity:   cfg.BufferCapacity,
		source:     source,
		loc:        loc,
		channels:   [ChannelCount]config.ChannelConfig{cfg.Channels.Temperature, cfg.Channels.Humidity, cfg.Channels.Brightness},
		registry:   NewRegistry(),
		countLabel: DeviceCountLabel(0),
		view:       view,
		logger:     logger.Named("dashboard"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// HandleMessage parses one raw message and applies it. Malformed and
// incomplete messages are logged, discarded and returned as errors; the
// session stays usable.
func (s *Session) HandleMessage(raw []byte) error {
	if s.closed {
		return ErrSessionClosed
	}
	msg, err := telemetry.ParseMessage(raw)
	if err != nil {
		s.logger.Warn("discarding message", zap.Error(err))
		return err
	}
	return s.Apply(msg)
}

// Apply records a decoded message and redraws.
func (s *Session) Apply(msg telemetry.Message) error {
	if s.closed {
		return ErrSessionClosed
	}
	if err := msg.Validate(); err != nil {
		s.logger.Warn("discarding message", zap.String("device", msg.DeviceID), zap.Error(err))
		return err
	}

	buf, ok := s.registry.Find(msg.DeviceID)
	first := false
	if !ok {
		buf = NewBuffer(msg.DeviceID, s.capacity)
		if err := s.registry.Register(buf); err != nil {
			return err
		}
		s.countLabel = DeviceCountLabel(s.registry.Count())
		first = s.registry.Count() == 1
		s.logger.Info("device discovered",
			zap.String("device", msg.DeviceID),
			zap.Int("devices", s.registry.Count()))
		if s.onDiscover != nil {
			s.onDiscover(msg.DeviceID)
		}
	}

	data := msg.IotData
	buf.Append(msg.MessageDate, data.Temperature, data.Humidity, data.Brightness)

	if first {
		s.selected = msg.DeviceID
		s.bindSelected()
	}

	switch s.source {
	case config.ProportionFromSelected:
		if msg.DeviceID == s.selected {
			s.bindSelected()
		}
	default:
		s.gauges = [ChannelCount]*float64{clone(data.Temperature), clone(data.Humidity), clone(data.Brightness)}
	}

	return s.redraw()
}

// Select makes a registered device the selected one and redraws.
func (s *Session) Select(deviceID string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if _, ok := s.registry.Find(deviceID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	s.selected = deviceID
	s.bindSelected()
	return s.redraw()
}

// Close detaches the view. Later operations return ErrSessionClosed.
func (s *Session) Close() {
	s.closed = true
	s.view = nil
}

// Selected returns the selected device id, empty before the first device.
func (s *Session) Selected() string {
	return s.selected
}

// DeviceCountLabel returns the current "N devices" label.
func (s *Session) DeviceCountLabel() string {
	return s.countLabel
}

// Registry exposes the device registry for read access.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Snapshot builds the current view state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Devices:          s.registry.Devices(),
		DeviceCount:      s.registry.Count(),
		DeviceCountLabel: s.countLabel,
		Selected:         s.selected,
		ProportionSource: s.source,
		Proportions:      s.proportions(s.gauges),
		Trend:            s.emptyTrend(),
	}
	if buf, ok := s.registry.Find(s.selected); ok {
		snap.Trend = s.trend(buf)
		if latest, ok := buf.Latest(); ok {
			snap.HeatIndexF = heatIndex(latest)
			snap.WaterBreakMinutes = waterBreakMinutes(snap.HeatIndexF)
		}
	}
	return snap
}

// DeviceView is the detail view of one device.
type DeviceView struct {
	Device      string        `json:"device"`
	Latest      *ReadingView  `json:"latest,omitempty"`
	History     []ReadingView `json:"history"`
	Trend       TrendView     `json:"trend"`
	Proportions []Proportion  `json:"proportions"`
	HeatIndexF  *float64      `json:"heatIndexF,omitempty"`
	// WaterBreakMinutes is the water break interval for HeatIndexF.
	WaterBreakMinutes *int `json:"waterBreakMinutes,omitempty"`
}

// ReadingView is a Reading keyed by channel name.
type ReadingView struct {
	Time        time.Time `json:"time"`
	Label       string    `json:"label"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
	Brightness  *float64  `json:"brightness"`
}

// Device builds the detail view of one registered device.
func (s *Session) Device(deviceID string) (DeviceView, error) {
	buf, ok := s.registry.Find(deviceID)
	if !ok {
		return DeviceView{}, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	view := DeviceView{
		Device: deviceID,
		Trend:  s.trend(buf),
	}
	readings := buf.Readings()
	view.History = make([]ReadingView, len(readings))
	for i, r := range readings {
		view.History[i] = s.readingView(r)
	}
	latest, ok := buf.Latest()
	view.Proportions = s.proportions(latest.Values)
	if ok {
		lv := s.readingView(latest)
		view.Latest = &lv
		view.HeatIndexF = heatIndex(latest)
		view.WaterBreakMinutes = waterBreakMinutes(view.HeatIndexF)
	}
	return view, nil
}

func (s *Session) readingView(r Reading) ReadingView {
	return ReadingView{
		Time:        r.Time,
		Label:       FormatLabel(r.Time, s.loc),
		Temperature: r.Value(Temperature),
		Humidity:    r.Value(Humidity),
		Brightness:  r.Value(Brightness),
	}
}

// Channels returns the display settings of every channel in display order.
func (s *Session) Channels() [ChannelCount]config.ChannelConfig {
	return s.channels
}

// Location returns the time zone trend labels are rendered in.
func (s *Session) Location() *time.Location {
	return s.loc
}

func (s *Session) bindSelected() {
	buf, ok := s.registry.Find(s.selected)
	if !ok {
		return
	}
	latest, _ := buf.Latest()
	s.gauges = latest.Values
}

func (s *Session) redraw() error {
	if s.view == nil {
		return nil
	}
	if err := s.view.Redraw(s.Snapshot()); err != nil {
		return fmt.Errorf("redraw: %w", err)
	}
	return nil
}

func (s *Session) proportions(values [ChannelCount]*float64) []Proportion {
	out := make([]Proportion, ChannelCount)
	for _, ch := range Channels() {
		cfg := s.channels[ch]
		p := ToPercentage(values[ch], cfg.Max, cfg.Unit)
		p.Channel = ch.String()
		p.Label = cfg.Label
		out[ch] = p
	}
	return out
}

func (s *Session) emptyTrend() TrendView {
	t := TrendView{
		Labels: []string{},
		Times:  []time.Time{},
		Series: make([]SeriesView, ChannelCount),
	}
	for _, ch := range Channels() {
		t.Series[ch] = s.seriesView(ch, []*float64{})
	}
	return t
}

func (s *Session) trend(buf *Buffer) TrendView {
	times := buf.Times()
	labels := make([]string, len(times))
	for i, ts := range times {
		labels[i] = FormatLabel(ts, s.loc)
	}
	t := TrendView{
		Device: buf.DeviceID(),
		Labels: labels,
		Times:  times,
		Series: make([]SeriesView, ChannelCount),
	}
	for _, ch := range Channels() {
		t.Series[ch] = s.seriesView(ch, buf.Series(ch))
	}
	return t
}

func (s *Session) seriesView(ch Channel, data []*float64) SeriesView {
	cfg := s.channels[ch]
	return SeriesView{
		Channel:      ch.String(),
		Label:        cfg.Label,
		AxisLabel:    cfg.AxisLabel,
		Unit:         cfg.Unit,
		Color:        channelColors[ch],
		SuggestedMax: cfg.Max,
		Data:         data,
	}
}

package dashboard

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analog-buddy/iotdash/internal/config"
	"github.com/analog-buddy/iotdash/internal/telemetry"
)

// recordingView keeps every snapshot it was asked to draw.
type recordingView struct {
	snapshots []Snapshot
	err       error
}

func (v *recordingView) Redraw(s Snapshot) error {
	v.snapshots = append(v.snapshots, s)
	return v.err
}

func (v *recordingView) last() Snapshot {
	return v.snapshots[len(v.snapshots)-1]
}

func testDashboardConfig() config.DashboardConfig {
	cfg := config.Default().Dashboard
	cfg.Location = "UTC"
	return cfg
}

func newTestSession(t *testing.T, mutate func(*config.DashboardConfig)) (*Session, *recordingView) {
	t.Helper()
	cfg := testDashboardConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	view := &recordingView{}
	s, err := NewSession(cfg, view, nil)
	require.NoError(t, err)
	return s, view
}

func rawMessage(device string, at time.Time, data string) []byte {
	return []byte(fmt.Sprintf(`{"MessageDate":%q,"DeviceId":%q,"IotData":%s}`, at.Format(time.RFC3339), device, data))
}

func TestSessionFirstDeviceIsSelected(t *testing.T) {
	s, view := newTestSession(t, nil)

	require.NoError(t, s.HandleMessage(rawMessage("A", t0, `{"temperature":21,"humidity":40,"brightness":1000}`)))

	snap := view.last()
	assert.Equal(t, "A", snap.Selected)
	assert.Equal(t, "1 device", snap.DeviceCountLabel)
	assert.Equal(t, []string{"A"}, snap.Devices)
	assert.Equal(t, "A", snap.Trend.Device)
	assert.Equal(t, []string{"2025-03-01 10:00"}, snap.Trend.Labels)
	require.Len(t, snap.Trend.Series, ChannelCount)
	assert.Equal(t, 21.0, *snap.Trend.Series[Temperature].Data[0])
	assert.Equal(t, "21°C", snap.Proportions[Temperature].Title)
	assert.Equal(t, "40%", snap.Proportions[Humidity].Title)
	assert.Equal(t, "1000", snap.Proportions[Brightness].Title)
	require.NotNil(t, snap.HeatIndexF)
	require.NotNil(t, snap.WaterBreakMinutes)
	assert.Equal(t, 60, *snap.WaterBreakMinutes)
}

func TestSessionSecondDeviceKeepsSelection(t *testing.T) {
	s, view := newTestSession(t, nil)

	require.NoError(t, s.HandleMessage(rawMessage("A", t0, `{"temperature":21}`)))
	require.NoError(t, s.HandleMessage(rawMessage("B", t0.Add(time.Minute), `{"temperature":30,"humidity":55}`)))

	snap := view.last()
	assert.Equal(t, "2 devices", snap.DeviceCountLabel)
	assert.Equal(t, []string{"A", "B"}, snap.Devices)
	assert.Equal(t, "A", snap.Selected)
	assert.Equal(t, "A", snap.Trend.Device)
	// message policy: gauges follow the message just received
	assert.Equal(t, "30°C", snap.Proportions[Temperature].Title)
	assert.Equal(t, "55%", snap.Proportions[Humidity].Title)
	assert.Equal(t, NoValueTitle, snap.Proportions[Brightness].Title)
}

func TestSessionSelectedProportionPolicy(t *testing.T) {
	s, view := newTestSession(t, func(cfg *config.DashboardConfig) {
		cfg.ProportionSource = config.ProportionFromSelected
	})

	require.NoError(t, s.HandleMessage(rawMessage("A", t0, `{"temperature":21}`)))
	require.NoError(t, s.HandleMessage(rawMessage("B", t0, `{"temperature":30}`)))

	assert.Equal(t, "21°C", view.last().Proportions[Temperature].Title)

	require.NoError(t, s.Select("B"))
	assert.Equal(t, "30°C", view.last().Proportions[Temperature].Title)
	assert.Equal(t, "B", view.last().Trend.Device)
}

func TestSessionSelectRebindsToLatest(t *testing.T) {
	s, view := newTestSession(t, nil)

	require.NoError(t, s.HandleMessage(rawMessage("A", t0, `{"temperature":21}`)))
	require.NoError(t, s.HandleMessage(rawMessage("B", t0, `{"humidity":70}`)))
	require.NoError(t, s.HandleMessage(rawMessage("A", t0.Add(time.Minute), `{"temperature":25}`)))

	require.NoError(t, s.Select("B"))
	snap := view.last()
	assert.Equal(t, "B", snap.Selected)
	assert.Equal(t, NoValueTitle, snap.Proportions[Temperature].Title)
	assert.Equal(t, "70%", snap.Proportions[Humidity].Title)
	assert.Len(t, snap.Trend.Labels, 1)
}

func TestSessionSelectUnknownDevice(t *testing.T) {
	s, view := newTestSession(t, nil)
	require.NoError(t, s.HandleMessage(rawMessage("A", t0, `{"temperature":21}`)))
	draws := len(view.snapshots)

	err := s.Select("nope")
	require.ErrorIs(t, err, ErrUnknownDevice)
	assert.Equal(t, "A", s.Selected())
	assert.Len(t, view.snapshots, draws)
}

func TestSessionDiscardsBadMessages(t *testing.T) {
	s, view := newTestSession(t, nil)

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"not json", `{"MessageDate":`, telemetry.ErrMalformed},
		{"no timestamp", `{"DeviceId":"A","IotData":{"temperature":1}}`, telemetry.ErrIncomplete},
		{"no channels", `{"MessageDate":"2025-03-01T10:00:00Z","DeviceId":"A","IotData":{}}`, telemetry.ErrIncomplete},
		{"no device", `{"MessageDate":"2025-03-01T10:00:00Z","IotData":{"temperature":1}}`, telemetry.ErrIncomplete},
		{"no timestamp and no channels", `{"DeviceId":"A","IotData":{}}`, telemetry.ErrIncomplete},
		{"no timestamp and null channels", `{"DeviceId":"A","IotData":{"temperature":null,"humidity":null,"brightness":null}}`, telemetry.ErrIncomplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.HandleMessage([]byte(tt.raw))
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, s.Registry().Count())
			assert.Empty(t, view.snapshots)
		})
	}

	// still usable afterwards
	require.NoError(t, s.HandleMessage(rawMessage("A", t0, `{"brightness":0}`)))
	assert.Equal(t, 1, s.Registry().Count())
	assert.Equal(t, "0", view.last().Proportions[Brightness].Title)
}

func TestSessionBuffersAreBounded(t *testing.T) {
	s, view := newTestSession(t, func(cfg *config.DashboardConfig) {
		cfg.BufferCapacity = 3
	})

	for i := 0; i < 10; i++ {
		raw := rawMessage("A", t0.Add(time.Duration(i)*time.Minute), fmt.Sprintf(`{"temperature":%d}`, i))
		require.NoError(t, s.HandleMessage(raw))
	}

	snap := view.last()
	assert.Equal(t, []string{"2025-03-01 10:07", "2025-03-01 10:08", "2025-03-01 10:09"}, snap.Trend.Labels)
	for _, sv := range snap.Trend.Series {
		assert.Len(t, sv.Data, 3)
	}
}

func TestSessionDiscoveryHook(t *testing.T) {
	var seen []string
	s, err := NewSession(testDashboardConfig(), nil, nil, WithDiscoveryHook(func(id string) {
		seen = append(seen, id)
	}))
	require.NoError(t, err)

	require.NoError(t, s.HandleMessage(rawMessage("A", t0, `{"temperature":1}`)))
	require.NoError(t, s.HandleMessage(rawMessage("A", t0, `{"temperature":2}`)))
	require.NoError(t, s.HandleMessage(rawMessage("B", t0, `{"temperature":3}`)))

	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestSessionRedrawError(t *testing.T) {
	s, view := newTestSession(t, nil)
	view.err = errors.New("socket gone")

	err := s.HandleMessage(rawMessage("A", t0, `{"temperature":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket gone")
	// the reading is kept even though the view failed
	assert.Equal(t, 1, s.Registry().Count())
}

func TestSessionClosed(t *testing.T) {
	s, _ := newTestSession(t, nil)
	s.Close()

	assert.ErrorIs(t, s.HandleMessage(rawMessage("A", t0, `{"temperature":1}`)), ErrSessionClosed)
	assert.ErrorIs(t, s.Select("A"), ErrSessionClosed)
}

func TestSessionEmptySnapshot(t *testing.T) {
	s, _ := newTestSession(t, nil)

	snap := s.Snapshot()
	assert.Equal(t, "0 devices", snap.DeviceCountLabel)
	assert.Empty(t, snap.Selected)
	assert.Len(t, snap.Trend.Series, ChannelCount)
	require.Len(t, snap.Proportions, ChannelCount)
	for _, p := range snap.Proportions {
		assert.Equal(t, NoValueTitle, p.Title)
		assert.Equal(t, p.Max, p.Remaining)
	}
}

func TestSessionDeviceView(t *testing.T) {
	s, _ := newTestSession(t, nil)
	require.NoError(t, s.HandleMessage(rawMessage("A", t0.Add(-time.Minute), `{"brightness":700}`)))
	require.NoError(t, s.HandleMessage(rawMessage("A", t0, `{"temperature":20,"humidity":50}`)))

	dv, err := s.Device("A")
	require.NoError(t, err)
	require.Len(t, dv.History, 2)
	assert.Equal(t, "2025-03-01 09:59", dv.History[0].Label)
	assert.Equal(t, 700.0, *dv.History[0].Brightness)
	assert.Nil(t, dv.History[0].Temperature)
	require.NotNil(t, dv.Latest)
	assert.Equal(t, *dv.Latest, dv.History[1])
	assert.Equal(t, "2025-03-01 10:00", dv.Latest.Label)
	assert.Equal(t, 20.0, *dv.Latest.Temperature)
	assert.Nil(t, dv.Latest.Brightness)
	require.NotNil(t, dv.HeatIndexF)
	assert.InDelta(t, HeatIndexF(20, 50), *dv.HeatIndexF, 1e-9)

	_, err = s.Device("B")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestNewSessionValidation(t *testing.T) {
	cfg := testDashboardConfig()
	cfg.BufferCapacity = 0
	_, err := NewSession(cfg, nil, nil)
	require.Error(t, err)

	cfg = testDashboardConfig()
	cfg.Location = "Nowhere/Special"
	_, err = NewSession(cfg, nil, nil)
	require.Error(t, err)
}

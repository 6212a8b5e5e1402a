package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToPercentage(t *testing.T) {
	tests := []struct {
		name          string
		value         *float64
		max           float64
		unit          string
		wantFilled    float64
		wantRemaining float64
		wantTitle     string
	}{
		{"within range", f(10), 40, "°C", 10, 30, "10°C"},
		{"clamped to max", f(45), 40, "°C", 40, 0, "40°C"},
		{"rounds half up", f(22.5), 40, "°C", 23, 17, "23°C"},
		{"rounds down", f(22.4), 40, "°C", 22, 18, "22°C"},
		{"zero is a value", f(0), 100, "%", 0, 100, "0%"},
		{"no unit", f(1234.6), 4095, "", 1235, 2860, "1235"},
		{"missing", nil, 100, "%", 0, 100, NoValueTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ToPercentage(tt.value, tt.max, tt.unit)
			assert.Equal(t, tt.wantFilled, p.Filled)
			assert.Equal(t, tt.wantRemaining, p.Remaining)
			assert.Equal(t, tt.max, p.Filled+p.Remaining)
			assert.Equal(t, tt.wantTitle, p.Title)
		})
	}
}

func TestProportionRatio(t *testing.T) {
	assert.Equal(t, 0.25, ToPercentage(f(10), 40, "").Ratio())
	assert.Equal(t, 1.0, ToPercentage(f(50), 40, "").Ratio())
	assert.Equal(t, 0.0, ToPercentage(nil, 40, "").Ratio())
	assert.Equal(t, 0.0, ToPercentage(f(-5), 40, "").Ratio())
}

func TestFormatLabel(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 5, 59, 0, time.UTC)
	assert.Equal(t, "2025-03-01 09:05", FormatLabel(ts, time.UTC))

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err == nil {
		assert.Equal(t, "2025-03-01 10:05", FormatLabel(ts, berlin))
	}
}

func TestSeriesPointsSkipsGaps(t *testing.T) {
	times := []time.Time{t0, t0.Add(time.Minute), t0.Add(2 * time.Minute)}
	sv := SeriesView{Data: []*float64{f(1), nil, f(3)}}

	xs, ys := sv.Points(times)
	assert.Equal(t, []time.Time{t0, t0.Add(2 * time.Minute)}, xs)
	assert.Equal(t, []float64{1, 3}, ys)
}

func TestDeviceCountLabel(t *testing.T) {
	assert.Equal(t, "0 devices", DeviceCountLabel(0))
	assert.Equal(t, "1 device", DeviceCountLabel(1))
	assert.Equal(t, "2 devices", DeviceCountLabel(2))
	assert.Equal(t, "12 devices", DeviceCountLabel(12))
}

func TestHeatIndexF(t *testing.T) {
	// 20°C is 68°F, so the humidity term alone shifts the mean.
	assert.InDelta(t, 0.5*(68+61+50*0.094), HeatIndexF(20, 50), 1e-9)
	assert.InDelta(t, 0.5*(86+61+18*1.2+40*0.094), HeatIndexF(30, 40), 1e-9)

	assert.Nil(t, heatIndex(Reading{Values: [ChannelCount]*float64{f(20), nil, nil}}))
	assert.NotNil(t, heatIndex(Reading{Values: [ChannelCount]*float64{f(20), f(50), nil}}))
}

func TestWaterBreakInterval(t *testing.T) {
	tests := []struct {
		heatIndex float64
		want      time.Duration
	}{
		{70, 60 * time.Minute},
		{80, 60 * time.Minute},
		{80.1, 45 * time.Minute},
		{85, 45 * time.Minute},
		{90, 30 * time.Minute},
		{95, 15 * time.Minute},
		{100, 10 * time.Minute},
		{100.5, 5 * time.Minute},
		{130, 5 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WaterBreakInterval(tt.heatIndex), "heat index %.1f", tt.heatIndex)
	}

	assert.Nil(t, waterBreakMinutes(nil))
	assert.Equal(t, 30, *waterBreakMinutes(f(88)))
}

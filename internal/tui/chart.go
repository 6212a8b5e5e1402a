package tui

import (
	"math"

	plot "github.com/chriskim06/drawille-go"

	"github.com/analog-buddy/iotdash/internal/dashboard"
)

// renderTrend draws every series of trend as a braille line, each scaled to
// the percentage of its axis maximum. The focused channel is drawn last, in
// the highlight color.
func renderTrend(trend dashboard.TrendView, focus dashboard.Channel, width, height int, dark bool) string {
	if len(trend.Times) == 0 || len(trend.Series) == 0 || width < 2 || height < 2 {
		return ""
	}

	highlight, dim := plot.Black, plot.LightGray
	if dark {
		highlight, dim = plot.Red, plot.DimGray
	}

	data := make([][]float64, 0, len(trend.Series))
	colors := make([]plot.Color, 0, len(trend.Series))
	var focused []float64
	for i, series := range trend.Series {
		line := scaled(carryForward(series.Data), series.SuggestedMax)
		if dashboard.Channel(i) == focus {
			focused = line
			continue
		}
		data = append(data, line)
		colors = append(colors, dim)
	}
	if focused != nil {
		data = append(data, focused)
		colors = append(colors, highlight)
	}

	canvas := plot.NewCanvas(width, height)
	canvas.NumDataPoints = max(2, len(trend.Times))
	canvas.ShowAxis = false
	canvas.LineColors = colors
	canvas.Fill(data)
	return canvas.String()
}

// carryForward fills gaps with the previous value. Leading gaps take the first
// value present; a series with no values is all zero.
func carryForward(data []*float64) []float64 {
	out := make([]float64, len(data))
	first := math.NaN()
	for _, v := range data {
		if v != nil {
			first = *v
			break
		}
	}
	if math.IsNaN(first) {
		return out
	}

	last := first
	for i, v := range data {
		if v != nil {
			last = *v
		}
		out[i] = last
	}
	return out
}

// scaled maps values to percent of max(suggested, observed).
func scaled(values []float64, suggested float64) []float64 {
	top := suggested
	for _, v := range values {
		top = math.Max(top, v)
	}
	if top <= 0 {
		top = 1
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Max(0, v) / top * 100
	}
	return out
}

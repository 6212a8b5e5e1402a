package dashboard

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when a trend has nothing to plot.
var ErrNoData = errors.New("NO_DATA")

var chartColors = [ChannelCount]drawing.Color{
	{R: 178, G: 34, B: 34, A: 255},
	{R: 0, G: 128, B: 128, A: 255},
	{R: 255, G: 165, B: 79, A: 255},
}

// TickLayout formats the time axis ticks of rendered charts.
const TickLayout = "15:04"

// RenderTrendPNG draws a trend view as a PNG line chart. Temperature and
// humidity share the right axis, brightness uses the left one. Gaps are
// bridged. Time ticks are shown in loc, nil meaning UTC.
func RenderTrendPNG(w io.Writer, trend TrendView, loc *time.Location, width, height int) error {
	var (
		series      []chart.Series
		leftMax     float64
		rightMax    float64
		first, last time.Time
	)
	for _, sv := range trend.Series {
		if sv.Channel == Brightness.String() {
			leftMax = math.Max(leftMax, sv.SuggestedMax)
		} else {
			rightMax = math.Max(rightMax, sv.SuggestedMax)
		}
	}
	for i, sv := range trend.Series {
		xs, ys := sv.Points(trend.Times)
		if len(xs) == 0 {
			continue
		}
		if first.IsZero() || xs[0].Before(first) {
			first = xs[0]
		}
		if end := xs[len(xs)-1]; end.After(last) {
			last = end
		}
		// go-chart needs two X values per series
		if len(xs) == 1 {
			xs = []time.Time{xs[0], xs[0].Add(time.Second)}
			ys = []float64{ys[0], ys[0]}
		}

		axis, top := chart.YAxisSecondary, &rightMax
		if sv.Channel == Brightness.String() {
			axis, top = chart.YAxisPrimary, &leftMax
		}
		for _, y := range ys {
			*top = math.Max(*top, y)
		}

		color := chart.ColorAlternateGray
		if i < len(chartColors) {
			color = chartColors[i]
		}
		series = append(series, chart.TimeSeries{
			Name:    sv.Label,
			XValues: xs,
			YValues: ys,
			YAxis:   axis,
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: 2,
				DotColor:    color,
				DotWidth:    3,
			},
		})
	}
	if len(series) == 0 {
		return fmt.Errorf("%w: device %s", ErrNoData, trend.Device)
	}

	ch := chart.Chart{
		Title:      trend.Device,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Time",
			ValueFormatter: timeTickFormatter(loc),
		},
		YAxis: chart.YAxis{
			Name:  axisName(trend, Brightness),
			Range: &chart.ContinuousRange{Min: 0, Max: nonZero(leftMax)},
		},
		YAxisSecondary: chart.YAxis{
			Name:  axisName(trend, Temperature) + " / " + axisName(trend, Humidity),
			Range: &chart.ContinuousRange{Min: 0, Max: nonZero(rightMax)},
		},
		Series: series,
	}
	// readings sharing one timestamp leave no x-range of their own
	if first.Equal(last) {
		ch.XAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(first.Add(-time.Second)),
			Max: chart.TimeToFloat64(last.Add(time.Second)),
		}
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// timeTickFormatter formats time axis values in loc.
func timeTickFormatter(loc *time.Location) chart.ValueFormatter {
	if loc == nil {
		loc = time.UTC
	}
	return func(v interface{}) string {
		switch tv := v.(type) {
		case time.Time:
			return tv.In(loc).Format(TickLayout)
		case float64:
			return chart.TimeFromFloat64(tv).In(loc).Format(TickLayout)
		case int64:
			return time.Unix(0, tv).In(loc).Format(TickLayout)
		}
		return ""
	}
}

func axisName(trend TrendView, ch Channel) string {
	if int(ch) < len(trend.Series) {
		return trend.Series[ch].AxisLabel
	}
	return ch.String()
}

func nonZero(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

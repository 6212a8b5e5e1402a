package dashboard

import (
	"math"
	"strconv"
	"time"
)

// LabelLayout formats trend axis labels.
const LabelLayout = "2006-01-02 15:04"

// NoValueTitle is the proportion title shown before any value arrived.
const NoValueTitle = "--"

// channel line colors, RGB.
var channelColors = [ChannelCount]string{
	"rgb(178, 34, 34)",
	"rgb(0, 128, 128)",
	"rgb(255, 165, 79)",
}

// Snapshot is everything a view needs to redraw itself.
type Snapshot struct {
	Devices          []string     `json:"devices"`
	DeviceCount      int          `json:"deviceCount"`
	DeviceCountLabel string       `json:"deviceCountLabel"`
	Selected         string       `json:"selected,omitempty"`
	ProportionSource string       `json:"proportionSource"`
	Trend            TrendView    `json:"trend"`
	Proportions      []Proportion `json:"proportions"`
	HeatIndexF       *float64     `json:"heatIndexF,omitempty"`
	// WaterBreakMinutes is the water break interval for HeatIndexF.
	WaterBreakMinutes *int `json:"waterBreakMinutes,omitempty"`
}

// TrendView is the line chart of one device's history.
type TrendView struct {
	Device string       `json:"device,omitempty"`
	Labels []string     `json:"labels"`
	Times  []time.Time  `json:"times"`
	Series []SeriesView `json:"series"`
}

// SeriesView is one line of a trend chart. Nil data points are gaps.
type SeriesView struct {
	Channel      string     `json:"channel"`
	Label        string     `json:"label"`
	AxisLabel    string     `json:"axisLabel"`
	Unit         string     `json:"unit"`
	Color        string     `json:"color"`
	SuggestedMax float64    `json:"suggestedMax"`
	Data         []*float64 `json:"data"`
}

// Points returns the series values, skipping gaps, with their timestamps.
func (s SeriesView) Points(times []time.Time) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(s.Data))
	ys := make([]float64, 0, len(s.Data))
	for i, v := range s.Data {
		if v == nil || i >= len(times) {
			continue
		}
		xs = append(xs, times[i])
		ys = append(ys, *v)
	}
	return xs, ys
}

// Proportion is a two-segment gauge: the filled part and the rest up to Max.
type Proportion struct {
	Channel   string   `json:"channel"`
	Label     string   `json:"label"`
	Value     *float64 `json:"value"`
	Filled    float64  `json:"filled"`
	Remaining float64  `json:"remaining"`
	Max       float64  `json:"max"`
	Title     string   `json:"title"`
}

// Ratio returns the filled fraction in [0, 1].
func (p Proportion) Ratio() float64 {
	if p.Max <= 0 || p.Filled <= 0 {
		return 0
	}
	return math.Min(p.Filled/p.Max, 1)
}

// ToPercentage clamps value to at most max and rounds it half up. A nil value
// yields an empty gauge titled NoValueTitle.
func ToPercentage(value *float64, max float64, unit string) Proportion {
	if value == nil {
		return Proportion{
			Remaining: max,
			Max:       max,
			Title:     NoValueTitle,
		}
	}

	filled := math.Floor(math.Min(*value, max) + 0.5)
	return Proportion{
		Value:     clone(value),
		Filled:    filled,
		Remaining: max - filled,
		Max:       max,
		Title:     strconv.FormatFloat(filled, 'f', -1, 64) + unit,
	}
}

// FormatLabel renders a trend axis label in loc.
func FormatLabel(ts time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return ts.In(loc).Format(LabelLayout)
}

package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/analog-buddy/iotdash/internal/config"
	"github.com/analog-buddy/iotdash/internal/dashboard"
)

const (
	defaultWidth  = 100
	defaultHeight = 30
	listWidth     = 24
	labelWidth    = 14
)

var (
	borderColor   = lipgloss.AdaptiveColor{Light: "#555", Dark: "#555"}
	selectedColor = lipgloss.AdaptiveColor{Light: "0", Dark: "9"}
	errColor      = lipgloss.AdaptiveColor{Light: "1", Dark: "9"}

	channelFg = [dashboard.ChannelCount]lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("#B22222")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#008080")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA54F")),
	}
	barGradients = [dashboard.ChannelCount][2]string{
		{"#FF7F50", "#B22222"},
		{"#7FFFD4", "#008080"},
		{"#FFE4B5", "#FFA54F"},
	}

	titleStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(selectedColor).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(borderColor)
	errStyle      = lipgloss.NewStyle().Foreground(errColor)
	paneStyle     = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(borderColor)
)

// Model is the bubbletea model of the terminal dashboard. The session it
// wraps is only touched from Update.
type Model struct {
	session *dashboard.Session
	snap    dashboard.Snapshot
	feed    *Feed

	focus  dashboard.Channel
	bars   [dashboard.ChannelCount]progress.Model
	help   help.Model
	dark   bool
	width  int
	height int

	status string
	err    error
}

// NewModel creates a model over a fresh session. feed may be nil, in which
// case messages must be sent to the program by other means.
func NewModel(cfg config.DashboardConfig, feed *Feed, logger *zap.Logger) (*Model, error) {
	m := &Model{
		feed:   feed,
		help:   help.New(),
		dark:   lipgloss.HasDarkBackground(),
		width:  defaultWidth,
		height: defaultHeight,
		status: "waiting for telemetry",
	}
	session, err := dashboard.NewSession(cfg, dashboard.ViewFunc(m.redraw), logger)
	if err != nil {
		return nil, err
	}
	m.session = session
	m.snap = session.Snapshot()
	for i := range m.bars {
		m.bars[i] = progress.New(
			progress.WithGradient(barGradients[i][0], barGradients[i][1]),
			progress.WithoutPercentage(),
		)
	}
	m.resize(defaultWidth, defaultHeight)
	return m, nil
}

func (m *Model) redraw(s dashboard.Snapshot) error {
	m.snap = s
	return nil
}

// Snapshot returns the last snapshot the session drew.
func (m *Model) Snapshot() dashboard.Snapshot {
	return m.snap
}

func (m *Model) Init() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	return m.feed.next()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case telemetryMsg:
		if err := m.session.Apply(msg.msg); err != nil {
			m.status = err.Error()
		} else {
			m.status = ""
		}
		if m.feed == nil {
			return m, nil
		}
		return m, m.feed.next()
	case feedClosedMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		m.status = "telemetry feed closed"
		return m, nil
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.session.Close()
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.move(-1)
		case key.Matches(msg, keys.Down):
			m.move(1)
		case key.Matches(msg, keys.Channel):
			m.focus = (m.focus + 1) % dashboard.ChannelCount
		}
	}
	return m, nil
}

// move selects the device delta rows away from the current one.
func (m *Model) move(delta int) {
	devices := m.snap.Devices
	if len(devices) == 0 {
		return
	}
	idx := slices.Index(devices, m.snap.Selected) + delta
	idx = min(max(idx, 0), len(devices)-1)
	if devices[idx] == m.snap.Selected {
		return
	}
	if err := m.session.Select(devices[idx]); err != nil {
		m.status = err.Error()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.help.Width = width
	barWidth := max(10, width-labelWidth-12)
	for i := range m.bars {
		m.bars[i].Width = barWidth
	}
}

// chartSize is the braille canvas size inside the trend pane border.
func (m *Model) chartSize() (int, int) {
	// header, labels, three bars, heat index, status, help, two border lines
	const reserved = 10
	w := max(2, m.width-listWidth-2)
	h := max(2, m.height-reserved)
	return w, h
}

func (m *Model) View() string {
	header := titleStyle.Render("iotdash") + "  " + m.snap.DeviceCountLabel

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.deviceList(), m.trendPane())

	lines := []string{header, body}
	lines = append(lines, m.proportionBars()...)
	if m.snap.HeatIndexF != nil {
		line := fmt.Sprintf("%-*s %.1f°F", labelWidth, "Heat index", *m.snap.HeatIndexF)
		if m.snap.WaterBreakMinutes != nil {
			line += fmt.Sprintf("  water break every %d min", *m.snap.WaterBreakMinutes)
		}
		lines = append(lines, line)
	}
	if m.err != nil {
		lines = append(lines, errStyle.Render("ERROR: "+m.err.Error()))
	} else if m.status != "" {
		lines = append(lines, dimStyle.Render(m.status))
	}
	lines = append(lines, m.help.View(keys))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) deviceList() string {
	_, h := m.chartSize()
	var sb strings.Builder
	if len(m.snap.Devices) == 0 {
		sb.WriteString(dimStyle.Render("no devices"))
	}
	for i, id := range m.snap.Devices {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if id == m.snap.Selected {
			sb.WriteString(selectedStyle.Render("> " + id))
		} else {
			sb.WriteString("  " + id)
		}
	}
	return lipgloss.NewStyle().Width(listWidth).Height(h + 3).Render(sb.String())
}

func (m *Model) trendPane() string {
	w, h := m.chartSize()
	trend := m.snap.Trend

	chart := renderTrend(trend, m.focus, w, h, m.dark)
	if chart == "" {
		chart = lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, dimStyle.Render("no readings"))
	}

	legend := make([]string, 0, len(trend.Series))
	for i, series := range trend.Series {
		name := series.Label
		if dashboard.Channel(i) == m.focus {
			name = "[" + name + "]"
		}
		legend = append(legend, channelFg[i].Render(name))
	}

	labels := strings.Join(legend, " ")
	if n := len(trend.Labels); n > 0 {
		span := trend.Labels[0] + " .. " + trend.Labels[n-1]
		gap := max(1, w-lipgloss.Width(labels)-len(span))
		labels += strings.Repeat(" ", gap) + dimStyle.Render(span)
	}
	return paneStyle.Render(lipgloss.JoinVertical(lipgloss.Left, chart, labels))
}

func (m *Model) proportionBars() []string {
	out := make([]string, 0, len(m.snap.Proportions))
	for i, p := range m.snap.Proportions {
		if i >= len(m.bars) {
			break
		}
		label := channelFg[i].Render(fmt.Sprintf("%-*s", labelWidth, p.Label))
		out = append(out, label+" "+m.bars[i].ViewAs(p.Ratio())+" "+p.Title)
	}
	return out
}

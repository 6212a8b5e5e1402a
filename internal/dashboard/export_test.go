package dashboard

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTrend(t *testing.T) TrendView {
	t.Helper()
	s, err := NewSession(testDashboardConfig(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.HandleMessage(rawMessage("lab/sensor:1", t0, `{"temperature":20,"humidity":45,"brightness":900}`)))
	require.NoError(t, s.HandleMessage(rawMessage("lab/sensor:1", t0.Add(time.Minute), `{"temperature":21}`)))
	require.NoError(t, s.HandleMessage(rawMessage("lab/sensor:1", t0.Add(2*time.Minute), `{"temperature":22,"humidity":47,"brightness":950}`)))
	return s.Snapshot().Trend
}

func TestExportXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportXLSX(&buf, sampleTrend(t)))

	wb, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer wb.Close()

	sheets := wb.GetSheetList()
	require.Equal(t, []string{"lab_sensor_1"}, sheets)

	rows, err := wb.GetRows(sheets[0])
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Time", "Temperature (ºC)", "Humidity (%)", "Brightness"}, rows[0])
	assert.Equal(t, []string{"2025-03-01 10:00", "20", "45", "900"}, rows[1])
	// gaps stay empty; trailing empty cells are trimmed by GetRows
	assert.Equal(t, []string{"2025-03-01 10:01", "21"}, rows[2])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "readings", sheetName(""))
	assert.Equal(t, "a_b_c", sheetName("a[b]c"))
	assert.Len(t, []rune(sheetName("a-very-long-device-identifier-0123456789")), maxSheetName)
}

func TestRenderTrendPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTrendPNG(&buf, sampleTrend(t), time.UTC, 800, 400))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestRenderTrendPNGSinglePoint(t *testing.T) {
	s, err := NewSession(testDashboardConfig(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.HandleMessage(rawMessage("A", t0, `{"temperature":20}`)))

	var buf bytes.Buffer
	require.NoError(t, RenderTrendPNG(&buf, s.Snapshot().Trend, s.Location(), 0, 0))
	assert.NotZero(t, buf.Len())
}

func TestRenderTrendPNGNoData(t *testing.T) {
	s, err := NewSession(testDashboardConfig(), nil, nil)
	require.NoError(t, err)

	err = RenderTrendPNG(&bytes.Buffer{}, s.Snapshot().Trend, nil, 0, 0)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestRenderTrendPNGSharedTimestamp(t *testing.T) {
	s, err := NewSession(testDashboardConfig(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.HandleMessage(rawMessage("D1", t0, `{"temperature":21.7}`)))
	require.NoError(t, s.HandleMessage(rawMessage("D1", t0, `{"temperature":21.7}`)))
	require.NoError(t, s.HandleMessage(rawMessage("D1", t0, `{"temperature":22,"humidity":40}`)))

	var buf bytes.Buffer
	require.NoError(t, RenderTrendPNG(&buf, s.Snapshot().Trend, s.Location(), 640, 320))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestTimeTickFormatterUsesLocation(t *testing.T) {
	plusTwo := time.FixedZone("UTC+2", 2*60*60)

	format := timeTickFormatter(plusTwo)
	assert.Equal(t, "12:00", format(t0))
	assert.Equal(t, "12:00", format(float64(t0.UnixNano())))
	assert.Equal(t, "10:00", timeTickFormatter(nil)(t0))
	assert.Empty(t, format("10:00"))
}

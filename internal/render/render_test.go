package render

import (
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"LongTerm/internal/calculator"
	"LongTerm/internal/config"
	"LongTerm/internal/model"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestRenderer(dir string) *Renderer {
	r := NewRenderer(dir, config.Default().Render, zap.NewNop())
	r.Now = func() time.Time { return now }
	return r
}

func fixture() (*model.PriceSeries, *model.ForecastSeries) {
	start := now.AddDate(0, 0, -400)
	series := &model.PriceSeries{Symbol: "TEST"}
	fs := &model.ForecastSeries{Symbol: "TEST", History: 401}
	for i := 0; i <= 400; i++ {
		d := start.AddDate(0, 0, i)
		series.Bars = append(series.Bars, model.OHLCV{Time: d, Close: 100 + float64(i)})
	}
	for i := 0; i <= 400+365; i++ {
		d := start.AddDate(0, 0, i)
		v := 100 + float64(i)
		fs.Points = append(fs.Points, model.ForecastPoint{Time: d, Yhat: v, YhatLower: v - 5, YhatUpper: v + 5})
	}
	return series, fs
}

func TestAnnotationDate(t *testing.T) {
	windowStart := now.AddDate(0, 0, -30)

	peak := windowStart.AddDate(0, 0, 40).Add(6 * time.Hour)
	assert.Equal(t, now.AddDate(0, 0, 40), AnnotationDate(now, windowStart, peak))

	// Partial days before the window start floor to the previous whole day.
	early := windowStart.Add(-12 * time.Hour)
	assert.Equal(t, now.AddDate(0, 0, -1), AnnotationDate(now, windowStart, early))
}

func TestAnnotations(t *testing.T) {
	r := newTestRenderer(t.TempDir())
	w := r.Window(now)
	assert.Equal(t, now.AddDate(0, 0, -30), w.ForecastStart)
	assert.Equal(t, now.AddDate(0, 0, 365), w.ForecastEnd)

	pts := []model.ForecastPoint{
		{Time: w.ForecastStart.AddDate(0, 0, 1), Yhat: 10.004},
		{Time: w.ForecastStart.AddDate(0, 0, 5), Yhat: 123.456},
		{Time: w.ForecastStart.AddDate(0, 0, 9), Yhat: 3.14159},
	}
	peaks, notes, err := Annotations(w, pts)
	require.NoError(t, err)
	assert.Equal(t, pts[1], peaks.Max)
	assert.Equal(t, pts[2], peaks.Min)

	require.Len(t, notes, 2)
	assert.Equal(t, "Max Peak: 123.46 (2025-06-20)", notes[0].Text())
	assert.Equal(t, "Min Peak: 3.14 (2025-06-24)", notes[1].Text())
}

func TestRender_WritesPNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "Predictions")
	r := newTestRenderer(dir)
	series, fs := fixture()

	path, err := r.Render(series, fs, "TEST")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "TEST_prediction.png"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 1200, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
}

func TestRender_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(dir)
	series, fs := fixture()

	require.NoError(t, os.WriteFile(r.Path("TEST"), []byte("stale"), 0644))

	_, err := r.Render(series, fs, "TEST")
	require.NoError(t, err)
	first, err := os.ReadFile(r.Path("TEST"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("stale"), first)

	_, err = r.Render(series, fs, "TEST")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRender_EmptyWindow(t *testing.T) {
	dir := t.TempDir()
	r := newTestRenderer(dir)
	series, _ := fixture()
	old := &model.ForecastSeries{Points: []model.ForecastPoint{{Time: now.AddDate(-3, 0, 0), Yhat: 1}}}

	_, err := r.Render(series, old, "OLD")
	assert.ErrorIs(t, err, calculator.ErrEmptyWindow)
	_, statErr := os.Stat(r.Path("OLD"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRender_NoRecentHistory(t *testing.T) {
	r := newTestRenderer(t.TempDir())
	_, fs := fixture()
	stale := &model.PriceSeries{Bars: []model.OHLCV{{Time: now.AddDate(-1, 0, 0), Close: 5}}}

	path, err := r.Render(stale, fs, "STALE")
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestAnnotationDate_TradingDates(t *testing.T) {
	now := time.Date(2026, 10, 19, 2, 0, 0, 0, time.UTC)
	windowStart := now.AddDate(0, 0, -30)

	// Peaks carry midnight trading dates, so the partial day before the run time floors away.
	peak := time.Date(2026, 11, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-12-09", AnnotationDate(now, windowStart, peak).Format(time.DateOnly))
}

func TestWindow_UsesWallClock(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	r := newTestRenderer(t.TempDir())
	// 22:00 on the 18th in New York is already the 19th in UTC.
	w := r.Window(time.Date(2026, 10, 18, 22, 0, 0, 0, ny))
	assert.Equal(t, time.Date(2026, 10, 18, 22, 0, 0, 0, time.UTC), w.Now)
	assert.Equal(t, time.Date(2026, 9, 18, 22, 0, 0, 0, time.UTC), w.ForecastStart)
}

func TestRender_PeaksRestrictedToWindow(t *testing.T) {
	midnight := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	core, logs := observer.New(zap.InfoLevel)
	r := NewRenderer(t.TempDir(), config.Default().Render, zap.New(core))
	r.Now = func() time.Time { return midnight }

	fs := &model.ForecastSeries{Symbol: "EDGE"}
	for offset := -31; offset <= 366; offset++ {
		v := 100.0
		switch offset {
		case -31:
			v = 1000 // larger, but one day before the window
		case 366:
			v = -1000 // smaller, but one day after the window
		case -30:
			v = 500
		case 365:
			v = 1
		}
		fs.Points = append(fs.Points, model.ForecastPoint{Time: midnight.AddDate(0, 0, offset), Yhat: v})
	}
	series := &model.PriceSeries{Bars: []model.OHLCV{{Time: midnight.AddDate(0, 0, -1), Close: 100}}}

	_, err := r.Render(series, fs, "EDGE")
	require.NoError(t, err)

	entries := logs.FilterMessage("plot saved").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Max Peak: 500.00 (2025-06-15)", fields["max"])
	assert.Equal(t, "Min Peak: 1.00 (2026-07-15)", fields["min"])
}

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"LongTerm/internal/collector"
	"LongTerm/internal/config"
	"LongTerm/internal/forecast"
	"LongTerm/internal/model"
	"LongTerm/internal/render"
)

var now = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

func writeSymbols(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stocks.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func linearBars(n int) []model.OHLCV {
	start := now.AddDate(0, 0, -(n - 1))
	bars := make([]model.OHLCV, n)
	for i := range bars {
		bars[i] = model.OHLCV{Time: start.AddDate(0, 0, i), Close: 100 + float64(i)}
	}
	return bars
}

type stubFetcher struct {
	series map[string]*model.PriceSeries
	err    map[string]error
}

func (s *stubFetcher) Fetch(_ context.Context, symbol string, _, _ time.Time) (*model.PriceSeries, error) {
	if err := s.err[symbol]; err != nil {
		return nil, err
	}
	return s.series[symbol], nil
}

type stubPredictor struct {
	err error
}

func (s *stubPredictor) Predict(_ context.Context, series *model.PriceSeries) (*model.ForecastSeries, error) {
	if s.err != nil {
		return nil, s.err
	}
	pts := make([]model.ForecastPoint, series.Len())
	for i, b := range series.Bars {
		pts[i] = model.ForecastPoint{Time: b.Time, Yhat: b.Close}
	}
	return &model.ForecastSeries{Symbol: series.Symbol, Points: pts, History: series.Len(), Growth: true}, nil
}

type recordingRenderer struct {
	mu      sync.Mutex
	symbols []string
}

func (r *recordingRenderer) Render(_ *model.PriceSeries, _ *model.ForecastSeries, symbol string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbols = append(r.symbols, symbol)
	return symbol + "_prediction.png", nil
}

func TestReadSymbols(t *testing.T) {
	path := writeSymbols(t, "RELIANCE\n\n  TCS  \r\n\t\nINFY")
	symbols, err := ReadSymbols(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE", "TCS", "INFY"}, symbols)
}

func TestRun_MissingSymbolsFile(t *testing.T) {
	p := New(&stubFetcher{}, &stubPredictor{}, &recordingRenderer{}, filepath.Join(t.TempDir(), "missing.txt"), zap.NewNop())
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWindow(t *testing.T) {
	p := New(nil, nil, nil, "", zap.NewNop())
	p.Now = func() time.Time { return now }
	start, end := p.Window()
	assert.Equal(t, now, end)
	assert.Equal(t, now.AddDate(0, 0, -5*365), start)
}

func TestRun_SkipsFailingSymbols(t *testing.T) {
	good := &model.PriceSeries{Symbol: "GOOD", Bars: linearBars(10)}
	f := &stubFetcher{
		series: map[string]*model.PriceSeries{
			"GOOD":  good,
			"EMPTY": {Symbol: "EMPTY"},
		},
		err: map[string]error{"BAD": collector.ErrNoData},
	}
	r := &recordingRenderer{}
	p := New(f, &stubPredictor{}, r, writeSymbols(t, "BAD\nGOOD\nEMPTY\n"), zaptest.NewLogger(t))
	p.Now = func() time.Time { return now }

	results, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, StageFetch, results[0].Stage)
	assert.ErrorIs(t, results[0].Err, collector.ErrNoData)
	assert.True(t, results[1].OK())
	assert.Equal(t, "GOOD_prediction.png", results[1].Path)
	assert.Equal(t, 10, results[1].Rows)
	assert.Equal(t, StageFetch, results[2].Stage)

	assert.Equal(t, []string{"GOOD"}, r.symbols)
}

func TestRun_ForecastFailure(t *testing.T) {
	f := &stubFetcher{series: map[string]*model.PriceSeries{"X": {Symbol: "X", Bars: linearBars(5)}}}
	r := &recordingRenderer{}
	p := New(f, &stubPredictor{err: forecast.ErrInsufficientData}, r, writeSymbols(t, "X\n"), zap.NewNop())

	results, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StageForecast, results[0].Stage)
	assert.ErrorIs(t, results[0].Err, forecast.ErrInsufficientData)
	assert.Empty(t, r.symbols)
}

func TestRun_ConcurrentWorkersKeepOrder(t *testing.T) {
	series := map[string]*model.PriceSeries{}
	for _, s := range []string{"A", "B", "C", "D", "E"} {
		series[s] = &model.PriceSeries{Symbol: s, Bars: linearBars(3)}
	}
	r := &recordingRenderer{}
	p := New(&stubFetcher{series: series}, &stubPredictor{}, r, writeSymbols(t, "A\nB\nC\nD\nE\n"), zap.NewNop())
	p.Workers = 3

	results, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i, s := range []string{"A", "B", "C", "D", "E"} {
		assert.Equal(t, s, results[i].Symbol)
		assert.True(t, results[i].OK())
	}
	assert.ElementsMatch(t, []string{"A", "B", "C", "D", "E"}, r.symbols)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &stubFetcher{err: map[string]error{"A": context.Canceled, "B": context.Canceled}}
	p := New(f, &stubPredictor{}, &recordingRenderer{}, writeSymbols(t, "A\nB\n"), zap.NewNop())

	results, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.OK())
	}
}

func newEndToEnd(t *testing.T, fetcher *collector.MockFetcher, symbols string) (*Pipeline, string) {
	t.Helper()
	cfg := config.Default()
	dir := filepath.Join(t.TempDir(), "Predictions")
	log := zaptest.NewLogger(t)
	clock := func() time.Time { return now }

	col := collector.NewCollector(fetcher, collector.Options{Suffix: ".NS", RateLimit: 100, MaxRetries: 1}, log)
	rnd := render.NewRenderer(dir, cfg.Render, log)
	rnd.Now = clock

	p := New(col, forecast.NewForecaster(cfg.Forecast, log), rnd, writeSymbols(t, symbols), log)
	p.Now = clock
	return p, dir
}

func TestRun_EndToEnd(t *testing.T) {
	fetcher := &collector.MockFetcher{DailyData: linearBars(400)}
	p, dir := newEndToEnd(t, fetcher, "TEST\n")

	results, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	require.True(t, res.OK(), "stage %s: %v", res.Stage, res.Err)
	assert.True(t, res.Growth)
	assert.Equal(t, 400+365, res.Rows)
	assert.Equal(t, filepath.Join(dir, "TEST_prediction.png"), res.Path)
	assert.Equal(t, []string{"TEST.NS"}, fetcher.Tickers)

	info, err := os.Stat(res.Path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	// A second run overwrites the chart instead of adding one.
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_EndToEndDownloadFailure(t *testing.T) {
	fetcher := &collector.MockFetcher{Err: errors.New("delisted")}
	p, dir := newEndToEnd(t, fetcher, "GONE\n")

	results, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StageFetch, results[0].Stage)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"LongTerm/internal/model"
)

// Stage names the step at which a symbol stopped.
type Stage string

const (
	StageFetch    Stage = "FETCH"
	StageForecast Stage = "FORECAST"
	StageRender   Stage = "RENDER"
	StageDone     Stage = "DONE"
)

// Fetcher supplies the price history of a symbol.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error)
}

// Predictor turns a price history into a forecast.
type Predictor interface {
	Predict(ctx context.Context, series *model.PriceSeries) (*model.ForecastSeries, error)
}

// Renderer writes the chart of a symbol and returns its path.
type Renderer interface {
	Render(series *model.PriceSeries, forecast *model.ForecastSeries, symbol string) (string, error)
}

// Result is the outcome for one symbol.
type Result struct {
	Symbol string
	Stage  Stage // StageDone on success, otherwise the stage that failed
	Err    error
	Path   string
	Growth bool
	Rows   int // forecast rows
}

// OK reports whether a chart was written.
func (r Result) OK() bool { return r.Stage == StageDone }

// Pipeline runs fetch, forecast and render for every symbol of a list.
type Pipeline struct {
	Fetcher   Fetcher
	Predictor Predictor
	Renderer  Renderer

	SymbolsFile  string
	HistoryYears int
	Workers      int
	Now          func() time.Time

	log *zap.Logger
}

// New creates a Pipeline.
func New(f Fetcher, p Predictor, r Renderer, symbolsFile string, log *zap.Logger) *Pipeline {
	return &Pipeline{
		Fetcher:      f,
		Predictor:    p,
		Renderer:     r,
		SymbolsFile:  symbolsFile,
		HistoryYears: 5,
		Workers:      1,
		Now:          time.Now,
		log:          log,
	}
}

// ReadSymbols reads one symbol per line, trimming whitespace and skipping blank lines.
func ReadSymbols(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open symbols: %w", err)
	}
	defer f.Close()

	var symbols []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		symbols = append(symbols, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read symbols: %w", err)
	}
	return symbols, nil
}

// Window returns the shared fetch window: HistoryYears*365 days back to now.
func (p *Pipeline) Window() (start, end time.Time) {
	end = p.Now()
	start = end.AddDate(0, 0, -p.HistoryYears*365)
	return start, end
}

// Run processes every symbol of SymbolsFile. Per-symbol failures are logged and recorded in
// the results; only an unreadable symbols file aborts the run.
func (p *Pipeline) Run(ctx context.Context) ([]Result, error) {
	symbols, err := ReadSymbols(p.SymbolsFile)
	if err != nil {
		return nil, err
	}
	start, end := p.Window()
	p.log.Info("run started",
		zap.Int("symbols", len(symbols)),
		zap.String("start", start.Format(time.DateOnly)),
		zap.String("end", end.Format(time.DateOnly)),
		zap.Int("workers", p.Workers))

	results := make([]Result, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.Workers, 1))
	for i, symbol := range symbols {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = p.Process(gctx, symbol, start, end)
			return nil
		})
	}
	_ = g.Wait()

	// Symbols never started because of cancellation.
	for i, r := range results {
		if r.Symbol == "" {
			results[i] = Result{Symbol: symbols[i], Stage: StageFetch, Err: ctx.Err()}
		}
	}

	done := 0
	for _, r := range results {
		if r.OK() {
			done++
		}
	}
	p.log.Info("run finished", zap.Int("rendered", done), zap.Int("skipped", len(results)-done))
	return results, ctx.Err()
}

// Process runs the pipeline for one symbol and never fails the run.
func (p *Pipeline) Process(ctx context.Context, symbol string, start, end time.Time) Result {
	res := Result{Symbol: symbol}
	log := p.log.With(zap.String("symbol", symbol))

	series, err := p.Fetcher.Fetch(ctx, symbol, start, end)
	if err == nil && (series == nil || series.Len() == 0) {
		err = errors.New("empty price series")
	}
	if err != nil {
		log.Warn("download failed", zap.Error(err))
		res.Stage, res.Err = StageFetch, err
		return res
	}

	forecast, err := p.Predictor.Predict(ctx, series)
	if err == nil && (forecast == nil || forecast.Len() == 0) {
		err = errors.New("empty forecast")
	}
	if err != nil {
		log.Warn("forecast failed", zap.Error(err))
		res.Stage, res.Err = StageForecast, err
		return res
	}
	res.Growth = forecast.Growth
	res.Rows = forecast.Len()

	path, err := p.Renderer.Render(series, forecast, symbol)
	if err != nil {
		log.Warn("render failed", zap.Error(err))
		res.Stage, res.Err = StageRender, err
		return res
	}
	res.Stage, res.Path = StageDone, path
	return res
}

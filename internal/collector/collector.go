package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"LongTerm/internal/model"
)

var (
	// ErrNoData is returned when the provider has no bars for the requested window.
	ErrNoData = errors.New("no data returned")
	// ErrInvalidRequest is returned for an empty symbol or an inverted date window.
	ErrInvalidRequest = errors.New("invalid fetch request")
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price     float64
	DailyData []model.OHLCV
	Err       error
	// Failures makes the first N calls fail with Err before succeeding.
	Failures int

	mu      sync.Mutex
	Calls   int
	Tickers []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(_ context.Context, ticker string, start, end time.Time) ([]model.OHLCV, error) {
	m.mu.Lock()
	m.Calls++
	m.Tickers = append(m.Tickers, ticker)
	calls := m.Calls
	m.mu.Unlock()

	if m.Err != nil && (m.Failures == 0 || calls <= m.Failures) {
		return nil, m.Err
	}
	if m.DailyData != nil {
		return m.DailyData, nil
	}
	return generateMockBars(m.Price, start, end), nil
}

func generateMockBars(basePrice float64, start, end time.Time) []model.OHLCV {
	days := int(end.Sub(start).Hours()/24) + 1
	bars := make([]model.OHLCV, 0, days)
	for i := 0; i < days; i++ {
		p := basePrice * (1 + float64(i-days/2)*0.001)
		bars = append(bars, model.OHLCV{
			Time:   start.AddDate(0, 0, i),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		})
	}
	return bars
}

// Options tunes request pacing and retries.
type Options struct {
	Suffix     string
	RateLimit  float64 // requests per second
	MaxRetries int
	RetryWait  time.Duration
}

// Collector fetches daily price series for plain symbols, appending the market suffix.
type Collector struct {
	Fetcher Fetcher
	Suffix  string

	limiter    *rate.Limiter
	maxRetries int
	retryWait  time.Duration
	log        *zap.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, opts Options, log *zap.Logger) *Collector {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 500 * time.Millisecond
	}
	return &Collector{
		Fetcher:    fetcher,
		Suffix:     opts.Suffix,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		maxRetries: opts.MaxRetries,
		retryWait:  opts.RetryWait,
		log:        log,
	}
}

// Ticker returns the provider ticker for symbol.
func (c *Collector) Ticker(symbol string) string {
	return symbol + c.Suffix
}

// Fetch returns the daily bars of symbol for [start, end], ordered by strictly increasing date.
func (c *Collector) Fetch(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidRequest)
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: start %s after end %s", ErrInvalidRequest,
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	ticker := c.Ticker(symbol)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryWait

	attempt := 0
	bars, err := backoff.Retry(ctx, func() ([]model.OHLCV, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		bars, err := c.Fetcher.FetchDailyBars(ctx, ticker, start, end)
		if err != nil {
			c.log.Debug("fetch attempt failed",
				zap.String("symbol", symbol),
				zap.String("source", c.Fetcher.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return nil, err
		}
		return bars, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(c.maxRetries)))
	if err != nil {
		return nil, fmt.Errorf("fetch %s from %s: %w", ticker, c.Fetcher.Name(), err)
	}

	bars = normalizeBars(bars)
	if len(bars) == 0 {
		return nil, fmt.Errorf("fetch %s from %s: %w", ticker, c.Fetcher.Name(), ErrNoData)
	}

	c.log.Debug("fetched bars",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)),
		zap.Time("first", bars[0].Time),
		zap.Time("last", bars[len(bars)-1].Time))

	return &model.PriceSeries{
		Symbol:    symbol,
		Bars:      bars,
		FetchedAt: time.Now(),
	}, nil
}

// normalizeBars sorts bars chronologically and keeps one bar per calendar date (the later one).
func normalizeBars(bars []model.OHLCV) []model.OHLCV {
	if len(bars) == 0 {
		return nil
	}
	sorted := make([]model.OHLCV, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && sameDay(out[n-1].Time, b.Time) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

package collector

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"

	"LongTerm/internal/model"
)

// YahooFetcher implements Fetcher using the finance-go Yahoo Finance client.
type YahooFetcher struct {
	// Backend replaces the finance-go default backend when set.
	Backend finance.Backend
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher() *YahooFetcher {
	return &YahooFetcher{}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) client() chart.Client {
	if f.Backend != nil {
		return chart.Client{B: f.Backend}
	}
	return chart.Client{B: finance.GetBackend(finance.YFinBackend)}
}

func (f *YahooFetcher) FetchDailyBars(ctx context.Context, ticker string, start, end time.Time) (bars []model.OHLCV, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// finance-go indexes the response without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			bars, err = nil, fmt.Errorf("yahoo chart %s: malformed response: %v", ticker, r)
		}
	}()

	// Yahoo treats the end bound as exclusive.
	until := end.AddDate(0, 0, 1)
	params := &chart.Params{
		Symbol:   ticker,
		Start:    datetime.New(&start),
		End:      datetime.New(&until),
		Interval: datetime.OneDay,
	}
	params.Context = &ctx

	iter := f.client().Get(params)
	// The request runs eagerly; metadata is only present when it succeeded.
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	meta := iter.Meta()
	loc := exchangeLocation(meta.ExchangeTimezoneName, meta.Gmtoffset)

	for iter.Next() {
		bar := iter.Bar()
		o := decimalToFloat(bar.Open)
		h := decimalToFloat(bar.High)
		l := decimalToFloat(bar.Low)
		c := decimalToFloat(bar.Close)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.OHLCV{
			Time:   model.TradingDate(time.Unix(int64(bar.Timestamp), 0), loc),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: float64(bar.Volume),
		})
	}
	return bars, nil
}

func decimalToFloat(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

package collector

import (
	"context"
	"time"
	_ "time/tzdata" // exchange zones must resolve on hosts without a zoneinfo database

	"LongTerm/internal/model"
)

// DefaultExchangeZone is used when a provider does not report the exchange time zone.
const DefaultExchangeZone = "Asia/Kolkata"

// Fetcher defines the interface for fetching market data.
//
// FetchDailyBars returns the daily bars of ticker for the closed interval [start, end].
// Each bar is stamped with midnight UTC of its trading date on the exchange.
// The ticker is passed through unchanged; exchange suffixes are the caller's concern.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, ticker string, start, end time.Time) ([]model.OHLCV, error)
	Name() string
}

// exchangeLocation resolves the exchange time zone from its IANA name, falling back to
// the reported GMT offset and then to DefaultExchangeZone.
func exchangeLocation(name string, gmtOffset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if gmtOffset != 0 {
		return time.FixedZone("exchange", gmtOffset)
	}
	loc, err := time.LoadLocation(DefaultExchangeZone)
	if err != nil {
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}

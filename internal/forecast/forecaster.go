package forecast

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"LongTerm/internal/calculator"
	"LongTerm/internal/config"
	"LongTerm/internal/model"
)

const (
	yearlyOrders = 10
	weeklyOrders = 3
	dailyOrders  = 4
)

// Forecaster fits one model per price series and projects it over the configured horizon.
type Forecaster struct {
	cfg config.Forecast
	log *zap.Logger
}

// NewForecaster creates a Forecaster.
func NewForecaster(cfg config.Forecast, log *zap.Logger) *Forecaster {
	return &Forecaster{cfg: cfg, log: log}
}

// ModelOptions translates the configuration into model options. The growth
// seasonality is only included when growth is set.
func (f *Forecaster) ModelOptions(growth bool, events []Event) *Options {
	var seasons []SeasonalityConfig
	if f.cfg.Yearly() {
		seasons = append(seasons, NewYearlySeasonalityConfig(yearlyOrders))
	}
	if f.cfg.Weekly() {
		seasons = append(seasons, NewWeeklySeasonalityConfig(weeklyOrders))
	}
	if f.cfg.Daily() {
		seasons = append(seasons, NewDailySeasonalityConfig(dailyOrders))
	}
	if growth {
		gs := f.cfg.GrowthSeasonality
		seasons = append(seasons, SeasonalityConfig{
			Name:   gs.Name,
			Orders: gs.FourierOrder,
			Period: time.Duration(gs.Period * float64(Day)),
		})
	}

	return &Options{
		ChangepointOptions: ChangepointOptions{
			Auto:                true,
			AutoNumChangepoints: f.cfg.NChangepoints,
			AutoRange:           f.cfg.ChangepointRange,
			PriorScale:          f.cfg.ChangepointPriorScale,
		},
		SeasonalityOptions: SeasonalityOptions{
			SeasonalityConfigs: seasons,
			PriorScale:         f.cfg.SeasonalityPriorScale,
		},
		EventOptions: EventOptions{
			Events:     events,
			PriorScale: f.cfg.HolidaysPriorScale,
		},
		IntervalWidth: f.cfg.IntervalWidth,
	}
}

// Predict fits the close prices of series and returns history plus HorizonDays predictions.
// When the series shows growth an extra custom seasonality is added.
func (f *Forecaster) Predict(ctx context.Context, series *model.PriceSeries) (fs *model.ForecastSeries, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if series == nil || series.Len() < 2 {
		return nil, ErrInsufficientData
	}

	defer func() {
		if r := recover(); r != nil {
			fs = nil
			err = fmt.Errorf("forecast %s: model failure: %v", series.Symbol, r)
		}
	}()

	growth := calculator.HasGrowth(series.Bars)

	t := make([]time.Time, series.Len())
	for i, b := range series.Bars {
		t[i] = b.Time
	}
	fromYear := t[0].Year()
	toYear := t[len(t)-1].AddDate(0, 0, f.cfg.HorizonDays).Year()

	events, err := HolidayEvents(f.cfg.CountryHolidays, fromYear, toYear)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", series.Symbol, err)
	}
	if len(events) > 0 {
		if missing := UncoveredYears(fromYear, toYear); len(missing) > 0 {
			f.log.Warn("festival holidays unavailable for some years",
				zap.String("symbol", series.Symbol),
				zap.Ints("years", missing))
		}
	}

	m, err := New(f.ModelOptions(growth, events))
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", series.Symbol, err)
	}

	started := time.Now()
	if err := m.Fit(t, series.Closes()); err != nil {
		return nil, fmt.Errorf("forecast %s: %w", series.Symbol, err)
	}
	future, err := m.MakeFuturePeriods(f.cfg.HorizonDays, Day)
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", series.Symbol, err)
	}
	res, err := m.Predict(append(t, future...))
	if err != nil {
		return nil, fmt.Errorf("forecast %s: %w", series.Symbol, err)
	}

	f.log.Debug("model fitted",
		zap.String("symbol", series.Symbol),
		zap.Bool("growth", growth),
		zap.Strings("seasonalities", m.Seasonalities()),
		zap.Strings("events", m.Events()),
		zap.Int("changepoints", len(m.Changepoints())),
		zap.Int("rows", res.Len()),
		zap.Duration("elapsed", time.Since(started)))

	return &model.ForecastSeries{
		Symbol:  series.Symbol,
		Points:  res.Points(),
		History: series.Len(),
		Growth:  growth,
	}, nil
}

package forecast

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidOptions is returned by New for inconsistent model options.
var ErrInvalidOptions = errors.New("invalid forecast options")

const (
	// Day is the sampling frequency of daily bars.
	Day  = 24 * time.Hour
	Week = 7 * Day
	Year = time.Duration(365.25 * float64(Day))
)

// SeasonalityConfig is a periodic component expressed with Orders Fourier pairs.
type SeasonalityConfig struct {
	Name   string        `json:"name"`
	Orders int           `json:"orders"`
	Period time.Duration `json:"period"`
}

// NewYearlySeasonalityConfig returns a yearly seasonality with the given order.
func NewYearlySeasonalityConfig(orders int) SeasonalityConfig {
	return SeasonalityConfig{Name: "yearly", Orders: orders, Period: Year}
}

// NewWeeklySeasonalityConfig returns a weekly seasonality with the given order.
func NewWeeklySeasonalityConfig(orders int) SeasonalityConfig {
	return SeasonalityConfig{Name: "weekly", Orders: orders, Period: Week}
}

// NewDailySeasonalityConfig returns a daily seasonality with the given order.
func NewDailySeasonalityConfig(orders int) SeasonalityConfig {
	return SeasonalityConfig{Name: "daily", Orders: orders, Period: Day}
}

// SeasonalityOptions lists the seasonal components and their shared prior scale.
type SeasonalityOptions struct {
	SeasonalityConfigs []SeasonalityConfig `json:"seasonality_configs"`
	PriorScale         float64             `json:"prior_scale"`
}

// ChangepointOptions controls where the trend may bend. With Auto set,
// AutoNumChangepoints are spread uniformly over the first AutoRange share of the history.
type ChangepointOptions struct {
	Auto                bool    `json:"auto"`
	AutoNumChangepoints int     `json:"auto_num_changepoints"`
	AutoRange           float64 `json:"auto_range"`
	PriorScale          float64 `json:"prior_scale"`
}

// Event is a named interval [Start, End). Events sharing a name share one regressor.
type Event struct {
	Name  string    `json:"name"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewEvent returns an event, validating that it spans a positive interval.
func NewEvent(name string, start, end time.Time) (Event, error) {
	e := Event{Name: name, Start: start, End: end}
	return e, e.validate()
}

func (e Event) validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: event without a name", ErrInvalidOptions)
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("%w: event %q ends before it starts", ErrInvalidOptions, e.Name)
	}
	return nil
}

// Contains reports whether t falls inside the event.
func (e Event) Contains(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}

// EventOptions lists the events fitted as indicator regressors.
type EventOptions struct {
	Events     []Event `json:"events"`
	PriorScale float64 `json:"prior_scale"`
}

// Options configures the additive model.
type Options struct {
	ChangepointOptions ChangepointOptions `json:"changepoint_options"`
	SeasonalityOptions SeasonalityOptions `json:"seasonality_options"`
	EventOptions       EventOptions       `json:"event_options"`
	IntervalWidth      float64            `json:"interval_width"`
}

// NewDefaultOptions returns the usual additive-model defaults: yearly and weekly
// seasonality and 25 automatic changepoints over 80% of the history.
func NewDefaultOptions() *Options {
	return &Options{
		ChangepointOptions: ChangepointOptions{
			Auto:                true,
			AutoNumChangepoints: 25,
			AutoRange:           0.8,
			PriorScale:          0.05,
		},
		SeasonalityOptions: SeasonalityOptions{
			SeasonalityConfigs: []SeasonalityConfig{
				NewYearlySeasonalityConfig(10),
				NewWeeklySeasonalityConfig(3),
			},
			PriorScale: 10,
		},
		EventOptions:  EventOptions{PriorScale: 10},
		IntervalWidth: 0.8,
	}
}

// Validate checks the options for consistency.
func (o *Options) Validate() error {
	cp := o.ChangepointOptions
	if cp.Auto {
		if cp.AutoNumChangepoints < 0 {
			return fmt.Errorf("%w: negative changepoint count", ErrInvalidOptions)
		}
		if cp.AutoRange <= 0 || cp.AutoRange > 1 {
			return fmt.Errorf("%w: changepoint range %v outside (0, 1]", ErrInvalidOptions, cp.AutoRange)
		}
		if cp.PriorScale <= 0 {
			return fmt.Errorf("%w: changepoint prior scale must be positive", ErrInvalidOptions)
		}
	}

	seen := make(map[string]bool)
	for _, s := range o.SeasonalityOptions.SeasonalityConfigs {
		if s.Name == "" || s.Orders < 1 || s.Period <= 0 {
			return fmt.Errorf("%w: seasonality %+v", ErrInvalidOptions, s)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate seasonality %q", ErrInvalidOptions, s.Name)
		}
		seen[s.Name] = true
	}
	if len(o.SeasonalityOptions.SeasonalityConfigs) > 0 && o.SeasonalityOptions.PriorScale <= 0 {
		return fmt.Errorf("%w: seasonality prior scale must be positive", ErrInvalidOptions)
	}

	for _, e := range o.EventOptions.Events {
		if err := e.validate(); err != nil {
			return err
		}
	}
	if len(o.EventOptions.Events) > 0 && o.EventOptions.PriorScale <= 0 {
		return fmt.Errorf("%w: event prior scale must be positive", ErrInvalidOptions)
	}

	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		return fmt.Errorf("%w: interval width %v outside (0, 1)", ErrInvalidOptions, o.IntervalWidth)
	}
	return nil
}

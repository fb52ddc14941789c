package model

import "time"

// ForecastPoint is one predicted row: the point estimate and its uncertainty interval.
type ForecastPoint struct {
	Time      time.Time
	Yhat      float64
	YhatLower float64
	YhatUpper float64
	Trend     float64
}

// ForecastSeries spans the fitted history followed by the forecast horizon.
type ForecastSeries struct {
	Symbol  string
	Points  []ForecastPoint
	History int  // number of leading points that cover the fitted history
	Growth  bool // whether the growth seasonality was added
}

// Len returns the number of rows.
func (f *ForecastSeries) Len() int { return len(f.Points) }

// Between returns the points whose time lies within [from, to].
func (f *ForecastSeries) Between(from, to time.Time) []ForecastPoint {
	var out []ForecastPoint
	for _, p := range f.Points {
		if p.Time.Before(from) || p.Time.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

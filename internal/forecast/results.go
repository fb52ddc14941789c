package forecast

import (
	"time"

	"LongTerm/internal/model"
)

// Components holds the additive parts of a prediction, one value per time point.
type Components struct {
	Trend       []float64 `json:"trend"`
	Seasonality []float64 `json:"seasonality"`
	Event       []float64 `json:"event"`
}

// Results returns the input time points with their predicted forecast, upper, and lower values.
// Slices will be of the same length.
type Results struct {
	T        []time.Time `json:"time"`
	Forecast []float64   `json:"forecast"`
	Upper    []float64   `json:"upper"`
	Lower    []float64   `json:"lower"`

	SeriesComponents Components `json:"series_components"`
}

func newResults(n int) *Results {
	return &Results{
		T:        make([]time.Time, n),
		Forecast: make([]float64, n),
		Upper:    make([]float64, n),
		Lower:    make([]float64, n),
		SeriesComponents: Components{
			Trend:       make([]float64, n),
			Seasonality: make([]float64, n),
			Event:       make([]float64, n),
		},
	}
}

// Len returns the number of time points.
func (r *Results) Len() int { return len(r.T) }

// Points converts the results into forecast rows.
func (r *Results) Points() []model.ForecastPoint {
	pts := make([]model.ForecastPoint, r.Len())
	for i := range pts {
		pts[i] = model.ForecastPoint{
			Time:      r.T[i],
			Yhat:      r.Forecast[i],
			YhatLower: r.Lower[i],
			YhatUpper: r.Upper[i],
			Trend:     r.SeriesComponents.Trend[i],
		}
	}
	return pts
}

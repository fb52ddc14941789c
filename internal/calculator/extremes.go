package calculator

import (
	"errors"

	"gonum.org/v1/gonum/floats"

	"LongTerm/internal/model"
)

// ErrEmptyWindow is returned when there is nothing to scan.
var ErrEmptyWindow = errors.New("empty forecast window")

// Peaks holds the highest and lowest predicted rows of a forecast window.
type Peaks struct {
	Max model.ForecastPoint
	Min model.ForecastPoint
}

// FindPeaks returns the rows with the maximum and minimum Yhat.
// On ties the earliest row wins.
func FindPeaks(points []model.ForecastPoint) (Peaks, error) {
	if len(points) == 0 {
		return Peaks{}, ErrEmptyWindow
	}
	yhat := make([]float64, len(points))
	for i, p := range points {
		yhat[i] = p.Yhat
	}
	return Peaks{
		Max: points[floats.MaxIdx(yhat)],
		Min: points[floats.MinIdx(yhat)],
	}, nil
}

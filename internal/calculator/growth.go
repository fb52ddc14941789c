package calculator

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"LongTerm/internal/model"
)

// PctChange returns the day-over-day relative change of prices.
// The result has len(prices)-1 elements; a zero previous price yields ±Inf or NaN.
func PctChange(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	changes := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		changes[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
	}
	return changes
}

// MeanPctChange averages the day-over-day changes of the close price, skipping NaN
// changes (zero to zero). A rise from a zero close is +Inf and carries into the mean.
// ok is false when there is no change to average.
func MeanPctChange(bars []model.OHLCV) (mean float64, ok bool) {
	changes := PctChange(extractCloses(bars))
	valid := changes[:0]
	for _, c := range changes {
		if math.IsNaN(c) {
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return 0, false
	}
	return stat.Mean(valid, nil), true
}

// HasGrowth reports whether the mean day-over-day close change is strictly positive.
// Fewer than two bars never count as growth.
func HasGrowth(bars []model.OHLCV) bool {
	if len(bars) < 2 {
		return false
	}
	mean, ok := MeanPctChange(bars)
	return ok && mean > 0
}

func extractCloses(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

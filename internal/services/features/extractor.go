package features

import (
	"math"

	"TrendScan/internal/domain/models"
)

// Returns computes simple returns r_t = C_t/C_{t-1} - 1.
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func Returns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, candles[i].Close/prev-1)
	}
	return out
}

// SMA computes the simple moving average of the trailing `period` closes.
// Returns 0 when the series is shorter than the period.
func SMA(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(period)
}

// AnnualizedVolatility computes the annualized standard deviation of the
// given returns using barsPerYear observations per year.
func AnnualizedVolatility(returns []float64, barsPerYear float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	variance := ss / float64(n-1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

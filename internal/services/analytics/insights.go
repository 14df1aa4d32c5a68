package analytics

import (
	"TrendScan/internal/domain/models"
	domrepo "TrendScan/internal/domain/repository"
	"TrendScan/internal/services/features"
)

// minInsightObservations is the shortest series the trend/volatility/regime
// insights are computed for. Below it they are omitted, not failed.
const minInsightObservations = 30

const (
	shortTrendPeriod = 10
	longTrendPeriod  = 30
)

// Annualized volatility bucket boundaries.
const (
	volLowThreshold  = 0.25
	volHighThreshold = 0.75
)

// computeInsights derives the trend, volatility bucket, and regime label for
// a series. All three are empty when fewer than 30 observations exist.
func computeInsights(prices models.PriceSeries) (trend, volBucket, regime string) {
	if prices.Len() < minInsightObservations {
		return "", "", ""
	}

	closes := prices.Closes()
	shortMA := features.SMA(closes, shortTrendPeriod)
	longMA := features.SMA(closes, longTrendPeriod)
	if shortMA >= longMA {
		trend = models.TrendUp
	} else {
		trend = models.TrendDown
	}

	returns := features.Returns(prices.Candles)
	barsPerYear := domrepo.NormalizeTimeframe(prices.Interval).BarsPerYear()
	vol := features.AnnualizedVolatility(returns, barsPerYear)
	switch {
	case vol < volLowThreshold:
		volBucket = models.VolLow
	case vol > volHighThreshold:
		volBucket = models.VolHigh
	default:
		volBucket = models.VolMedium
	}

	regime = regimeLabel(trend, volBucket)
	return trend, volBucket, regime
}

// regimeLabel maps the trend/volatility pair onto a market regime.
func regimeLabel(trend, volBucket string) string {
	switch volBucket {
	case models.VolHigh:
		return models.RegimeVolatile
	case models.VolLow:
		return models.RegimeQuiet
	}
	if trend == models.TrendUp {
		return models.RegimeBull
	}
	return models.RegimeBear
}

package service

import "TrendScan/internal/domain/models"

// ChannelFitter fits a trend channel to a price series.
type ChannelFitter interface {
	Fit(prices models.PriceSeries, degree int, kstd float64) (*models.Channel, error)
}

// SignalEvaluator maps the latest price and channel to a discrete signal.
type SignalEvaluator interface {
	Evaluate(prices models.PriceSeries, channel *models.Channel) (models.SignalRecord, error)
}

// BacktestRunner replays a channel strategy against a price series.
type BacktestRunner interface {
	Run(prices models.PriceSeries, channel *models.Channel) models.BacktestResult
}

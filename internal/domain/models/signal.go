package models

import "time"

// Signal is the discrete classification of an asset at its latest observation.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Trend labels from the short/long moving-average comparison.
const (
	TrendUp   = "up"
	TrendDown = "down"
)

// Volatility buckets from annualized return stddev.
const (
	VolLow    = "low"
	VolMedium = "medium"
	VolHigh   = "high"
)

// Market regime labels derived from the trend/volatility pair.
const (
	RegimeBull     = "bull"
	RegimeBear     = "bear"
	RegimeVolatile = "volatile"
	RegimeQuiet    = "quiet"
)

// SignalRecord is the per-symbol outcome of one channel evaluation.
// Created fresh per evaluation and never mutated afterwards.
type SignalRecord struct {
	Symbol    string          `json:"symbol"`
	Timestamp time.Time       `json:"timestamp"`
	Signal    Signal          `json:"signal"`
	LastPrice float64         `json:"last_price"`
	Channel   ChannelSnapshot `json:"channel"`

	// DeviationPct is the percent distance of the last close from the
	// center line; PotentialReturnPct nets out an assumed round-trip spread.
	DeviationPct       float64 `json:"deviation_pct"`
	PotentialReturnPct float64 `json:"potential_return_pct"`

	// Best-effort insights; empty when the series is too short (<30 obs).
	Trend            string `json:"trend,omitempty"`
	VolatilityBucket string `json:"volatility_bucket,omitempty"`
	MarketRegime     string `json:"market_regime,omitempty"`
}

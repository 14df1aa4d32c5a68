package models

import (
	"fmt"
	"time"
)

// Candle represents a single OHLCV observation.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// PriceSeries is an ordered OHLCV history for one symbol.
// Timestamps are strictly increasing; the series is immutable once handed
// to the analytics layer.
type PriceSeries struct {
	Symbol   string
	Interval string
	Candles  []Candle
}

// Len returns the number of observations.
func (p PriceSeries) Len() int { return len(p.Candles) }

// Closes extracts the close-price sequence.
func (p PriceSeries) Closes() []float64 {
	out := make([]float64, len(p.Candles))
	for i, c := range p.Candles {
		out[i] = c.Close
	}
	return out
}

// LastClose returns the most recent close price, or 0 for an empty series.
func (p PriceSeries) LastClose() float64 {
	if len(p.Candles) == 0 {
		return 0
	}
	return p.Candles[len(p.Candles)-1].Close
}

// Validate checks ordering invariants: strictly increasing timestamps,
// no duplicates.
func (p PriceSeries) Validate() error {
	for i := 1; i < len(p.Candles); i++ {
		if !p.Candles[i].Timestamp.After(p.Candles[i-1].Timestamp) {
			return fmt.Errorf("price series %s: timestamps not strictly increasing at index %d", p.Symbol, i)
		}
	}
	return nil
}

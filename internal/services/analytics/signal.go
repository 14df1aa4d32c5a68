package analytics

import (
	"math"
	"strings"
	"time"

	"TrendScan/internal/domain/models"
	domsvc "TrendScan/internal/domain/service"
)

// Assumed one-way spread cost in percent, keyed by asset class. The potential
// return nets out a round trip (2x) so signals do not promise edge that a
// real fill would eat. Fixed estimates, not recomputed.
const (
	spreadCryptoPct    = 0.1
	spreadForexPct     = 0.02
	spreadCommodityPct = 0.05
	spreadDefaultPct   = 0.05
)

// SignalGenerator maps the latest price and channel to a BUY/SELL/HOLD
// record plus best-effort market insights.
type SignalGenerator struct {
	clock func() time.Time
}

func NewSignalGenerator() *SignalGenerator {
	return &SignalGenerator{clock: time.Now}
}

// Evaluate produces a SignalRecord for the last observation of the series.
// It fails only when the channel violates its ordering invariant; insight
// computation never blocks signal emission.
func (g *SignalGenerator) Evaluate(prices models.PriceSeries, channel *models.Channel) (models.SignalRecord, error) {
	if channel == nil || channel.Len() != prices.Len() || !channel.Ordered() {
		return models.SignalRecord{}, models.ErrUnstableFit
	}

	last := prices.Len() - 1
	close := prices.Candles[last].Close
	snap := channel.Snapshot(last)

	signal := models.SignalHold
	switch {
	case close < snap.Lower:
		signal = models.SignalBuy
	case close > snap.Upper:
		signal = models.SignalSell
	}

	deviationPct := 0.0
	if snap.Center != 0 {
		deviationPct = (close - snap.Center) / snap.Center * 100
	}

	spread := assetSpreadPct(prices.Symbol)
	potential := math.Abs(deviationPct) - 2*spread
	if potential < 0 {
		potential = 0
	}

	rec := models.SignalRecord{
		Symbol:             prices.Symbol,
		Timestamp:          g.clock(),
		Signal:             signal,
		LastPrice:          close,
		Channel:            snap,
		DeviationPct:       deviationPct,
		PotentialReturnPct: potential,
	}
	if !prices.Candles[last].Timestamp.IsZero() {
		rec.Timestamp = prices.Candles[last].Timestamp
	}

	// Insights are best-effort and omitted on short series.
	rec.Trend, rec.VolatilityBucket, rec.MarketRegime = computeInsights(prices)

	return rec, nil
}

// assetSpreadPct picks the spread estimate from the symbol pattern.
func assetSpreadPct(symbol string) float64 {
	s := strings.ToUpper(symbol)
	switch {
	case strings.Contains(s, "USDT") || strings.Contains(s, "BTC") || strings.Contains(s, "ETH"):
		return spreadCryptoPct
	case isForexPair(s):
		return spreadForexPct
	case strings.Contains(s, "XAU") || strings.Contains(s, "XAG") ||
		strings.Contains(s, "WTI") || strings.Contains(s, "OIL"):
		return spreadCommodityPct
	default:
		return spreadDefaultPct
	}
}

var fiatCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CHF": true, "AUD": true, "CAD": true, "NZD": true,
}

func isForexPair(s string) bool {
	if len(s) != 6 {
		return false
	}
	return fiatCodes[s[:3]] && fiatCodes[s[3:]]
}

var _ domsvc.SignalEvaluator = (*SignalGenerator)(nil)

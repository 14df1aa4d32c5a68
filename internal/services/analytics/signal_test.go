package analytics

import (
	"errors"
	"math"
	"testing"

	"TrendScan/internal/domain/models"
)

func flatChannel(n int, center, upper, lower float64) *models.Channel {
	ch := &models.Channel{
		Center: make([]float64, n),
		Upper:  make([]float64, n),
		Lower:  make([]float64, n),
		Degree: 1,
		KStd:   2,
	}
	for i := 0; i < n; i++ {
		ch.Center[i] = center
		ch.Upper[i] = upper
		ch.Lower[i] = lower
	}
	return ch
}

func TestEvaluateSignalRule(t *testing.T) {
	cases := []struct {
		name  string
		close float64
		want  models.Signal
	}{
		{"below lower is buy", 89, models.SignalBuy},
		{"above upper is sell", 111, models.SignalSell},
		{"inside is hold", 100, models.SignalHold},
		{"on lower band is hold", 90, models.SignalHold},
		{"on upper band is hold", 110, models.SignalHold},
	}
	g := NewSignalGenerator()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			series := makeSeries("TEST", []float64{100, 100, c.close})
			rec, err := g.Evaluate(series, flatChannel(3, 100, 110, 90))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if rec.Signal != c.want {
				t.Fatalf("signal = %s, want %s", rec.Signal, c.want)
			}
		})
	}
}

func TestEvaluateDeviationAndPotential(t *testing.T) {
	g := NewSignalGenerator()
	series := makeSeries("BTCUSDT", []float64{100, 100, 90})
	rec, err := g.Evaluate(series, flatChannel(3, 100, 110, 95))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Signal != models.SignalBuy {
		t.Fatalf("signal = %s, want BUY", rec.Signal)
	}
	if math.Abs(rec.DeviationPct-(-10)) > 1e-9 {
		t.Fatalf("deviation = %v, want -10", rec.DeviationPct)
	}
	// Crypto round-trip spread is 2 x 0.1.
	if math.Abs(rec.PotentialReturnPct-9.8) > 1e-9 {
		t.Fatalf("potential return = %v, want 9.8", rec.PotentialReturnPct)
	}
}

func TestEvaluatePotentialNeverNegative(t *testing.T) {
	g := NewSignalGenerator()
	series := makeSeries("BTCUSDT", []float64{100, 100, 100.05})
	rec, err := g.Evaluate(series, flatChannel(3, 100, 110, 90))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.PotentialReturnPct != 0 {
		t.Fatalf("potential return = %v, want 0 (spread exceeds deviation)", rec.PotentialReturnPct)
	}
}

func TestEvaluateUsesLastCandleTimestamp(t *testing.T) {
	g := NewSignalGenerator()
	series := makeSeries("TEST", []float64{100, 100, 100})
	rec, err := g.Evaluate(series, flatChannel(3, 100, 110, 90))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := series.Candles[2].Timestamp
	if !rec.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", rec.Timestamp, want)
	}
}

func TestEvaluateMismatchedChannel(t *testing.T) {
	g := NewSignalGenerator()
	series := makeSeries("TEST", []float64{100, 100, 100})
	if _, err := g.Evaluate(series, flatChannel(2, 100, 110, 90)); !errors.Is(err, models.ErrUnstableFit) {
		t.Fatalf("err = %v, want ErrUnstableFit", err)
	}
	if _, err := g.Evaluate(series, nil); !errors.Is(err, models.ErrUnstableFit) {
		t.Fatalf("nil channel err = %v, want ErrUnstableFit", err)
	}
}

func TestAssetSpreadPct(t *testing.T) {
	cases := []struct {
		symbol string
		want   float64
	}{
		{"BTCUSDT", spreadCryptoPct},
		{"ETHBTC", spreadCryptoPct},
		{"SOLUSDT", spreadCryptoPct},
		{"EURUSD", spreadForexPct},
		{"eurjpy", spreadForexPct},
		{"XAUUSD", spreadCommodityPct},
		{"WTIUSD", spreadCommodityPct},
		{"AAPL", spreadDefaultPct},
		{"EURXYZ", spreadDefaultPct},
	}
	for _, c := range cases {
		if got := assetSpreadPct(c.symbol); got != c.want {
			t.Errorf("assetSpreadPct(%s) = %v, want %v", c.symbol, got, c.want)
		}
	}
}

// End-to-end through the fitter: a dip inside the band holds, a deep final
// drop crosses the lower band and flips to BUY.
func TestFitThenEvaluate(t *testing.T) {
	calc := NewChannelCalculator()
	g := NewSignalGenerator()

	hold := makeSeries("TEST", []float64{100, 100, 100, 95, 100, 100})
	ch, err := calc.Fit(hold, 1, 1.0)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	rec, err := g.Evaluate(hold, ch)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Signal != models.SignalHold {
		t.Fatalf("signal = %s, want HOLD", rec.Signal)
	}

	buy := makeSeries("TEST", []float64{100, 100, 100, 95, 100, 80})
	ch, err = calc.Fit(buy, 1, 1.0)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	rec, err = g.Evaluate(buy, ch)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Signal != models.SignalBuy {
		t.Fatalf("signal = %s, want BUY", rec.Signal)
	}
}

func TestInsightsShortSeriesOmitted(t *testing.T) {
	g := NewSignalGenerator()
	series := makeSeries("TEST", []float64{100, 100, 100})
	rec, err := g.Evaluate(series, flatChannel(3, 100, 110, 90))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Trend != "" || rec.VolatilityBucket != "" || rec.MarketRegime != "" {
		t.Fatalf("insights should be empty for a short series, got %q/%q/%q",
			rec.Trend, rec.VolatilityBucket, rec.MarketRegime)
	}
}

func TestInsightsQuietUptrend(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + 0.01*float64(i)
	}
	series := makeSeries("TEST", closes)
	rec, err := NewSignalGenerator().Evaluate(series, flatChannel(40, 100, 110, 90))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rec.Trend != models.TrendUp {
		t.Fatalf("trend = %q, want up", rec.Trend)
	}
	if rec.VolatilityBucket != models.VolLow {
		t.Fatalf("volatility = %q, want low", rec.VolatilityBucket)
	}
	if rec.MarketRegime != models.RegimeQuiet {
		t.Fatalf("regime = %q, want quiet", rec.MarketRegime)
	}
}

func TestInsightsVolatilityUsesSeriesInterval(t *testing.T) {
	// Alternating +/-1.2% bar returns: annualized on 252 daily bars the
	// volatility is ~0.19 (low), on 8760 hourly bars ~1.12 (high).
	closes := make([]float64, 40)
	closes[0] = 100
	for i := 1; i < len(closes); i++ {
		if i%2 == 1 {
			closes[i] = closes[i-1] * 1.012
		} else {
			closes[i] = closes[i-1] / 1.012
		}
	}
	g := NewSignalGenerator()
	ch := flatChannel(40, 100, 110, 90)

	daily := makeSeries("TEST", closes)
	rec, err := g.Evaluate(daily, ch)
	if err != nil {
		t.Fatalf("Evaluate daily: %v", err)
	}
	if rec.VolatilityBucket != models.VolLow {
		t.Fatalf("daily volatility = %q, want low", rec.VolatilityBucket)
	}

	hourly := makeSeries("TEST", closes)
	hourly.Interval = "1h"
	rec, err = g.Evaluate(hourly, ch)
	if err != nil {
		t.Fatalf("Evaluate hourly: %v", err)
	}
	if rec.VolatilityBucket != models.VolHigh {
		t.Fatalf("hourly volatility = %q, want high", rec.VolatilityBucket)
	}
}

func TestRegimeLabel(t *testing.T) {
	cases := []struct {
		trend, vol, want string
	}{
		{models.TrendUp, models.VolHigh, models.RegimeVolatile},
		{models.TrendDown, models.VolHigh, models.RegimeVolatile},
		{models.TrendUp, models.VolLow, models.RegimeQuiet},
		{models.TrendUp, models.VolMedium, models.RegimeBull},
		{models.TrendDown, models.VolMedium, models.RegimeBear},
	}
	for _, c := range cases {
		if got := regimeLabel(c.trend, c.vol); got != c.want {
			t.Errorf("regimeLabel(%s, %s) = %s, want %s", c.trend, c.vol, got, c.want)
		}
	}
}

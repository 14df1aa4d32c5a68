package backtest

import (
	"math"
	"testing"
	"time"

	"TrendScan/internal/domain/models"
)

func series(closes ...float64) models.PriceSeries {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{Timestamp: base.AddDate(0, 0, i), Close: c}
	}
	return models.PriceSeries{Symbol: "TEST", Candles: candles}
}

func flatChannel(n int, center, upper, lower float64) *models.Channel {
	ch := &models.Channel{
		Center: make([]float64, n),
		Upper:  make([]float64, n),
		Lower:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		ch.Center[i] = center
		ch.Upper[i] = upper
		ch.Lower[i] = lower
	}
	return ch
}

func TestRunNoCross(t *testing.T) {
	s := New(Config{InitialCapital: 10_000})
	prices := series(100, 101, 99, 100, 102)
	res := s.Run(prices, flatChannel(5, 100, 120, 80))

	if len(res.Trades) != 0 {
		t.Fatalf("trades = %d, want 0", len(res.Trades))
	}
	m := res.Metrics
	if m.TotalReturn != 0 || m.SharpeRatio != 0 || m.MaxDrawdown != 0 ||
		m.WinRate != 0 || m.ProfitFactor != 0 || m.TradeCount != 0 {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
	for i, v := range res.Equity {
		if v != 10_000 {
			t.Fatalf("equity[%d] = %v, want 10000", i, v)
		}
	}
}

func TestRunDegenerateInput(t *testing.T) {
	s := New(Config{})
	res := s.Run(series(100), flatChannel(1, 100, 110, 90))
	if len(res.Trades) != 0 || res.Metrics.TradeCount != 0 || res.Metrics.TotalReturn != 0 {
		t.Fatalf("single observation must yield zero result, got %+v", res.Metrics)
	}

	res = s.Run(series(100, 101, 102), nil)
	if len(res.Trades) != 0 {
		t.Fatalf("nil channel must yield zero result")
	}

	res = s.Run(series(100, 101, 102), flatChannel(2, 100, 110, 90))
	if len(res.Trades) != 0 {
		t.Fatalf("mismatched channel must yield zero result")
	}
}

func TestRunLongRoundTrip(t *testing.T) {
	s := New(Config{InitialCapital: 10_000, CommissionPct: 0})
	// 95 -> 85 crosses the lower band from inside; 100 touches the center.
	prices := series(95, 85, 100)
	res := s.Run(prices, flatChannel(3, 100, 110, 90))

	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Direction != models.Long || tr.OpenIndex != 1 || tr.CloseIndex != 2 {
		t.Fatalf("unexpected trade %+v", tr)
	}
	units := 10_000.0 / 85
	wantPnL := (100 - 85) * units
	if math.Abs(tr.PnL-wantPnL) > 1e-9 {
		t.Fatalf("pnl = %v, want %v", tr.PnL, wantPnL)
	}
	if math.Abs(res.Metrics.TotalReturn-wantPnL/10_000) > 1e-12 {
		t.Fatalf("total return = %v, want %v", res.Metrics.TotalReturn, wantPnL/10_000)
	}
	if res.Metrics.WinRate != 1 {
		t.Fatalf("win rate = %v, want 1", res.Metrics.WinRate)
	}
	// No losing trades: profit factor stays 0 by convention.
	if res.Metrics.ProfitFactor != 0 {
		t.Fatalf("profit factor = %v, want 0", res.Metrics.ProfitFactor)
	}
}

func TestRunShortRoundTrip(t *testing.T) {
	s := New(Config{InitialCapital: 10_000})
	// 105 -> 115 crosses the upper band; 100 touches the center.
	prices := series(105, 115, 100)
	res := s.Run(prices, flatChannel(3, 100, 110, 90))

	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Direction != models.Short {
		t.Fatalf("direction = %v, want short", tr.Direction)
	}
	units := 10_000.0 / 115
	wantPnL := (115 - 100) * units
	if math.Abs(tr.PnL-wantPnL) > 1e-9 {
		t.Fatalf("pnl = %v, want %v", tr.PnL, wantPnL)
	}
}

func TestRunCommissionBothSides(t *testing.T) {
	s := New(Config{InitialCapital: 10_000, CommissionPct: 1})
	prices := series(95, 85, 100)
	res := s.Run(prices, flatChannel(3, 100, 110, 90))

	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	units := 10_000.0 / 85
	gross := (100 - 85) * units
	fees := 0.01 * units * (85 + 100)
	if math.Abs(res.Trades[0].PnL-(gross-fees)) > 1e-9 {
		t.Fatalf("pnl = %v, want %v", res.Trades[0].PnL, gross-fees)
	}
}

func TestRunForceCloseAtEnd(t *testing.T) {
	s := New(Config{InitialCapital: 10_000})
	// Entry at 85, then the series ends without any exit condition firing.
	prices := series(95, 85, 84)
	res := s.Run(prices, flatChannel(3, 100, 110, 90))

	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.CloseIndex != 2 || tr.ExitPrice != 84 {
		t.Fatalf("force close missing: %+v", tr)
	}
	if tr.PnL >= 0 {
		t.Fatalf("pnl = %v, want a loss", tr.PnL)
	}
	if res.Metrics.WinRate != 0 {
		t.Fatalf("win rate = %v, want 0", res.Metrics.WinRate)
	}
	if res.Metrics.AvgLoss <= 0 {
		t.Fatalf("avg loss = %v, want positive magnitude", res.Metrics.AvgLoss)
	}
	final := res.Equity[len(res.Equity)-1]
	if math.Abs(final-(10_000+tr.PnL)) > 1e-9 {
		t.Fatalf("final equity = %v, want %v", final, 10_000+tr.PnL)
	}
}

func TestRunStopLoss(t *testing.T) {
	s := New(Config{InitialCapital: 10_000, StopLossPct: 5})
	// Long at 85; 80 breaches the 5% stop (80.75) before any other exit.
	prices := series(95, 85, 80)
	res := s.Run(prices, flatChannel(3, 100, 110, 90))

	if len(res.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(res.Trades))
	}
	if res.Trades[0].ExitPrice != 80 {
		t.Fatalf("exit price = %v, want 80 (stop loss)", res.Trades[0].ExitPrice)
	}
	if res.Trades[0].PnL >= 0 {
		t.Fatalf("pnl = %v, want a loss", res.Trades[0].PnL)
	}
}

func TestMaxDrawdown(t *testing.T) {
	if dd := maxDrawdown([]float64{100, 120, 90, 110}); math.Abs(dd-0.25) > 1e-12 {
		t.Fatalf("maxDrawdown = %v, want 0.25", dd)
	}
	if dd := maxDrawdown([]float64{100, 110, 120}); dd != 0 {
		t.Fatalf("maxDrawdown = %v, want 0", dd)
	}
	if dd := maxDrawdown(nil); dd != 0 {
		t.Fatalf("maxDrawdown(nil) = %v, want 0", dd)
	}
}

func TestSharpeZeroVariance(t *testing.T) {
	if s := sharpe([]float64{100, 100, 100}); s != 0 {
		t.Fatalf("sharpe = %v, want 0 for flat equity", s)
	}
	if s := sharpe([]float64{100}); s != 0 {
		t.Fatalf("sharpe = %v, want 0 for single point", s)
	}
}

package backtest

import (
	"math"

	"TrendScan/internal/domain/models"
	domsvc "TrendScan/internal/domain/service"
)

// Config controls one simulation run. Zero values fall back to defaults.
type Config struct {
	InitialCapital float64
	// CommissionPct is charged proportionally on both entry and exit, in
	// percent of traded notional.
	CommissionPct float64
	StopLossPct   float64
	TakeProfitPct float64
	// ExitThreshold is the channel position (0 = lower band, 1 = upper band)
	// beyond which a long is closed; shorts close below 1-ExitThreshold.
	ExitThreshold float64
}

const (
	defaultCapital       = 10_000
	defaultStopLossPct   = 5.0
	defaultTakeProfitPct = 10.0
	defaultExitThreshold = 0.8
)

func (c Config) withDefaults() Config {
	if c.InitialCapital <= 0 {
		c.InitialCapital = defaultCapital
	}
	if c.CommissionPct < 0 {
		c.CommissionPct = 0
	}
	if c.StopLossPct <= 0 {
		c.StopLossPct = defaultStopLossPct
	}
	if c.TakeProfitPct <= 0 {
		c.TakeProfitPct = defaultTakeProfitPct
	}
	if c.ExitThreshold <= 0 || c.ExitThreshold > 1 {
		c.ExitThreshold = defaultExitThreshold
	}
	return c
}

// position is the simulator-internal state. At most one live position per
// run; direction changes always pass through flat.
type position struct {
	direction  models.Direction
	entryPrice float64
	entryIndex int
	units      float64
}

// Simulator replays the channel strategy bar-by-bar against a price series.
// Single-threaded per invocation.
type Simulator struct {
	cfg Config
}

func New(cfg Config) *Simulator {
	return &Simulator{cfg: cfg.withDefaults()}
}

// Run walks the series index-by-index, entering on band crosses and exiting
// on center touch, channel-position threshold, stop-loss, or take-profit.
// Degenerate input (fewer than 2 observations or mismatched channel) yields
// all-zero metrics by convention, not an error.
func (s *Simulator) Run(prices models.PriceSeries, channel *models.Channel) models.BacktestResult {
	res := models.BacktestResult{Symbol: prices.Symbol}
	n := prices.Len()
	if n < 2 || channel == nil || channel.Len() != n {
		return res
	}

	closes := prices.Closes()
	capital := s.cfg.InitialCapital

	pos := position{direction: models.Flat}
	equity := make([]float64, 0, n)
	equity = append(equity, capital)

	for i := 1; i < n; i++ {
		price := closes[i]

		if pos.direction == models.Flat {
			// Entry on a band cross from inside.
			if closes[i-1] >= channel.Lower[i-1] && price < channel.Lower[i] {
				pos = s.open(models.Long, price, i, capital)
			} else if closes[i-1] <= channel.Upper[i-1] && price > channel.Upper[i] {
				pos = s.open(models.Short, price, i, capital)
			}
		} else if s.shouldExit(pos, price, channel, i) {
			pnl := s.closedPnL(pos, price)
			res.Trades = append(res.Trades, models.Trade{
				OpenIndex:  pos.entryIndex,
				CloseIndex: i,
				Direction:  pos.direction,
				EntryPrice: pos.entryPrice,
				ExitPrice:  price,
				PnL:        pnl,
			})
			capital += pnl
			pos = position{direction: models.Flat}
		}

		equity = append(equity, capital+s.unrealized(pos, price))
	}

	// Force-close a position left open at the end of the series.
	if pos.direction != models.Flat {
		price := closes[n-1]
		pnl := s.closedPnL(pos, price)
		res.Trades = append(res.Trades, models.Trade{
			OpenIndex:  pos.entryIndex,
			CloseIndex: n - 1,
			Direction:  pos.direction,
			EntryPrice: pos.entryPrice,
			ExitPrice:  price,
			PnL:        pnl,
		})
		capital += pnl
		equity[len(equity)-1] = capital
	}

	res.Equity = equity
	res.Metrics = computeMetrics(s.cfg.InitialCapital, capital, equity, res.Trades)
	return res
}

func (s *Simulator) open(dir models.Direction, price float64, index int, capital float64) position {
	return position{
		direction:  dir,
		entryPrice: price,
		entryIndex: index,
		units:      capital / price,
	}
}

func (s *Simulator) shouldExit(pos position, price float64, ch *models.Channel, i int) bool {
	width := ch.Upper[i] - ch.Lower[i]
	chPos := 0.5
	if width > 0 {
		chPos = (price - ch.Lower[i]) / width
	}

	sl := s.cfg.StopLossPct / 100
	tp := s.cfg.TakeProfitPct / 100

	if pos.direction == models.Long {
		return price >= ch.Center[i] ||
			chPos >= s.cfg.ExitThreshold ||
			price <= pos.entryPrice*(1-sl) ||
			price >= pos.entryPrice*(1+tp)
	}
	return price <= ch.Center[i] ||
		chPos <= 1-s.cfg.ExitThreshold ||
		price >= pos.entryPrice*(1+sl) ||
		price <= pos.entryPrice*(1-tp)
}

// closedPnL realizes the position at price, net of commission on both sides.
func (s *Simulator) closedPnL(pos position, price float64) float64 {
	commission := s.cfg.CommissionPct / 100
	gross := (price - pos.entryPrice) * float64(pos.direction) * pos.units
	fees := commission * pos.units * (pos.entryPrice + price)
	return gross - fees
}

func (s *Simulator) unrealized(pos position, price float64) float64 {
	if pos.direction == models.Flat {
		return 0
	}
	return (price - pos.entryPrice) * float64(pos.direction) * pos.units
}

// computeMetrics derives the aggregate statistics once over the full equity
// curve and trade list.
func computeMetrics(initial, final float64, equity []float64, trades []models.Trade) models.BacktestMetrics {
	m := models.BacktestMetrics{TradeCount: len(trades)}
	if initial > 0 {
		m.TotalReturn = (final - initial) / initial
	}

	m.SharpeRatio = sharpe(equity)
	m.MaxDrawdown = maxDrawdown(equity)

	if len(trades) == 0 {
		return m
	}

	wins := 0
	var grossWin, grossLoss float64
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
			grossWin += t.PnL
		} else {
			grossLoss += -t.PnL
		}
	}
	m.WinRate = float64(wins) / float64(len(trades))
	if wins > 0 {
		m.AvgWin = grossWin / float64(wins)
	}
	if losses := len(trades) - wins; losses > 0 {
		m.AvgLoss = grossLoss / float64(losses)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	}
	return m
}

// sharpe computes mean/std of per-step equity returns, annualized by sqrt(252).
// Zero when the return variance is zero.
func sharpe(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}

var _ domsvc.BacktestRunner = (*Simulator)(nil)

// maxDrawdown returns the largest peak-to-trough drop in the equity curve,
// as a fraction of the peak.
func maxDrawdown(equity []float64) float64 {
	var peak, maxDD float64
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

package models

// Direction of a simulated position.
type Direction int

const (
	Flat  Direction = 0
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// Trade is a closed round trip produced by the simulator. Append-only.
type Trade struct {
	OpenIndex  int       `json:"open_index"`
	CloseIndex int       `json:"close_index"`
	Direction  Direction `json:"direction"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnL        float64   `json:"pnl"`
}

// BacktestMetrics aggregates one backtest run. Recomputed wholesale per run.
type BacktestMetrics struct {
	TotalReturn  float64 `json:"total_return"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	WinRate      float64 `json:"win_rate"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
	ProfitFactor float64 `json:"profit_factor"`
	TradeCount   int     `json:"trade_count"`
}

// BacktestResult bundles the metrics with the raw trade list and equity curve.
type BacktestResult struct {
	Symbol  string          `json:"symbol"`
	Metrics BacktestMetrics `json:"metrics"`
	Trades  []Trade         `json:"trades,omitempty"`
	Equity  []float64       `json:"-"`
}

package repository

import (
	"context"
	"fmt"
	"time"

	"TrendScan/internal/domain/models"
	domrepo "TrendScan/internal/domain/repository"
	"TrendScan/pkg/clickhouse"
)

var signalSchema = []string{
	`CREATE TABLE IF NOT EXISTS scan_signals (
		symbol               LowCardinality(String),
		ts                   DateTime64(3, 'UTC'),
		signal               LowCardinality(String),
		last_price           Float64,
		channel_center       Float64,
		channel_upper        Float64,
		channel_lower        Float64,
		deviation_pct        Float64,
		potential_return_pct Float64,
		trend                LowCardinality(String),
		volatility_bucket    LowCardinality(String),
		market_regime        LowCardinality(String)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(ts)
	ORDER BY (symbol, ts)
	TTL toDateTime(ts) + INTERVAL 180 DAY`,

	`CREATE TABLE IF NOT EXISTS backtest_metrics (
		symbol        LowCardinality(String),
		ts            DateTime64(3, 'UTC'),
		total_return  Float64,
		sharpe_ratio  Float64,
		max_drawdown  Float64,
		win_rate      Float64,
		avg_win       Float64,
		avg_loss      Float64,
		profit_factor Float64,
		trade_count   UInt32
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(ts)
	ORDER BY (symbol, ts)`,
}

// ClickHouseStore persists scan signals and backtest metrics and serves
// read-back queries for the API.
type ClickHouseStore struct {
	client *clickhouse.Client
}

func NewClickHouseStore(ctx context.Context, client *clickhouse.Client) (*ClickHouseStore, error) {
	if err := client.InitSchema(ctx, signalSchema); err != nil {
		return nil, fmt.Errorf("signal schema: %w", err)
	}
	return &ClickHouseStore{client: client}, nil
}

func (s *ClickHouseStore) StoreSignal(ctx context.Context, rec *models.SignalRecord) error {
	const q = `INSERT INTO scan_signals
		(symbol, ts, signal, last_price, channel_center, channel_upper, channel_lower,
		 deviation_pct, potential_return_pct, trend, volatility_bucket, market_regime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.client.DB().ExecContext(ctx, q,
		rec.Symbol,
		rec.Timestamp,
		string(rec.Signal),
		rec.LastPrice,
		rec.Channel.Center,
		rec.Channel.Upper,
		rec.Channel.Lower,
		rec.DeviationPct,
		rec.PotentialReturnPct,
		rec.Trend,
		rec.VolatilityBucket,
		rec.MarketRegime,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (s *ClickHouseStore) StoreBacktest(ctx context.Context, symbol string, m *models.BacktestMetrics) error {
	const q = `INSERT INTO backtest_metrics
		(symbol, ts, total_return, sharpe_ratio, max_drawdown, win_rate,
		 avg_win, avg_loss, profit_factor, trade_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.client.DB().ExecContext(ctx, q,
		symbol,
		time.Now().UTC(),
		m.TotalReturn,
		m.SharpeRatio,
		m.MaxDrawdown,
		m.WinRate,
		m.AvgWin,
		m.AvgLoss,
		m.ProfitFactor,
		uint32(m.TradeCount),
	)
	if err != nil {
		return fmt.Errorf("insert backtest: %w", err)
	}
	return nil
}

// LatestSignals returns the most recent stored signals for a symbol, newest
// first. An empty symbol returns the latest signal per symbol across the
// whole table.
func (s *ClickHouseStore) LatestSignals(ctx context.Context, symbol string, limit int) ([]models.SignalRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	q := `SELECT symbol, ts, signal, last_price, channel_center, channel_upper, channel_lower,
		deviation_pct, potential_return_pct, trend, volatility_bucket, market_regime
		FROM scan_signals`
	args := []interface{}{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.client.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []models.SignalRecord
	for rows.Next() {
		var rec models.SignalRecord
		var sig string
		if err := rows.Scan(
			&rec.Symbol,
			&rec.Timestamp,
			&sig,
			&rec.LastPrice,
			&rec.Channel.Center,
			&rec.Channel.Upper,
			&rec.Channel.Lower,
			&rec.DeviationPct,
			&rec.PotentialReturnPct,
			&rec.Trend,
			&rec.VolatilityBucket,
			&rec.MarketRegime,
		); err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		rec.Signal = models.Signal(sig)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ClickHouseStore) Close() error {
	return s.client.Close()
}

var (
	_ domrepo.ResultSink   = (*ClickHouseStore)(nil)
	_ domrepo.SignalReader = (*ClickHouseStore)(nil)
)

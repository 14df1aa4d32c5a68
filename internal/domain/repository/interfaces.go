package repository

import (
	"context"
	"time"

	"TrendScan/internal/domain/models"
)

// DataSource fetches OHLCV history for one symbol. Implementations classify
// failures as transient or permanent via models.FetchError.
type DataSource interface {
	Fetch(ctx context.Context, symbol string, interval Timeframe, lookbackDays int) (models.PriceSeries, error)
}

// ResultSink persists scan output. Fire-and-forget from the core's
// perspective: the orchestrator logs sink errors and continues.
type ResultSink interface {
	StoreSignal(ctx context.Context, rec *models.SignalRecord) error
	StoreBacktest(ctx context.Context, symbol string, m *models.BacktestMetrics) error
	Close() error
}

// SignalReader queries previously stored signal records.
type SignalReader interface {
	LatestSignals(ctx context.Context, symbol string, limit int) ([]models.SignalRecord, error)
}

// Metrics records operational counters for scans.
type Metrics interface {
	RecordSymbolOutcome(outcome string)
	RecordFetchRetry(symbol string)
	RecordScanDuration(d time.Duration)
	RecordSignal(symbol string, signal string, potentialReturnPct float64)
	RecordError(kind string)
}

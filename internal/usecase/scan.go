package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"TrendScan/internal/domain/models"
	domrepo "TrendScan/internal/domain/repository"
	domsvc "TrendScan/internal/domain/service"
	"TrendScan/pkg/logger"
	"TrendScan/pkg/retry"
)

const (
	minDegree = 1
	maxDegree = 10
)

// ScanConfig controls batch execution.
type ScanConfig struct {
	Workers      int
	BatchTimeout time.Duration
	Retry        retry.Policy
}

func (c ScanConfig) withDefaults() ScanConfig {
	if c.Workers < 1 {
		c.Workers = 8
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 120 * time.Second
	}
	return c
}

// ScanOrchestrator runs a channel scan over a batch of symbols using a
// bounded worker pool. Symbols are isolated: one failure never aborts the
// batch, and every symbol ends up either in Signals or in Failures.
type ScanOrchestrator struct {
	source  domrepo.DataSource
	fitter  domsvc.ChannelFitter
	eval    domsvc.SignalEvaluator
	sinks   []domrepo.ResultSink
	metrics domrepo.Metrics
	cfg     ScanConfig
	l       *logger.Logger
}

func NewScanOrchestrator(
	source domrepo.DataSource,
	fitter domsvc.ChannelFitter,
	eval domsvc.SignalEvaluator,
	sinks []domrepo.ResultSink,
	metrics domrepo.Metrics,
	cfg ScanConfig,
	l *logger.Logger,
) *ScanOrchestrator {
	return &ScanOrchestrator{
		source:  source,
		fitter:  fitter,
		eval:    eval,
		sinks:   sinks,
		metrics: metrics,
		cfg:     cfg.withDefaults(),
		l:       l,
	}
}

// ValidateParams rejects a batch before any work starts.
func ValidateParams(symbols []string, params models.ScanParams) error {
	if len(symbols) == 0 {
		return fmt.Errorf("symbols list is empty")
	}
	for _, s := range symbols {
		if s == "" {
			return fmt.Errorf("symbols list contains an empty symbol")
		}
	}
	if params.Degree < minDegree || params.Degree > maxDegree {
		return fmt.Errorf("degree %d out of range [%d, %d]", params.Degree, minDegree, maxDegree)
	}
	if params.KStd <= 0 {
		return fmt.Errorf("kstd must be positive, got %g", params.KStd)
	}
	if params.LookbackDays <= 0 {
		return fmt.Errorf("lookback_days must be positive, got %d", params.LookbackDays)
	}
	if !domrepo.IsValidTimeframe(domrepo.Timeframe(params.Interval)) {
		return fmt.Errorf("unsupported interval %q", params.Interval)
	}
	return nil
}

type symbolOutcome struct {
	index   int
	signal  *models.SignalRecord
	failure *models.ScanFailure
}

// Scan fetches, fits and evaluates every symbol and returns the collected
// result. Validation errors reject the whole batch up front; after that the
// batch always completes, bounded by the configured batch timeout.
func (o *ScanOrchestrator) Scan(ctx context.Context, symbols []string, params models.ScanParams) (*models.ScanResult, error) {
	if err := ValidateParams(symbols, params); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.BatchTimeout)
	defer cancel()

	started := time.Now()
	o.l.Info("scan started",
		logger.Int("symbols", len(symbols)),
		logger.Int("degree", params.Degree),
		logger.Float64("kstd", params.KStd),
		logger.String("interval", params.Interval),
	)

	jobs := make(chan int)
	outcomes := make(chan symbolOutcome, len(symbols))

	var wg sync.WaitGroup
	workers := o.cfg.Workers
	if workers > len(symbols) {
		workers = len(symbols)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes <- o.processSymbol(ctx, idx, symbols[idx], params)
			}
		}()
	}

	for i := range symbols {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	result := &models.ScanResult{
		Params:    params,
		StartedAt: started.UTC(),
	}
	collected := make([]symbolOutcome, 0, len(symbols))
	for out := range outcomes {
		collected = append(collected, out)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	for _, out := range collected {
		if out.failure != nil {
			result.Failures = append(result.Failures, *out.failure)
			o.metrics.RecordSymbolOutcome(string(out.failure.Reason))
			continue
		}
		result.Signals = append(result.Signals, *out.signal)
		o.metrics.RecordSymbolOutcome("success")
		o.metrics.RecordSignal(out.signal.Symbol, string(out.signal.Signal), out.signal.PotentialReturnPct)
	}
	sortSignals(result.Signals)

	result.FinishedAt = time.Now().UTC()
	o.metrics.RecordScanDuration(result.FinishedAt.Sub(result.StartedAt))
	o.l.Info("scan finished",
		logger.Int("signals", len(result.Signals)),
		logger.Int("failures", len(result.Failures)),
		logger.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

func (o *ScanOrchestrator) processSymbol(ctx context.Context, idx int, symbol string, params models.ScanParams) symbolOutcome {
	if ctx.Err() != nil {
		return symbolOutcome{index: idx, failure: &models.ScanFailure{
			Symbol: symbol,
			Reason: models.ReasonTimeout,
			Detail: "batch deadline elapsed before processing",
		}}
	}

	series, err := o.fetchWithRetry(ctx, symbol, params)
	if err != nil {
		return o.failure(idx, symbol, err)
	}

	channel, err := o.fitter.Fit(series, params.Degree, params.KStd)
	if err != nil {
		return o.failure(idx, symbol, err)
	}

	rec, err := o.eval.Evaluate(series, channel)
	if err != nil {
		return o.failure(idx, symbol, err)
	}

	o.store(ctx, &rec)
	return symbolOutcome{index: idx, signal: &rec}
}

func (o *ScanOrchestrator) fetchWithRetry(ctx context.Context, symbol string, params models.ScanParams) (models.PriceSeries, error) {
	var series models.PriceSeries
	attempts := 0
	err := retry.DoIf(ctx, o.cfg.Retry, models.IsTransientFetch, func(ctx context.Context) error {
		attempts++
		var ferr error
		series, ferr = o.source.Fetch(ctx, symbol, domrepo.Timeframe(params.Interval), params.LookbackDays)
		return ferr
	})
	for i := 1; i < attempts; i++ {
		o.metrics.RecordFetchRetry(symbol)
	}
	return series, err
}

func (o *ScanOrchestrator) failure(idx int, symbol string, err error) symbolOutcome {
	reason := models.ClassifyFailure(err)
	o.l.Warn("symbol skipped",
		logger.String("symbol", symbol),
		logger.String("reason", string(reason)),
		logger.Error(err),
	)
	return symbolOutcome{index: idx, failure: &models.ScanFailure{
		Symbol: symbol,
		Reason: reason,
		Detail: err.Error(),
	}}
}

// store forwards a record to every sink. Sink failures are logged and
// counted but never fail the symbol.
func (o *ScanOrchestrator) store(ctx context.Context, rec *models.SignalRecord) {
	for _, sink := range o.sinks {
		if err := sink.StoreSignal(ctx, rec); err != nil {
			o.metrics.RecordError("sink")
			o.l.Error("store signal failed",
				logger.String("symbol", rec.Symbol),
				logger.Error(err),
			)
		}
	}
}

// sortSignals orders actionable signals first: BUY by descending potential
// return, then SELL by descending potential return, then HOLD in input
// order. Ties break on symbol.
func sortSignals(signals []models.SignalRecord) {
	rank := func(s models.Signal) int {
		switch s {
		case models.SignalBuy:
			return 0
		case models.SignalSell:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(signals, func(i, j int) bool {
		ri, rj := rank(signals[i].Signal), rank(signals[j].Signal)
		if ri != rj {
			return ri < rj
		}
		if ri == 2 {
			return false
		}
		if signals[i].PotentialReturnPct != signals[j].PotentialReturnPct {
			return signals[i].PotentialReturnPct > signals[j].PotentialReturnPct
		}
		return signals[i].Symbol < signals[j].Symbol
	})
}

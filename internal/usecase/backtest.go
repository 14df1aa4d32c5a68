package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"TrendScan/internal/domain/models"
	domrepo "TrendScan/internal/domain/repository"
	domsvc "TrendScan/internal/domain/service"
	"TrendScan/pkg/logger"
	"TrendScan/pkg/retry"
)

// RunnerFactory builds a backtest runner for one batch. Capital and
// commission vary per request; the remaining strategy knobs come from
// service configuration.
type RunnerFactory func(capital, commissionPct float64) domsvc.BacktestRunner

// BacktestOrchestrator replays the channel strategy over historical data for
// a batch of symbols. It shares the scan pipeline's fetch and fit stages and
// the same isolation rules.
type BacktestOrchestrator struct {
	source    domrepo.DataSource
	fitter    domsvc.ChannelFitter
	newRunner RunnerFactory
	sinks     []domrepo.ResultSink
	metrics   domrepo.Metrics
	cfg       ScanConfig
	l         *logger.Logger
}

func NewBacktestOrchestrator(
	source domrepo.DataSource,
	fitter domsvc.ChannelFitter,
	newRunner RunnerFactory,
	sinks []domrepo.ResultSink,
	metrics domrepo.Metrics,
	cfg ScanConfig,
	l *logger.Logger,
) *BacktestOrchestrator {
	return &BacktestOrchestrator{
		source:    source,
		fitter:    fitter,
		newRunner: newRunner,
		sinks:     sinks,
		metrics:   metrics,
		cfg:       cfg.withDefaults(),
		l:         l,
	}
}

// BacktestBatch holds the outcome of one batch backtest.
type BacktestBatch struct {
	Params     models.ScanParams      `json:"params"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Results    []models.BacktestResult `json:"results"`
	Failures   []models.ScanFailure   `json:"failures"`
}

type backtestOutcome struct {
	index   int
	result  *models.BacktestResult
	failure *models.ScanFailure
}

// Run backtests every symbol and returns per-symbol metrics sorted by
// descending total return. Failed symbols are reported, not fatal.
func (o *BacktestOrchestrator) Run(ctx context.Context, symbols []string, params models.ScanParams, capital, commissionPct float64) (*BacktestBatch, error) {
	if err := ValidateParams(symbols, params); err != nil {
		return nil, err
	}
	runner := o.newRunner(capital, commissionPct)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.BatchTimeout)
	defer cancel()

	batch := &BacktestBatch{
		Params:    params,
		StartedAt: time.Now().UTC(),
	}

	jobs := make(chan int)
	outcomes := make(chan backtestOutcome, len(symbols))

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
				outcomes <- o.processSymbol(ctx, idx, symbols[idx], params, runner)
			}
		}()
	}
	for i := range symbols {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(outcomes)

	collected := make([]backtestOutcome, 0, len(symbols))
	for out := range outcomes {
		collected = append(collected, out)
	}
	sort.Slice(collected, func(i, j int) bool { return collected[i].index < collected[j].index })

	for _, out := range collected {
		if out.failure != nil {
			batch.Failures = append(batch.Failures, *out.failure)
			o.metrics.RecordSymbolOutcome(string(out.failure.Reason))
			continue
		}
		batch.Results = append(batch.Results, *out.result)
		o.metrics.RecordSymbolOutcome("success")
	}
	sort.SliceStable(batch.Results, func(i, j int) bool {
		if batch.Results[i].Metrics.TotalReturn != batch.Results[j].Metrics.TotalReturn {
			return batch.Results[i].Metrics.TotalReturn > batch.Results[j].Metrics.TotalReturn
		}
		return batch.Results[i].Symbol < batch.Results[j].Symbol
	})

	batch.FinishedAt = time.Now().UTC()
	o.metrics.RecordScanDuration(batch.FinishedAt.Sub(batch.StartedAt))
	o.l.Info("backtest finished",
		logger.Int("results", len(batch.Results)),
		logger.Int("failures", len(batch.Failures)),
		logger.Duration("elapsed", batch.FinishedAt.Sub(batch.StartedAt)),
	)
	return batch, nil
}

func (o *BacktestOrchestrator) processSymbol(ctx context.Context, idx int, symbol string, params models.ScanParams, runner domsvc.BacktestRunner) backtestOutcome {
	if ctx.Err() != nil {
		return backtestOutcome{index: idx, failure: &models.ScanFailure{
			Symbol: symbol,
			Reason: models.ReasonTimeout,
			Detail: "batch deadline elapsed before processing",
		}}
	}

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
	if err != nil {
		return backtestOutcome{index: idx, failure: o.failureFor(symbol, err)}
	}

	channel, err := o.fitter.Fit(series, params.Degree, params.KStd)
	if err != nil {
		return backtestOutcome{index: idx, failure: o.failureFor(symbol, err)}
	}

	result := runner.Run(series, channel)
	for _, sink := range o.sinks {
		if serr := sink.StoreBacktest(ctx, symbol, &result.Metrics); serr != nil {
			o.metrics.RecordError("sink")
			o.l.Error("store backtest failed",
				logger.String("symbol", symbol),
				logger.Error(serr),
			)
		}
	}
	return backtestOutcome{index: idx, result: &result}
}

func (o *BacktestOrchestrator) failureFor(symbol string, err error) *models.ScanFailure {
	reason := models.ClassifyFailure(err)
	o.l.Warn("backtest symbol skipped",
		logger.String("symbol", symbol),
		logger.String("reason", string(reason)),
		logger.Error(err),
	)
	return &models.ScanFailure{Symbol: symbol, Reason: reason, Detail: err.Error()}
}

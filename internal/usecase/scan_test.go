package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TrendScan/internal/domain/models"
	domrepo "TrendScan/internal/domain/repository"
	domsvc "TrendScan/internal/domain/service"
	"TrendScan/internal/services/analytics"
	"TrendScan/internal/services/backtest"
	"TrendScan/pkg/logger"
	"TrendScan/pkg/retry"
)

// fakeSource serves canned series or errors per symbol. failFirst lets a
// symbol fail transiently N times before succeeding.
type fakeSource struct {
	mu        sync.Mutex
	series    map[string][]float64
	errs      map[string]error
	failFirst map[string]int
	calls     map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		series:    make(map[string][]float64),
		errs:      make(map[string]error),
		failFirst: make(map[string]int),
		calls:     make(map[string]int),
	}
}

func (f *fakeSource) Fetch(ctx context.Context, symbol string, _ domrepo.Timeframe, _ int) (models.PriceSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if n := f.failFirst[symbol]; n > 0 {
		f.failFirst[symbol] = n - 1
		return models.PriceSeries{}, models.NewTransientFetchError(symbol, errors.New("flaky"))
	}
	if err := f.errs[symbol]; err != nil {
		return models.PriceSeries{}, err
	}
	closes, ok := f.series[symbol]
	if !ok {
		return models.PriceSeries{}, models.NewPermanentFetchError(symbol, errors.New("unknown symbol"))
	}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{Timestamp: base.AddDate(0, 0, i), Close: c}
	}
	return models.PriceSeries{Symbol: symbol, Candles: candles}, nil
}

type fakeSink struct {
	mu        sync.Mutex
	signals   []models.SignalRecord
	backtests []string
	err       error
}

func (s *fakeSink) StoreSignal(_ context.Context, rec *models.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.signals = append(s.signals, *rec)
	return nil
}

func (s *fakeSink) StoreBacktest(_ context.Context, symbol string, _ *models.BacktestMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.backtests = append(s.backtests, symbol)
	return nil
}

func (s *fakeSink) Close() error { return nil }

type fakeMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	retries  map[string]int
	errs     map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		outcomes: make(map[string]int),
		retries:  make(map[string]int),
		errs:     make(map[string]int),
	}
}

func (m *fakeMetrics) RecordSymbolOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[outcome]++
}

func (m *fakeMetrics) RecordFetchRetry(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[symbol]++
}

func (m *fakeMetrics) RecordScanDuration(time.Duration) {}

func (m *fakeMetrics) RecordSignal(string, string, float64) {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[kind]++
}

func defaultParams() models.ScanParams {
	return models.ScanParams{Degree: 1, KStd: 1.0, LookbackDays: 90, Interval: "1d"}
}

func newOrchestrator(src domrepo.DataSource, sink domrepo.ResultSink, m domrepo.Metrics) *ScanOrchestrator {
	sinks := []domrepo.ResultSink{}
	if sink != nil {
		sinks = append(sinks, sink)
	}
	return NewScanOrchestrator(
		src,
		analytics.NewChannelCalculator(),
		analytics.NewSignalGenerator(),
		sinks,
		m,
		ScanConfig{Workers: 4, BatchTimeout: 5 * time.Second, Retry: retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}},
		logger.Nop(),
	)
}

func TestScanAccountsForEverySymbol(t *testing.T) {
	src := newFakeSource()
	src.series["GOOD1"] = []float64{100, 100, 100, 95, 100, 100}
	src.series["GOOD2"] = []float64{100, 100, 100, 95, 100, 80}
	src.series["SHORT"] = []float64{100, 101}
	// MISSING has no series: permanent fetch error.

	metrics := newFakeMetrics()
	sink := &fakeSink{}
	o := newOrchestrator(src, sink, metrics)

	result, err := o.Scan(context.Background(), []string{"GOOD1", "GOOD2", "SHORT", "MISSING"}, defaultParams())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if result.Processed() != 4 {
		t.Fatalf("processed = %d, want 4", result.Processed())
	}
	if len(result.Signals) != 2 {
		t.Fatalf("signals = %d, want 2", len(result.Signals))
	}
	if len(result.Failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(result.Failures))
	}

	reasons := map[string]models.FailureReason{}
	for _, f := range result.Failures {
		reasons[f.Symbol] = f.Reason
	}
	if reasons["SHORT"] != models.ReasonInsufficientData {
		t.Fatalf("SHORT reason = %s, want insufficient_data", reasons["SHORT"])
	}
	if reasons["MISSING"] != models.ReasonFetchPermanent {
		t.Fatalf("MISSING reason = %s, want fetch_permanent", reasons["MISSING"])
	}

	if len(sink.signals) != 2 {
		t.Fatalf("sink stored %d signals, want 2", len(sink.signals))
	}
	if metrics.outcomes["success"] != 2 {
		t.Fatalf("success outcomes = %d, want 2", metrics.outcomes["success"])
	}
}

func TestScanRetriesTransientFailures(t *testing.T) {
	src := newFakeSource()
	src.series["FLAKY"] = []float64{100, 100, 100, 95, 100, 100}
	src.failFirst["FLAKY"] = 2

	metrics := newFakeMetrics()
	o := newOrchestrator(src, nil, metrics)

	result, err := o.Scan(context.Background(), []string{"FLAKY"}, defaultParams())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Signals) != 1 {
		t.Fatalf("signals = %d, want 1 after retries", len(result.Signals))
	}
	if src.calls["FLAKY"] != 3 {
		t.Fatalf("fetch calls = %d, want 3", src.calls["FLAKY"])
	}
	if metrics.retries["FLAKY"] != 2 {
		t.Fatalf("recorded retries = %d, want 2", metrics.retries["FLAKY"])
	}
}

func TestScanDoesNotRetryPermanentFailures(t *testing.T) {
	src := newFakeSource()
	o := newOrchestrator(src, nil, newFakeMetrics())

	result, err := o.Scan(context.Background(), []string{"MISSING"}, defaultParams())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(result.Failures))
	}
	if src.calls["MISSING"] != 1 {
		t.Fatalf("fetch calls = %d, want 1 (no retry)", src.calls["MISSING"])
	}
}

// blockingSource stalls until the context expires, then surfaces the
// context error wrapped the way the HTTP data source wraps it.
type blockingSource struct{}

func (blockingSource) Fetch(ctx context.Context, symbol string, _ domrepo.Timeframe, _ int) (models.PriceSeries, error) {
	<-ctx.Done()
	return models.PriceSeries{}, models.NewTransientFetchError(symbol, ctx.Err())
}

func TestScanBatchTimeoutMarksInFlightSymbols(t *testing.T) {
	o := NewScanOrchestrator(
		blockingSource{},
		analytics.NewChannelCalculator(),
		analytics.NewSignalGenerator(),
		nil,
		newFakeMetrics(),
		ScanConfig{Workers: 2, BatchTimeout: 50 * time.Millisecond, Retry: retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}},
		logger.Nop(),
	)

	result, err := o.Scan(context.Background(), []string{"SLOW1", "SLOW2"}, defaultParams())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Failures) != 2 {
		t.Fatalf("failures = %d, want 2", len(result.Failures))
	}
	for _, f := range result.Failures {
		if f.Reason != models.ReasonTimeout {
			t.Fatalf("%s reason = %s, want %s", f.Symbol, f.Reason, models.ReasonTimeout)
		}
	}
}

func TestScanRejectsBadParams(t *testing.T) {
	o := newOrchestrator(newFakeSource(), nil, newFakeMetrics())

	cases := []struct {
		name    string
		symbols []string
		params  models.ScanParams
	}{
		{"no symbols", nil, defaultParams()},
		{"empty symbol", []string{""}, defaultParams()},
		{"degree too low", []string{"X"}, models.ScanParams{Degree: 0, KStd: 2, LookbackDays: 90, Interval: "1d"}},
		{"degree too high", []string{"X"}, models.ScanParams{Degree: 11, KStd: 2, LookbackDays: 90, Interval: "1d"}},
		{"non-positive kstd", []string{"X"}, models.ScanParams{Degree: 2, KStd: 0, LookbackDays: 90, Interval: "1d"}},
		{"bad interval", []string{"X"}, models.ScanParams{Degree: 2, KStd: 2, LookbackDays: 90, Interval: "2w"}},
		{"bad lookback", []string{"X"}, models.ScanParams{Degree: 2, KStd: 2, LookbackDays: 0, Interval: "1d"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := o.Scan(context.Background(), c.symbols, c.params); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestScanSinkErrorsDoNotFailSymbols(t *testing.T) {
	src := newFakeSource()
	src.series["GOOD"] = []float64{100, 100, 100, 95, 100, 100}
	metrics := newFakeMetrics()
	sink := &fakeSink{err: errors.New("sink down")}
	o := newOrchestrator(src, sink, metrics)

	result, err := o.Scan(context.Background(), []string{"GOOD"}, defaultParams())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Signals) != 1 {
		t.Fatalf("signals = %d, want 1 despite sink failure", len(result.Signals))
	}
	if metrics.errs["sink"] != 1 {
		t.Fatalf("sink errors recorded = %d, want 1", metrics.errs["sink"])
	}
}

func TestSortSignalsRanking(t *testing.T) {
	signals := []models.SignalRecord{
		{Symbol: "H1", Signal: models.SignalHold},
		{Symbol: "S1", Signal: models.SignalSell, PotentialReturnPct: 3},
		{Symbol: "B1", Signal: models.SignalBuy, PotentialReturnPct: 2},
		{Symbol: "H2", Signal: models.SignalHold},
		{Symbol: "B2", Signal: models.SignalBuy, PotentialReturnPct: 8},
		{Symbol: "S2", Signal: models.SignalSell, PotentialReturnPct: 9},
		{Symbol: "B3", Signal: models.SignalBuy, PotentialReturnPct: 8},
	}
	sortSignals(signals)

	got := make([]string, len(signals))
	for i, s := range signals {
		got[i] = s.Symbol
	}
	want := []string{"B2", "B3", "B1", "S2", "S1", "H1", "H2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestBacktestOrchestratorRun(t *testing.T) {
	src := newFakeSource()
	src.series["GOOD"] = []float64{100, 100, 100, 95, 100, 100}
	src.series["SHORT"] = []float64{100, 101}

	sink := &fakeSink{}
	factory := RunnerFactory(func(capital, commissionPct float64) domsvc.BacktestRunner {
		return backtest.New(backtest.Config{InitialCapital: capital, CommissionPct: commissionPct})
	})

	o := NewBacktestOrchestrator(
		src,
		analytics.NewChannelCalculator(),
		factory,
		[]domrepo.ResultSink{sink},
		newFakeMetrics(),
		ScanConfig{Workers: 2, BatchTimeout: 5 * time.Second},
		logger.Nop(),
	)

	batch, err := o.Run(context.Background(), []string{"GOOD", "SHORT"}, defaultParams(), 10_000, 0.1)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(batch.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(batch.Results))
	}
	if batch.Results[0].Symbol != "GOOD" {
		t.Fatalf("symbol = %s, want GOOD", batch.Results[0].Symbol)
	}
	if len(batch.Failures) != 1 || batch.Failures[0].Reason != models.ReasonInsufficientData {
		t.Fatalf("unexpected failures %+v", batch.Failures)
	}
	if len(sink.backtests) != 1 {
		t.Fatalf("sink stored %d backtests, want 1", len(sink.backtests))
	}
}

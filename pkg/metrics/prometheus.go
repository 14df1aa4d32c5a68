package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	symbolOutcomes *prometheus.CounterVec
	fetchRetries   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	potentialGauge *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		symbolOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendscan_symbols_processed_total",
				Help: "Symbols processed per scan, by outcome",
			},
			[]string{"outcome"},
		),
		fetchRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendscan_fetch_retries_total",
				Help: "Transient fetch failures that triggered a retry",
			},
			[]string{"symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendscan_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		scanDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "trendscan_scan_duration_seconds",
				Help:    "Wall-clock duration of batch scans",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		potentialGauge: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendscan_signal_potential_return_pct",
				Help: "Potential return of the latest signal per symbol",
			},
			[]string{"symbol", "signal"},
		),
	}
}

// RecordSymbolOutcome counts one processed symbol by outcome label
// (success or a failure reason).
func (r *Recorder) RecordSymbolOutcome(outcome string) {
	r.symbolOutcomes.WithLabelValues(outcome).Inc()
}

// RecordFetchRetry counts a retried transient fetch failure.
func (r *Recorder) RecordFetchRetry(symbol string) {
	r.fetchRetries.WithLabelValues(symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordScanDuration observes one batch scan duration.
func (r *Recorder) RecordScanDuration(d time.Duration) {
	r.scanDuration.Observe(d.Seconds())
}

// RecordSignal records the latest signal evaluation for a symbol.
func (r *Recorder) RecordSignal(symbol, signal string, potentialReturnPct float64) {
	r.potentialGauge.WithLabelValues(symbol, signal).Set(potentialReturnPct)
}

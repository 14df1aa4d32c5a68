package models

import "time"

// ScanParams are the channel-fit parameters for one batch scan.
type ScanParams struct {
	Degree       int     `json:"degree"`
	KStd         float64 `json:"kstd"`
	LookbackDays int     `json:"lookback_days"`
	Interval     string  `json:"interval"`
}

// ScanFailure records one symbol that could not be processed.
type ScanFailure struct {
	Symbol string        `json:"symbol"`
	Reason FailureReason `json:"reason"`
	Detail string        `json:"detail,omitempty"`
}

// ScanResult is the finalized outcome of a batch scan. Populated as workers
// complete and immutable once all workers join or the batch deadline elapses.
type ScanResult struct {
	Params     ScanParams     `json:"params"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Signals    []SignalRecord `json:"signals"`
	Failures   []ScanFailure  `json:"failures"`
}

// Processed returns the total number of symbols accounted for.
func (r *ScanResult) Processed() int {
	return len(r.Signals) + len(r.Failures)
}

package models

import (
	"context"
	"errors"
	"fmt"
)

// Recoverable per-symbol failures. Both skip the symbol, never the batch.
var (
	ErrInsufficientData = errors.New("insufficient data for channel fit")
	ErrUnstableFit      = errors.New("unstable channel fit")
)

// FetchError wraps a data-source failure. Transient errors (timeouts,
// rate limiting, 5xx) are retried with backoff; permanent ones
// (unknown symbol) are not.
type FetchError struct {
	Symbol    string
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("fetch %s (%s): %v", e.Symbol, kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewTransientFetchError marks a retryable fetch failure.
func NewTransientFetchError(symbol string, err error) *FetchError {
	return &FetchError{Symbol: symbol, Transient: true, Err: err}
}

// NewPermanentFetchError marks a non-retryable fetch failure.
func NewPermanentFetchError(symbol string, err error) *FetchError {
	return &FetchError{Symbol: symbol, Transient: false, Err: err}
}

// IsTransientFetch reports whether err is a retryable fetch failure.
func IsTransientFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient
}

// FailureReason classifies a per-symbol scan failure.
type FailureReason string

const (
	ReasonInsufficientData FailureReason = "insufficient_data"
	ReasonUnstableFit      FailureReason = "unstable_fit"
	ReasonFetchTransient   FailureReason = "fetch_transient"
	ReasonFetchPermanent   FailureReason = "fetch_permanent"
	ReasonTimeout          FailureReason = "timeout"
)

// ClassifyFailure maps a worker error to its failure reason. Context
// expiry wins over the fetch classification: a fetch cut short by the
// batch deadline is a timeout, not a retryable source failure.
func ClassifyFailure(err error) FailureReason {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return ReasonInsufficientData
	case errors.Is(err, ErrUnstableFit):
		return ReasonUnstableFit
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonTimeout
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.Transient {
			return ReasonFetchTransient
		}
		return ReasonFetchPermanent
	}
	return ReasonFetchPermanent
}

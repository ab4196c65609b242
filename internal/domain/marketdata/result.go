package marketdata

import (
	"fmt"
	"strings"
	"time"

	"minerva/pkg/errors"
)

// FailureKind classifies why one provider attempt failed
type FailureKind string

const (
	FailureRateLimited      FailureKind = "RATE_LIMITED"
	FailureNotFound         FailureKind = "NOT_FOUND"
	FailureTransientNetwork FailureKind = "TRANSIENT_NETWORK"
	FailureUnsupported      FailureKind = "UNSUPPORTED"
)

// Retryable reports whether the same provider may be retried for this kind
func (k FailureKind) Retryable() bool {
	return k == FailureRateLimited || k == FailureTransientNetwork
}

// ClassifyError maps a provider error onto a FailureKind via the error chain.
// Anything unrecognized counts as transient so the chain still advances after
// bounded retries instead of hard-failing on a novel error.
func ClassifyError(err error) FailureKind {
	switch {
	case errors.Is(err, errors.ErrRateLimitExceeded):
		return FailureRateLimited
	case errors.Is(err, errors.ErrSymbolNotFound), errors.Is(err, errors.ErrNotFound):
		return FailureNotFound
	case errors.Is(err, errors.ErrUnsupportedRequest), errors.Is(err, errors.ErrNotImplemented):
		return FailureUnsupported
	default:
		return FailureTransientNetwork
	}
}

// Failure captures the classified outcome of a failed attempt
type Failure struct {
	Kind      FailureKind `json:"kind"`
	Retryable bool        `json:"retryable"`
	Message   string      `json:"message"`
}

// ProviderResult is the immutable record of a single provider attempt.
// Exactly one of the payload pointers is set on success; Failure is set
// otherwise. Results are never mutated after creation.
type ProviderResult struct {
	ProviderID string       `json:"provider_id"`
	Ticker     string       `json:"ticker"`
	Kind       RequestKind  `json:"kind"`
	Range      HistoryRange `json:"range,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`

	Quote   *Quote   `json:"quote,omitempty"`
	Profile *Profile `json:"profile,omitempty"`
	History *History `json:"history,omitempty"`
	Failure *Failure `json:"failure,omitempty"`

	// FromCache marks results replayed from the short-TTL cache. ProviderID
	// still names the provider that originally produced the payload.
	FromCache bool `json:"from_cache,omitempty"`
}

// Success reports whether this attempt produced a payload
func (r ProviderResult) Success() bool { return r.Failure == nil }

// NewSuccess builds a successful attempt record
func NewSuccess(providerID, ticker string, kind RequestKind) ProviderResult {
	return ProviderResult{
		ProviderID: providerID,
		Ticker:     ticker,
		Kind:       kind,
		Timestamp:  time.Now().UTC(),
	}
}

// NewFailure builds a failed attempt record from a classified error
func NewFailure(providerID, ticker string, kind RequestKind, err error) ProviderResult {
	fk := ClassifyError(err)
	return ProviderResult{
		ProviderID: providerID,
		Ticker:     ticker,
		Kind:       kind,
		Timestamp:  time.Now().UTC(),
		Failure: &Failure{
			Kind:      fk,
			Retryable: fk.Retryable(),
			Message:   err.Error(),
		},
	}
}

// Outcome is the full ordered attempt sequence for one Fetch call.
// When a provider succeeds the sequence ends with that success; when the
// whole chain fails every classified failure is preserved so callers can
// decide whether partial analysis is still possible.
type Outcome struct {
	Ticker   string
	Kind     RequestKind
	Attempts []ProviderResult
}

// Success returns the successful attempt, if any
func (o Outcome) Success() (ProviderResult, bool) {
	for _, a := range o.Attempts {
		if a.Success() {
			return a, true
		}
	}
	return ProviderResult{}, false
}

// Failed reports whether every attempt in the sequence failed
func (o Outcome) Failed() bool {
	_, ok := o.Success()
	return !ok && len(o.Attempts) > 0
}

// FailureSummary renders the ordered failure sequence for warnings,
// e.g. "alphavantage: RATE_LIMITED; finnhub: NOT_FOUND"
func (o Outcome) FailureSummary() string {
	parts := make([]string, 0, len(o.Attempts))
	for _, a := range o.Attempts {
		if a.Failure == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", a.ProviderID, a.Failure.Kind))
	}
	return strings.Join(parts, "; ")
}

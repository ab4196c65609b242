package market

import (
	"context"
	"sync"

	"minerva/internal/domain/marketdata"
)

type recorderKey struct{}

// Recorder accumulates provider attempts made on behalf of one worker run,
// so the final response can report where its data came from.
type Recorder struct {
	mu       sync.Mutex
	attempts []marketdata.ProviderResult
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends every attempt from an outcome
func (r *Recorder) Record(outcome marketdata.Outcome) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, outcome.Attempts...)
}

// Results returns a copy of all recorded attempts in arrival order
func (r *Recorder) Results() []marketdata.ProviderResult {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]marketdata.ProviderResult, len(r.attempts))
	copy(out, r.attempts)
	return out
}

// WithRecorder injects a fetch recorder into a context
func WithRecorder(ctx context.Context, rec *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

// RecorderFromContext extracts the fetch recorder if present
func RecorderFromContext(ctx context.Context) (*Recorder, bool) {
	rec, ok := ctx.Value(recorderKey{}).(*Recorder)
	return rec, ok
}

func record(ctx context.Context, outcome marketdata.Outcome) {
	if rec, ok := RecorderFromContext(ctx); ok {
		rec.Record(outcome)
	}
}

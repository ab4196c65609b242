package conversation

import (
	"time"

	"github.com/google/uuid"

	"minerva/internal/domain/marketdata"
)

// ComplexityClass drives routing between the two analysis workers
type ComplexityClass string

const (
	ClassSimple        ComplexityClass = "SIMPLE"
	ClassComprehensive ComplexityClass = "COMPREHENSIVE"
	ClassComparative   ComplexityClass = "COMPARATIVE"
	ClassPortfolio     ComplexityClass = "PORTFOLIO"
)

// MultiTicker reports whether the class implies a ticker set of size >= 2
func (c ComplexityClass) MultiTicker() bool {
	return c == ClassComparative || c == ClassPortfolio
}

// Query is one classified user question, owned by the coordinator for a turn
type Query struct {
	Text    string          `json:"text"`
	Class   ComplexityClass `json:"class"`
	Tickers []string        `json:"tickers"`
	// NarrowMargin marks SIMPLE classifications that landed close to the
	// comprehensive threshold; the coordinator treats them as escalation
	// candidates after the junior pass.
	NarrowMargin bool      `json:"narrow_margin,omitempty"`
	ReceivedAt   time.Time `json:"received_at"`
}

// Worker identifiers
const (
	WorkerJunior = "junior_analyst"
	WorkerMaster = "master_analyst"
)

// Confidence is the worker's self-reported sufficiency label
type Confidence string

const (
	ConfidenceHigh Confidence = "HIGH"
	ConfidenceLow  Confidence = "LOW"
)

// LowReason explains a LOW confidence label so the coordinator can tell
// pure data unavailability (no escalation) from scope problems (escalate)
type LowReason string

const (
	LowReasonNone            LowReason = ""
	LowReasonDataUnavailable LowReason = "data_unavailable"
	LowReasonScopeExceeded   LowReason = "scope_exceeded"
	LowReasonBudgetExhausted LowReason = "budget_exhausted"
)

// WorkerOutput is the immutable result of one worker invocation
type WorkerOutput struct {
	WorkerID   string     `json:"worker_id"`
	Summary    string     `json:"summary"`
	Confidence Confidence `json:"confidence"`
	LowReason  LowReason  `json:"low_reason,omitempty"`
	// DataUsed records every provider attempt behind the summary in fetch
	// order; the successful entries are the traceable data sources.
	DataUsed      []marketdata.ProviderResult `json:"data_used"`
	ToolCallsMade int                         `json:"tool_calls_made"`
	Elapsed       time.Duration               `json:"elapsed"`
}

// TickersWithData lists tickers with at least one successful fetch
func (o WorkerOutput) TickersWithData() map[string]bool {
	out := make(map[string]bool, len(o.DataUsed))
	for _, r := range o.DataUsed {
		if r.Success() {
			out[r.Ticker] = true
		}
	}
	return out
}

// SynthesizedResponse is the coordinator's final per-turn artifact
type SynthesizedResponse struct {
	Text                string    `json:"text"`
	ContributingWorkers []string  `json:"contributing_workers"`
	Escalated           bool      `json:"escalated"`
	Warnings            []string  `json:"warnings,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// ContributedBy reports whether the given worker produced part of the answer
func (r SynthesizedResponse) ContributedBy(workerID string) bool {
	for _, w := range r.ContributingWorkers {
		if w == workerID {
			return true
		}
	}
	return false
}

// Turn pairs a classified query with its synthesized response
type Turn struct {
	Query    Query               `json:"query"`
	Response SynthesizedResponse `json:"response"`
	At       time.Time           `json:"at"`
}

// Session holds the ordered per-conversation history. Not durable: sessions
// live for the process lifetime at most.
type Session struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     []Turn    `json:"turns"`
}

// AppendTurn appends chronologically, evicting the oldest turn first once
// maxTurns is reached
func (s *Session) AppendTurn(t Turn, maxTurns int) {
	s.Turns = append(s.Turns, t)
	if maxTurns > 0 && len(s.Turns) > maxTurns {
		s.Turns = s.Turns[len(s.Turns)-maxTurns:]
	}
	s.UpdatedAt = t.At
}

// LastTickers walks history newest-first and returns the most recent
// non-empty ticker set, for pronoun/anaphora resolution
func (s *Session) LastTickers() []string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if len(s.Turns[i].Query.Tickers) > 0 {
			out := make([]string, len(s.Turns[i].Query.Tickers))
			copy(out, s.Turns[i].Query.Tickers)
			return out
		}
	}
	return nil
}

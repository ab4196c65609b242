package agents

import (
	"fmt"
	"strings"
	"time"

	"minerva/internal/domain/conversation"
	"minerva/pkg/logger"
)

// Synthesizer folds one or two worker passes into the final per-turn
// response. Composition is deterministic: the deepest pass supplies the
// answer body and the recorded fetch attempts drive the data warnings, so
// the same worker outputs always synthesize the same response.
type Synthesizer struct {
	log *logger.Logger
}

// NewSynthesizer creates the response synthesizer
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{log: logger.Get().With("component", "synthesizer")}
}

// Compose builds the turn response from the ordered worker passes.
func (s *Synthesizer) Compose(query conversation.Query, outputs []*conversation.WorkerOutput, escalated bool) *conversation.SynthesizedResponse {
	resp := &conversation.SynthesizedResponse{
		Escalated: escalated,
		CreatedAt: time.Now().UTC(),
	}

	for _, o := range outputs {
		resp.ContributingWorkers = append(resp.ContributingWorkers, o.WorkerID)
	}

	// The last pass is the deepest one and supplies the answer body
	if n := len(outputs); n > 0 {
		resp.Text = outputs[n-1].Summary
	}

	resp.Warnings = s.warnings(query, outputs)

	return resp
}

// Clarification builds the response for a turn that could not be dispatched
// because no ticker scope was identified.
func (s *Synthesizer) Clarification() *conversation.SynthesizedResponse {
	return &conversation.SynthesizedResponse{
		Text:      "I could not tell which stock you mean. Name a company or ticker symbol, e.g. AAPL or Apple.",
		CreatedAt: time.Now().UTC(),
	}
}

func (s *Synthesizer) warnings(query conversation.Query, outputs []*conversation.WorkerOutput) []string {
	warns := dataWarnings(query, outputs)

	if len(outputs) > 0 {
		last := outputs[len(outputs)-1]
		if last.Confidence == conversation.ConfidenceLow {
			switch last.LowReason {
			case conversation.LowReasonBudgetExhausted:
				warns = append(warns, "The analysis hit its reasoning limit; the answer may be incomplete.")
			case conversation.LowReasonDataUnavailable:
				if len(warns) == 0 {
					warns = append(warns, "Some market data was unavailable; parts of the answer are unverified.")
				}
			default:
				warns = append(warns, "The analyst reported low confidence in this answer.")
			}
		}
	}

	return warns
}

// dataWarnings flags every requested ticker that ended the turn without a
// single successful fetch, with the ordered per-provider failure trail.
func dataWarnings(query conversation.Query, outputs []*conversation.WorkerOutput) []string {
	success := make(map[string]bool)
	failures := make(map[string][]string)
	seen := make(map[string]bool)

	for _, o := range outputs {
		for _, r := range o.DataUsed {
			if r.Success() {
				success[r.Ticker] = true
				continue
			}
			key := r.Ticker + "|" + r.ProviderID + "|" + string(r.Failure.Kind)
			if seen[key] {
				continue
			}
			seen[key] = true
			failures[r.Ticker] = append(failures[r.Ticker], fmt.Sprintf("%s: %s", r.ProviderID, r.Failure.Kind))
		}
	}

	var warns []string
	for _, t := range query.Tickers {
		ticker := strings.ToUpper(t)
		if success[ticker] {
			continue
		}
		if trail := failures[ticker]; len(trail) > 0 {
			warns = append(warns, fmt.Sprintf("No live market data for %s (%s); statements about it are unverified.",
				ticker, strings.Join(trail, "; ")))
		}
	}
	return warns
}

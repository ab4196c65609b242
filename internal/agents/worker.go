package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"minerva/internal/domain/conversation"
	"minerva/internal/domain/marketdata"
)

// Worker runs one analysis pass over a classified query and returns an
// immutable output record. Implementations must be safe for concurrent use.
type Worker interface {
	ID() string
	Run(ctx context.Context, task Task) (*conversation.WorkerOutput, error)
}

// Task is the coordinator's dispatch unit for one worker invocation.
type Task struct {
	Query   conversation.Query
	History []conversation.Turn
	// PriorOutput carries an earlier pass over the same query, set when the
	// master builds on the junior's answer. Nil on a direct dispatch.
	PriorOutput *conversation.WorkerOutput
}

// promptData feeds the worker system prompt templates.
type promptData struct {
	Name      string
	Date      string
	Providers string
}

func newPromptData(name string, providers []string) promptData {
	return promptData{
		Name:      name,
		Date:      time.Now().Format("2006-01-02"),
		Providers: strings.Join(providers, ", "),
	}
}

const historyAnswerLimit = 400

// renderHistory condenses the most recent turns into prompt context
func renderHistory(turns []conversation.Turn, max int) string {
	if len(turns) == 0 {
		return ""
	}
	if max > 0 && len(turns) > max {
		turns = turns[len(turns)-max:]
	}

	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, turn := range turns {
		fmt.Fprintf(&b, "User: %s\n", turn.Query.Text)
		fmt.Fprintf(&b, "Analyst: %s\n", truncate(turn.Response.Text, historyAnswerLimit))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// renderOutcomes summarizes prefetched market data for the user prompt,
// one line per ticker and kind, in a stable order.
func renderOutcomes(outcomes []marketdata.Outcome) string {
	if len(outcomes) == 0 {
		return ""
	}

	sorted := make([]marketdata.Outcome, len(outcomes))
	copy(sorted, outcomes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Ticker != sorted[j].Ticker {
			return sorted[i].Ticker < sorted[j].Ticker
		}
		return sorted[i].Kind < sorted[j].Kind
	})

	var b strings.Builder
	b.WriteString("Fetched market data:\n")
	for _, o := range sorted {
		b.WriteString("- ")
		b.WriteString(outcomeLine(o))
		b.WriteString("\n")
	}
	return b.String()
}

func outcomeLine(o marketdata.Outcome) string {
	result, ok := o.Success()
	if !ok {
		return fmt.Sprintf("%s %s: unavailable (%s)", o.Ticker, o.Kind, o.FailureSummary())
	}

	switch {
	case result.Quote != nil:
		q := result.Quote
		return fmt.Sprintf("%s quote: %s %s, change %s (%+.2f%%), volume %s [%s]",
			q.Ticker, q.Price.StringFixed(2), q.Currency,
			q.Change.StringFixed(2), q.ChangePercent,
			humanize.Comma(q.Volume), result.ProviderID)
	case result.Profile != nil:
		p := result.Profile
		line := fmt.Sprintf("%s profile: %s", p.Ticker, p.Name)
		if p.Sector != "" {
			line += ", " + p.Sector
		}
		if p.MarketCap > 0 {
			line += fmt.Sprintf(", market cap %s", humanize.SIWithDigits(p.MarketCap, 2, ""))
		}
		if p.PERatio > 0 {
			line += fmt.Sprintf(", P/E %.1f", p.PERatio)
		}
		return line + fmt.Sprintf(" [%s]", result.ProviderID)
	case result.History != nil:
		h := result.History
		if h.Len() == 0 {
			return fmt.Sprintf("%s history (%s): empty series [%s]", h.Ticker, h.Range, result.ProviderID)
		}
		first := h.Candles[0].Close
		last := h.Candles[h.Len()-1].Close
		return fmt.Sprintf("%s history (%s): %d candles, close %.2f -> %.2f [%s]",
			h.Ticker, h.Range, h.Len(), first, last, result.ProviderID)
	default:
		return fmt.Sprintf("%s %s: fetched [%s]", o.Ticker, o.Kind, result.ProviderID)
	}
}

// missingTickers returns the requested tickers that have no successful fetch
// in the recorded results, preserving request order.
func missingTickers(tickers []string, results []marketdata.ProviderResult) []string {
	got := make(map[string]bool, len(results))
	for _, r := range results {
		if r.Success() {
			got[r.Ticker] = true
		}
	}

	var missing []string
	for _, t := range tickers {
		if !got[strings.ToUpper(t)] {
			missing = append(missing, t)
		}
	}
	return missing
}

// parseVerdict pulls the trailing JSON confidence block the workers are
// prompted to emit. It returns the confidence, the model's stated reason, and
// the answer text with the block removed. Responses without a parsable
// verdict default to high confidence so a formatting slip never forces an
// escalation on its own.
func parseVerdict(text string) (conversation.Confidence, string, string) {
	start := -1
	depth := 0
	vStart, vEnd := -1, -1
	var verdict map[string]interface{}

	for i, ch := range text {
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start != -1 {
				var payload map[string]interface{}
				if err := json.Unmarshal([]byte(text[start:i+1]), &payload); err == nil {
					if _, ok := payload["confidence"]; ok {
						// Keep the last verdict block in the response
						verdict = payload
						vStart, vEnd = start, i+1
					}
				}
				start = -1
			}
		}
	}

	if verdict == nil {
		return conversation.ConfidenceHigh, "", strings.TrimSpace(text)
	}

	cleaned := strings.TrimSpace(text[:vStart] + text[vEnd:])
	confidence := conversation.ConfidenceHigh
	if v, _ := verdict["confidence"].(string); strings.EqualFold(v, "low") {
		confidence = conversation.ConfidenceLow
	}
	reason, _ := verdict["reason"].(string)
	return confidence, reason, cleaned
}

// lowReasonFromText maps a model-stated reason onto the closest LowReason
func lowReasonFromText(reason string) conversation.LowReason {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "data"), strings.Contains(r, "fetch"), strings.Contains(r, "unavailable"):
		return conversation.LowReasonDataUnavailable
	default:
		return conversation.LowReasonScopeExceeded
	}
}

// deriveConfidence settles the output confidence for one worker pass.
// Deterministic signals win over the model's self-report: missing data for a
// requested ticker always means LOW/data_unavailable, and a run that hit the
// iteration bound always means LOW/budget_exhausted.
func deriveConfidence(
	tickers []string,
	results []marketdata.ProviderResult,
	budgetExhausted bool,
	modelConfidence conversation.Confidence,
	modelReason string,
) (conversation.Confidence, conversation.LowReason) {
	if len(tickers) > 0 && len(missingTickers(tickers, results)) > 0 {
		return conversation.ConfidenceLow, conversation.LowReasonDataUnavailable
	}
	if budgetExhausted {
		return conversation.ConfidenceLow, conversation.LowReasonBudgetExhausted
	}
	if modelConfidence == conversation.ConfidenceLow {
		return conversation.ConfidenceLow, lowReasonFromText(modelReason)
	}
	return conversation.ConfidenceHigh, conversation.LowReasonNone
}

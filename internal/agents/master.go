package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"minerva/internal/domain/conversation"
	"minerva/internal/domain/marketdata"
	"minerva/internal/gateway"
	"minerva/internal/metrics"
	"minerva/internal/tools"
	"minerva/internal/tools/market"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
	"minerva/pkg/templates"
)

// MasterWorker is the deep tier: comprehensive single-stock analysis,
// comparisons, and portfolio reviews. It prefetches quotes and company
// profiles for every ticker in scope and reaches for price history and
// technicals through its tools.
type MasterWorker struct {
	cfg     WorkerConfig
	engine  *Engine
	gateway *gateway.Gateway
	tools   *tools.Registry
	log     *logger.Logger
}

// NewMasterWorker assembles the deep tier around its tool registry
func NewMasterWorker(cfg WorkerConfig, engine *Engine, gw *gateway.Gateway, registry *tools.Registry) *MasterWorker {
	return &MasterWorker{
		cfg:     cfg,
		engine:  engine,
		gateway: gw,
		tools:   registry,
		log:     logger.Get().With("worker", cfg.ID),
	}
}

// ID returns the worker identifier used in turn records
func (w *MasterWorker) ID() string { return w.cfg.ID }

// Run executes one deep analysis pass. When task.PriorOutput is set the
// master starts from that answer instead of from scratch.
func (w *MasterWorker) Run(ctx context.Context, task Task) (*conversation.WorkerOutput, error) {
	start := time.Now()

	rec := market.NewRecorder()
	ctx = market.WithRecorder(ctx, rec)

	outcomes, covered := reusePriorData(task.PriorOutput, rec)
	outcomes = append(outcomes, w.prefetch(ctx, task.Query.Tickers, covered, rec)...)

	systemPrompt, err := templates.Get().Render("workers/master_analyst", newPromptData(w.cfg.Name, w.gateway.Providers()))
	if err != nil {
		return nil, errors.Wrap(err, "render master system prompt")
	}

	res, runErr := w.engine.Run(ctx, EngineRequest{
		Model:         w.cfg.Model,
		SystemPrompt:  systemPrompt,
		UserPrompt:    w.buildUserPrompt(task, outcomes),
		Tools:         w.tools,
		Temperature:   w.cfg.Temperature,
		MaxTokens:     w.cfg.MaxTokens,
		MaxIterations: w.cfg.MaxIterations,
	})
	if runErr != nil && !errors.Is(runErr, errors.ErrIterationBudget) {
		metrics.RecordWorkerExecution(w.cfg.ID, time.Since(start), runErr)
		return nil, runErr
	}

	modelConf, modelReason, summary := parseVerdict(res.Text)
	if summary == "" {
		summary = "The deep analysis did not produce a final answer within its limits."
	}

	results := rec.Results()
	confidence, lowReason := deriveConfidence(task.Query.Tickers, results, res.BudgetExhausted, modelConf, modelReason)

	output := &conversation.WorkerOutput{
		WorkerID:      w.cfg.ID,
		Summary:       summary,
		Confidence:    confidence,
		LowReason:     lowReason,
		DataUsed:      results,
		ToolCallsMade: res.ToolCallsMade,
		Elapsed:       time.Since(start),
	}

	metrics.RecordWorkerExecution(w.cfg.ID, output.Elapsed, nil)
	w.log.Infow("Master pass complete",
		"class", task.Query.Class,
		"confidence", confidence,
		"low_reason", lowReason,
		"tool_calls", res.ToolCallsMade,
		"tokens", res.Usage.TotalTokens,
		"elapsed", output.Elapsed,
	)

	return output, nil
}

// reusePriorData replays the successful fetches of an earlier pass into this
// run's recorder and reports the (ticker, kind) pairs they cover, so the
// master does not repeat fetches the junior already paid for.
func reusePriorData(prior *conversation.WorkerOutput, rec *market.Recorder) ([]marketdata.Outcome, map[string]bool) {
	if prior == nil {
		return nil, nil
	}

	var outcomes []marketdata.Outcome
	covered := make(map[string]bool)
	for _, r := range prior.DataUsed {
		if !r.Success() {
			continue
		}
		key := coverageKey(r.Ticker, r.Kind)
		if covered[key] {
			continue
		}
		covered[key] = true
		o := marketdata.Outcome{Ticker: r.Ticker, Kind: r.Kind, Attempts: []marketdata.ProviderResult{r}}
		rec.Record(o)
		outcomes = append(outcomes, o)
	}
	return outcomes, covered
}

func coverageKey(ticker string, kind marketdata.RequestKind) string {
	return strings.ToUpper(ticker) + "/" + string(kind)
}

// prefetch pulls quotes and company profiles for the tickers the prior pass
// did not already cover. History stays on demand through the tools; a
// portfolio of tickers would otherwise burn the provider budget before
// reasoning starts.
func (w *MasterWorker) prefetch(ctx context.Context, tickers []string, covered map[string]bool, rec *market.Recorder) []marketdata.Outcome {
	if len(tickers) == 0 {
		return nil
	}

	outcomes := make([]marketdata.Outcome, 0, len(tickers)*2)
	for _, kind := range []marketdata.RequestKind{marketdata.KindQuote, marketdata.KindProfile} {
		want := make([]string, 0, len(tickers))
		for _, t := range tickers {
			if !covered[coverageKey(t, kind)] {
				want = append(want, t)
			}
		}
		if len(want) == 0 {
			continue
		}
		set := w.gateway.FetchSet(ctx, want, kind, "")
		for _, o := range set {
			rec.Record(o)
			outcomes = append(outcomes, o)
		}
	}
	return outcomes
}

func (w *MasterWorker) buildUserPrompt(task Task, outcomes []marketdata.Outcome) string {
	var b strings.Builder

	if h := renderHistory(task.History, 5); h != "" {
		b.WriteString(h)
		b.WriteString("\n")
	}
	if d := renderOutcomes(outcomes); d != "" {
		b.WriteString(d)
		b.WriteString("\n")
	}

	if prior := task.PriorOutput; prior != nil {
		fmt.Fprintf(&b, "A first-pass answer from the junior analyst:\n%s\n", truncate(prior.Summary, 1500))
		if prior.Confidence == conversation.ConfidenceLow && prior.LowReason != conversation.LowReasonNone {
			fmt.Fprintf(&b, "The junior reported low confidence (%s).\n", prior.LowReason)
		}
		b.WriteString("Verify its figures against the data, correct anything wrong, and go deeper.\n\n")
	}

	fmt.Fprintf(&b, "Question: %s\n", task.Query.Text)
	if len(task.Query.Tickers) > 0 {
		fmt.Fprintf(&b, "Tickers in scope: %s\n", strings.Join(task.Query.Tickers, ", "))
	}
	b.WriteString(classInstruction(task.Query.Class))

	return b.String()
}

// classInstruction tailors the task framing per complexity class
func classInstruction(class conversation.ComplexityClass) string {
	switch class {
	case conversation.ClassComparative:
		return "Compare the tickers head-to-head on price action, fundamentals and technicals, and end with a direct verdict."
	case conversation.ClassPortfolio:
		return "Review the tickers as a portfolio: balance, concentration, sector exposure, standout risks, and what to watch."
	case conversation.ClassComprehensive:
		return "Give a comprehensive analysis: current state, trend and technicals, key risks, and a clear bottom line."
	default:
		return "Answer with full depth; a quick pass was not sufficient for this question."
	}
}

package agents

import (
	"context"
	"fmt"
	"sort"
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

// JuniorWorker is the fast tier: quote lookups and quick factual answers for
// SIMPLE queries. It prefetches quotes for every ticker in scope so the model
// answers from live numbers even when it never calls a tool.
type JuniorWorker struct {
	cfg     WorkerConfig
	engine  *Engine
	gateway *gateway.Gateway
	tools   *tools.Registry
	log     *logger.Logger
}

// NewJuniorWorker assembles the junior tier around its tool registry
func NewJuniorWorker(cfg WorkerConfig, engine *Engine, gw *gateway.Gateway, registry *tools.Registry) *JuniorWorker {
	return &JuniorWorker{
		cfg:     cfg,
		engine:  engine,
		gateway: gw,
		tools:   registry,
		log:     logger.Get().With("worker", cfg.ID),
	}
}

// ID returns the worker identifier used in turn records
func (w *JuniorWorker) ID() string { return w.cfg.ID }

// Run executes one junior pass. The returned output is complete even when
// the reasoning budget ran out; only provider-level failures are fatal.
func (w *JuniorWorker) Run(ctx context.Context, task Task) (*conversation.WorkerOutput, error) {
	start := time.Now()

	rec := market.NewRecorder()
	ctx = market.WithRecorder(ctx, rec)

	outcomes := w.prefetch(ctx, task.Query.Tickers, rec)

	systemPrompt, err := templates.Get().Render("workers/junior_analyst", newPromptData(w.cfg.Name, w.gateway.Providers()))
	if err != nil {
		return nil, errors.Wrap(err, "render junior system prompt")
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
		summary = "The quick analysis did not produce an answer within its limits."
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
	w.log.Infow("Junior pass complete",
		"confidence", confidence,
		"low_reason", lowReason,
		"tool_calls", res.ToolCallsMade,
		"tokens", res.Usage.TotalTokens,
		"elapsed", output.Elapsed,
	)

	return output, nil
}

// prefetch pulls current quotes for every ticker in scope and feeds the
// attempts into the recorder so DataUsed covers prefetched data too.
func (w *JuniorWorker) prefetch(ctx context.Context, tickers []string, rec *market.Recorder) []marketdata.Outcome {
	if len(tickers) == 0 {
		return nil
	}

	set := w.gateway.FetchSet(ctx, tickers, marketdata.KindQuote, "")
	outcomes := make([]marketdata.Outcome, 0, len(set))
	for _, o := range set {
		rec.Record(o)
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Ticker < outcomes[j].Ticker })
	return outcomes
}

func (w *JuniorWorker) buildUserPrompt(task Task, outcomes []marketdata.Outcome) string {
	var b strings.Builder

	if h := renderHistory(task.History, 3); h != "" {
		b.WriteString(h)
		b.WriteString("\n")
	}
	if d := renderOutcomes(outcomes); d != "" {
		b.WriteString(d)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s\n", task.Query.Text)
	if len(task.Query.Tickers) > 0 {
		fmt.Fprintf(&b, "Tickers in scope: %s\n", strings.Join(task.Query.Tickers, ", "))
	}
	b.WriteString("Answer concisely with exact figures.")

	return b.String()
}

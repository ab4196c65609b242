package router

import (
	"context"
	"regexp"
	"strings"
	"time"

	"minerva/internal/adapters/ai"
	"minerva/internal/adapters/config"
	"minerva/internal/agents"
	"minerva/internal/domain/conversation"
	"minerva/internal/metrics"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
	"minerva/pkg/templates"
)

// Router classifies raw questions into a complexity class and a ticker
// scope. Ticker resolution is layered: cheap lexical heuristics first, the
// session history for pronoun references, and a low-temperature model
// extraction only when both come up empty.
type Router struct {
	chat        ai.ChatProvider
	model       string
	extractTemp float64

	depthThreshold int
	narrowMargin   int

	log *logger.Logger
}

// New builds a router. chat may be nil, which disables the model extraction
// fallback and leaves the lexical and session layers in place.
func New(chat ai.ChatProvider, model string, extractTemp float64, cfg config.RouterConfig) *Router {
	return &Router{
		chat:           chat,
		model:          model,
		extractTemp:    extractTemp,
		depthThreshold: cfg.DepthThreshold,
		narrowMargin:   cfg.NarrowMargin,
		log:            logger.Get().With("component", "router"),
	}
}

// Classify resolves the ticker scope and complexity class for one question.
func (r *Router) Classify(ctx context.Context, text string, session *conversation.Session) (conversation.Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return conversation.Query{}, errors.Wrap(errors.ErrInvalidInput, "empty query text")
	}

	query := conversation.Query{
		Text:       text,
		ReceivedAt: time.Now().UTC(),
	}

	tickers, source := r.resolveTickers(ctx, text, session)
	query.Tickers = tickers

	class, depth := r.classify(text, len(tickers))
	query.Class = class

	// A SIMPLE verdict that nearly cleared the threshold is worth a second
	// look after the junior answers.
	if class == conversation.ClassSimple && depth > 0 && r.depthThreshold-depth <= r.narrowMargin {
		query.NarrowMargin = true
	}

	metrics.RecordClassification(string(class), source)
	r.log.Debugw("Query classified",
		"class", class,
		"depth", depth,
		"tickers", tickers,
		"ticker_source", source,
		"narrow_margin", query.NarrowMargin,
	)

	return query, nil
}

func (r *Router) resolveTickers(ctx context.Context, text string, session *conversation.Session) ([]string, string) {
	if tickers := ExtractTickers(text); len(tickers) > 0 {
		return tickers, "heuristic"
	}

	if session != nil && referencesPrior(text) {
		if prior := session.LastTickers(); len(prior) > 0 {
			return prior, "session"
		}
	}

	if r.chat != nil {
		if tickers := r.modelExtract(ctx, text); len(tickers) > 0 {
			return tickers, "model"
		}
	}

	return nil, "none"
}

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}(\.[A-Z])?$`)

// ExtractTickers pulls ticker symbols out of free text: cashtags always
// count, known or plausible uppercase tokens count, and company names are
// resolved through the alias table. Order of first mention is preserved.
func ExtractTickers(text string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	words := strings.Fields(text)
	cleaned := make([]string, len(words))
	for i, w := range words {
		cleaned[i] = strings.Trim(w, ".,;:!?()[]{}\"'")
	}

	for i, token := range cleaned {
		if token == "" {
			continue
		}

		if strings.HasPrefix(token, "$") {
			sym := strings.ToUpper(strings.TrimPrefix(token, "$"))
			if tickerPattern.MatchString(sym) {
				add(sym)
			}
			continue
		}

		if token == strings.ToUpper(token) && tickerPattern.MatchString(token) {
			if tickerStopwords[token] {
				continue
			}
			if knownSymbols[token] || len(token) >= 2 {
				add(token)
			}
			continue
		}

		lower := strings.ToLower(token)
		if i+1 < len(cleaned) {
			bigram := lower + " " + strings.ToLower(cleaned[i+1])
			if sym, ok := companyAliases[bigram]; ok {
				add(sym)
				continue
			}
		}
		if sym, ok := companyAliases[lower]; ok {
			add(sym)
		}
	}

	return out
}

// pronoun markers that point the question back at earlier turns
var priorReferenceWords = map[string]bool{
	"it": true, "its": true, "they": true, "them": true, "their": true,
	"those": true, "these": true, "same": true,
}

var priorReferencePhrases = []string{
	"that stock", "this stock", "the stock", "that company", "this company",
	"the company", "that one", "the same",
}

func referencesPrior(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range priorReferencePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	for _, w := range strings.Fields(lower) {
		if priorReferenceWords[strings.Trim(w, ".,;:!?")] {
			return true
		}
	}
	return false
}

// modelExtract asks the chat model for tickers when the lexical layers find
// nothing. Failures degrade to an empty scope; classification never fails on
// a model hiccup.
func (r *Router) modelExtract(ctx context.Context, text string) []string {
	system, err := templates.Get().Render("router/ticker_extraction", map[string]string{
		"Date": time.Now().Format("2006-01-02"),
	})
	if err != nil {
		r.log.Warnw("Ticker extraction template failed", "error", err)
		return nil
	}

	resp, err := r.chat.Chat(ctx, ai.ChatRequest{
		Model: r.model,
		Messages: []ai.Message{
			{Role: ai.RoleSystem, Content: system},
			{Role: ai.RoleUser, Content: text},
		},
		Temperature: r.extractTemp,
		MaxTokens:   200,
	})
	if err != nil {
		r.log.Warnw("Model ticker extraction failed", "error", err)
		return nil
	}
	if len(resp.Choices) == 0 {
		return nil
	}

	payload, _ := agents.ExtractStructuredOutput(resp.Choices[0].Message.Content)
	raw, _ := payload["tickers"].([]interface{})

	var out []string
	seen := make(map[string]bool)
	for _, v := range raw {
		s, _ := v.(string)
		sym := strings.ToUpper(strings.TrimSpace(s))
		if tickerPattern.MatchString(sym) && !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
		if len(out) == 10 {
			break
		}
	}
	return out
}

// Depth vocabulary: strong signals mark questions that need real analysis,
// weak ones mark curiosity that a quick answer usually satisfies.
var strongDepthSignals = []string{
	"analyz", "analysis", "deep dive", "outlook", "forecast", "valuation",
	"technical", "trend", "momentum", "moving average", " rsi",
	"support", "resistance", "fundamentals", "should i buy", "should i sell",
	"worth buying", "worth investing", "risk",
}

var weakDepthSignals = []string{
	"why", "explain", "history", "performance", "detail", "opinion",
	"overview", "pros and cons", "what do you think",
}

var comparativeSignals = []string{
	"compare", "versus", " vs ", " vs.", "better buy", "better investment",
	"head to head", "against each other", "or better",
}

var portfolioSignals = []string{
	"portfolio", "diversif", "allocation", "allocate", "holdings",
	"my positions", "rebalance", "asset mix",
}

// classify scores the question and applies class precedence:
// PORTFOLIO > COMPARATIVE > COMPREHENSIVE > SIMPLE. Ties at the depth
// threshold resolve upward.
func (r *Router) classify(text string, tickerCount int) (conversation.ComplexityClass, int) {
	lower := strings.ToLower(text)

	depth := 0
	for _, s := range strongDepthSignals {
		if strings.Contains(lower, s) {
			depth += 2
		}
	}
	for _, s := range weakDepthSignals {
		if strings.Contains(lower, s) {
			depth++
		}
	}

	switch {
	case containsAny(lower, portfolioSignals):
		return conversation.ClassPortfolio, depth
	case tickerCount >= 2 || containsAny(lower, comparativeSignals):
		return conversation.ClassComparative, depth
	case depth >= r.depthThreshold:
		return conversation.ClassComprehensive, depth
	default:
		return conversation.ClassSimple, depth
	}
}

func containsAny(text string, signals []string) bool {
	for _, s := range signals {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

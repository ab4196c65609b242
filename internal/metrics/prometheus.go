package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Query metrics
	QueryTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_query_turns_total",
			Help: "Total number of query turns processed",
		},
		[]string{"class", "status"}, // status: success|error
	)

	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minerva_turn_duration_seconds",
			Help:    "End-to-end turn duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"class"},
	)

	Classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_classifications_total",
			Help: "Query classifications by complexity class and ticker source",
		},
		[]string{"class", "ticker_source"}, // ticker_source: heuristic|session|model
	)

	Escalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_escalations_total",
			Help: "Total number of junior-to-master escalations",
		},
		[]string{"trigger"}, // trigger: low_confidence|narrow_margin
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_worker_executions_total",
			Help: "Total number of analysis worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minerva_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"worker"},
	)

	// AI metrics
	ChatCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_chat_calls_total",
			Help: "Total number of chat completion calls",
		},
		[]string{"provider", "model", "status"}, // status: success|error|rate_limited
	)

	ChatLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minerva_chat_latency_seconds",
			Help:    "Chat completion latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "model"},
	)

	ChatTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_chat_tokens_total",
			Help: "Total tokens used by chat completions",
		},
		[]string{"provider", "model", "type"}, // type: prompt|completion
	)

	// Market data metrics
	ProviderFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_provider_fetches_total",
			Help: "Total number of market data fetch attempts",
		},
		[]string{"provider", "kind", "outcome"}, // outcome: success|RATE_LIMITED|NOT_FOUND|TRANSIENT_NETWORK|UNSUPPORTED
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minerva_provider_latency_seconds",
			Help:    "Market data provider latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "kind"},
	)

	FetchRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_fetch_retries_total",
			Help: "Total number of same-provider fetch retries",
		},
		[]string{"provider"},
	)

	CacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_cache_ops_total",
			Help: "Market data cache operations",
		},
		[]string{"op"}, // op: hit|miss|set|error
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "minerva_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success|error
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "minerva_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"tool"},
	)

	// Session metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "minerva_sessions_active",
			Help: "Current number of live sessions",
		},
	)

	SessionTurnsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "minerva_session_turns_evicted_total",
			Help: "Total turns evicted by the session history cap",
		},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	// Query metrics
	prometheus.MustRegister(QueryTurns)
	prometheus.MustRegister(TurnDuration)
	prometheus.MustRegister(Classifications)
	prometheus.MustRegister(Escalations)

	// Worker metrics
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)

	// AI metrics
	prometheus.MustRegister(ChatCalls)
	prometheus.MustRegister(ChatLatency)
	prometheus.MustRegister(ChatTokens)

	// Market data metrics
	prometheus.MustRegister(ProviderFetches)
	prometheus.MustRegister(ProviderLatency)
	prometheus.MustRegister(FetchRetries)
	prometheus.MustRegister(CacheOps)

	// Tool metrics
	prometheus.MustRegister(ToolExecutions)
	prometheus.MustRegister(ToolLatency)

	// Session metrics
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionTurnsEvicted)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records a completed query turn
func RecordTurn(class string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	QueryTurns.WithLabelValues(class, status).Inc()
	TurnDuration.WithLabelValues(class).Observe(duration.Seconds())
}

// RecordClassification records a routing decision
func RecordClassification(class, tickerSource string) {
	Classifications.WithLabelValues(class, tickerSource).Inc()
}

// RecordEscalation records a junior-to-master escalation
func RecordEscalation(trigger string) {
	Escalations.WithLabelValues(trigger).Inc()
}

// RecordWorkerExecution records an analysis worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

// RecordChatCall records a chat completion call
func RecordChatCall(provider, model string, latency time.Duration, promptTokens, completionTokens int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ChatCalls.WithLabelValues(provider, model, status).Inc()
	ChatLatency.WithLabelValues(provider, model).Observe(latency.Seconds())

	if promptTokens > 0 {
		ChatTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		ChatTokens.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordProviderFetch records a market data fetch attempt
func RecordProviderFetch(provider, kind, outcome string, latency time.Duration) {
	ProviderFetches.WithLabelValues(provider, kind, outcome).Inc()
	ProviderLatency.WithLabelValues(provider, kind).Observe(latency.Seconds())
}

// RecordCacheOp records a cache operation
func RecordCacheOp(op string) {
	CacheOps.WithLabelValues(op).Inc()
}

// RecordToolExecution records a tool execution
func RecordToolExecution(tool string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ToolExecutions.WithLabelValues(tool, status).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

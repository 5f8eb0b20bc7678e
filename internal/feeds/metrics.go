package feeds

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for ingestion, analysis and capture.
type Metrics struct {
	FetchRunsTotal   *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	SourceFetchTotal *prometheus.CounterVec
	FeedsInserted    prometheus.Counter
	AnalysesTotal    *prometheus.CounterVec
	LLMCallsTotal    *prometheus.CounterVec
	LLMTokensIn      prometheus.Counter
	LLMTokensOut     prometheus.Counter
	LLMDuration      *prometheus.HistogramVec
	NotesTotal       *prometheus.CounterVec
}

// NewMetrics registers and returns feed metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FetchRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brainsync_fetch_runs_total",
			Help: "Total fetch runs by scope and result.",
		}, []string{"scope", "result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brainsync_fetch_duration_seconds",
			Help:    "Duration of fetch runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s .. ~128s
		}),
		SourceFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brainsync_source_fetches_total",
			Help: "Total per-source fetches by result.",
		}, []string{"result"}),
		FeedsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brainsync_feeds_inserted_total",
			Help: "Total new feed entries stored.",
		}),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brainsync_analyses_total",
			Help: "Total feed analyses by result.",
		}, []string{"result"}),
		LLMCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brainsync_llm_calls_total",
			Help: "Total LLM provider calls by status.",
		}, []string{"status"}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brainsync_llm_tokens_input_total",
			Help: "Total LLM input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brainsync_llm_tokens_output_total",
			Help: "Total LLM output tokens consumed.",
		}),
		LLMDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brainsync_llm_call_duration_seconds",
			Help:    "Duration of individual LLM calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s .. ~64s
		}, []string{"model"}),
		NotesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brainsync_notes_created_total",
			Help: "Total notes created by category.",
		}, []string{"category"}),
	}

	reg.MustRegister(
		m.FetchRunsTotal,
		m.FetchDuration,
		m.SourceFetchTotal,
		m.FeedsInserted,
		m.AnalysesTotal,
		m.LLMCallsTotal,
		m.LLMTokensIn,
		m.LLMTokensOut,
		m.LLMDuration,
		m.NotesTotal,
	)

	return m
}

// Hooks returns AnalyzerHooks that record LLM call metrics.
func (m *Metrics) Hooks() AnalyzerHooks {
	return AnalyzerHooks{
		OnLLMCall: func(model string, inputTokens, outputTokens int, duration float64, err error) {
			if err != nil {
				m.LLMCallsTotal.WithLabelValues("error").Inc()
				return
			}
			m.LLMCallsTotal.WithLabelValues("success").Inc()
			m.LLMTokensIn.Add(float64(inputTokens))
			m.LLMTokensOut.Add(float64(outputTokens))
			m.LLMDuration.WithLabelValues(model).Observe(duration)
		},
	}
}

func (m *Metrics) fetchRun(scope string, failed bool, inserted int, duration float64) {
	if m == nil {
		return
	}
	result := "success"
	if failed {
		result = "partial"
	}
	m.FetchRunsTotal.WithLabelValues(scope, result).Inc()
	m.FetchDuration.Observe(duration)
	m.FeedsInserted.Add(float64(inserted))
}

func (m *Metrics) sourceFetch(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SourceFetchTotal.WithLabelValues("error").Inc()
		return
	}
	m.SourceFetchTotal.WithLabelValues("success").Inc()
}

func (m *Metrics) analysis(result string) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) noteCreated(category string) {
	if m == nil {
		return
	}
	m.NotesTotal.WithLabelValues(category).Inc()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TurnsTotal counts chat turns by kind (chat, generate, empty, missing_key) and result.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpmnbot_turns_total",
			Help: "Total number of conversation turns",
		},
		[]string{"kind", "result"},
	)

	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpmnbot_llm_requests_total",
			Help: "Total number of model requests",
		},
		[]string{"provider", "purpose", "status"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bpmnbot_llm_request_duration_seconds",
			Help:    "Duration of model requests in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider", "purpose"},
	)

	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpmnbot_llm_tokens_total",
			Help: "Total number of tokens reported by providers",
		},
		[]string{"provider", "type"},
	)

	GenerationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bpmnbot_generation_attempts",
			Help:    "Attempts needed to obtain a diagram",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)

	DiagramsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpmnbot_diagrams_total",
			Help: "Total number of generated diagrams by validation outcome",
		},
		[]string{"outcome"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bpmnbot_active_sessions",
			Help: "Number of sessions held by the store",
		},
	)

	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bpmnbot_sessions_expired_total",
			Help: "Total number of sessions removed by cleanup",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bpmnbot_rate_limited_total",
			Help: "Total number of turns rejected by the rate limiter",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bpmnbot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bpmnbot_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// RecordLLMRequest records one model call.
func RecordLLMRequest(provider, purpose string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	LLMRequestsTotal.WithLabelValues(provider, purpose, status).Inc()
	LLMRequestDuration.WithLabelValues(provider, purpose).Observe(d.Seconds())
}

// RecordTokens records token usage if the provider reported any.
func RecordTokens(provider string, prompt, completion int32) {
	if prompt > 0 {
		LLMTokensTotal.WithLabelValues(provider, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		LLMTokensTotal.WithLabelValues(provider, "completion").Add(float64(completion))
	}
}

// RecordDiagram records the outcome of a generation.
func RecordDiagram(attempts int, valid bool) {
	GenerationAttempts.Observe(float64(attempts))
	outcome := "valid"
	if !valid {
		outcome = "warnings"
	}
	DiagramsTotal.WithLabelValues(outcome).Inc()
}

// RecordHTTP records a served request.
func RecordHTTP(route, method string, code int, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, method, statusText(code)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_turns_total",
			Help: "Total number of chat turns by terminal outcome.",
		},
		[]string{"outcome"},
	)
	chatTurnDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatbot_turn_duration_seconds",
			Help:    "End-to-end chat turn latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
	)
	validatorRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_validator_rejections_total",
			Help: "Candidate queries rejected by the safety gate, by reason code.",
		},
		[]string{"reason"},
	)
	llmRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbot_llm_request_duration_seconds",
			Help:    "Language model request latency by operation.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"operation"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatbot_query_duration_seconds",
			Help:    "Validated query execution latency against the dataset.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatbot_query_rows_returned",
			Help:    "Rows returned per executed query, after the hard cap.",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatbot_active_sessions",
			Help: "Current number of sessions held in memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		chatTurnsTotal,
		chatTurnDurationSeconds,
		validatorRejectionsTotal,
		llmRequestDurationSeconds,
		queryDurationSeconds,
		queryRowsReturned,
		activeSessions,
	)
}

func ObserveTurn(outcome string, elapsed time.Duration) {
	chatTurnsTotal.WithLabelValues(outcome).Inc()
	chatTurnDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementValidatorRejection(reason string) {
	validatorRejectionsTotal.WithLabelValues(reason).Inc()
}

func ObserveLLMRequest(operation string, elapsed time.Duration) {
	llmRequestDurationSeconds.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func ObserveQuery(rows int, elapsed time.Duration) {
	queryDurationSeconds.Observe(elapsed.Seconds())
	queryRowsReturned.Observe(float64(rows))
}

func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}

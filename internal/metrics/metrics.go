package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	completionAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballpark_completion_attempts_total",
			Help: "Total number of completion requests sent to the language model.",
		},
	)
	completionRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballpark_completion_retries_total",
			Help: "Total number of completion attempts that were retried after a transient failure.",
		},
	)
	completionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ballpark_completion_failures_total",
			Help: "Total number of completion requests that failed after all attempts.",
		},
	)
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballpark_tool_calls_total",
			Help: "Tool calls returned by the model, by disposition.",
		},
		[]string{"disposition"},
	)
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballpark_turns_total",
			Help: "Completed question turns by outcome.",
		},
		[]string{"outcome"},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ballpark_query_executions_total",
			Help: "Database query executions by status.",
		},
		[]string{"status"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ballpark_query_duration_seconds",
			Help:    "Database query latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		completionAttemptsTotal,
		completionRetriesTotal,
		completionFailuresTotal,
		toolCallsTotal,
		turnsTotal,
		queryExecutionsTotal,
		queryDurationSeconds,
	)
}

func IncCompletionAttempt() {
	completionAttemptsTotal.Inc()
}

func IncCompletionRetry() {
	completionRetriesTotal.Inc()
}

func IncCompletionFailure() {
	completionFailuresTotal.Inc()
}

// ObserveToolCalls records one honored call and every discarded earlier call.
func ObserveToolCalls(discarded int) {
	toolCallsTotal.WithLabelValues("honored").Inc()
	if discarded > 0 {
		toolCallsTotal.WithLabelValues("discarded").Add(float64(discarded))
	}
}

func ObserveTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

func ObserveQuery(ok bool, elapsed time.Duration) {
	status := "ok"
	if !ok {
		status = "error"
	}
	queryExecutionsTotal.WithLabelValues(status).Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
}

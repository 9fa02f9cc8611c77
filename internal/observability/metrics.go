// Package observability provides Prometheus metrics and structured logging
// setup shared across the assistant.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects counters and histograms for the assistant core.
//
// Tracked concerns:
//   - Turn throughput and latency per channel
//   - LLM request performance and token consumption
//   - Capability execution patterns by qualified name and status
//   - Memory lifecycle activity (compaction runs, dropped background tasks)
type Metrics struct {
	// TurnCounter counts completed turns.
	// Labels: channel, status (success|error|iteration_limit)
	TurnCounter *prometheus.CounterVec

	// TurnDuration measures full turn latency in seconds.
	// Labels: channel
	TurnDuration *prometheus.HistogramVec

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// CapabilityCounter counts capability executions.
	// Labels: name (qualified), status (success|error)
	CapabilityCounter *prometheus.CounterVec

	// CapabilityDuration measures capability execution time in seconds.
	// Labels: name
	CapabilityDuration *prometheus.HistogramVec

	// CompactionCounter counts memory compaction runs.
	// Labels: channel, status (success|error|skipped)
	CompactionCounter *prometheus.CounterVec

	// BackgroundTasksDropped counts lifecycle tasks dropped because the
	// queue was full.
	BackgroundTasksDropped prometheus.Counter

	// WorkflowRunCounter counts scheduled workflow runs.
	// Labels: workflow, status (success|error)
	WorkflowRunCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the given registerer.
// Pass a fresh prometheus.NewRegistry() in tests; nil uses the default
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TurnCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_turns_total",
				Help: "Total number of turns by channel and status",
			},
			[]string{"channel", "status"},
		),

		TurnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "steward_turn_duration_seconds",
				Help:    "Duration of full turns in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"channel"},
		),

		LLMRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "steward_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		CapabilityCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_capability_executions_total",
				Help: "Total number of capability executions by qualified name and status",
			},
			[]string{"name", "status"},
		),

		CapabilityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "steward_capability_execution_duration_seconds",
				Help:    "Duration of capability executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"name"},
		),

		CompactionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_memory_compactions_total",
				Help: "Total number of memory compaction runs by channel and status",
			},
			[]string{"channel", "status"},
		),

		BackgroundTasksDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "steward_background_tasks_dropped_total",
				Help: "Total number of memory lifecycle tasks dropped due to a full queue",
			},
		),

		WorkflowRunCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_workflow_runs_total",
				Help: "Total number of scheduled workflow runs by workflow and status",
			},
			[]string{"workflow", "status"},
		),
	}
}

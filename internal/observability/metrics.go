package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the Prometheus series exposed on the transport's
// /metrics endpoint: turn throughput, tool-call outcomes and latency,
// and approval decisions.
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordTurn("main", "completed")
//	defer metrics.ToolExecutionDuration.WithLabelValues("read_file").Observe(time.Since(start).Seconds())
type Metrics struct {
	// TurnCounter tracks completed agent turns.
	// Labels: agent_id, outcome (completed|error)
	TurnCounter *prometheus.CounterVec

	// ToolCallCounter counts tool invocations.
	// Labels: tool_name, status (success|error|denied)
	ToolCallCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// ApprovalCounter counts approval decisions.
	// Labels: tool_name, decision (approved|denied|expired)
	ApprovalCounter *prometheus.CounterVec

	// ActiveAgents is a gauge tracking currently running agent workers.
	ActiveAgents prometheus.Gauge

	// HTTPRequestDuration measures transport request latency.
	// Labels: method, path, status_code
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics. Call once at
// startup; every metric is registered against the default registry and
// served by the promhttp handler at /metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		TurnCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_turns_total",
				Help: "Total number of agent turns by agent and outcome",
			},
			[]string{"agent_id", "outcome"},
		),

		ToolCallCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_tool_calls_total",
				Help: "Total number of tool calls by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ApprovalCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_approvals_total",
				Help: "Total number of tool approval decisions by tool name and decision",
			},
			[]string{"tool_name", "decision"},
		),

		ActiveAgents: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "conductor_active_agents",
				Help: "Current number of running agent workers",
			},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_http_request_duration_seconds",
				Help:    "Duration of transport HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),
	}
}

// RecordTurn increments the turn counter for agentID/outcome.
func (m *Metrics) RecordTurn(agentID, outcome string) {
	m.TurnCounter.WithLabelValues(agentID, outcome).Inc()
}

// RecordToolCall records a tool invocation's outcome and latency.
func (m *Metrics) RecordToolCall(toolName, status string, durationSeconds float64) {
	m.ToolCallCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordApproval records an approval decision for toolName.
func (m *Metrics) RecordApproval(toolName, decision string) {
	m.ApprovalCounter.WithLabelValues(toolName, decision).Inc()
}

// AgentStarted increments the active-agents gauge.
func (m *Metrics) AgentStarted() {
	m.ActiveAgents.Inc()
}

// AgentStopped decrements the active-agents gauge.
func (m *Metrics) AgentStopped() {
	m.ActiveAgents.Dec()
}

// RecordHTTPRequest records a transport request's latency.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

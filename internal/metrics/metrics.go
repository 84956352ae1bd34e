// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path", "status"},
	)

	// WebhookEvents counts demultiplexed webhook events by kind and outcome.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_webhook_events_total",
			Help: "Webhook events routed by the demultiplexer",
		},
		[]string{"kind", "outcome"},
	)

	// AICallDuration tracks AI backend latency per provider.
	AICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_ai_call_duration_seconds",
			Help:    "AI provider call duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// AIFallbacks counts switches to the managed provider.
	AIFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_ai_fallbacks_total",
			Help: "Fallbacks from a failing provider to the managed provider",
		},
		[]string{"from"},
	)

	// PlatformActions counts outbound platform calls.
	PlatformActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_platform_actions_total",
			Help: "Outbound social platform actions",
		},
		[]string{"action", "result"},
	)

	// ExecutionLogs counts recorded execution log entries.
	ExecutionLogs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_execution_logs_total",
			Help: "Execution log entries by event type and status",
		},
		[]string{"event_type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
}

// RecordAICall records one provider call.
func RecordAICall(provider, status string, duration float64) {
	AICallDuration.WithLabelValues(provider, status).Observe(duration)
}

// RecordPlatformAction records the outcome of one platform call.
func RecordPlatformAction(action string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	PlatformActions.WithLabelValues(action, result).Inc()
}

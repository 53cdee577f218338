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
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// LLMRequestDuration tracks LLM completion duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// LLMFailuresTotal tracks classified collaborator failures.
	LLMFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_failures_total",
			Help: "LLM collaborator failures by classified kind",
		},
		[]string{"kind"},
	)

	// MessagesTotal tracks total messages exchanged.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages exchanged",
		},
		[]string{"role"},
	)

	// OffersParsedTotal tracks offers extracted from model replies, by wire
	// format.
	OffersParsedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_parsed_total",
			Help: "Offers extracted from model replies",
		},
		[]string{"format"},
	)

	// OffersSuppressedTotal tracks offers suppressed by quota or strict
	// validation.
	OffersSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offers_suppressed_total",
			Help: "Offers suppressed before delivery",
		},
		[]string{"reason"},
	)

	// ParseAnomaliesTotal tracks non-fatal parse anomalies (dropped item
	// quadruples, malformed blocks).
	ParseAnomaliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offer_parse_anomalies_total",
			Help: "Non-fatal offer parse anomalies",
		},
	)

	// RuleViolationsTotal tracks business-rule violations on parsed offers.
	RuleViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offer_rule_violations_total",
			Help: "Business-rule violations on parsed offers",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMRequest records metrics for an LLM completion.
func RecordLLMRequest(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}

package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_router_events_received_total",
			Help: "Total number of messaging events received, labeled by event kind.",
		},
		[]string{"kind"},
	)

	RoutingOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_router_routing_outcomes_total",
			Help: "Total number of routed events, labeled by terminal outcome.",
		},
		[]string{"outcome"},
	)

	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_router_event_processing_duration_seconds",
			Help:    "Histogram of per-event routing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		[]string{"outcome"},
	)

	AIFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_router_ai_fallbacks_total",
			Help: "Total number of AI calls that fell back to deterministic behaviour, labeled by operation.",
		},
		[]string{"operation"},
	)

	GatewayFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_router_gateway_failures_total",
			Help: "Total number of failed outbound gateway calls, labeled by gateway.",
		},
		[]string{"gateway"},
	)

	WebhookOverflowTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "support_router_webhook_overflow_total",
			Help: "Deliveries that overflowed the worker pool and ran on a detached goroutine.",
		},
	)
)

// ObserveOutcome records a finished routing decision.
func ObserveOutcome(outcome string, elapsed time.Duration) {
	RoutingOutcomesTotal.WithLabelValues(outcome).Inc()
	EventProcessingDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

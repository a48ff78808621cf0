// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ComplaintTransitions counts successful lifecycle transitions by target status.
	ComplaintTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicdesk",
		Name:      "complaint_transitions_total",
		Help:      "Complaint lifecycle transitions by resulting status.",
	}, []string{"status"})

	// RateLimitRejections counts rejected requests per limiter tier.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicdesk",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by a rate limiter tier.",
	}, []string{"tier"})

	// ChatMessages counts chat messages by outcome: delivered, dropped, failed.
	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civicdesk",
		Name:      "chat_messages_total",
		Help:      "Chat messages by outcome.",
	}, []string{"outcome"})

	// ChatConnections is the number of live chat connections on this instance.
	ChatConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "civicdesk",
		Name:      "chat_connections",
		Help:      "Live chat connections.",
	})
)

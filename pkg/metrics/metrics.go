// Package metrics holds the Prometheus collectors shared by the relay and
// assist services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hajira_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hajira_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	RelayConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hajira_relay_connections",
			Help: "Open websocket connections",
		},
	)

	RelayRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hajira_relay_rooms",
			Help: "Rooms with at least one local member",
		},
	)

	RelayMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hajira_relay_messages_total",
			Help: "Messages received from clients",
		},
		[]string{"result"}, // "accepted", "rejected"
	)

	RelayDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hajira_relay_deliveries_total",
			Help: "Messages written to member connections",
		},
	)

	// Assist metrics
	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hajira_completion_requests_total",
			Help: "Upstream LLM completion requests",
		},
		[]string{"kind", "result"}, // kind: "suggest", "chat"
	)

	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hajira_completion_latency_seconds",
			Help:    "Upstream LLM completion latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"kind"},
	)

	JobSummaryLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hajira_job_summary_lookups_total",
			Help: "Job summary lookups",
		},
		[]string{"source"}, // "cache", "api", "fallback"
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hajira_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
		[]string{"op"},
	)
)

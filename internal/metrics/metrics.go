// ABOUTME: Prometheus collectors for the gateway, registered on the default registry
// ABOUTME: HTTP, WebSocket, session lifecycle and notifier delivery metrics

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Transport metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "helpdesk_websocket_connections",
			Help: "Open WebSocket connections",
		},
	)

	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_inbound_events_total",
			Help: "Inbound events by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: "ok", "error", "malformed", "unknown"
	)

	// Session metrics
	SessionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_sessions_created_total",
			Help: "Total sessions created",
		},
		[]string{"kind"}, // "new" or "returning"
	)

	SessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_sessions_closed_total",
			Help: "Total sessions closed",
		},
		[]string{"cause"}, // "admin" or "disconnect"
	)

	SessionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "helpdesk_sessions",
			Help: "Sessions currently held by status",
		},
		[]string{"status"},
	)

	ClosedSessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "helpdesk_closed_sessions_evicted_total",
			Help: "Closed sessions removed by retention",
		},
	)

	MessagesRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_messages_total",
			Help: "Messages appended to sessions",
		},
		[]string{"role"},
	)

	AdminsAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "helpdesk_admins_available",
			Help: "Admins in the available set",
		},
	)

	// Notifier metrics
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_events_dropped_total",
			Help: "Outbound events dropped for slow connections",
		},
		[]string{"type"},
	)

	// Auth metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_admin_logins_total",
			Help: "Admin login attempts by outcome",
		},
		[]string{"outcome"}, // "ok", "denied", "rate_limited"
	)
)

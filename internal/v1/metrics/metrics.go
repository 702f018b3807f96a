package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the signalling server.
//
// The first three metrics are part of the deployment's dashboard contract and
// keep their historical names and bucket layout. The remaining metrics follow
// the namespace_subsystem_name convention:
// - namespace: signaller (application-level grouping)
// - subsystem: websocket, ice (feature-level grouping)

var (
	// NumConnectedClients tracks currently connected WebSocket clients,
	// labelled by a salted hash of the client IP (Gauge - current state)
	NumConnectedClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "num_connected_clients",
		Help: "Connected Clients",
	}, []string{"hashed_ip"})

	// NumOngoingSessions tracks currently open sharing sessions (Gauge - current state)
	NumOngoingSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "num_ongoing_sessions",
		Help: "Ongoing Sessions",
	})

	// SessionDurationSec observes how long each session lasted, recorded when
	// the session is torn down. Buckets span 1s to 24h.
	SessionDurationSec = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "session_duration_sec",
		Help: "Session Duration Seconds",
		Buckets: []float64{
			1, 5, 10, 15, 20, 25, 30, 40, 50, 60, 90, 120, 180, 240,
			300, 600, 900, 1800, 3600, 7200, 14400, 28800, 43200, 86400,
		},
	})

	// SignalMessages counts dispatched signalling messages by type and outcome (CounterVec - cumulative)
	SignalMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaller",
		Subsystem: "websocket",
		Name:      "messages_total",
		Help:      "Total signalling messages processed",
	}, []string{"type", "status"})

	// IceServerRequests counts ICE credential lookups against the vendor (CounterVec - cumulative)
	IceServerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaller",
		Subsystem: "ice",
		Name:      "server_requests_total",
		Help:      "Total ICE server credential requests",
	}, []string{"status"})

	// RateLimitExceeded counts rejected WebSocket upgrades (CounterVec - cumulative)
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaller",
		Subsystem: "websocket",
		Name:      "rate_limit_exceeded_total",
		Help:      "Total requests rejected by rate limiting",
	}, []string{"scope"})

	// CircuitBreakerState reports breaker state per upstream: 0=closed, 1=open, 2=half-open
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signaller",
		Subsystem: "ice",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"upstream"})
)

func IncConnection(hashedIP string) {
	NumConnectedClients.WithLabelValues(hashedIP).Inc()
}

func DecConnection(hashedIP string) {
	NumConnectedClients.WithLabelValues(hashedIP).Dec()
}

// Package metrics provides Prometheus instrumentation for the auction engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AuctionsCreated counts auctions created, partitioned by pool.
	AuctionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lvr_auctions_created_total",
		Help: "Total number of auctions created",
	}, []string{"pool_id"})

	// AuctionTransitions counts committed status transitions.
	AuctionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lvr_auction_transitions_total",
		Help: "Total committed auction status transitions",
	}, []string{"to"})

	// ActiveAuctions tracks the number of auctions currently accepting bids.
	ActiveAuctions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lvr_active_auctions",
		Help: "Number of auctions currently in the bidding window",
	})

	// BidsSubmitted counts sealed bids accepted.
	BidsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lvr_bids_submitted_total",
		Help: "Total sealed bids accepted",
	})

	// BidsRevealed counts successful commitment openings.
	BidsRevealed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lvr_bids_revealed_total",
		Help: "Total bids revealed with a valid commitment opening",
	})

	// RevealRejections counts reveal attempts with no matching commitment.
	RevealRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lvr_reveal_rejections_total",
		Help: "Reveal attempts rejected for commitment mismatch",
	})

	// MonitorConflicts counts lifecycle transitions skipped on a lost race.
	MonitorConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lvr_monitor_conflicts_total",
		Help: "Monitor transitions deferred after losing a compare-and-set race",
	})

	// WebSocketEventsDropped counts events discarded because the broadcast
	// buffer was full. Non-zero values mean clients should re-sync over the
	// query API.
	WebSocketEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lvr_websocket_events_dropped_total",
		Help: "Events dropped from the WebSocket broadcast buffer",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lvr_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lvr_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lvr_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label to avoid chi pattern lookups here;
		// auction ids are bounded by retention so cardinality stays sane.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

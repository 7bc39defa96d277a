// Package metrics holds the server's Prometheus collectors. They register
// with the default registry and are served on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdwatch_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "birdwatch_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Sightings
	SightingsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "birdwatch_sightings_total",
			Help: "Sightings received, by source and result",
		},
		[]string{"source", "result"}, // source: "live", "sync"; result: "created", "duplicate", "rejected"
	)

	SyncBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "birdwatch_sync_batch_size",
			Help:    "Number of sightings per sync request",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// Chat
	ChatMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "birdwatch_chat_messages_total",
			Help: "Chat messages persisted",
		},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "birdwatch_live_connections",
			Help: "Open live chat connections",
		},
	)

	// Lookups
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "birdwatch_lookup_breaker_state",
			Help: "Lookup circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)
)

// RecordHTTPRequest records one finished request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordSightings adds per-result counts for one request.
func RecordSightings(source string, created, duplicates, rejected int) {
	SightingsStored.WithLabelValues(source, "created").Add(float64(created))
	SightingsStored.WithLabelValues(source, "duplicate").Add(float64(duplicates))
	SightingsStored.WithLabelValues(source, "rejected").Add(float64(rejected))
}

// RecordBreakerState publishes a breaker transition.
func RecordBreakerState(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	BreakerState.WithLabelValues(name).Set(v)
}

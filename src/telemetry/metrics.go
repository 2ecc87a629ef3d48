package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every murmur metric. It is served by MetricsHandler.
	Registry = prometheus.NewRegistry()

	// ---- Node ----

	// MessagesReceived counts inbound messages by body type.
	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "messages_received_total",
			Help:      "Inbound messages by body type.",
		},
		[]string{"node", "type"},
	)

	// ErrorsSent counts error replies by code.
	ErrorsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "errors_sent_total",
			Help:      "Error replies by code.",
		},
		[]string{"node", "code"},
	)

	// GossipSent counts gossip batches, including resends.
	GossipSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "gossip_sent_total",
			Help:      "Gossip batches sent to neighbors.",
		},
		[]string{"node"},
	)

	// GossipValuesSent counts values carried by gossip batches.
	GossipValuesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "gossip_values_sent_total",
			Help:      "Values carried by gossip batches, counting resends.",
		},
		[]string{"node"},
	)

	// AcksReceived ...
	AcksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "acks_received_total",
			Help:      "Gossip acknowledgements received.",
		},
		[]string{"node"},
	)

	// ValuesAdded counts values new to the store, by source.
	ValuesAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "values_added_total",
			Help:      "Values that entered the store, by source (client, gossip, bootstrap).",
		},
		[]string{"node", "source"},
	)

	// StoreValues is the size of the value set.
	StoreValues = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "murmur",
			Name:      "store_values",
			Help:      "Number of values in the store.",
		},
		[]string{"node"},
	)

	// PendingRecords is the number of unacknowledged values per neighbor.
	PendingRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "murmur",
			Name:      "pending_records",
			Help:      "Unacknowledged values per neighbor.",
		},
		[]string{"node", "neighbor"},
	)

	// ---- Service ----

	// RequestsTotal counts service requests by op and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "murmur",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests to the service.",
		},
		[]string{"op", "status"},
	)

	// RequestDuration ...
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "murmur",
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests to the service.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13),
		},
		[]string{"op"},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "murmur",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version).",
		},
		[]string{"version"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "murmur",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		MessagesReceived,
		ErrorsSent,
		GossipSent,
		GossipValuesSent,
		AcksReceived,
		ValuesAdded,
		StoreValues,
		PendingRecords,
		RequestsTotal,
		RequestDuration,
		buildInfo,
		uptime,
	)
}

// MetricsHandler exposes /metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

// ForgetPending drops the pending gauge of a neighbor that is no longer
// adjacent.
func ForgetPending(node, neighbor string) {
	PendingRecords.DeleteLabelValues(node, neighbor)
}

// ---- Middleware instrumentation ----

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps an http.Handler to record metrics under the provided "op"
// label.
func Instrument(op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()

		next.ServeHTTP(sw, r)

		class := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(op, class).Inc()
		RequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	})
}

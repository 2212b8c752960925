package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every feed metric. It is served on /metrics by the dashboard.
var Registry = prometheus.NewRegistry()

var (
	// ConnectionState is 1 for the feed's current connection state and 0 for the others.
	ConnectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kintsugi_feed_connection_state",
			Help: "Current telemetry feed connection state (1 = active).",
		},
		[]string{"state"},
	)

	SnapshotsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kintsugi_feed_snapshots_published_total",
			Help: "Total number of telemetry snapshots written to the shared state.",
		},
		[]string{"source"},
	)

	// SnapshotsDropped counts snapshots that never reached the shared state.
	// reason: stale_generation, foreign_vehicle, out_of_order, no_selection
	SnapshotsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kintsugi_feed_snapshots_dropped_total",
			Help: "Total number of telemetry snapshots discarded before publication.",
		},
		[]string{"reason"},
	)

	// FetchFailures counts failed polling requests.
	// reason: transport, status, decode, empty
	FetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kintsugi_feed_fetch_failures_total",
			Help: "Total number of failed telemetry polling requests.",
		},
		[]string{"reason"},
	)

	FetchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kintsugi_feed_fetch_latency_seconds",
			Help:    "Latency of telemetry polling requests.",
			Buckets: prometheus.DefBuckets,
		},
	)

	SocketReconnectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kintsugi_feed_socket_reconnect_attempts_total",
			Help: "Total number of real-time transport reconnect attempts.",
		},
	)

	SocketReconnectExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kintsugi_feed_socket_reconnect_exhausted_total",
			Help: "Number of times the real-time transport gave up reconnecting.",
		},
	)

	SocketHeartbeatAcks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kintsugi_feed_socket_heartbeat_acks_total",
			Help: "Total number of pong frames received in answer to heartbeats.",
		},
	)

	MalformedFrames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kintsugi_feed_malformed_frames_total",
			Help: "Total number of inbound real-time frames that could not be decoded.",
		},
	)

	SourceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kintsugi_feed_source_starts_total",
			Help: "Total number of data source starts by source name.",
		},
		[]string{"source"},
	)
)

func init() {
	Registry.MustRegister(
		ConnectionState,
		SnapshotsPublished,
		SnapshotsDropped,
		FetchFailures,
		FetchLatency,
		SocketReconnectAttempts,
		SocketReconnectExhausted,
		SocketHeartbeatAcks,
		MalformedFrames,
		SourceStarts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveConnectionState marks current as the only active state label.
func ObserveConnectionState(current string, all ...string) {
	for _, s := range all {
		ConnectionState.WithLabelValues(s).Set(0)
	}
	ConnectionState.WithLabelValues(current).Set(1)
}

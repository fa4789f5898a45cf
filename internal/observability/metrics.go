package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bikerides"

var (
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "mutations_total", Help: "Directory mutations by operation and outcome"},
		[]string{"op", "outcome"},
	)
	RidesTotal = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "rides", Help: "Rides currently in the directory"})

	QueryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "query_latency_seconds",
		Help:      "Visible ride computation latency",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	SnapshotWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "snapshot_writes_total", Help: "Snapshot writes by outcome"},
		[]string{"outcome"},
	)
	SnapshotLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "snapshot_loads_total", Help: "Snapshot loads by outcome (ok, absent, corrupt, error)"},
		[]string{"outcome"},
	)

	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "geocode_lookups_total", Help: "Geocode lookups by outcome (ok, failed, stale, cached)"},
		[]string{"outcome"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total", Help: "Ride activity events handed to sinks"},
		[]string{"sink", "outcome"},
	)
	WSClients = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "ws_clients", Help: "Connected websocket clients"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "records", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "records", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	RecordOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "records", Name: "operations_total", Help: "Record store operations by operation and result."},
		[]string{"op", "result"},
	)
	EventSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "records", Name: "event_subscribers", Help: "Open record event websocket connections."},
	)
	SnapshotsWritten = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "records", Name: "snapshots_written_total", Help: "Owner snapshots uploaded to object storage."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(RecordOperations)
	reg.MustRegister(EventSubscribers)
	reg.MustRegister(SnapshotsWritten)
}

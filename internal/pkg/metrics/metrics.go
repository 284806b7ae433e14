package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MockRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockgate_mock_requests_total",
		Help: "Mock requests handled, by outcome",
	}, []string{"outcome"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mockgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockgate_validation_failures_total",
		Help: "Request bodies rejected by an endpoint schema",
	}, []string{"entity_id"})

	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mockgate_callbacks_total",
		Help: "Outbound callbacks, by result",
	}, []string{"result"})

	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mockgate_live_subscribers",
		Help: "Currently attached traffic subscribers",
	})

	BroadcastDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mockgate_broadcast_drops_total",
		Help: "Subscribers removed because they could not keep up",
	})

	TrafficPersistDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mockgate_traffic_persist_drops_total",
		Help: "Traffic entries not persisted because the write queue was full",
	})
)

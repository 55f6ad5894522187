package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satlas_sync",
			Name:      "mutations_enqueued_total",
			Help:      "Mutations appended to the durable queue.",
		},
		[]string{"kind"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "satlas_sync",
			Name:      "queue_depth",
			Help:      "Mutations currently awaiting replay.",
		},
	)
)

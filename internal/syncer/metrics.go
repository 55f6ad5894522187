package syncer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	drainAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satlas_sync",
			Name:      "drain_applied_total",
			Help:      "Mutations successfully replayed against the remote store.",
		},
		[]string{"kind"},
	)

	drainFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satlas_sync",
			Name:      "drain_failed_total",
			Help:      "Mutations whose replay attempt returned an error.",
		},
		[]string{"kind"},
	)

	drainDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "satlas_sync",
			Name:      "drain_dropped_total",
			Help:      "Queue entries dropped as malformed or permanently failed.",
		},
	)
)

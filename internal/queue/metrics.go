package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	enqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kasir",
		Subsystem: "tasks",
		Name:      "enqueued_total",
		Help:      "Background tasks handed to the broker by type and outcome (queued, duplicate, error).",
	}, []string{"type", "outcome"})

	processed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kasir",
		Subsystem: "tasks",
		Name:      "processed_total",
		Help:      "Background tasks handled by the worker by type and outcome (success, invalid, error).",
	}, []string{"type", "outcome"})
)

package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker collectors live on the default registry so every mailer sharing a
// process reports under one family.
var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kasir",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Breaker state per downstream (0 closed, 1 open, 2 half-open).",
	}, []string{"target"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kasir",
		Subsystem: "breaker",
		Name:      "transitions_total",
		Help:      "Breaker state changes per downstream.",
	}, []string{"target", "from", "to"})
)

func observeState(target string, s State) {
	breakerState.WithLabelValues(target).Set(float64(s))
}

func observeTransition(target string, from, to State) {
	breakerTransitions.WithLabelValues(target, from.String(), to.String()).Inc()
}

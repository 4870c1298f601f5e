package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "user_admin",
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Backend requests by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	fallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "user_admin",
			Subsystem: "remote",
			Name:      "fallbacks_total",
			Help:      "Operations served by the local directory because the backend was unavailable.",
		},
		[]string{"operation"},
	)
)

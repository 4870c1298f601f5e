package querycache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "user_admin",
			Subsystem: "querycache",
			Name:      "lookups_total",
			Help:      "List lookups by result (hit or miss).",
		},
		[]string{"result"},
	)

	fetchesDiscardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "user_admin",
			Subsystem: "querycache",
			Name:      "fetches_discarded_total",
			Help:      "Fetch responses dropped because a newer request superseded them.",
		},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "user_admin",
			Subsystem: "querycache",
			Name:      "mutations_total",
			Help:      "Status mutations by outcome (success or rolled_back).",
		},
		[]string{"outcome"},
	)
)

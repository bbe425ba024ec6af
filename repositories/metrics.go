package repositories

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// persistenceConflicts counts saves rejected because the version token was stale.
	persistenceConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "popularity_cup",
		Subsystem: "persistence",
		Name:      "conflicts_total",
		Help:      "Total document saves rejected by a version conflict",
	})

	persistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "popularity_cup",
		Subsystem: "persistence",
		Name:      "failures_total",
		Help:      "Total storage transport failures by operation",
	}, []string{"operation"})
)

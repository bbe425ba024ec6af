package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Dosada05/popularity-cup/models"
)

var (
	matchesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "popularity_cup",
		Subsystem: "matches",
		Name:      "opened_total",
		Help:      "Total matches opened for voting",
	})

	// matchesLocked counts freezes by who triggered them (manual or auto).
	matchesLocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "popularity_cup",
		Subsystem: "matches",
		Name:      "locked_total",
		Help:      "Total matches locked by trigger",
	}, []string{"trigger"})

	matchesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "popularity_cup",
		Subsystem: "matches",
		Name:      "resolved_total",
		Help:      "Total matches resolved by outcome",
	}, []string{"outcome"})

	nullifiedVotes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "popularity_cup",
		Subsystem: "votes",
		Name:      "nullified_total",
		Help:      "Total voters dropped for voting on both sides, counted at lock time",
	})

	schedulerTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "popularity_cup",
		Subsystem: "scheduler",
		Name:      "tasks_total",
		Help:      "Auto-lock scheduler task outcomes by kind",
	}, []string{"kind", "result"})
)

func recordResolved(result models.MatchResult) {
	outcome := "decided"
	if result.AVotes == result.BVotes {
		outcome = "tie"
	}
	matchesResolved.WithLabelValues(outcome).Inc()
}

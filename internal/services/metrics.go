package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	WorkflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sakip",
			Name:      "workflow_transitions_total",
			Help:      "Committed status transitions by entity kind and action",
		},
		[]string{"kind", "action"},
	)

	ScoredDataPoints = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sakip",
			Name:      "scored_data_points_total",
			Help:      "Performance data points whose percentage was computed",
		},
	)

	ScoreRecalculations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sakip",
			Name:      "score_recalculations_total",
			Help:      "Yearly indicator score recalculations by result",
		},
		[]string{"result"},
	)

	registerOnce sync.Once
)

// RegisterMetrics adds the domain collectors to the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(WorkflowTransitions, ScoredDataPoints, ScoreRecalculations)
	})
}

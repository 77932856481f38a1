// Package metrics exposes Prometheus collectors for the booking flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FlowTransitions counts reducer actions that changed state.
	// Labels: action, step (the step after the action)
	FlowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "builderhub",
			Subsystem: "flow",
			Name:      "transitions_total",
			Help:      "Booking flow actions that changed state, by resulting step",
		},
		[]string{"action", "step"},
	)

	// FlowRejectedActions counts actions the reducer ignored for the current step.
	FlowRejectedActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "builderhub",
			Subsystem: "flow",
			Name:      "rejected_actions_total",
			Help:      "Booking flow actions rejected for the current step",
		},
		[]string{"action", "step"},
	)

	// CollaboratorCalls tracks calls to identity/calendar/booking/payment collaborators.
	// Labels: collaborator, op, result (success, error)
	CollaboratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "builderhub",
			Subsystem: "flow",
			Name:      "collaborator_calls_total",
			Help:      "Collaborator calls made by the booking orchestrator",
		},
		[]string{"collaborator", "op", "result"},
	)

	CollaboratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "builderhub",
			Subsystem: "flow",
			Name:      "collaborator_call_duration_seconds",
			Help:      "Duration of collaborator calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"collaborator", "op"},
	)

	// Recoveries counts payment-return reconciliations. Labels: outcome
	Recoveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "builderhub",
			Subsystem: "flow",
			Name:      "recoveries_total",
			Help:      "Payment return reconciliations by outcome",
		},
		[]string{"outcome"},
	)
)

// ObserveCall records one collaborator call.
func ObserveCall(collaborator, op string, started time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	CollaboratorCalls.WithLabelValues(collaborator, op, result).Inc()
	CollaboratorDuration.WithLabelValues(collaborator, op).Observe(time.Since(started).Seconds())
}

package services

import "github.com/prometheus/client_golang/prometheus"

var (
	checks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_checks_total",
			Help: "Total number of payment reconciliation checks by ledger outcome.",
		},
		[]string{"outcome"},
	)

	transitions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_paid_transitions_total",
			Help: "Total number of bookings moved to paid by reconciliation.",
		},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_sweep_runs_total",
			Help: "Total number of scheduled reconciliation sweeps by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(checks, transitions, sweepRuns)
}

package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// lookups counts ledger lookups by outcome.
	lookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_lookups_total",
			Help: "Total number of external ledger lookups by outcome.",
		},
		[]string{"outcome"},
	)

	// lookupLat records end-to-end lookup duration across all candidates.
	lookupLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_lookup_duration_seconds",
			Help:    "Duration of external ledger lookups in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(lookups, lookupLat)
}

func observe(o Outcome, d time.Duration) {
	lookups.WithLabelValues(string(o)).Inc()
	lookupLat.Observe(d.Seconds())
}

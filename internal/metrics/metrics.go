package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels stage runs that produced a result.
	OutcomeSuccess = "success"
	// OutcomeError labels stage runs rejected by validation or failed.
	OutcomeError = "error"
)

var (
	stageRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loanaudit",
			Name:      "stage_runs_total",
			Help:      "Total number of audit stage runs, partitioned by stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loanaudit",
			Name:      "stage_seconds",
			Help:      "Audit stage latency in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)

	rowsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loanaudit",
			Name:      "rows_processed_total",
			Help:      "Rows read by each audit stage.",
		},
		[]string{"stage"},
	)

	reviewFlagsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "loanaudit",
			Name:      "human_review_flags_total",
			Help:      "Applications flagged for human review across simulation runs.",
		},
	)

	demographicParityDifference = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "loanaudit",
			Name:      "demographic_parity_difference",
			Help:      "Most recent demographic parity difference per sensitive attribute.",
		},
		[]string{"attribute"},
	)

	ledgerEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loanaudit",
			Name:      "provenance_entries_total",
			Help:      "Provenance entries appended, partitioned by action kind.",
		},
		[]string{"action"},
	)
)

// Register attaches loanaudit collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		stageRunsTotal,
		stageDurationSeconds,
		rowsProcessedTotal,
		reviewFlagsTotal,
		demographicParityDifference,
		ledgerEntriesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveStage records a stage duration, outcome label and input row count.
func ObserveStage(stage string, duration time.Duration, rows int, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	stageRunsTotal.WithLabelValues(stage, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
	if rows > 0 {
		rowsProcessedTotal.WithLabelValues(stage).Add(float64(rows))
	}
}

// ObserveReviewFlags adds the flagged count of one simulation run.
func ObserveReviewFlags(n int) {
	if n > 0 {
		reviewFlagsTotal.Add(float64(n))
	}
}

// SetDemographicParity publishes the latest DPD for an attribute.
func SetDemographicParity(attribute string, dpd float64) {
	demographicParityDifference.WithLabelValues(attribute).Set(dpd)
}

// ObserveLedgerAppend counts an appended provenance entry.
func ObserveLedgerAppend(action string) {
	ledgerEntriesTotal.WithLabelValues(action).Inc()
}

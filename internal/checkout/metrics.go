package checkout

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeCommitted          = "committed"
	OutcomeRejected           = "rejected"
	OutcomeFailed             = "failed"
	OutcomePartiallyCommitted = "partially_committed"
)

type Metrics struct {
	Commits      *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
}

// NewMetrics registers the checkout collectors with reg. A nil reg leaves
// them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	commits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "checkout",
		Name:      "commits_total",
		Help:      "Checkout attempts by workflow and outcome.",
	}, []string{"workflow", "outcome"})
	stepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pos",
		Subsystem: "checkout",
		Name:      "step_duration_seconds",
		Help:      "Latency of each commit write.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"step", "status"})

	if reg != nil {
		reg.MustRegister(commits, stepDuration)
	}
	return &Metrics{Commits: commits, StepDuration: stepDuration}
}

func (m *Metrics) outcome(kind Kind, outcome string) {
	m.Commits.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) observeStep(step Step, status string, seconds float64) {
	m.StepDuration.WithLabelValues(string(step), status).Observe(seconds)
}

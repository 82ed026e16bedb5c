package report

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the report triage subsystem.
type Metrics struct {
	IngestsTotal         *prometheus.CounterVec
	TransitionsTotal     *prometheus.CounterVec
	VerificationsTotal   *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	DuplicatesTotal      prometheus.Counter
	PriorityScore        prometheus.Histogram
	OracleCallsTotal     *prometheus.CounterVec
	OracleDuration       prometheus.Histogram
	ComposeTotal         *prometheus.CounterVec
}

// NewMetrics registers and returns report metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civicsense_ingests_total",
			Help: "Total report submissions by result.",
		}, []string{"result"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civicsense_transitions_total",
			Help: "Total lifecycle actions by action and outcome.",
		}, []string{"action", "outcome"}),
		VerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civicsense_verifications_total",
			Help: "Total verification runs by outcome.",
		}, []string{"outcome"}),
		VerificationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicsense_verification_duration_seconds",
			Help:    "Duration of verification runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s .. ~51s
		}),
		DuplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civicsense_duplicates_total",
			Help: "Total reports detected as duplicates.",
		}),
		PriorityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicsense_priority_score",
			Help:    "Priority score assigned at verification.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}),
		OracleCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civicsense_oracle_calls_total",
			Help: "Total verification oracle calls by outcome.",
		}, []string{"outcome"}),
		OracleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicsense_oracle_call_duration_seconds",
			Help:    "Duration of individual oracle calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 0.1s .. ~12.8s
		}),
		ComposeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civicsense_notifications_composed_total",
			Help: "Total authority messages composed by channel.",
		}, []string{"channel"}),
	}

	reg.MustRegister(
		m.IngestsTotal,
		m.TransitionsTotal,
		m.VerificationsTotal,
		m.VerificationDuration,
		m.DuplicatesTotal,
		m.PriorityScore,
		m.OracleCallsTotal,
		m.OracleDuration,
		m.ComposeTotal,
	)

	return m
}

package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerMetricsOnce sync.Once

var (
	observedEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intent_policy_engine",
		Name:      "observed_events_total",
		Help:      "Total observed events accepted into the drift queue.",
	})

	eventsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intent_policy_engine",
		Name:      "events_dropped_total",
		Help:      "Observed events dropped because the drift queue was full.",
	})

	eventsSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intent_policy_engine",
		Name:      "events_skipped_total",
		Help:      "Observed events skipped because no service identity could be resolved.",
	})

	driftEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intent_policy_engine",
		Name:      "drift_events_total",
		Help:      "Drift events recorded, partitioned by severity.",
	}, []string{"severity"})

	bundlesDeployedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "intent_policy_engine",
		Name:      "bundles_deployed_total",
		Help:      "Policy bundles deployed to the enforcement gateway.",
	})

	riskScoreGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "intent_policy_engine",
		Name:      "risk_score",
		Help:      "Most recently computed composite risk score.",
	})
)

// RegisterMetrics registers all engine metrics with the default
// registry. Safe to call more than once.
func RegisterMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(observedEventsTotal)
		prometheus.MustRegister(eventsDroppedTotal)
		prometheus.MustRegister(eventsSkippedTotal)
		prometheus.MustRegister(driftEventsTotal)
		prometheus.MustRegister(bundlesDeployedTotal)
		prometheus.MustRegister(riskScoreGauge)
	})
}

func RecordObservedEvent() {
	observedEventsTotal.Inc()
}

func RecordDroppedEvent() {
	eventsDroppedTotal.Inc()
}

func RecordSkippedEvent() {
	eventsSkippedTotal.Inc()
}

func RecordDriftEvent(severity string) {
	driftEventsTotal.WithLabelValues(severity).Inc()
}

func RecordBundleDeployed() {
	bundlesDeployedTotal.Inc()
}

func SetRiskScore(score float64) {
	riskScoreGauge.Set(score)
}

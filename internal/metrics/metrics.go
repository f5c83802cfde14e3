// Package metrics exposes the internal Prometheus counters/histograms
// for recommendation and retrain outcomes. There is no HTTP exporter
// surface bundled here — this system has none — callers register a
// prometheus.Registerer of their choosing.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder groups the counters this system emits.
type Recorder struct {
	RecommendationsTotal  *prometheus.CounterVec
	RecommendationLatency prometheus.Histogram
	FallbacksTotal        *prometheus.CounterVec
	RetrainOutcomesTotal  *prometheus.CounterVec
}

// New constructs and registers the recorder's metrics against reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		RecommendationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_recommendations_total",
			Help: "Count of recommendations produced, by strategy.",
		}, []string{"strategy"}),
		RecommendationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pricing_recommendation_duration_seconds",
			Help:    "End-to-end latency of a single recommendation call.",
			Buckets: prometheus.DefBuckets,
		}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_fallbacks_total",
			Help: "Count of fallback paths taken, by strategy tag.",
		}, []string{"strategy"}),
		RetrainOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricing_retrain_outcomes_total",
			Help: "Count of per-property retrain outcomes, by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(r.RecommendationsTotal, r.RecommendationLatency, r.FallbacksTotal, r.RetrainOutcomesTotal)
	return r
}

// ObserveRecommendation records one completed recommendation.
func (r *Recorder) ObserveRecommendation(strategy string, seconds float64) {
	r.RecommendationsTotal.WithLabelValues(strategy).Inc()
	r.RecommendationLatency.Observe(seconds)
	if strategy != "demand_simulation_grid_search" {
		r.FallbacksTotal.WithLabelValues(strategy).Inc()
	}
}

// ObserveRetrainOutcome records one property's retrain outcome.
func (r *Recorder) ObserveRetrainOutcome(outcome string) {
	r.RetrainOutcomesTotal.WithLabelValues(outcome).Inc()
}

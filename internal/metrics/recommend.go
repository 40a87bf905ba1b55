package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation and search Prometheus metrics.
var (
	RecommendCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperfeed",
			Name:      "recommend_candidates_total",
			Help:      "Candidates generated by source",
		},
		[]string{"source"}, // "similarity" / "recency"
	)

	RecommendFilteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "paperfeed",
			Name:      "recommend_filtered_total",
			Help:      "Candidates removed as already seen",
		},
	)

	RecommendBackfilledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "paperfeed",
			Name:      "recommend_backfilled_total",
			Help:      "Page slots filled past the per-category cap",
		},
	)

	RecommendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperfeed",
			Name:      "recommend_requests_total",
			Help:      "Recommendation requests by outcome",
		},
		[]string{"result"}, // "ok" / "empty" / "error"
	)

	ExpansionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperfeed",
			Name:      "query_expansion_total",
			Help:      "Query expansions by outcome",
		},
		[]string{"result"}, // "ok" / "cached" / "malformed" / "error"
	)

	SearchBranchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperfeed",
			Name:      "search_branches_total",
			Help:      "Fan-out search branches by outcome",
		},
		[]string{"status"},
	)

	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "paperfeed",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

var recommendMetricsRegistered bool

// RegisterRecommendMetrics registers recommendation, search and breaker metrics.
func RegisterRecommendMetrics() {
	if recommendMetricsRegistered {
		return
	}
	prometheus.MustRegister(RecommendCandidatesTotal)
	prometheus.MustRegister(RecommendFilteredTotal)
	prometheus.MustRegister(RecommendBackfilledTotal)
	prometheus.MustRegister(RecommendRequestsTotal)
	prometheus.MustRegister(ExpansionTotal)
	prometheus.MustRegister(SearchBranchesTotal)
	prometheus.MustRegister(BreakerState)
	recommendMetricsRegistered = true
}

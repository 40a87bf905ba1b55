package metrics

import "github.com/prometheus/client_golang/prometheus"

// Vector index Prometheus metrics.
var (
	IndexVectors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "paperfeed",
			Name:      "index_vectors",
			Help:      "Number of vectors held by the index",
		},
	)

	IndexOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "paperfeed",
			Name:      "index_operations_total",
			Help:      "Vector index operations by outcome",
		},
		[]string{"op", "status"}, // op: add/search/load/persist
	)

	IndexSearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "paperfeed",
			Name:      "index_search_duration_seconds",
			Help:      "Vector index search duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)
)

var indexMetricsRegistered bool

// RegisterIndexMetrics registers vector index metrics. Must be called once from main.
func RegisterIndexMetrics() {
	if indexMetricsRegistered {
		return
	}
	prometheus.MustRegister(IndexVectors)
	prometheus.MustRegister(IndexOperationsTotal)
	prometheus.MustRegister(IndexSearchDuration)
	indexMetricsRegistered = true
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backfill and retrieval pipeline metrics.
var (
	BackfillDocumentsEmbeddedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_documents_embedded_total",
			Help:      "Listings that received an embedding from backfill",
		},
	)

	BackfillBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_batches_total",
			Help:      "Backfill batches by outcome",
		},
		[]string{"outcome"}, // "committed" / "skipped" / "failed"
	)

	BackfillEligibleDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backfill_eligible_documents",
			Help:      "Listings without an embedding at the start of the last backfill run",
		},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Retrieval requests by outcome",
		},
		[]string{"outcome"}, // "reranked" / "fallback" / "error"
	)

	SearchFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_rerank_fallbacks_total",
			Help:      "Searches that returned unranked candidates",
		},
		[]string{"reason"}, // "error" / "empty" / "disabled"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers backfill and search metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(BackfillDocumentsEmbeddedTotal)
	prometheus.MustRegister(BackfillBatchesTotal)
	prometheus.MustRegister(BackfillEligibleDocuments)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchFallbacksTotal)
	pipelineMetricsRegistered = true
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds retrieval pipeline metrics for direct instrumentation in
// the engine and search layers.
type Metrics struct {
	CacheHits           *prometheus.CounterVec
	CacheMisses         *prometheus.CounterVec
	ProviderRequests    *prometheus.CounterVec
	Searches            prometheus.Counter
	Downloads           prometheus.Counter
	ProcessingFailures  prometheus.Counter
	ProviderReqDuration prometheus.Histogram
	SearchDuration      prometheus.Histogram
}

// New creates and registers retrieval metrics with the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subvault",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits by tier and key class.",
		}, []string{"tier", "class"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subvault",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses by tier and key class.",
		}, []string{"tier", "class"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subvault",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Upstream provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subvault",
			Subsystem: "engine",
			Name:      "searches_total",
			Help:      "Total subtitle search operations.",
		}),
		Downloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subvault",
			Subsystem: "engine",
			Name:      "downloads_total",
			Help:      "Total subtitle download operations.",
		}),
		ProcessingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "subvault",
			Subsystem: "engine",
			Name:      "processing_failures_total",
			Help:      "Subtitle payloads that failed validation or parsing.",
		}),
		ProviderReqDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "subvault",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Duration of upstream provider calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "subvault",
			Subsystem: "engine",
			Name:      "search_duration_seconds",
			Help:      "End-to-end duration of aggregated searches.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	reg.MustRegister(
		m.CacheHits,
		m.CacheMisses,
		m.ProviderRequests,
		m.Searches,
		m.Downloads,
		m.ProcessingFailures,
		m.ProviderReqDuration,
		m.SearchDuration,
	)

	return m
}

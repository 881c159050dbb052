package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shapedtime/subvault/internal/store"
)

// StatsSource is the slice of the durable store the collector polls.
type StatsSource interface {
	GetStats(ctx context.Context) (*store.Stats, error)
}

// StoreCollector implements prometheus.Collector for store occupancy.
// It polls GetStats lazily on each Prometheus scrape rather than
// maintaining duplicate state.
type StoreCollector struct {
	source StatsSource

	subtitlesTotal  *prometheus.Desc
	subtitlesActive *prometheus.Desc
	moviesTotal     *prometheus.Desc
	blobsTotal      *prometheus.Desc
	blobBytes       *prometheus.Desc
	byProvider      *prometheus.Desc
	byQuality       *prometheus.Desc
}

// NewStoreCollector creates a collector that scrapes store stats on demand.
func NewStoreCollector(source StatsSource) *StoreCollector {
	return &StoreCollector{
		source: source,

		subtitlesTotal: prometheus.NewDesc(
			"subvault_store_subtitles_total",
			"Total subtitle records in the durable store, expired included.",
			nil, nil,
		),
		subtitlesActive: prometheus.NewDesc(
			"subvault_store_subtitles_active",
			"Unexpired subtitle records in the durable store.",
			nil, nil,
		),
		moviesTotal: prometheus.NewDesc(
			"subvault_store_movies_total",
			"Movies with tracked subtitle availability.",
			nil, nil,
		),
		blobsTotal: prometheus.NewDesc(
			"subvault_store_blobs_total",
			"Cached subtitle content blobs.",
			nil, nil,
		),
		blobBytes: prometheus.NewDesc(
			"subvault_store_blob_bytes",
			"Bytes held by cached subtitle content blobs.",
			nil, nil,
		),
		byProvider: prometheus.NewDesc(
			"subvault_store_subtitles_by_provider",
			"Active subtitle records per source provider.",
			[]string{"provider"}, nil,
		),
		byQuality: prometheus.NewDesc(
			"subvault_store_subtitles_by_quality",
			"Active subtitle records per quality score bucket.",
			[]string{"bucket"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.subtitlesTotal
	ch <- c.subtitlesActive
	ch <- c.moviesTotal
	ch <- c.blobsTotal
	ch <- c.blobBytes
	ch <- c.byProvider
	ch <- c.byQuality
}

// Collect implements prometheus.Collector. A failed poll yields no
// samples for this scrape rather than an error.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := c.source.GetStats(ctx)
	if err != nil || stats == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(c.subtitlesTotal, prometheus.GaugeValue, float64(stats.TotalSubtitles))
	ch <- prometheus.MustNewConstMetric(c.subtitlesActive, prometheus.GaugeValue, float64(stats.ActiveSubtitles))
	ch <- prometheus.MustNewConstMetric(c.moviesTotal, prometheus.GaugeValue, float64(stats.TotalMovies))
	ch <- prometheus.MustNewConstMetric(c.blobsTotal, prometheus.GaugeValue, float64(stats.CachedBlobs))
	ch <- prometheus.MustNewConstMetric(c.blobBytes, prometheus.GaugeValue, float64(stats.BlobBytes))

	for providerName, n := range stats.ByProvider {
		ch <- prometheus.MustNewConstMetric(c.byProvider, prometheus.GaugeValue, float64(n), providerName)
	}
	for bucket, n := range stats.QualityDistribution {
		ch <- prometheus.MustNewConstMetric(c.byQuality, prometheus.GaugeValue, float64(n), bucket)
	}
}

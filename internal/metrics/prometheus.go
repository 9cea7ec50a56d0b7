package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Additional Prometheus metrics for the ingestion pipeline, kept separate
// from metrics.go's operation/cache/db gauges to group probe, extractor and
// error counters together.
var (
	// Media Probe Metrics
	MediaFilesProbed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tagflow_media_files_probed_total",
			Help: "Total number of media files probed (stat/duration/resolution)",
		},
	)

	MediaProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tagflow_media_probe_duration_seconds",
			Help:    "Media probe duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Extractor Metrics
	ExtractorItemsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagflow_extractor_items_extracted_total",
			Help: "Total number of raw items extracted per source",
		},
		[]string{"source", "status"},
	)

	ExtractorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagflow_extractor_duration_seconds",
			Help:    "Duration of a single extractor pass in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagflow_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "type"},
	)
)

// RecordMediaProbe records a single media probe completion.
func RecordMediaProbe(duration time.Duration) {
	MediaFilesProbed.Inc()
	MediaProbeDuration.Observe(duration.Seconds())
}

// RecordExtractorPass records one extractor invocation.
func RecordExtractorPass(source, status string, count int, duration time.Duration) {
	ExtractorItemsExtractedTotal.WithLabelValues(source, status).Add(float64(count))
	ExtractorDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordError records an error.
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

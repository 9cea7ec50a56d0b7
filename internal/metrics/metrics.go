package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks how long an ingestion operation takes end to end.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tagflow",
		Subsystem: "operations",
		Name:      "duration_seconds",
		Help:      "Duration of ingestion operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})

	// OperationsTotal counts operations by terminal status.
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagflow",
		Subsystem: "operations",
		Name:      "total",
		Help:      "Total number of ingestion operations by terminal status.",
	}, []string{"operation", "status"})

	// RealtimeClients tracks the number of connected websocket clients.
	RealtimeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tagflow",
		Subsystem: "realtime",
		Name:      "clients",
		Help:      "Number of connected websocket clients.",
	})

	// ExtractorHealth tracks the availability of each source extractor.
	// Values: 1 = available, 0 = unavailable.
	ExtractorHealth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tagflow",
		Subsystem: "extractors",
		Name:      "health",
		Help:      "Availability of each source extractor (1=available, 0=unavailable).",
	}, []string{"source"})

	// DBQueryDuration tracks the duration of database queries.
	DBQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tagflow",
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Duration of database queries in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"operation", "status"})

	// CacheHits and CacheMisses count lookups against the cache layer.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagflow",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total number of cache hits by category.",
	}, []string{"category"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tagflow",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total number of cache misses by category.",
	}, []string{"category"})

	// GoroutineCount tracks the number of goroutines.
	GoroutineCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tagflow",
		Subsystem: "runtime",
		Name:      "goroutines",
		Help:      "Number of goroutines currently running.",
	})

	// MemoryAlloc tracks the bytes of allocated heap objects.
	MemoryAlloc = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tagflow",
		Subsystem: "runtime",
		Name:      "memory_alloc_bytes",
		Help:      "Bytes of allocated heap objects.",
	})

	// MemorySys tracks the total bytes of memory obtained from the OS.
	MemorySys = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tagflow",
		Subsystem: "runtime",
		Name:      "memory_sys_bytes",
		Help:      "Total bytes of memory obtained from the OS.",
	})

	// MemoryHeapInuse tracks bytes in in-use heap spans.
	MemoryHeapInuse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tagflow",
		Subsystem: "runtime",
		Name:      "memory_heap_inuse_bytes",
		Help:      "Bytes in in-use heap spans.",
	})
)

var (
	collectorOnce sync.Once
	stopChan      chan struct{}
)

// StartRuntimeCollector starts a background goroutine that periodically
// collects runtime metrics (goroutines, memory). Call StopRuntimeCollector
// to stop it during shutdown.
func StartRuntimeCollector(interval time.Duration) {
	collectorOnce.Do(func() {
		stopChan = make(chan struct{})
		go collectRuntimeMetrics(interval, stopChan)
	})
}

// StopRuntimeCollector stops the background runtime metrics collector.
func StopRuntimeCollector() {
	if stopChan != nil {
		close(stopChan)
	}
}

func collectRuntimeMetrics(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	updateRuntimeMetrics()

	for {
		select {
		case <-ticker.C:
			updateRuntimeMetrics()
		case <-stop:
			return
		}
	}
}

func updateRuntimeMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	GoroutineCount.Set(float64(runtime.NumGoroutine()))
	MemoryAlloc.Set(float64(memStats.Alloc))
	MemorySys.Set(float64(memStats.Sys))
	MemoryHeapInuse.Set(float64(memStats.HeapInuse))
}

// SetExtractorHealth sets the health gauge for a source extractor.
func SetExtractorHealth(source string, available bool) {
	v := 0.0
	if available {
		v = 1.0
	}
	ExtractorHealth.WithLabelValues(source).Set(v)
}

// ObserveDBQuery records the duration and outcome of a database query.
func ObserveDBQuery(operation string, success bool, duration time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	DBQueryDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// ObserveOperation records the terminal outcome and duration of an operation.
func ObserveOperation(operation, status string, duration time.Duration) {
	OperationDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
	OperationsTotal.WithLabelValues(operation, status).Inc()
}

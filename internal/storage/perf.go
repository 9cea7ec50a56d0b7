package storage

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/internal/metrics"
)

// QueryMetric records one public storage method invocation.
type QueryMetric struct {
	QueryName string
	ElapsedMS float64
	Success   bool
	Timestamp time.Time
	QueryHash string
}

// perfMonitor is a fixed-size ring buffer of the most recent query metrics,
// used to compute slow-query and success-rate aggregates on demand.
type perfMonitor struct {
	mu            sync.Mutex
	buf           []QueryMetric
	cap           int
	next          int
	filled        bool
	slowThreshold time.Duration
}

func newPerfMonitor(capacity int, slowThreshold time.Duration) *perfMonitor {
	if capacity <= 0 {
		capacity = 1000
	}
	return &perfMonitor{
		buf:           make([]QueryMetric, capacity),
		cap:           capacity,
		slowThreshold: slowThreshold,
	}
}

// record stores one metric, overwriting the oldest entry once the buffer is full.
func (m *perfMonitor) record(queryName string, elapsed time.Duration, success bool, normalizedQuery string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf[m.next] = QueryMetric{
		QueryName: queryName,
		ElapsedMS: float64(elapsed) / float64(time.Millisecond),
		Success:   success,
		Timestamp: time.Now(),
		QueryHash: queryHash(normalizedQuery),
	}
	m.next = (m.next + 1) % m.cap
	if m.next == 0 {
		m.filled = true
	}
}

// snapshot returns a copy of the currently recorded metrics, oldest first.
func (m *perfMonitor) snapshot() []QueryMetric {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.filled {
		out := make([]QueryMetric, m.next)
		copy(out, m.buf[:m.next])
		return out
	}
	out := make([]QueryMetric, m.cap)
	copy(out, m.buf[m.next:])
	copy(out[m.cap-m.next:], m.buf[:m.next])
	return out
}

// queryHash groups slow queries by a short hash of the normalized query text.
func queryHash(normalized string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalized))
	return fmt.Sprintf("%08x", h.Sum32())
}

// timeQuery wraps a storage operation, recording its outcome into the
// monitor. Every exported Store method funnels through this except Health,
// Vacuum and Analyze, which are not recorded.
func (s *Store) timeQuery(ctx context.Context, queryName, normalizedQuery string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	s.perf.record(queryName, elapsed, err == nil, normalizedQuery)
	metrics.ObserveDBQuery(queryName, err == nil, elapsed)
	if elapsed > s.perf.slowThreshold {
		s.logger.Warn("slow query",
			zap.String("query_name", queryName),
			zap.Duration("elapsed", elapsed),
		)
	}
	return err
}

// HealthReport summarizes recent query performance and database vitals.
type HealthReport struct {
	DBSizeBytes      int64
	PageCount        int64
	FragmentationPct float64
	TotalQueries     int
	SlowQueries      int
	FailedQueries    int
	SuccessRatePct   float64
	SlowRatePct      float64
	P95MS            float64
	SlowByHash       map[string]int
	LastHour         WindowStats
	Last24Hours      WindowStats
}

// WindowStats aggregates the metrics recorded inside one trailing time window.
type WindowStats struct {
	Queries        int
	SuccessRatePct float64
	SlowRatePct    float64
	P95MS          float64
}

func windowStats(recorded []QueryMetric, since time.Time, slowThreshold time.Duration) WindowStats {
	var w WindowStats
	var elapsed []float64
	failed, slow := 0, 0
	for _, m := range recorded {
		if m.Timestamp.Before(since) {
			continue
		}
		w.Queries++
		elapsed = append(elapsed, m.ElapsedMS)
		if !m.Success {
			failed++
		}
		if time.Duration(m.ElapsedMS*float64(time.Millisecond)) > slowThreshold {
			slow++
		}
	}
	if w.Queries > 0 {
		w.SuccessRatePct = 100 * float64(w.Queries-failed) / float64(w.Queries)
		w.SlowRatePct = 100 * float64(slow) / float64(w.Queries)
		w.P95MS = percentile(elapsed, 0.95)
	}
	return w
}

// Health computes a HealthReport from the ring buffer plus live pragma reads.
func (s *Store) Health(ctx context.Context) (HealthReport, error) {
	recorded := s.perf.snapshot()

	report := HealthReport{SlowByHash: make(map[string]int)}
	report.TotalQueries = len(recorded)

	var elapsedSorted []float64
	for _, m := range recorded {
		elapsedSorted = append(elapsedSorted, m.ElapsedMS)
		if !m.Success {
			report.FailedQueries++
		}
		if time.Duration(m.ElapsedMS*float64(time.Millisecond)) > s.perf.slowThreshold {
			report.SlowQueries++
			report.SlowByHash[m.QueryHash]++
		}
	}
	if report.TotalQueries > 0 {
		report.SuccessRatePct = 100 * float64(report.TotalQueries-report.FailedQueries) / float64(report.TotalQueries)
		report.SlowRatePct = 100 * float64(report.SlowQueries) / float64(report.TotalQueries)
		report.P95MS = percentile(elapsedSorted, 0.95)
	}
	now := time.Now()
	report.LastHour = windowStats(recorded, now.Add(-time.Hour), s.perf.slowThreshold)
	report.Last24Hours = windowStats(recorded, now.Add(-24*time.Hour), s.perf.slowThreshold)

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return report, fmt.Errorf("read page_count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return report, fmt.Errorf("read page_size: %w", err)
	}
	var freelistCount int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA freelist_count").Scan(&freelistCount); err != nil {
		return report, fmt.Errorf("read freelist_count: %w", err)
	}

	report.PageCount = pageCount
	report.DBSizeBytes = pageCount * pageSize
	if pageCount > 0 {
		report.FragmentationPct = 100 * float64(freelistCount) / float64(pageCount)
	}
	return report, nil
}

// percentile computes the p-th percentile (0..1) of an unsorted float slice:
// it sorts a copy and returns the element at index floor(p*(n-1)).
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}

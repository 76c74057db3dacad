// Package telemetry collects per-request query metrics for the QA
// pipeline. All data stays local, there is no external reporting.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one answered request.
type QueryEvent struct {
	Query       string
	Department  string
	Language    string
	CacheType   string // "" (miss), "exact", or "semantic"
	ResultCount int
	Escalated   bool
	Latency     time.Duration
	Timestamp   time.Time
}

// IsCacheHit reports whether the answer came from the response cache.
func (e QueryEvent) IsCacheHit() bool {
	return e.CacheType != ""
}

// IsZeroResult reports whether retrieval found no documents.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0 && !e.IsCacheHit()
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffer contents in FIFO order, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear removes all items.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// ExtractTerms extracts searchable terms from a query, lowercased and
// filtered to minimum length 3.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var terms []string
	for _, w := range strings.Fields(query) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 {
		return nil
	}
	return terms
}

// TermCount is a term and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of collected metrics.
type Snapshot struct {
	DepartmentCounts    map[string]int64        `json:"department_counts"`
	LanguageCounts      map[string]int64        `json:"language_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	CacheHits           int64                   `json:"cache_hits"`
	Escalations         int64                   `json:"escalations"`
	AverageLatencyMS    float64                 `json:"average_latency_ms"`
	Since               time.Time               `json:"since"`
}

// CacheHitRate returns the fraction of queries served from cache.
func (s *Snapshot) CacheHitRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.TotalQueries)
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// MetricsStore persists aggregated metrics.
type MetricsStore interface {
	// SaveDepartmentCounts upserts daily per-department query counts.
	SaveDepartmentCounts(date string, counts map[string]int64) error

	// GetDepartmentCounts retrieves counts for a date range.
	GetDepartmentCounts(from, to string) (map[string]int64, error)

	// SaveLanguageCounts upserts daily per-language query counts.
	SaveLanguageCounts(date string, counts map[string]int64) error

	// GetLanguageCounts retrieves counts for a date range.
	GetLanguageCounts(from, to string) (map[string]int64, error)

	// UpsertTermCounts updates term frequency counts.
	UpsertTermCounts(terms map[string]int64) error

	// GetTopTerms retrieves the top N terms by frequency.
	GetTopTerms(limit int) ([]TermCount, error)

	// AddZeroResultQuery records a query that found no documents.
	AddZeroResultQuery(query string, timestamp time.Time) error

	// GetZeroResultQueries retrieves recent zero-result queries.
	GetZeroResultQueries(limit int) ([]string, error)

	// SaveLatencyCounts upserts daily latency histogram counts.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts retrieves the distribution for a date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	// Close releases resources.
	Close() error
}

// Config configures the metrics collector.
type Config struct {
	TopTermsCapacity    int           // max terms tracked (default 100)
	ZeroResultsCapacity int           // max zero-result queries kept (default 100)
	RecentEvents        int           // recent-event buffer size (default 100)
	FlushInterval       time.Duration // auto-flush period, 0 disables (default 60s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 100,
		RecentEvents:        100,
		FlushInterval:       60 * time.Second,
	}
}

// Metrics collects query telemetry. Thread-safe.
type Metrics struct {
	mu sync.RWMutex

	departments     map[string]int64
	languages       map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	recent          *CircularBuffer[QueryEvent]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	cacheHits       int64
	escalations     int64
	latencySumMS    int64
	startTime       time.Time

	store       MetricsStore
	config      Config
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// New creates a collector with default configuration. A nil store
// keeps metrics in memory only.
func New(store MetricsStore) *Metrics {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates a collector with custom configuration.
func NewWithConfig(store MetricsStore, cfg Config) *Metrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}
	if cfg.RecentEvents <= 0 {
		cfg.RecentEvents = 100
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)

	m := &Metrics{
		departments: make(map[string]int64),
		languages:   make(map[string]int64),
		topTerms:    topTerms,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		recent:      NewCircularBuffer[QueryEvent](cfg.RecentEvents),
		latencies:   make(map[LatencyBucket]int64),
		startTime:   time.Now(),
		store:       store,
		config:      cfg,
		stopCh:      make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}

	return m
}

func (m *Metrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one answered request. Thread-safe and non-blocking.
func (m *Metrics) Record(event QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.totalQueries++
	if event.Department != "" {
		m.departments[event.Department]++
	}
	if event.Language != "" {
		m.languages[event.Language]++
	}
	if event.IsCacheHit() {
		m.cacheHits++
	}
	if event.Escalated {
		m.escalations++
	}

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
	}

	m.latencies[LatencyToBucket(event.Latency)]++
	m.latencySumMS += event.Latency.Milliseconds()
	m.recent.Add(event)
}

// Recent returns the most recent events, oldest first.
func (m *Metrics) Recent() []QueryEvent {
	return m.recent.Items()
}

// Snapshot returns the current metrics for reporting.
func (m *Metrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	deptCounts := make(map[string]int64, len(m.departments))
	for k, v := range m.departments {
		deptCounts[k] = v
	}
	langCounts := make(map[string]int64, len(m.languages))
	for k, v := range m.languages {
		langCounts[k] = v
	}

	var topTerms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.Slice(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	var avgLatency float64
	if m.totalQueries > 0 {
		avgLatency = float64(m.latencySumMS) / float64(m.totalQueries)
	}

	return &Snapshot{
		DepartmentCounts:    deptCounts,
		LanguageCounts:      langCounts,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		CacheHits:           m.cacheHits,
		Escalations:         m.escalations,
		AverageLatencyMS:    avgLatency,
		Since:               m.startTime,
	}
}

// Flush persists in-memory aggregates. Safe without a store.
func (m *Metrics) Flush() error {
	if m.store == nil {
		return nil
	}

	snapshot := m.Snapshot()
	today := time.Now().Format("2006-01-02")

	if err := m.store.SaveDepartmentCounts(today, snapshot.DepartmentCounts); err != nil {
		return err
	}
	if err := m.store.SaveLanguageCounts(today, snapshot.LanguageCounts); err != nil {
		return err
	}

	termCounts := make(map[string]int64, len(snapshot.TopTerms))
	for _, tc := range snapshot.TopTerms {
		termCounts[tc.Term] = tc.Count
	}
	if err := m.store.UpsertTermCounts(termCounts); err != nil {
		return err
	}

	return m.store.SaveLatencyCounts(today, snapshot.LatencyDistribution)
}

// Close flushes and stops the collector.
func (m *Metrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}

	return m.Flush()
}

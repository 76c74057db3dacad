package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/onboardqa/internal/embed"
	"github.com/Aman-CERP/onboardqa/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine implements hybrid search over the policy corpus. BM25 and
// vector searches run in parallel; either side failing degrades to the
// other, and both failing yields an empty result set rather than an
// error.
type Engine struct {
	bm25     store.BM25Index
	vector   store.VectorStore
	embedder embed.Embedder
	metadata store.MetadataStore
	config   EngineConfig
	fusion   *WeightedFusion
	cache    *queryCache
	logger   *slog.Logger
	mu       sync.RWMutex

	// Running telemetry, guarded separately so Metrics never contends
	// with Close.
	metricsMu     sync.Mutex
	queries       int64
	cacheHits     int64
	semanticTotal time.Duration
	bm25Total     time.Duration
	totalTotal    time.Duration
}

// NewEngine creates a hybrid search engine with the given dependencies.
func NewEngine(
	bm25 store.BM25Index,
	vector store.VectorStore,
	embedder embed.Embedder,
	metadata store.MetadataStore,
	config EngineConfig,
	logger *slog.Logger,
) (*Engine, error) {
	if bm25 == nil {
		return nil, fmt.Errorf("%w: bm25 index is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrNilDependency)
	}
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.SemanticWeight <= 0 && config.BM25Weight <= 0 {
		config.SemanticWeight = DefaultSemanticWeight
		config.BM25Weight = DefaultBM25Weight
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultSearchTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		bm25:     bm25,
		vector:   vector,
		embedder: embedder,
		metadata: metadata,
		config:   config,
		fusion:   NewWeightedFusion(config.SemanticWeight, config.BM25Weight),
		cache:    newQueryCache(config.CacheMaxSize, config.CacheTTL),
		logger:   logger,
	}, nil
}

// Search runs one hybrid search. An empty result slice (never nil
// chunks) means nothing relevant was found; callers decide how to
// answer that.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error) {
	resp, err := e.Query(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Query runs one hybrid search and reports how it was served: cache
// hit or miss, per-side retrieval timings, and total latency. Every
// call feeds the running metrics.
func (e *Engine) Query(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return &Response{Results: []*SearchResult{}}, nil
	}

	k := opts.Limit
	if k <= 0 {
		k = e.config.TopK
	}

	key := cacheKey(query, opts.Department, k)
	if results, ok := e.cache.Get(key); ok {
		resp := &Response{Results: results, CacheHit: true, TotalTime: time.Since(start)}
		e.record(resp)
		return resp, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	bm25Results, vecResults, timings, err := e.parallelSearch(ctx, query, opts.Department, k*CandidateMultiplier)
	if err != nil {
		return nil, err
	}

	fused := e.fusion.Fuse(bm25Results, vecResults)
	if len(fused) > k {
		fused = fused[:k]
	}

	results, err := e.enrichResults(ctx, fused)
	if err != nil {
		return nil, err
	}

	e.cache.Add(key, results)

	resp := &Response{
		Results:      results,
		SemanticTime: timings.semantic,
		BM25Time:     timings.bm25,
		TotalTime:    time.Since(start),
	}
	e.record(resp)
	return resp, nil
}

// sideTimings holds per-side wall-clock durations of one miss.
type sideTimings struct {
	semantic time.Duration
	bm25     time.Duration
}

// parallelSearch runs both sides concurrently. A single failing side
// logs a warning and degrades to the other; both failing returns empty
// lists with no error. Only context cancellation aborts the search.
func (e *Engine) parallelSearch(ctx context.Context, query, department string, limit int) (
	bm25Results []*store.BM25Result,
	vecResults []*store.VectorResult,
	timings sideTimings,
	err error,
) {
	g, gctx := errgroup.WithContext(ctx)

	var bm25Err, vecErr error

	g.Go(func() error {
		begin := time.Now()
		var searchErr error
		bm25Results, searchErr = e.bm25.Search(gctx, query, department, limit)
		timings.bm25 = time.Since(begin)
		if searchErr != nil {
			bm25Err = searchErr
		}
		return nil
	})

	g.Go(func() error {
		begin := time.Now()
		defer func() { timings.semantic = time.Since(begin) }()

		embedding, embedErr := e.embedder.Embed(gctx, query)
		if embedErr != nil {
			vecErr = embedErr
			return nil
		}
		var searchErr error
		vecResults, searchErr = e.vector.Search(gctx, embedding, limit, department)
		if searchErr != nil {
			vecErr = searchErr
		}
		return nil
	})

	if waitErr := g.Wait(); waitErr != nil {
		return nil, nil, sideTimings{}, waitErr
	}

	if bm25Err != nil {
		e.logger.Warn("bm25_search_failed",
			slog.String("error", bm25Err.Error()))
		bm25Results = nil
	}
	if vecErr != nil {
		e.logger.Warn("semantic_search_failed",
			slog.String("error", vecErr.Error()))
		vecResults = nil
	}
	if bm25Err != nil && vecErr != nil {
		e.logger.Warn("hybrid_search_degraded_to_empty",
			slog.String("query", query))
	}

	return bm25Results, vecResults, timings, nil
}

// record folds one served query into the running metrics.
func (e *Engine) record(resp *Response) {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()

	e.queries++
	e.totalTotal += resp.TotalTime
	if resp.CacheHit {
		e.cacheHits++
		return
	}
	e.semanticTotal += resp.SemanticTime
	e.bm25Total += resp.BM25Time
}

// Metrics reports aggregated search telemetry since engine creation.
func (e *Engine) Metrics() *EngineMetrics {
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()

	m := &EngineMetrics{Queries: e.queries, CacheHits: e.cacheHits}
	if e.queries > 0 {
		m.CacheHitRate = float64(e.cacheHits) / float64(e.queries)
		m.AvgTotalMS = e.totalTotal.Seconds() * 1000 / float64(e.queries)
	}
	if misses := e.queries - e.cacheHits; misses > 0 {
		m.AvgSemanticMS = e.semanticTotal.Seconds() * 1000 / float64(misses)
		m.AvgBM25MS = e.bm25Total.Seconds() * 1000 / float64(misses)
	}
	return m
}

// enrichResults resolves fused candidates to full chunks in one batch
// query. Candidates missing from the metadata store are dropped.
func (e *Engine) enrichResults(ctx context.Context, fused []*FusedResult) ([]*SearchResult, error) {
	if len(fused) == 0 {
		return []*SearchResult{}, nil
	}

	ids := make([]string, len(fused))
	byID := make(map[string]*FusedResult, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
		byID[f.ChunkID] = f
	}

	chunks, err := e.metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve chunks: %w", err)
	}

	results := make([]*SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		f, ok := byID[chunk.ID]
		if !ok {
			continue
		}
		results = append(results, &SearchResult{
			Chunk:         chunk,
			Score:         f.Score,
			SemanticScore: f.SemanticScore,
			BM25Score:     f.BM25Score,
			InBothLists:   f.InBothLists,
			MatchedTerms:  f.MatchedTerms,
		})
	}
	return results, nil
}

// InvalidateCache drops every cached result list. Called after ingest.
func (e *Engine) InvalidateCache() {
	e.cache.Purge()
}

// Stats returns current index and cache sizes.
func (e *Engine) Stats(ctx context.Context) *EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := &EngineStats{
		VectorCount:  e.vector.Count(),
		CacheEntries: e.cache.Len(),
	}
	if s := e.bm25.Stats(); s != nil {
		stats.BM25Documents = s.DocumentCount
	}
	if count, err := e.metadata.CountChunks(ctx); err == nil {
		stats.ChunkCount = count
	}
	return stats
}

// Close releases the underlying stores.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if err := e.bm25.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.metadata.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

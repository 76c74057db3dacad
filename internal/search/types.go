// Package search provides hybrid retrieval over the policy corpus,
// combining BM25 keyword search and semantic vector search with
// weighted score fusion.
package search

import (
	"time"

	"github.com/Aman-CERP/onboardqa/internal/store"
)

// Default engine parameters.
const (
	// DefaultSemanticWeight is the semantic share of the fused score.
	DefaultSemanticWeight = 0.7

	// DefaultBM25Weight is the keyword share of the fused score.
	DefaultBM25Weight = 0.3

	// DefaultTopK is the number of results returned per query.
	DefaultTopK = 5

	// CandidateMultiplier over-fetches each side before fusion so the
	// fused ranking has enough candidates to reorder.
	CandidateMultiplier = 2

	// DefaultCacheTTL bounds how long a cached result list stays valid.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheMaxSize is the query cache capacity.
	DefaultCacheMaxSize = 1000

	// DefaultSearchTimeout bounds one hybrid search round trip.
	DefaultSearchTimeout = 2 * time.Second
)

// EngineConfig configures the hybrid search engine.
type EngineConfig struct {
	SemanticWeight float64
	BM25Weight     float64
	TopK           int
	CacheTTL       time.Duration
	CacheMaxSize   int
	Timeout        time.Duration
}

// DefaultEngineConfig returns the standard engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SemanticWeight: DefaultSemanticWeight,
		BM25Weight:     DefaultBM25Weight,
		TopK:           DefaultTopK,
		CacheTTL:       DefaultCacheTTL,
		CacheMaxSize:   DefaultCacheMaxSize,
		Timeout:        DefaultSearchTimeout,
	}
}

// SearchOptions controls one search request.
type SearchOptions struct {
	// Department restricts results to one department. Empty means all.
	Department string

	// Limit overrides the engine's TopK for this request.
	Limit int
}

// SearchResult is one fused, enriched retrieval result.
type SearchResult struct {
	Chunk *store.Chunk

	// Score is the fused score in [0, 1].
	Score float64

	// SemanticScore is the raw similarity from the vector side,
	// 0 when the chunk was only found by BM25.
	SemanticScore float64

	// BM25Score is the raw keyword score, 0 when the chunk was only
	// found by the vector side.
	BM25Score float64

	// InBothLists is true when both sides returned the chunk.
	InBothLists bool

	// MatchedTerms are the BM25 query terms found in the chunk.
	MatchedTerms []string
}

// Response wraps one hybrid search with how it was served: whether the
// query cache answered it, and per-side retrieval timings on a miss.
type Response struct {
	Results      []*SearchResult
	CacheHit     bool
	SemanticTime time.Duration
	BM25Time     time.Duration
	TotalTime    time.Duration
}

// EngineStats reports index sizes for the stats command.
type EngineStats struct {
	BM25Documents int
	VectorCount   int
	ChunkCount    int
	CacheEntries  int
}

// EngineMetrics aggregates search telemetry since engine creation.
// Averages cover cache misses only; a hit runs neither side.
type EngineMetrics struct {
	Queries       int64
	CacheHits     int64
	CacheHitRate  float64
	AvgSemanticMS float64
	AvgBM25MS     float64
	AvgTotalMS    float64
}

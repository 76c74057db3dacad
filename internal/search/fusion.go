package search

import (
	"sort"

	"github.com/Aman-CERP/onboardqa/internal/store"
)

// FusedResult is one candidate after weighted score fusion.
type FusedResult struct {
	ChunkID       string
	Score         float64  // Weighted combination of normalized scores
	SemanticScore float64  // Raw similarity (0 if absent from vector list)
	BM25Score     float64  // Raw BM25 score (0 if absent from BM25 list)
	InBothLists   bool     // Candidate appeared in both lists
	MatchedTerms  []string // BM25 matched terms
}

// WeightedFusion combines BM25 and vector candidates by normalizing
// each side's scores to [0, 1] over the candidate union and taking a
// weighted sum. A candidate missing from one side contributes zero for
// that side.
type WeightedFusion struct {
	SemanticWeight float64
	BM25Weight     float64
}

// NewWeightedFusion creates a fusion instance, applying default weights
// for zero values.
func NewWeightedFusion(semanticWeight, bm25Weight float64) *WeightedFusion {
	if semanticWeight <= 0 && bm25Weight <= 0 {
		semanticWeight = DefaultSemanticWeight
		bm25Weight = DefaultBM25Weight
	}
	return &WeightedFusion{
		SemanticWeight: semanticWeight,
		BM25Weight:     bm25Weight,
	}
}

// Fuse merges the two candidate lists.
//
// Results are sorted by fused score descending, ties broken by raw
// semantic score descending, then by chunk ID ascending.
func (f *WeightedFusion) Fuse(
	bm25 []*store.BM25Result,
	vec []*store.VectorResult,
) []*FusedResult {
	if len(bm25) == 0 && len(vec) == 0 {
		return []*FusedResult{}
	}

	candidates := make(map[string]*FusedResult, len(bm25)+len(vec))

	for _, r := range vec {
		candidates[r.ID] = &FusedResult{
			ChunkID:       r.ID,
			SemanticScore: float64(r.Score),
		}
	}

	for _, r := range bm25 {
		c, ok := candidates[r.DocID]
		if !ok {
			c = &FusedResult{ChunkID: r.DocID}
			candidates[r.DocID] = c
		} else {
			c.InBothLists = true
		}
		c.BM25Score = r.Score
		c.MatchedTerms = r.MatchedTerms
	}

	semNorm := normalizeOver(candidates, func(c *FusedResult) float64 { return c.SemanticScore })
	bm25Norm := normalizeOver(candidates, func(c *FusedResult) float64 { return c.BM25Score })

	results := make([]*FusedResult, 0, len(candidates))
	for id, c := range candidates {
		c.Score = f.SemanticWeight*semNorm[id] + f.BM25Weight*bm25Norm[id]
		results = append(results, c)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.SemanticScore != b.SemanticScore {
			return a.SemanticScore > b.SemanticScore
		}
		return a.ChunkID < b.ChunkID
	})

	return results
}

// normalizeOver min-max normalizes one side's scores over the whole
// candidate union. Zero scores (candidates missing from that side) are
// part of the range, so a BM25-only candidate keeps a zero semantic
// contribution. A degenerate range maps every nonzero score to 1.
func normalizeOver(candidates map[string]*FusedResult, score func(*FusedResult) float64) map[string]float64 {
	if len(candidates) == 0 {
		return nil
	}

	first := true
	var minScore, maxScore float64
	for _, c := range candidates {
		s := score(c)
		if first {
			minScore, maxScore = s, s
			first = false
			continue
		}
		if s < minScore {
			minScore = s
		}
		if s > maxScore {
			maxScore = s
		}
	}

	normalized := make(map[string]float64, len(candidates))
	spread := maxScore - minScore
	for id, c := range candidates {
		s := score(c)
		switch {
		case spread > 0:
			normalized[id] = (s - minScore) / spread
		case s > 0:
			normalized[id] = 1
		default:
			normalized[id] = 0
		}
	}
	return normalized
}

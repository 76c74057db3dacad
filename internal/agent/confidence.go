package agent

import "github.com/Aman-CERP/onboardqa/internal/search"

// Retrieval confidence weights. The top score dominates because the
// answer is usually extracted from the first document.
const (
	weightTopScore = 0.5
	weightAvgScore = 0.3
	weightCoverage = 0.2
)

// Response confidence weights over retrieval quality, source count and
// answer length.
const (
	weightRetrieval    = 0.6
	weightSourceCount  = 0.25
	weightAnswerLength = 0.15
)

// Level thresholds.
const (
	highThreshold   = 0.70
	mediumThreshold = 0.40
)

// RetrievalConfidence scores a retrieval result set in [0, 1]. No
// documents means zero.
func RetrievalConfidence(results []*search.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}

	top := results[0].Score
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	avg := sum / float64(len(results))

	coverage := float64(len(results)) / 2.0
	if coverage > 1 {
		coverage = 1
	}

	return weightTopScore*top + weightAvgScore*avg + weightCoverage*coverage
}

// ResponseConfidence scores a finished answer from its retrieval
// confidence, source count, and length.
func ResponseConfidence(retrieval float64, sourceCount, answerLen int) float64 {
	sourceFactor := float64(sourceCount) / 3.0
	if sourceFactor > 1 {
		sourceFactor = 1
	}
	lengthFactor := float64(answerLen) / 500.0
	if lengthFactor > 1 {
		lengthFactor = 1
	}
	return weightRetrieval*retrieval + weightSourceCount*sourceFactor + weightAnswerLength*lengthFactor
}

// LevelThresholds are the score cutoffs for the high and medium
// confidence buckets. The zero value is not usable; construct with
// DefaultLevelThresholds or from config.
type LevelThresholds struct {
	High   float64
	Medium float64
}

// DefaultLevelThresholds returns the built-in cutoffs.
func DefaultLevelThresholds() LevelThresholds {
	return LevelThresholds{High: highThreshold, Medium: mediumThreshold}
}

// LevelFor buckets a confidence score. NONE is reserved for responses
// with no supporting documents and is assigned by the caller.
func (t LevelThresholds) LevelFor(score float64) ConfidenceLevel {
	switch {
	case score >= t.High:
		return ConfidenceHigh
	case score >= t.Medium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// LevelFor buckets a confidence score using the default thresholds.
func LevelFor(score float64) ConfidenceLevel {
	return DefaultLevelThresholds().LevelFor(score)
}

// Package classify performs department prediction for user queries
// using a TF-IDF + multinomial logistic regression model exported to
// JSON by the offline training pipeline.
package classify

import (
	"encoding/json"
	"fmt"
	"os"
)

// Artifact is the serialized routing model. The training pipeline
// exports the fitted TF-IDF vectorizer and logistic regression weights
// so inference needs no ML runtime.
type Artifact struct {
	// ModelName identifies the training run that produced the artifact.
	ModelName string `json:"model_name"`

	// Classes in the coefficient row order.
	Classes []string `json:"classes"`

	// Vocabulary maps a term (unigram or bigram) to its feature index.
	Vocabulary map[string]int `json:"vocabulary"`

	// IDF holds inverse document frequencies, one per feature index.
	IDF []float64 `json:"idf"`

	// Coef holds one weight row per class over the feature space.
	Coef [][]float64 `json:"coef"`

	// Intercept holds one bias per class.
	Intercept []float64 `json:"intercept"`

	// NgramMin and NgramMax bound the n-gram sizes in the vocabulary.
	NgramMin int `json:"ngram_min"`
	NgramMax int `json:"ngram_max"`

	// StopWords is the vectorizer's stop word list, applied before
	// n-gram construction exactly as during training.
	StopWords []string `json:"stop_words"`
}

// LoadArtifact reads and validates a model artifact from disk.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("invalid model artifact: %w", err)
	}
	return &a, nil
}

func (a *Artifact) validate() error {
	if len(a.Classes) < 2 {
		return fmt.Errorf("need at least 2 classes, got %d", len(a.Classes))
	}
	if len(a.Vocabulary) == 0 {
		return fmt.Errorf("empty vocabulary")
	}
	if len(a.IDF) != len(a.Vocabulary) {
		return fmt.Errorf("idf length %d does not match vocabulary size %d", len(a.IDF), len(a.Vocabulary))
	}
	if len(a.Coef) != len(a.Classes) {
		return fmt.Errorf("coef rows %d do not match class count %d", len(a.Coef), len(a.Classes))
	}
	for i, row := range a.Coef {
		if len(row) != len(a.Vocabulary) {
			return fmt.Errorf("coef row %d length %d does not match vocabulary size %d", i, len(row), len(a.Vocabulary))
		}
	}
	if len(a.Intercept) != len(a.Classes) {
		return fmt.Errorf("intercept length %d does not match class count %d", len(a.Intercept), len(a.Classes))
	}
	for term, idx := range a.Vocabulary {
		if idx < 0 || idx >= len(a.IDF) {
			return fmt.Errorf("vocabulary index %d for %q out of range", idx, term)
		}
	}
	if a.NgramMin <= 0 {
		a.NgramMin = 1
	}
	if a.NgramMax < a.NgramMin {
		a.NgramMax = a.NgramMin
	}
	return nil
}

package classify

import (
	"math"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the LRU cache size for prediction results.
const DefaultCacheSize = 10000

// DefaultConfidenceThreshold separates confident predictions from
// guesses the router may override with keyword evidence.
const DefaultConfidenceThreshold = 0.6

// termPattern matches word tokens of two or more characters, the same
// boundary rule the training vectorizer uses.
var termPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Prediction is one classification result.
type Prediction struct {
	// Department is the highest-probability class.
	Department string

	// Confidence is the softmax probability of the predicted class.
	Confidence float64

	// Probabilities holds the full softmax distribution by class.
	Probabilities map[string]float64
}

// Classifier predicts the owning department for a query.
type Classifier struct {
	artifact  *Artifact
	stopWords map[string]struct{}
	cache     *lru.Cache[string, *Prediction]
}

// NewClassifier wraps a loaded artifact for inference.
func NewClassifier(artifact *Artifact) *Classifier {
	stopWords := make(map[string]struct{}, len(artifact.StopWords))
	for _, w := range artifact.StopWords {
		stopWords[strings.ToLower(w)] = struct{}{}
	}
	cache, _ := lru.New[string, *Prediction](DefaultCacheSize)
	return &Classifier{
		artifact:  artifact,
		stopWords: stopWords,
		cache:     cache,
	}
}

// Load reads an artifact from path and wraps it.
func Load(path string) (*Classifier, error) {
	artifact, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	return NewClassifier(artifact), nil
}

// ModelName returns the artifact's training run identifier.
func (c *Classifier) ModelName() string {
	return c.artifact.ModelName
}

// Classes returns the model's class labels.
func (c *Classifier) Classes() []string {
	return c.artifact.Classes
}

// Predict classifies one query. A query with no vocabulary overlap
// still produces a softmax over the intercepts, which is close to
// uniform for a balanced model; the caller treats low confidence as
// a signal to prefer keyword evidence.
func (c *Classifier) Predict(query string) *Prediction {
	key := strings.ToLower(strings.TrimSpace(query))
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	features := c.vectorize(key)
	logits := c.score(features)
	probs := softmax(logits)

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}

	byClass := make(map[string]float64, len(probs))
	for i, class := range c.artifact.Classes {
		byClass[class] = probs[i]
	}

	p := &Prediction{
		Department:    c.artifact.Classes[best],
		Confidence:    probs[best],
		Probabilities: byClass,
	}
	c.cache.Add(key, p)
	return p
}

// vectorize produces the sparse TF-IDF vector for a query: tokenize,
// drop stop words, build n-grams, count, scale by IDF, L2 normalize.
func (c *Classifier) vectorize(query string) map[int]float64 {
	raw := termPattern.FindAllString(query, -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, stop := c.stopWords[tok]; stop {
			continue
		}
		tokens = append(tokens, tok)
	}

	counts := make(map[int]float64)
	for n := c.artifact.NgramMin; n <= c.artifact.NgramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			term := strings.Join(tokens[i:i+n], " ")
			if idx, ok := c.artifact.Vocabulary[term]; ok {
				counts[idx]++
			}
		}
	}

	var sumSquares float64
	for idx := range counts {
		counts[idx] *= c.artifact.IDF[idx]
		sumSquares += counts[idx] * counts[idx]
	}
	if sumSquares > 0 {
		norm := math.Sqrt(sumSquares)
		for idx := range counts {
			counts[idx] /= norm
		}
	}
	return counts
}

// score computes one logit per class over the sparse feature vector.
func (c *Classifier) score(features map[int]float64) []float64 {
	logits := make([]float64, len(c.artifact.Classes))
	for i := range logits {
		logits[i] = c.artifact.Intercept[i]
		row := c.artifact.Coef[i]
		for idx, value := range features {
			logits[i] += row[idx] * value
		}
	}
	return logits
}

// softmax converts logits to probabilities, shifted by the maximum
// logit for numeric stability.
func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Package router decides which department answers a query, combining
// a trained classifier with bilingual keyword rules. The router never
// calls the text generator; given the same input it always produces
// the same decision.
package router

import (
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/onboardqa/internal/classify"
	"github.com/Aman-CERP/onboardqa/internal/lang"
	"github.com/Aman-CERP/onboardqa/internal/store"
)

// Default thresholds.
const (
	// DefaultConfidenceThreshold is the classifier confidence below
	// which a keyword match overrides the prediction.
	DefaultConfidenceThreshold = 0.6

	// DefaultMultiIntentThreshold is the minimum secondary-class
	// probability that adds a department to the multi-intent list.
	DefaultMultiIntentThreshold = 0.3
)

// Decision is the routing outcome for one query.
type Decision struct {
	// PredictedDepartment is the raw classifier output ("General"
	// with confidence 0 when no model is loaded).
	PredictedDepartment  string
	PredictionConfidence float64

	// FinalDepartment is the department after all override rules.
	FinalDepartment string

	WasOverridden  bool
	OverrideReason string

	// KeywordMatches holds matched keywords per department.
	KeywordMatches map[string][]string

	// Departments is the ordered multi-intent list; it always
	// contains FinalDepartment.
	Departments   []string
	IsMultiIntent bool

	// Language is the detected query language.
	Language lang.Language

	// SearchQuery is the query to retrieve with: the original for
	// English, the keyword translation for Arabic.
	SearchQuery string
}

// Config tunes the router thresholds.
type Config struct {
	ConfidenceThreshold  float64
	MultiIntentThreshold float64
}

// DefaultConfig returns the standard router configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:  DefaultConfidenceThreshold,
		MultiIntentThreshold: DefaultMultiIntentThreshold,
	}
}

// Router applies the routing rules. A nil classifier degrades to
// keyword-only routing.
type Router struct {
	classifier *classify.Classifier
	config     Config
	logger     *slog.Logger
}

// NewRouter creates a router. classifier may be nil.
func NewRouter(classifier *classify.Classifier, config Config, logger *slog.Logger) *Router {
	if config.ConfidenceThreshold <= 0 {
		config.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if config.MultiIntentThreshold <= 0 {
		config.MultiIntentThreshold = DefaultMultiIntentThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{classifier: classifier, config: config, logger: logger}
}

// HasClassifier reports whether a model is loaded.
func (r *Router) HasClassifier() bool {
	return r.classifier != nil
}

// DetectDepartments returns the departments with at least one keyword
// match, in routing order. An empty result means no keyword evidence.
func (r *Router) DetectDepartments(text string) []string {
	matches := matchKeywords(text)
	depts := make([]string, 0, len(matches))
	for _, dept := range routingOrder {
		if len(matches[dept]) > 0 {
			depts = append(depts, dept)
		}
	}
	return depts
}

// Route applies the routing rules in order: classify, match keywords,
// confirm or override, then force progress for task-status language
// and greetings.
func (r *Router) Route(query string) *Decision {
	language := lang.Detect(query)

	searchQuery := query
	if language == lang.Arabic {
		searchQuery = lang.TranslateQuery(query)
	}

	d := &Decision{
		PredictedDepartment: store.DeptGeneral,
		Language:            language,
		SearchQuery:         searchQuery,
	}

	var prediction *classify.Prediction
	if r.classifier != nil {
		prediction = r.classifier.Predict(searchQuery)
		d.PredictedDepartment = prediction.Department
		d.PredictionConfidence = prediction.Confidence
	}

	// Keyword evidence from the original text plus, for Arabic, the
	// translated form so English keyword rules still apply.
	matchText := query
	if searchQuery != query {
		matchText = query + " " + searchQuery
	}
	d.KeywordMatches = matchKeywords(matchText)

	d.FinalDepartment = d.PredictedDepartment

	if len(d.KeywordMatches[d.PredictedDepartment]) == 0 {
		if best, count := r.bestKeywordDepartment(d.KeywordMatches); count > 0 &&
			d.PredictionConfidence < r.config.ConfidenceThreshold {
			d.FinalDepartment = best
			d.WasOverridden = true
			d.OverrideReason = fmt.Sprintf("Low ML confidence (%.2f), keyword match for %s",
				d.PredictionConfidence, best)
		}
	}

	if len(d.KeywordMatches[DeptProgress]) > 0 && hasStrongProgressIntent(query) {
		if d.FinalDepartment != DeptProgress {
			d.WasOverridden = true
			d.OverrideReason = "Strong progress/task keywords detected"
		}
		d.FinalDepartment = DeptProgress
	}

	if isGreeting(query) {
		if d.FinalDepartment != DeptProgress {
			d.WasOverridden = true
			d.OverrideReason = "Greeting or general query detected"
		}
		d.FinalDepartment = DeptProgress
	}

	d.Departments = r.multiIntent(d, prediction)
	d.IsMultiIntent = len(d.Departments) > 1

	r.logger.Debug("route_decision",
		slog.String("predicted", d.PredictedDepartment),
		slog.Float64("confidence", d.PredictionConfidence),
		slog.String("final", d.FinalDepartment),
		slog.Bool("overridden", d.WasOverridden),
		slog.String("language", string(d.Language)))

	return d
}

// bestKeywordDepartment returns the department with the most keyword
// matches, ties broken by routing order. Progress is excluded: it only
// wins through the strong-intent rule.
func (r *Router) bestKeywordDepartment(matches map[string][]string) (string, int) {
	best, bestCount := "", 0
	for _, dept := range routingOrder {
		if dept == DeptProgress {
			continue
		}
		if count := len(matches[dept]); count > bestCount {
			best, bestCount = dept, count
		}
	}
	return best, bestCount
}

// multiIntent unions keyword-matched departments with classifier
// secondary intents above the threshold, ordered by routing order with
// the final department first.
func (r *Router) multiIntent(d *Decision, prediction *classify.Prediction) []string {
	seen := map[string]bool{d.FinalDepartment: true}
	depts := []string{d.FinalDepartment}

	for _, dept := range routingOrder {
		if seen[dept] || dept == DeptProgress {
			continue
		}
		keyword := len(d.KeywordMatches[dept]) > 0
		secondary := prediction != nil &&
			prediction.Probabilities[dept] >= r.config.MultiIntentThreshold
		if keyword || secondary {
			seen[dept] = true
			depts = append(depts, dept)
		}
	}
	return depts
}

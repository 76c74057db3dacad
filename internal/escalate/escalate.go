// Package escalate decides when a response needs a human hand-off and
// builds the contact directive shown to the user. It also provides the
// PII detector used to screen queries before they are persisted.
package escalate

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Reason identifies why an escalation fired.
type Reason string

const (
	ReasonLowConfidence Reason = "low_confidence"
	ReasonNoDocuments   Reason = "no_documents_found"
	ReasonSensitive     Reason = "sensitive_topic"
	ReasonUserRequest   Reason = "user_request"
	ReasonRepeatedQuery Reason = "repeated_query"
	ReasonPIIDetected   Reason = "pii_detected"
)

// Priority orders escalations for human triage.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

// String returns the wire label for a priority.
func (p Priority) String() string {
	switch p {
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "low"
	}
}

// Contact is one department's human contact point.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Hours string `json:"hours"`
}

// departmentContacts is the static contact table.
var departmentContacts = map[string]Contact{
	"HR": {
		Email: "hr@company.com",
		Phone: "ext. 2000",
		Name:  "HR Support Team",
		Hours: "Monday-Friday, 9 AM - 5 PM",
	},
	"IT": {
		Email: "it-helpdesk@company.com",
		Phone: "ext. 3000",
		Name:  "IT Help Desk",
		Hours: "24/7 for emergencies",
	},
	"Security": {
		Email: "security@company.com",
		Phone: "ext. 4000",
		Name:  "Security Team",
		Hours: "24/7",
	},
	"Finance": {
		Email: "finance@company.com",
		Phone: "ext. 5000",
		Name:  "Finance Department",
		Hours: "Monday-Friday, 9 AM - 5 PM",
	},
	"General": {
		Email: "support@company.com",
		Phone: "ext. 1000",
		Name:  "General Support",
		Hours: "Monday-Friday, 8 AM - 6 PM",
	},
}

// ContactFor returns the contact for a department, falling back to
// General.
func ContactFor(department string) Contact {
	if c, ok := departmentContacts[department]; ok {
		return c
	}
	return departmentContacts["General"]
}

// sensitiveTopics flag queries that need human review regardless of
// answer quality.
var sensitiveTopics = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(harass|discriminat|bully|hostile|threat|legal|lawsuit|terminat|fire|resign)`),
	regexp.MustCompile(`(?i)\b(mental health|depress|anxiet|stress|burnout|suicide)`),
	regexp.MustCompile(`(?i)\b(complaint|grievance|whistle|report\s+misconduct)`),
	regexp.MustCompile(`(?i)\b(confidential|proprietary|trade\s+secret|classified)`),
}

// Defaults.
const (
	DefaultConfidenceThreshold = 0.5
	DefaultRepeatThreshold     = 2
	repeatSimilarity           = 0.8
	historyPerUser             = 10
)

// Decision is the outcome of one escalation evaluation.
type Decision struct {
	ShouldEscalate bool
	Reason         Reason
	Priority       Priority
	Confidence     float64
	Message        string
	Contact        *Contact
	Alternatives   []string
}

// Input carries the signals Evaluate weighs.
type Input struct {
	Query         string
	UserID        int64
	Department    string
	Confidence    float64
	DocsFound     int
	PIIDetected   bool
	UserRequested bool
}

// Service evaluates escalation rules. Safe for concurrent use.
type Service struct {
	confidenceThreshold float64
	repeatThreshold     int

	mu      sync.Mutex
	history map[int64][]string
}

// Config tunes the escalation triggers. Zero values fall back to the
// defaults.
type Config struct {
	ConfidenceThreshold float64
	RepeatThreshold     int
}

// NewService creates an escalation service with default thresholds.
func NewService() *Service {
	return NewServiceWithConfig(Config{})
}

// NewServiceWithConfig creates an escalation service with the given
// thresholds.
func NewServiceWithConfig(cfg Config) *Service {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.RepeatThreshold <= 0 {
		cfg.RepeatThreshold = DefaultRepeatThreshold
	}
	return &Service{
		confidenceThreshold: cfg.ConfidenceThreshold,
		repeatThreshold:     cfg.RepeatThreshold,
		history:             make(map[int64][]string),
	}
}

// Evaluate applies every escalation rule to one answered query. The
// first matching reason becomes the directive's message; priority is
// the maximum across matches. The query is recorded for repeat
// detection whether or not it escalates.
func (s *Service) Evaluate(in Input) Decision {
	var reasons []Reason
	priority := PriorityLow

	if in.UserRequested {
		reasons = append(reasons, ReasonUserRequest)
		priority = maxPriority(priority, PriorityMedium)
	}
	if in.Confidence < s.confidenceThreshold {
		reasons = append(reasons, ReasonLowConfidence)
		if in.Confidence < 0.3 {
			priority = maxPriority(priority, PriorityMedium)
		}
	}
	if in.DocsFound == 0 {
		reasons = append(reasons, ReasonNoDocuments)
		priority = maxPriority(priority, PriorityMedium)
	}
	for _, pattern := range sensitiveTopics {
		if pattern.MatchString(in.Query) {
			reasons = append(reasons, ReasonSensitive)
			priority = maxPriority(priority, PriorityHigh)
			break
		}
	}
	if in.PIIDetected {
		reasons = append(reasons, ReasonPIIDetected)
		priority = maxPriority(priority, PriorityMedium)
	}
	if s.isRepeatedQuery(in.UserID, in.Query) {
		reasons = append(reasons, ReasonRepeatedQuery)
		priority = maxPriority(priority, PriorityMedium)
	}

	s.trackQuery(in.UserID, in.Query)

	if len(reasons) == 0 {
		return Decision{Confidence: in.Confidence, Priority: priority}
	}

	reason := reasons[0]
	contact := ContactFor(in.Department)
	return Decision{
		ShouldEscalate: true,
		Reason:         reason,
		Priority:       priority,
		Confidence:     in.Confidence,
		Message:        escalationMessage(reason, contact, in.Confidence),
		Contact:        &contact,
		Alternatives:   alternativeActions(reason),
	}
}

// isRepeatedQuery reports whether the user asked near-duplicates of
// this query at least repeatThreshold times recently. Similarity is
// the Jaccard index over lowercased word sets.
func (s *Service) isRepeatedQuery(userID int64, query string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := strings.ToLower(strings.TrimSpace(query))
	similar := 0
	for _, prev := range s.history[userID] {
		if jaccardSimilarity(prev, normalized) > repeatSimilarity {
			similar++
		}
	}
	return similar >= s.repeatThreshold
}

func (s *Service) trackQuery(userID int64, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.history[userID], strings.ToLower(strings.TrimSpace(query)))
	if len(h) > historyPerUser {
		h = h[len(h)-historyPerUser:]
	}
	s.history[userID] = h
}

// jaccardSimilarity compares word sets.
func jaccardSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

func escalationMessage(reason Reason, contact Contact, confidence float64) string {
	switch reason {
	case ReasonLowConfidence:
		return fmt.Sprintf(
			"I'm not fully confident in my answer (confidence: %.0f%%). For accurate information, please contact %s at %s or %s.",
			confidence*100, contact.Name, contact.Email, contact.Phone)
	case ReasonNoDocuments:
		return fmt.Sprintf(
			"I couldn't find relevant documentation for your question. Please reach out to %s at %s for assistance.",
			contact.Name, contact.Email)
	case ReasonSensitive:
		return fmt.Sprintf(
			"This appears to be a sensitive matter that requires human attention. Please contact %s directly at %s or %s. They are available %s.",
			contact.Name, contact.Email, contact.Phone, contact.Hours)
	case ReasonUserRequest:
		return fmt.Sprintf(
			"I'll connect you with a human representative. Please contact %s at %s or %s.",
			contact.Name, contact.Email, contact.Phone)
	case ReasonRepeatedQuery:
		return fmt.Sprintf(
			"I notice you've asked similar questions before. For personalized help, please contact %s at %s.",
			contact.Name, contact.Email)
	case ReasonPIIDetected:
		return fmt.Sprintf(
			"Your message may contain sensitive personal information. For security, please contact %s directly at %s.",
			contact.Name, contact.Phone)
	default:
		return fmt.Sprintf("For further assistance, please contact %s at %s.",
			contact.Name, contact.Email)
	}
}

func alternativeActions(reason Reason) []string {
	switch reason {
	case ReasonLowConfidence:
		return []string{
			"Try rephrasing your question with more specific details",
			"Check the company intranet for related documentation",
			"Ask a colleague who might know the answer",
		}
	case ReasonNoDocuments:
		return []string{
			"This might be a new topic not yet in our knowledge base",
			"Try searching with different keywords",
			"Check if there's a relevant FAQ section",
		}
	case ReasonRepeatedQuery:
		return []string{
			"Review previous answers you received",
			"Provide additional context about what's not clear",
		}
	default:
		return nil
	}
}

func maxPriority(a, b Priority) Priority {
	if b > a {
		return b
	}
	return a
}

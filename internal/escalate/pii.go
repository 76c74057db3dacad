package escalate

import (
	"regexp"
	"sort"
)

// PIIType labels a detected PII category.
type PIIType string

const (
	PIIEmail       PIIType = "email"
	PIIPhone       PIIType = "phone"
	PIISSN         PIIType = "ssn"
	PIICreditCard  PIIType = "credit_card"
	PIIPassport    PIIType = "passport"
	PIIIPAddress   PIIType = "ip_address"
	PIIDateOfBirth PIIType = "date_of_birth"
	PIIAddress     PIIType = "address"
	PIIName        PIIType = "name"
)

// PIIMatch is one detected span.
type PIIMatch struct {
	Type     PIIType
	Original string
	Start    int
	End      int
	Redacted string
}

// PIIResult reports detection over one text.
type PIIResult struct {
	Original   string
	Redacted   string
	Matches    []PIIMatch
	Found      bool
	TypesFound []PIIType
}

type piiPattern struct {
	piiType     PIIType
	pattern     *regexp.Regexp
	replacement string
}

// Detection patterns. Name matching keys off honorifics to keep false
// positives down; bare capitalized words are not treated as names.
var piiPatterns = []piiPattern{
	{PIIEmail, regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL_REDACTED]"},
	{PIISSN, regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`), "[SSN_REDACTED]"},
	{PIICreditCard, regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`), "[CC_REDACTED]"},
	{PIIPhone, regexp.MustCompile(`\b(?:\+1[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}\b`), "[PHONE_REDACTED]"},
	{PIIIPAddress, regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[IP_REDACTED]"},
	{PIIDateOfBirth, regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])[/\-](?:0?[1-9]|[12]\d|3[01])[/\-](?:19|20)\d{2}\b`), "[DOB_REDACTED]"},
	{PIIPassport, regexp.MustCompile(`\b[A-Z]{1,2}\d{6,9}\b`), "[PASSPORT_REDACTED]"},
	{PIIName, regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr)\.?\s+[A-Z][a-z]+\s+[A-Z][a-z]+\b`), "[NAME_REDACTED]"},
	{PIIAddress, regexp.MustCompile(`(?i)\b\d{1,5}\s+[A-Za-z]+\s+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr|Lane|Ln|Way|Court|Ct)\b\.?`), "[ADDRESS_REDACTED]"},
	{PIIAddress, regexp.MustCompile(`\b[A-Z][a-z]+,?\s+[A-Z]{2}\s+\d{5}(?:-\d{4})?\b`), "[ADDRESS_REDACTED]"},
}

// DetectPII scans text for personally identifiable information and
// returns the matches together with a redacted copy.
func DetectPII(text string) PIIResult {
	if text == "" {
		return PIIResult{}
	}

	var matches []PIIMatch
	for _, p := range piiPatterns {
		for _, loc := range p.pattern.FindAllStringIndex(text, -1) {
			matches = append(matches, PIIMatch{
				Type:     p.piiType,
				Original: text[loc[0]:loc[1]],
				Start:    loc[0],
				End:      loc[1],
				Redacted: p.replacement,
			})
		}
	}

	// Redact back-to-front so earlier offsets stay valid; overlapping
	// matches keep the one found first (pattern order is specificity)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Start > matches[j].Start
	})

	redacted := text
	lastStart := len(text) + 1
	applied := matches[:0:0]
	for _, m := range matches {
		if m.End > lastStart {
			continue
		}
		redacted = redacted[:m.Start] + m.Redacted + redacted[m.End:]
		lastStart = m.Start
		applied = append(applied, m)
	}

	seen := make(map[PIIType]bool)
	var types []PIIType
	for _, m := range applied {
		if !seen[m.Type] {
			seen[m.Type] = true
			types = append(types, m.Type)
		}
	}

	return PIIResult{
		Original:   text,
		Redacted:   redacted,
		Matches:    applied,
		Found:      len(applied) > 0,
		TypesFound: types,
	}
}

// RedactPII returns text with detected PII replaced by type markers.
func RedactPII(text string) string {
	return DetectPII(text).Redacted
}

// ContainsPII reports whether text carries any detectable PII.
func ContainsPII(text string) bool {
	return DetectPII(text).Found
}

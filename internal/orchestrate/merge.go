package orchestrate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Aman-CERP/onboardqa/internal/agent"
)

// leadingGreeting matches a greeting sentence at the start of a
// handler response. Merged sections after the first drop it so the
// combined answer reads as one document.
var leadingGreeting = regexp.MustCompile(`(?i)^(hi|hello|hey|greetings|welcome)[^.!\n]*[.!]?\s*`)

// sectionRule separates merged sections.
const sectionRule = "\n\n---\n\n"

// mergeResponses combines fan-out responses in department order. A
// single response passes through unchanged; multiple responses become
// titled sections, with leading greetings stripped from all but the
// first. Sources and task updates concatenate in the same order, the
// merged score is the best section's score, and follow-up suggestions
// come from the primary department.
func mergeResponses(departments []string, responses map[string]*agent.Response) *agent.Response {
	var ordered []*agent.Response
	var present []string
	for _, dept := range departments {
		if r, ok := responses[dept]; ok {
			ordered = append(ordered, r)
			present = append(present, dept)
		}
	}

	if len(ordered) == 0 {
		return &agent.Response{}
	}
	if len(ordered) == 1 {
		return ordered[0]
	}

	merged := &agent.Response{Followups: ordered[0].Followups}
	for _, r := range ordered {
		merged.Sources = append(merged.Sources, r.Sources...)
		merged.TaskUpdates = append(merged.TaskUpdates, r.TaskUpdates...)
		if r.ConfidenceScore > merged.ConfidenceScore {
			merged.ConfidenceScore = r.ConfidenceScore
		}
	}

	sections := make([]string, 0, len(ordered))
	for i, r := range ordered {
		content := r.Content
		if i > 0 {
			content = stripLeadingGreeting(content)
		}
		sections = append(sections,
			fmt.Sprintf("**%s Information:**\n%s", present[i], content))
	}
	merged.Content = strings.Join(sections, sectionRule)
	return merged
}

func stripLeadingGreeting(content string) string {
	return strings.TrimSpace(leadingGreeting.ReplaceAllString(content, ""))
}

package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/onboardqa/internal/orchestrate"
	"github.com/Aman-CERP/onboardqa/internal/search"
)

// FormatAnswer formats an orchestrated answer as markdown.
func FormatAnswer(resp *orchestrate.Response) string {
	if resp == nil {
		return "No answer available."
	}

	var sb strings.Builder
	sb.WriteString(resp.Content)
	sb.WriteString("\n")

	if len(resp.Sources) > 0 {
		sb.WriteString("\n**Sources:**\n")
		for _, src := range resp.Sources {
			if src.Section != "" {
				fmt.Fprintf(&sb, "- %s § %s\n", src.Document, src.Section)
			} else {
				fmt.Fprintf(&sb, "- %s\n", src.Document)
			}
		}
	}

	fmt.Fprintf(&sb, "\n**Confidence:** %s (%.0f%%)\n",
		resp.ConfidenceLevel, resp.ConfidenceScore*100)

	fmt.Fprintf(&sb, "**Department:** %s", resp.Routing.FinalDepartment)
	if resp.Routing.WasOverridden {
		fmt.Fprintf(&sb, " (predicted %s, %s)",
			resp.Routing.PredictedDepartment, resp.Routing.OverrideReason)
	}
	sb.WriteString("\n")

	if resp.Routing.IsCached {
		fmt.Fprintf(&sb, "**Cache:** %s hit\n", resp.Routing.CacheType)
	}

	if len(resp.Followups) > 0 {
		sb.WriteString("\n**You could also ask:**\n")
		for _, q := range resp.Followups {
			fmt.Fprintf(&sb, "- %s\n", q)
		}
	}

	if esc := resp.Escalation; esc != nil && esc.ShouldEscalate {
		sb.WriteString("\n**Escalated to a human.**\n")
		if esc.Message != "" {
			fmt.Fprintf(&sb, "%s\n", esc.Message)
		}
		if esc.Contact != nil {
			fmt.Fprintf(&sb, "Contact: %s (%s, %s)\n",
				esc.Contact.Name, esc.Contact.Phone, esc.Contact.Email)
		}
	}

	return sb.String()
}

// FormatSearchResults formats retrieval results as markdown.
func FormatSearchResults(query string, results []*search.SearchResult) string {
	validResults := filterValidResults(results)

	if len(validResults) == 0 {
		return fmt.Sprintf("No policy text found for \"%s\"", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Policy Results for \"%s\"\n\n", query))
	sb.WriteString(fmt.Sprintf("Found %d result", len(validResults)))
	if len(validResults) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range validResults {
		formatResult(&sb, i+1, r)
	}

	return sb.String()
}

// filterValidResults removes results with nil chunks.
func filterValidResults(results []*search.SearchResult) []*search.SearchResult {
	valid := make([]*search.SearchResult, 0, len(results))
	for _, r := range results {
		if r != nil && r.Chunk != nil {
			valid = append(valid, r)
		}
	}
	return valid
}

// formatResult formats a single retrieval result.
func formatResult(sb *strings.Builder, num int, r *search.SearchResult) {
	if r.Chunk == nil {
		return
	}

	header := r.Chunk.FilePath
	if r.Chunk.Section != "" {
		header += " § " + r.Chunk.Section
	}
	fmt.Fprintf(sb, "### %d. %s (score: %.2f, %s)\n\n",
		num, header, r.Score, r.Chunk.Department)

	if reason := matchReason(r); reason != "" {
		fmt.Fprintf(sb, "_%s_\n\n", reason)
	}

	sb.WriteString(r.Chunk.Content)
	sb.WriteString("\n\n---\n\n")
}

// matchReason creates a human-readable explanation of why a result matched.
func matchReason(r *search.SearchResult) string {
	var parts []string

	if len(r.MatchedTerms) > 0 {
		terms := r.MatchedTerms
		if len(terms) > 5 {
			terms = terms[:5]
		}
		parts = append(parts, fmt.Sprintf("matched: %s", strings.Join(terms, ", ")))
	}

	if r.InBothLists {
		parts = append(parts, "found by both keyword and semantic retrieval")
	}

	return strings.Join(parts, "; ")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// ToSearchResultOutput converts a retrieval result to the tool output shape.
func ToSearchResultOutput(r *search.SearchResult) SearchResultOutput {
	if r == nil || r.Chunk == nil {
		return SearchResultOutput{}
	}

	return SearchResultOutput{
		Document:     r.Chunk.FilePath,
		Section:      r.Chunk.Section,
		Department:   r.Chunk.Department,
		Content:      r.Chunk.Content,
		Score:        r.Score,
		MatchedTerms: r.MatchedTerms,
		InBothLists:  r.InBothLists,
	}
}

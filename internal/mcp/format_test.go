package mcp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Aman-CERP/onboardqa/internal/agent"
	"github.com/Aman-CERP/onboardqa/internal/escalate"
	"github.com/Aman-CERP/onboardqa/internal/orchestrate"
	"github.com/Aman-CERP/onboardqa/internal/search"
	"github.com/Aman-CERP/onboardqa/internal/store"
)

func sampleResult(id, file, section, dept, content string, score float64) *search.SearchResult {
	return &search.SearchResult{
		Chunk: &store.Chunk{
			ID:         id,
			FilePath:   file,
			Section:    section,
			Department: dept,
			Content:    content,
		},
		Score: score,
	}
}

func TestFormatAnswer_Basic(t *testing.T) {
	resp := &orchestrate.Response{
		Content: "You accrue 20 vacation days per year.",
		Sources: []agent.Source{
			{Document: "hr_leave.md", Section: "Vacation Accrual", Department: "HR"},
		},
		ConfidenceLevel: agent.ConfidenceHigh,
		ConfidenceScore: 0.85,
		Routing:         orchestrate.Routing{FinalDepartment: "HR", DetectedLanguage: "en"},
	}

	out := FormatAnswer(resp)
	assert.Contains(t, out, "You accrue 20 vacation days per year.")
	assert.Contains(t, out, "**Sources:**")
	assert.Contains(t, out, "hr_leave.md § Vacation Accrual")
	assert.Contains(t, out, "**Confidence:** high (85%)")
	assert.Contains(t, out, "**Department:** HR")
}

func TestFormatAnswer_Nil(t *testing.T) {
	assert.Equal(t, "No answer available.", FormatAnswer(nil))
}

func TestFormatAnswer_Override(t *testing.T) {
	resp := &orchestrate.Response{
		Content: "Expense reports are due by the 5th.",
		Routing: orchestrate.Routing{
			PredictedDepartment: "HR",
			FinalDepartment:     "Finance",
			WasOverridden:       true,
			OverrideReason:      "keyword match",
		},
	}

	out := FormatAnswer(resp)
	assert.Contains(t, out, "**Department:** Finance (predicted HR, keyword match)")
}

func TestFormatAnswer_CacheHit(t *testing.T) {
	resp := &orchestrate.Response{
		Content: "Cached answer.",
		Routing: orchestrate.Routing{FinalDepartment: "IT", IsCached: true, CacheType: "exact"},
	}

	out := FormatAnswer(resp)
	assert.Contains(t, out, "**Cache:** exact hit")
}

func TestFormatAnswer_Followups(t *testing.T) {
	resp := &orchestrate.Response{
		Content:   "Install the VPN client from the portal.",
		Routing:   orchestrate.Routing{FinalDepartment: "IT"},
		Followups: []string{"How do I reset my password?", "How do I request new software?"},
	}

	out := FormatAnswer(resp)
	assert.Contains(t, out, "**You could also ask:**")
	assert.Contains(t, out, "- How do I reset my password?")
	assert.Contains(t, out, "- How do I request new software?")
}

func TestFormatAnswer_Escalation(t *testing.T) {
	resp := &orchestrate.Response{
		Content: "I'm not sure about this.",
		Escalation: &escalate.Decision{
			ShouldEscalate: true,
			Message:        "Forwarded to HR.",
			Contact: &escalate.Contact{
				Name:  "HR Support Team",
				Phone: "ext. 2000",
				Email: "hr@company.com",
			},
		},
	}

	out := FormatAnswer(resp)
	assert.Contains(t, out, "**Escalated to a human.**")
	assert.Contains(t, out, "Forwarded to HR.")
	assert.Contains(t, out, "HR Support Team (ext. 2000, hr@company.com)")
}

func TestFormatAnswer_EscalationNotTriggered(t *testing.T) {
	resp := &orchestrate.Response{
		Content:    "All good.",
		Escalation: &escalate.Decision{ShouldEscalate: false},
	}

	out := FormatAnswer(resp)
	assert.NotContains(t, out, "Escalated")
}

func TestFormatSearchResults_Empty(t *testing.T) {
	out := FormatSearchResults("parking policy", nil)
	assert.Equal(t, `No policy text found for "parking policy"`, out)
}

func TestFormatSearchResults_SkipsNilChunks(t *testing.T) {
	results := []*search.SearchResult{
		nil,
		{Chunk: nil, Score: 0.9},
		sampleResult("hr_leave_0", "hr_leave.md", "Sick Leave", "HR", "Ten paid sick days.", 0.8),
	}

	out := FormatSearchResults("sick leave", results)
	assert.Contains(t, out, "Found 1 result\n")
	assert.Contains(t, out, "hr_leave.md § Sick Leave")
}

func TestFormatSearchResults_Multiple(t *testing.T) {
	results := []*search.SearchResult{
		sampleResult("it_vpn_0", "it_security.md", "VPN Setup", "IT", "Install the client.", 0.92),
		sampleResult("it_vpn_1", "it_security.md", "VPN Troubleshooting", "IT", "Restart the client.", 0.81),
	}

	out := FormatSearchResults("vpn", results)
	assert.Contains(t, out, "Found 2 results")
	assert.Contains(t, out, "### 1. it_security.md § VPN Setup (score: 0.92, IT)")
	assert.Contains(t, out, "### 2. it_security.md § VPN Troubleshooting (score: 0.81, IT)")
}

func TestFormatSearchResults_MatchReason(t *testing.T) {
	r := sampleResult("fin_0", "finance_expenses.md", "Reimbursement", "Finance", "Submit within 30 days.", 0.75)
	r.MatchedTerms = []string{"expense", "reimbursement"}
	r.InBothLists = true

	out := FormatSearchResults("expense reimbursement", []*search.SearchResult{r})
	assert.Contains(t, out, "matched: expense, reimbursement")
	assert.Contains(t, out, "found by both keyword and semantic retrieval")
}

func TestFormatSearchResults_TruncatesMatchedTerms(t *testing.T) {
	r := sampleResult("hr_0", "hr_policies.md", "", "HR", "Policy text.", 0.5)
	r.MatchedTerms = []string{"one", "two", "three", "four", "five", "six", "seven"}

	out := FormatSearchResults("query", []*search.SearchResult{r})
	assert.Contains(t, out, "matched: one, two, three, four, five")
	assert.NotContains(t, out, "six")
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		expected int
	}{
		{"zero uses default", 0, 5},
		{"negative uses default", -1, 5},
		{"within bounds", 10, 10},
		{"above max", 100, 20},
		{"at max", 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clampLimit(tt.limit, 5, 1, 20))
		})
	}
}

func TestToSearchResultOutput(t *testing.T) {
	r := sampleResult("sec_0", "security_mfa.md", "MFA Enrollment", "Security", "Enroll via the portal.", 0.88)
	r.MatchedTerms = []string{"mfa"}
	r.InBothLists = true

	out := ToSearchResultOutput(r)
	assert.Equal(t, "security_mfa.md", out.Document)
	assert.Equal(t, "MFA Enrollment", out.Section)
	assert.Equal(t, "Security", out.Department)
	assert.Equal(t, "Enroll via the portal.", out.Content)
	assert.InDelta(t, 0.88, out.Score, 0.001)
	assert.Equal(t, []string{"mfa"}, out.MatchedTerms)
	assert.True(t, out.InBothLists)
}

func TestToSearchResultOutput_Nil(t *testing.T) {
	assert.Equal(t, SearchResultOutput{}, ToSearchResultOutput(nil))
	assert.Equal(t, SearchResultOutput{}, ToSearchResultOutput(&search.SearchResult{}))
}

func TestFormatSearchResults_ContentIncluded(t *testing.T) {
	r := sampleResult("hr_1", "hr_benefits.md", "Health Insurance", "HR", "Coverage begins on day one.", 0.7)

	out := FormatSearchResults("health insurance", []*search.SearchResult{r})
	assert.True(t, strings.Contains(out, "Coverage begins on day one."))
}

package agent

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/onboardqa/internal/lang"
	"github.com/Aman-CERP/onboardqa/internal/llm"
	"github.com/Aman-CERP/onboardqa/internal/search"
)

// noInformationMessage is returned when retrieval finds nothing even
// after dropping the department filter.
const noInformationMessage = "I couldn't find any relevant information in our policy documents. Please contact the appropriate department for assistance."

// systemPromptTemplate is the shared specialist frame. The department
// focus and escalation contact slot in per handler.
var systemPromptTemplate = llm.NewTemplate(`You are a helpful {department} assistant for new employee onboarding.

Your role:
- Answer questions about {focus} using ONLY the provided policy documents.
- Be concise, friendly, and accurate.
- If the documents don't contain the answer, say so honestly instead of guessing.
- {contact}

Guidelines:
- Quote specific policy details (numbers, deadlines, amounts) exactly as written.
- Keep answers focused on the question asked.`)

// departmentPrompt holds the per-department prompt slots.
type departmentPrompt struct {
	focus   string
	contact string
}

var departmentPrompts = map[string]departmentPrompt{
	"HR": {
		focus:   "HR policies: leave, benefits, working hours, remote work, payroll basics, and the employee handbook",
		contact: "For anything the documents don't cover, direct the employee to contact HR at hr@company.com or extension 2000.",
	},
	"IT": {
		focus:   "IT topics: laptop and account setup, email, VPN, WiFi, passwords, software requests, and troubleshooting",
		contact: "For anything the documents don't cover, direct the employee to contact the IT helpdesk at it-support@company.com or extension 3000.",
	},
	"Security": {
		focus:   "security topics: security training, data classification, phishing, access badges, incident reporting, and compliance",
		contact: "For anything the documents don't cover, direct the employee to contact the security team at security@company.com or extension 4000.",
	},
	"Finance": {
		focus:   "finance topics: expense reports, reimbursements, corporate cards, travel booking, per diem, and payroll schedules",
		contact: "For anything the documents don't cover, direct the employee to contact finance at finance@company.com or extension 5000.",
	},
	"General": {
		focus:   "general onboarding questions across all company policies",
		contact: "For anything the documents don't cover, direct the employee to the onboarding coordinator at extension 1000.",
	},
}

// departmentFollowups are the suggested next questions attached to a
// successful specialist answer.
var departmentFollowups = map[string][]string{
	"HR": {
		"How many annual leave days do I get?",
		"How do I enroll in health benefits?",
		"What is the remote work policy?",
	},
	"IT": {
		"How do I set up the VPN?",
		"How do I reset my password?",
		"How do I request new software?",
	},
	"Security": {
		"How do I report a phishing email?",
		"What do I do if I lose my badge?",
		"When is security training due?",
	},
	"Finance": {
		"How do I submit an expense report?",
		"What is the per diem rate for travel?",
		"When does payroll run?",
	},
	"General": {
		"What should I do in my first week?",
		"Who do I contact for IT help?",
		"Where can I find the employee handbook?",
	},
}

// followupsFor returns the department's suggested questions. Unknown
// departments get the General suggestions.
func followupsFor(department string) []string {
	if qs, ok := departmentFollowups[department]; ok {
		return qs
	}
	return departmentFollowups["General"]
}

// systemPromptFor builds the specialist system prompt for a department.
// Unknown departments fall back to the General prompt.
func systemPromptFor(department string, language lang.Language) string {
	p, ok := departmentPrompts[department]
	if !ok {
		p = departmentPrompts["General"]
	}
	prompt := systemPromptTemplate.Render(map[string]string{
		"department": department,
		"focus":      p.focus,
		"contact":    p.contact,
	})
	if language == lang.Arabic {
		prompt += "\n- The user asked in Arabic. Answer in Arabic."
	}
	return prompt
}

// formatContext renders retrieved chunks as numbered context documents
// separated by horizontal rules.
func formatContext(results []*search.SearchResult) string {
	parts := make([]string, 0, len(results))
	for i, r := range results {
		header := fmt.Sprintf("[Document %d] Source: %s | Section: %s | Department: %s",
			i+1, r.Chunk.FilePath, r.Chunk.Section, r.Chunk.Department)
		parts = append(parts, header+"\n"+r.Chunk.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// buildUserPrompt assembles the generation prompt from history,
// context documents, and the question.
func buildUserPrompt(conversationContext, documents, question string) string {
	var b strings.Builder
	b.WriteString("CONVERSATION HISTORY:\n")
	b.WriteString(conversationContext)
	b.WriteString("\n\nCONTEXT DOCUMENTS:\n")
	b.WriteString(documents)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

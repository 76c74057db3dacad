package router

import (
	"regexp"
	"strings"

	"github.com/Aman-CERP/onboardqa/internal/store"
)

// DeptProgress is the pseudo-department for task and progress queries.
// It never appears in the corpus; it routes to the progress handler.
const DeptProgress = "Progress"

// routingOrder fixes the department order used for multi-intent lists
// and tie-breaking.
var routingOrder = []string{store.DeptHR, store.DeptIT, store.DeptSecurity, store.DeptFinance, DeptProgress}

// englishKeywords maps each department to terms matched with word
// boundaries against lowercased query text.
var englishKeywords = map[string][]string{
	store.DeptHR: {
		"benefits", "insurance", "401k", "pto", "vacation", "sick leave",
		"parental leave", "maternity", "paternity", "probation",
		"performance review", "working hours", "remote work", "dress code",
		"handbook", "hr policy",
	},
	store.DeptIT: {
		"laptop", "computer", "email", "slack", "vpn", "password", "mfa",
		"two-factor", "software", "install", "github", "jira", "account",
		"wifi", "help desk", "it support", "okta", "equipment", "monitor",
		"device", "keyboard", "mouse", "headset", "printer",
	},
	store.DeptSecurity: {
		"security training", "nda", "confidential", "data classification",
		"phishing", "incident", "badge", "access control", "compliance",
		"soc 2", "gdpr", "clean desk", "privileged access",
	},
	store.DeptFinance: {
		"payroll", "pay schedule", "expense", "reimbursement",
		"corporate card", "travel", "booking", "per diem", "w-4", "w-2",
		"direct deposit", "expensify", "concur", "purchase order",
	},
	DeptProgress: {
		"task", "tasks", "progress", "completed", "finished", "done",
		"checklist", "onboarding progress", "what's next", "overdue",
		"mark as done", "update status",
	},
}

// arabicKeywords maps departments to Arabic terms matched by substring,
// since word-boundary regexes do not apply to Arabic script.
var arabicKeywords = map[string][]string{
	store.DeptHR: {
		"إجازة", "اجازة", "تأمين", "موارد بشرية", "عمل عن بعد",
	},
	store.DeptIT: {
		"حاسوب", "لابتوب", "كلمة المرور", "بريد", "شبكة",
	},
	store.DeptSecurity: {
		"أمن", "امن", "سرية", "تصيد", "تدريب",
	},
	store.DeptFinance: {
		"راتب", "رواتب", "مصاريف", "نفقات", "سفر",
	},
	DeptProgress: {
		"مهمة", "مهام",
	},
}

// strongProgressKeywords force the progress handler when combined with
// any Progress keyword match.
var strongProgressKeywords = []string{
	"my task", "my progress", "completed", "finished", "mark",
}

// greetingPatterns detect greetings, thanks, and open-ended help
// requests, all of which route to the progress handler.
var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(hi|hello|hey|good morning|good afternoon)\b`),
	regexp.MustCompile(`^(thanks|thank you)`),
	regexp.MustCompile(`^(what should i do|where do i start|help me)`),
}

// compiledKeywords holds the per-department word-boundary regexes,
// built once at package init.
var compiledKeywords = compileKeywords()

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

func compileKeywords() map[string][]keywordPattern {
	compiled := make(map[string][]keywordPattern, len(englishKeywords))
	for dept, keywords := range englishKeywords {
		patterns := make([]keywordPattern, 0, len(keywords))
		for _, kw := range keywords {
			patterns = append(patterns, keywordPattern{
				keyword: kw,
				re:      regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`),
			})
		}
		compiled[dept] = patterns
	}
	return compiled
}

// matchKeywords returns matched keywords per department for the given
// text. English terms use word-boundary regexes on the lowercased
// text; Arabic terms use substring matching on the original.
func matchKeywords(text string) map[string][]string {
	lower := strings.ToLower(text)
	matches := make(map[string][]string)

	for _, dept := range routingOrder {
		for _, p := range compiledKeywords[dept] {
			if p.re.MatchString(lower) {
				matches[dept] = append(matches[dept], p.keyword)
			}
		}
		for _, kw := range arabicKeywords[dept] {
			if strings.Contains(text, kw) {
				matches[dept] = append(matches[dept], kw)
			}
		}
	}
	return matches
}

// isGreeting reports whether the query matches a greeting pattern.
func isGreeting(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, re := range greetingPatterns {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// hasStrongProgressIntent reports whether the query carries explicit
// task-status language.
func hasStrongProgressIntent(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range strongProgressKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

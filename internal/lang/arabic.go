package lang

import "strings"

// arabicTranslations maps Arabic policy terms to English search
// expansions. The corpus is English only, so Arabic queries are
// rewritten through this table before retrieval. Matching is by
// substring: Arabic morphology attaches articles and suffixes, so
// word-boundary matching misses inflected forms.
var arabicTranslations = []struct {
	term    string
	english string
}{
	{"إجازة", "leave vacation time off annual"},
	{"اجازة", "leave vacation time off annual"},
	{"راتب", "payroll salary pay schedule"},
	{"رواتب", "payroll salary pay schedule"},
	{"مصاريف", "expense reimbursement corporate card"},
	{"نفقات", "expense reimbursement"},
	{"سفر", "travel booking per diem"},
	{"تأمين", "insurance benefits health"},
	{"حاسوب", "laptop computer equipment"},
	{"لابتوب", "laptop computer equipment"},
	{"كلمة المرور", "password account reset"},
	{"بريد", "email account"},
	{"شبكة", "vpn wifi network"},
	{"أمن", "security training access badge"},
	{"امن", "security training access badge"},
	{"سرية", "confidential data classification nda"},
	{"تصيد", "phishing incident"},
	{"تدريب", "training onboarding"},
	{"مهمة", "task progress checklist"},
	{"مهام", "task progress checklist"},
	{"موارد بشرية", "hr policy handbook benefits"},
	{"عمل عن بعد", "remote work working hours"},
}

// TranslateQuery rewrites an Arabic query into an English keyword
// query using the fixed translation table. Every matched term
// contributes its expansion once, in table order. Queries with no
// matches are returned unchanged so retrieval still has a chance on
// any embedded Latin tokens.
func TranslateQuery(query string) string {
	var parts []string
	seen := make(map[string]bool)
	for _, t := range arabicTranslations {
		if strings.Contains(query, t.term) && !seen[t.english] {
			seen[t.english] = true
			parts = append(parts, t.english)
		}
	}
	if len(parts) == 0 {
		return query
	}
	return strings.Join(parts, " ")
}

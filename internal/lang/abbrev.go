package lang

import "strings"

// abbreviations maps common workplace shorthand to an expanded form
// that keeps the original token, so both the abbreviation and the full
// phrase match during retrieval.
var abbreviations = map[string]string{
	"pto":   "paid time off (PTO)",
	"vpn":   "virtual private network (VPN)",
	"mfa":   "multi-factor authentication (MFA)",
	"sso":   "single sign-on (SSO)",
	"nda":   "non-disclosure agreement (NDA)",
	"401k":  "401(k) retirement plan",
	"hsa":   "health savings account (HSA)",
	"fsa":   "flexible spending account (FSA)",
	"w-4":   "W-4 tax form",
	"w-2":   "W-2 tax form",
	"faq":   "frequently asked questions (FAQ)",
	"wfh":   "work from home (WFH)",
	"ooo":   "out of office (OOO)",
	"eap":   "employee assistance program (EAP)",
	"cobra": "COBRA health coverage",
}

// ExpandAbbreviations rewrites known abbreviations in a query to their
// expanded forms. Matching is per whole token, case-insensitive, with
// trailing punctuation preserved. Arabic text passes through unchanged.
func ExpandAbbreviations(query string) string {
	if Detect(query) == Arabic {
		return query
	}

	fields := strings.Fields(query)
	changed := false
	for i, field := range fields {
		token := strings.ToLower(strings.TrimRight(field, ".,;:!?"))
		expanded, ok := abbreviations[token]
		if !ok {
			continue
		}
		suffix := field[len(token):]
		fields[i] = expanded + suffix
		changed = true
	}

	if !changed {
		return query
	}
	return strings.Join(fields, " ")
}

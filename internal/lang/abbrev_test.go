package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandAbbreviations(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			"pto expanded",
			"how much pto do I get",
			"how much paid time off (PTO) do I get",
		},
		{
			"uppercase matched",
			"reset my VPN access",
			"reset my virtual private network (VPN) access",
		},
		{
			"trailing punctuation kept",
			"what is an nda?",
			"what is an non-disclosure agreement (NDA)?",
		},
		{
			"multiple abbreviations",
			"mfa for vpn",
			"multi-factor authentication (MFA) for virtual private network (VPN)",
		},
		{
			"no abbreviation unchanged",
			"where is the parking garage",
			"where is the parking garage",
		},
		{
			"substring not matched",
			"my laptop crashed",
			"my laptop crashed",
		},
		{
			"401k expanded",
			"how do I enroll in the 401k",
			"how do I enroll in the 401(k) retirement plan",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandAbbreviations(tt.query))
		})
	}
}

func TestExpandAbbreviationsArabicPassthrough(t *testing.T) {
	q := "كيف أعيد تعيين كلمة مرور vpn الخاصة بي"
	assert.Equal(t, q, ExpandAbbreviations(q))
}

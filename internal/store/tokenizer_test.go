package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	tokens := TokenizeText("Submit your W-4 and direct deposit form to Payroll.", 2)
	assert.Contains(t, tokens, "w-4")
	assert.Contains(t, tokens, "payroll")
	assert.Contains(t, tokens, "direct")
	assert.NotContains(t, tokens, "W-4") // lowercased
}

func TestTokenizeTextFiltersShortTokens(t *testing.T) {
	tokens := TokenizeText("I a am ok", 2)
	assert.NotContains(t, tokens, "i")
	assert.NotContains(t, tokens, "a")
	assert.Contains(t, tokens, "am")
	assert.Contains(t, tokens, "ok")
}

func TestTokenizeTextHyphenated(t *testing.T) {
	tokens := TokenizeText("Enable two-factor authentication", 2)
	assert.Contains(t, tokens, "two-factor")
}

func TestTokenizeTextEmpty(t *testing.T) {
	assert.Empty(t, TokenizeText("", 2))
	assert.Empty(t, TokenizeText("...!!!", 2))
}

func TestBuildStopWordMap(t *testing.T) {
	m := BuildStopWordMap([]string{"The", "and"})
	_, hasThe := m["the"]
	_, hasAnd := m["and"]
	assert.True(t, hasThe)
	assert.True(t, hasAnd)
}

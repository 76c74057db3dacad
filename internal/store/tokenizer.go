package store

import (
	"regexp"
	"strings"
)

// wordRegex matches letter/digit runs, keeping hyphenated policy terms
// like "w-4" and "two-factor" intact as single tokens.
var wordRegex = regexp.MustCompile(`[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*`)

// TokenizeText splits prose into lowercased word tokens, filtering
// tokens shorter than minLen. Hyphenated compounds survive as single
// tokens so "two-factor" does not degrade into stop-word fragments.
func TokenizeText(text string, minLen int) []string {
	if minLen <= 0 {
		minLen = 2
	}

	words := wordRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) >= minLen {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// BuildStopWordMap converts a stop word list to a lookup set.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

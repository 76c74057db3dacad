package llm

import (
	"context"
	"regexp"
	"strings"
)

// StaticGenerator is an offline fallback that answers extractively:
// it returns the highest-ranked context document verbatim instead of
// a generated completion. Quality is much lower than a real model,
// but answers remain grounded in the corpus.
type StaticGenerator struct{}

var _ Generator = (*StaticGenerator)(nil)

// documentHeaderPattern matches the per-chunk context headers the
// handlers emit.
var documentHeaderPattern = regexp.MustCompile(`(?m)^\[Document \d+\][^\n]*\n`)

// NewStaticGenerator creates the extractive fallback generator.
func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{}
}

// Generate returns the first context document found in the prompt, or
// a fixed no-information line when the prompt carries none.
func (g *StaticGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sections := documentHeaderPattern.Split(req.Prompt, -1)
	if len(sections) < 2 {
		return "I don't have information about that. Please contact the appropriate department for assistance.", nil
	}

	// First split element is the text before any document header
	first := sections[1]
	if cut := strings.Index(first, "\n---\n"); cut >= 0 {
		first = first[:cut]
	}
	// Drop any trailing question restatement appended after the context
	if cut := strings.Index(first, "\nQuestion:"); cut >= 0 {
		first = first[:cut]
	}

	answer := strings.TrimSpace(first)
	if answer == "" {
		return "I don't have information about that. Please contact the appropriate department for assistance.", nil
	}
	return "Based on the policy documents:\n\n" + answer, nil
}

// ModelName identifies the fallback provider.
func (g *StaticGenerator) ModelName() string {
	return "static"
}

// Available always succeeds.
func (g *StaticGenerator) Available(ctx context.Context) bool {
	return true
}

// Close is a no-op.
func (g *StaticGenerator) Close() error {
	return nil
}

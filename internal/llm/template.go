package llm

import "regexp"

// slotPattern matches a named {slot} placeholder.
var slotPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Template is an immutable prompt template with named {slot}
// placeholders.
type Template struct {
	text string
}

// NewTemplate creates a template from raw text.
func NewTemplate(text string) Template {
	return Template{text: text}
}

// Render substitutes every {slot} with its value from vars. Slots
// missing from vars render empty; text outside placeholders, including
// stray braces, passes through unchanged.
func (t Template) Render(vars map[string]string) string {
	return slotPattern.ReplaceAllStringFunc(t.text, func(m string) string {
		return vars[m[1:len(m)-1]]
	})
}

// String returns the raw template text.
func (t Template) String() string {
	return t.text
}

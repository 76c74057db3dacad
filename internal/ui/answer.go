package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/Aman-CERP/onboardqa/internal/agent"
	"github.com/Aman-CERP/onboardqa/internal/orchestrate"
)

// AnswerRenderer displays an answered question on the terminal.
type AnswerRenderer struct {
	out     io.Writer
	styles  Styles
	verbose bool
}

// NewAnswerRenderer creates an answer renderer. Verbose mode adds the
// routing and timing details.
func NewAnswerRenderer(out io.Writer, noColor, verbose bool) *AnswerRenderer {
	return &AnswerRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		verbose: verbose,
	}
}

// Render writes the response body, sources, confidence, suggested
// follow-up questions, and any escalation notice.
func (r *AnswerRenderer) Render(resp *orchestrate.Response) error {
	_, _ = fmt.Fprintln(r.out, resp.Content)
	_, _ = fmt.Fprintln(r.out)

	if len(resp.Sources) > 0 {
		_, _ = fmt.Fprintln(r.out, r.styles.Label.Render("Sources:"))
		for _, src := range resp.Sources {
			line := fmt.Sprintf("  - %s", src.Document)
			if src.Section != "" {
				line += fmt.Sprintf(" § %s", src.Section)
			}
			_, _ = fmt.Fprintln(r.out, r.styles.Dim.Render(line))
		}
		_, _ = fmt.Fprintln(r.out)
	}

	_, _ = fmt.Fprintf(r.out, "%s %s\n",
		r.styles.Label.Render("Confidence:"),
		r.renderConfidence(resp.ConfidenceLevel, resp.ConfidenceScore))

	if len(resp.Followups) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, r.styles.Label.Render("You could also ask:"))
		for _, q := range resp.Followups {
			_, _ = fmt.Fprintln(r.out, r.styles.Dim.Render("  - "+q))
		}
	}

	if resp.Escalation != nil && resp.Escalation.ShouldEscalate {
		r.renderEscalation(resp)
	}

	if r.verbose {
		r.renderRouting(resp)
	}

	return nil
}

func (r *AnswerRenderer) renderConfidence(level agent.ConfidenceLevel, score float64) string {
	text := fmt.Sprintf("%s (%.0f%%)", strings.ToUpper(string(level)), score*100)
	switch level {
	case agent.ConfidenceHigh:
		return r.styles.Success.Render(text)
	case agent.ConfidenceMedium:
		return r.styles.Warning.Render(text)
	default:
		return r.styles.Error.Render(text)
	}
}

func (r *AnswerRenderer) renderEscalation(resp *orchestrate.Response) {
	esc := resp.Escalation

	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out, r.styles.Warning.Render("Escalated to a human:"))
	_, _ = fmt.Fprintf(r.out, "  %s\n", esc.Message)

	if esc.Contact != nil {
		_, _ = fmt.Fprintf(r.out, "  Contact: %s (%s, %s)\n",
			esc.Contact.Name, esc.Contact.Phone, esc.Contact.Email)
	}
	for _, alt := range esc.Alternatives {
		_, _ = fmt.Fprintf(r.out, "  - %s\n", r.styles.Dim.Render(alt))
	}
}

func (r *AnswerRenderer) renderRouting(resp *orchestrate.Response) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out, r.styles.Label.Render("Routing:"))
	_, _ = fmt.Fprintf(r.out, "  Department: %s", resp.Routing.FinalDepartment)
	if resp.Routing.WasOverridden {
		_, _ = fmt.Fprintf(r.out, " (predicted %s, %s)",
			resp.Routing.PredictedDepartment, resp.Routing.OverrideReason)
	}
	_, _ = fmt.Fprintln(r.out)

	if resp.Routing.IsCached {
		_, _ = fmt.Fprintf(r.out, "  Cache:      %s hit\n", resp.Routing.CacheType)
	}
	if resp.Routing.IsMultiIntent {
		_, _ = fmt.Fprintf(r.out, "  Fan-out:    %s\n", strings.Join(resp.Routing.Departments, ", "))
	}
	_, _ = fmt.Fprintf(r.out, "  Language:   %s\n", resp.Routing.DetectedLanguage)
	_, _ = fmt.Fprintf(r.out, "  Agent:      %s\n", resp.Agent)
	_, _ = fmt.Fprintf(r.out, "  Time:       %dms\n", resp.TotalTimeMS)
}

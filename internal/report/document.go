package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/KaramelBytes/estimate-insight/internal/memory"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

// Output formats accepted by Render.
const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Document is the renderable view of an analysis or a stored insight.
type Document struct {
	Project         string           `json:"project_name"`
	InsightID       string           `json:"insight_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	Summary         variance.Summary `json:"summary"`
	Rows            []variance.Row   `json:"rows"`
	Narrative       string           `json:"narrative"`
	NarrativeSource string           `json:"narrative_source,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
}

// FromInsight builds a Document from a stored insight.
func FromInsight(in memory.Insight) Document {
	return Document{
		Project:         in.ProjectName,
		InsightID:       in.ID,
		CreatedAt:       in.CreatedAt,
		Summary:         in.Summary,
		Rows:            in.Rows,
		Narrative:       in.Narrative,
		NarrativeSource: in.Metadata["narrative_source"],
	}
}

// ParseFormat normalizes a --format value.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (use text, markdown or json)", s)
}

// Render writes doc to w in the given format.
func Render(w io.Writer, doc Document, format string) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatMarkdown:
		_, err := io.WriteString(w, markdown(doc))
		return err
	default:
		_, err := io.WriteString(w, text(doc))
		return err
	}
}

func text(doc Document) string {
	s := doc.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", doc.Project)
	if doc.InsightID != "" {
		fmt.Fprintf(&b, "Insight: %s\n", doc.InsightID)
	}
	fmt.Fprintf(&b, "Status:  %s\n\n", StatusLabel(s))
	fmt.Fprintf(&b, "Total estimated: %s\n", Money(s.TotalEstimated))
	fmt.Fprintf(&b, "Total actual:    %s\n", Money(s.TotalActual))
	fmt.Fprintf(&b, "Total variance:  %s (%s)\n", SignedMoney(s.TotalVariance), s.TotalVariancePct)
	fmt.Fprintf(&b, "Categories: %d (over %d, under %d)\n", s.Categories, s.OverBudget, s.UnderBudget)
	fmt.Fprintf(&b, "Biggest overrun:  %s\n", extremum(s.BiggestOverrun))
	fmt.Fprintf(&b, "Biggest underrun: %s\n\n", extremum(s.BiggestUnderrun))
	b.WriteString(LineItems(doc.Rows))
	if doc.Narrative != "" {
		b.WriteString("\nNarrative")
		if doc.NarrativeSource != "" {
			fmt.Fprintf(&b, " (%s)", doc.NarrativeSource)
		}
		b.WriteString(":\n\n")
		b.WriteString(strings.TrimSpace(doc.Narrative))
		b.WriteString("\n")
	}
	return b.String()
}

func markdown(doc Document) string {
	s := doc.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Project)
	fmt.Fprintf(&b, "**Status:** %s\n\n", StatusLabel(s))
	b.WriteString("| Metric | Value |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Total estimated | %s |\n", Money(s.TotalEstimated))
	fmt.Fprintf(&b, "| Total actual | %s |\n", Money(s.TotalActual))
	fmt.Fprintf(&b, "| Total variance | %s (%s) |\n", SignedMoney(s.TotalVariance), s.TotalVariancePct)
	fmt.Fprintf(&b, "| Over budget categories | %d |\n", s.OverBudget)
	fmt.Fprintf(&b, "| Under budget categories | %d |\n", s.UnderBudget)
	fmt.Fprintf(&b, "| Biggest overrun | %s |\n", mdEscape(extremum(s.BiggestOverrun)))
	fmt.Fprintf(&b, "| Biggest underrun | %s |\n\n", mdEscape(extremum(s.BiggestUnderrun)))

	b.WriteString("## Variance by category\n\n")
	b.WriteString("| Category | Estimated | Actual | Variance | Variance % |\n|---|---:|---:|---:|---:|\n")
	for _, r := range doc.Rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			mdEscape(r.Category), Money(r.Estimated), Money(r.Actual), SignedMoney(r.Variance), r.VariancePct)
	}
	if doc.Narrative != "" {
		b.WriteString("\n## Narrative\n\n")
		b.WriteString(strings.TrimSpace(doc.Narrative))
		b.WriteString("\n")
	}
	return b.String()
}

func mdEscape(s string) string { return strings.ReplaceAll(s, "|", `\|`) }

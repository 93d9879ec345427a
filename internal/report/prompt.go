package report

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/estimate-insight/internal/memory"
	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

const (
	// MaxPriorProjects caps the historical context placed in the prompt.
	MaxPriorProjects = 3
	// SnippetLen is the number of narrative characters quoted per prior project.
	SnippetLen = 300
)

// PromptInput is everything the narrative prompt is built from.
type PromptInput struct {
	Project string
	Rows    []variance.Row
	Summary variance.Summary
	Prior   []memory.Insight
}

const systemPrompt = "You are a senior financial analyst preparing an executive summary for a construction project cost analysis."

// BuildPrompt renders the user prompt for the narrative.
func BuildPrompt(in PromptInput) string {
	s := in.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "**PROJECT**: %s\n\n", in.Project)

	b.WriteString("**FINANCIAL SUMMARY**:\n")
	fmt.Fprintf(&b, "- Total Estimated Budget: %s\n", Money(s.TotalEstimated))
	fmt.Fprintf(&b, "- Total Actual Spend: %s\n", Money(s.TotalActual))
	fmt.Fprintf(&b, "- Net Variance: %s (%s)\n", SignedMoney(s.TotalVariance), s.TotalVariancePct)
	fmt.Fprintf(&b, "- Categories Over Budget: %d\n", s.OverBudget)
	fmt.Fprintf(&b, "- Categories Under Budget: %d\n\n", s.UnderBudget)

	b.WriteString("**KEY VARIANCES**:\n")
	fmt.Fprintf(&b, "- Largest Overrun: %s\n", extremum(s.BiggestOverrun))
	fmt.Fprintf(&b, "- Largest Underrun: %s\n\n", extremum(s.BiggestUnderrun))

	b.WriteString("**DETAILED LINE ITEMS**:\n")
	b.WriteString(LineItems(in.Rows))
	b.WriteString(historicalContext(in.Prior))

	b.WriteString("\n---\n\n")
	b.WriteString("**TASK**: Write a professional executive summary (300-500 words) analyzing this budget performance. ")
	b.WriteString("Format it as a business report with clear paragraphs.\n\n")
	b.WriteString("**REQUIRED SECTIONS** (use clear paragraph breaks):\n\n")
	b.WriteString("**Paragraph 1 - Executive Overview:**\n")
	b.WriteString("State whether the project came in over or under budget, by how much, and the immediate financial impact.\n\n")
	b.WriteString("**Paragraph 2 - Cost Driver Analysis:**\n")
	b.WriteString("Explain the 2-3 most significant variances, naming the line items that drove them and why they may have differed from estimates.\n\n")
	b.WriteString("**Paragraph 3 - Pattern Recognition & Root Causes:**\n")
	if len(in.Prior) > 0 {
		b.WriteString("Based on similar past projects, identify any recurring patterns or themes. ")
	}
	b.WriteString("Analyze likely root causes such as scope changes, market conditions, estimation accuracy or execution challenges.\n\n")
	b.WriteString("**Paragraph 4 - Actionable Recommendations:**\n")
	b.WriteString("Give 3-4 specific recommendations for cost control on future projects, tied to the variances observed.\n\n")
	b.WriteString("**STYLE GUIDELINES**:\n")
	b.WriteString("- Full sentences and well-formed paragraphs, not bullet points\n")
	b.WriteString("- Professional business language suitable for executives\n")
	b.WriteString("- Focus on insights and causes rather than repeating numbers\n")
	b.WriteString("- Use specific dollar amounts when discussing significant variances\n\n")
	b.WriteString("Write your analysis now:\n")
	return b.String()
}

func historicalContext(prior []memory.Insight) string {
	if len(prior) == 0 {
		return ""
	}
	if len(prior) > MaxPriorProjects {
		prior = prior[:MaxPriorProjects]
	}
	var b strings.Builder
	b.WriteString("\n**Historical Context - Similar Past Projects**:\n")
	for i, p := range prior {
		name := p.ProjectName
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "\n%d. **%s**: %s variance\n", i+1, name, p.Summary.TotalVariancePct)
		if n := strings.TrimSpace(p.Narrative); n != "" {
			fmt.Fprintf(&b, "   Insight: %s\n", Snippet(n, SnippetLen))
		}
	}
	b.WriteString("\n**Pattern Detection**: Look for recurring themes across these projects.\n")
	return b.String()
}

// Snippet truncates s to max runes, appending "..." when cut.
func Snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// LineItems renders rows as an aligned plain-text table.
func LineItems(rows []variance.Row) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Category\tEstimated\tActual\tVariance\tVariance %\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			r.Category, Money(r.Estimated), Money(r.Actual), SignedMoney(r.Variance), r.VariancePct)
	}
	_ = tw.Flush()
	return b.String()
}

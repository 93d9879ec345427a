package report

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

// QuickSummary is the deterministic summary used with --quick and whenever
// the narrative provider fails.
func QuickSummary(s variance.Summary) string {
	var b strings.Builder
	b.WriteString("Project Budget Analysis\n")
	b.WriteString("========================\n\n")
	fmt.Fprintf(&b, "Status: %s\n\n", StatusLabel(s))
	fmt.Fprintf(&b, "Total Estimated: %s\n", Money(s.TotalEstimated))
	fmt.Fprintf(&b, "Total Actual: %s\n", Money(s.TotalActual))
	fmt.Fprintf(&b, "Variance: %s (%s)\n\n", SignedMoney(s.TotalVariance), s.TotalVariancePct)
	fmt.Fprintf(&b, "Over Budget Categories: %d\n", s.OverBudget)
	fmt.Fprintf(&b, "Under Budget Categories: %d\n\n", s.UnderBudget)
	fmt.Fprintf(&b, "Biggest Overrun: %s\n", extremum(s.BiggestOverrun))
	fmt.Fprintf(&b, "Biggest Underrun: %s", extremum(s.BiggestUnderrun))
	return b.String()
}

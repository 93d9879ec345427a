// Package report turns variance results into prompts, narratives and
// rendered documents (text, markdown, JSON, PDF).
package report

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

// Money formats d as "$1,234.56" or "-$1,234.56".
func Money(d decimal.Decimal) string {
	neg := d.Sign() < 0
	s := groupThousands(d.Abs().StringFixed(2))
	if neg {
		return "-$" + s
	}
	return "$" + s
}

// SignedMoney is Money with an explicit "+" for positive values.
func SignedMoney(d decimal.Decimal) string {
	if d.Sign() > 0 {
		return "+" + Money(d)
	}
	return Money(d)
}

func groupThousands(fixed string) string {
	intPart, frac, _ := strings.Cut(fixed, ".")
	if len(intPart) <= 3 {
		if frac == "" {
			return intPart
		}
		return intPart + "." + frac
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// PercentASCII renders p like Percent.String but without non-ASCII glyphs,
// for outputs whose fonts lack them.
func PercentASCII(p variance.Percent) string {
	if p.IsUndefined() {
		if p > 0 {
			return "+inf (no estimate)"
		}
		return "-inf (no estimate)"
	}
	return p.String()
}

// StatusLabel is OVER BUDGET, UNDER BUDGET or ON BUDGET.
func StatusLabel(s variance.Summary) string {
	switch s.Status() {
	case "over":
		return "OVER BUDGET"
	case "under":
		return "UNDER BUDGET"
	}
	return "ON BUDGET"
}

func extremum(r *variance.Row) string {
	if r == nil {
		return "none"
	}
	return r.Category + " (" + SignedMoney(r.Variance) + ")"
}

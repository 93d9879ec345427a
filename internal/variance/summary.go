package variance

import "github.com/shopspring/decimal"

// Summary holds headline statistics over a set of variance rows.
type Summary struct {
	TotalEstimated   decimal.Decimal `json:"total_estimated"`
	TotalActual      decimal.Decimal `json:"total_actual"`
	TotalVariance    decimal.Decimal `json:"total_variance"`
	TotalVariancePct Percent         `json:"total_variance_pct"`
	OverBudget       int             `json:"over_budget_categories"`
	UnderBudget      int             `json:"under_budget_categories"`
	Categories       int             `json:"categories"`
	BiggestOverrun   *Row            `json:"biggest_overrun,omitempty"`
	BiggestUnderrun  *Row            `json:"biggest_underrun,omitempty"`
}

// Summarize reduces rows to totals, counts and extrema. Ties on the extrema
// keep the earliest row. Empty input yields zero totals and no extrema.
func Summarize(rows []Row) Summary {
	s := Summary{
		TotalEstimated: decimal.Zero,
		TotalActual:    decimal.Zero,
		Categories:     len(rows),
	}
	for i := range rows {
		r := rows[i]
		s.TotalEstimated = s.TotalEstimated.Add(r.Estimated)
		s.TotalActual = s.TotalActual.Add(r.Actual)
		switch r.Variance.Sign() {
		case 1:
			s.OverBudget++
			if s.BiggestOverrun == nil || r.Variance.GreaterThan(s.BiggestOverrun.Variance) {
				s.BiggestOverrun = &r
			}
		case -1:
			s.UnderBudget++
			if s.BiggestUnderrun == nil || r.Variance.LessThan(s.BiggestUnderrun.Variance) {
				s.BiggestUnderrun = &r
			}
		}
	}
	s.TotalVariance = s.TotalActual.Sub(s.TotalEstimated)
	s.TotalVariancePct = PercentOf(s.TotalVariance, s.TotalEstimated)
	return s
}

// Status is "over", "under" or "on" budget for the totals.
func (s Summary) Status() string { return statusOf(s.TotalVariance) }

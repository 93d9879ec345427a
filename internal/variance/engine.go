package variance

import "github.com/shopspring/decimal"

// Row is the variance for one category. Positive Variance means over budget.
type Row struct {
	Category    string          `json:"category"`
	Estimated   decimal.Decimal `json:"estimated"`
	Actual      decimal.Decimal `json:"actual"`
	Variance    decimal.Decimal `json:"variance"`
	VariancePct Percent         `json:"variance_pct"`
}

// Compute full-outer-joins the two tables on category. A category missing
// from one side counts as exactly 0 there. Rows come out in first-seen order,
// estimate table first. A category repeated within one table is summed.
func Compute(estimate, actual *CostTable) []Row {
	type acc struct{ est, act decimal.Decimal }
	var order []string
	byCat := map[string]*acc{}
	get := func(cat string) *acc {
		if a, ok := byCat[cat]; ok {
			return a
		}
		a := &acc{est: decimal.Zero, act: decimal.Zero}
		byCat[cat] = a
		order = append(order, cat)
		return a
	}
	if estimate != nil {
		for _, r := range estimate.Rows {
			a := get(r.Category)
			a.est = a.est.Add(r.Amount)
		}
	}
	if actual != nil {
		for _, r := range actual.Rows {
			a := get(r.Category)
			a.act = a.act.Add(r.Amount)
		}
	}

	rows := make([]Row, 0, len(order))
	for _, cat := range order {
		a := byCat[cat]
		v := a.act.Sub(a.est)
		rows = append(rows, Row{
			Category:    cat,
			Estimated:   a.est,
			Actual:      a.act,
			Variance:    v,
			VariancePct: PercentOf(v, a.est),
		})
	}
	return rows
}

// Status is the budget direction of a variance.
func (r Row) Status() string { return statusOf(r.Variance) }

func statusOf(v decimal.Decimal) string {
	switch v.Sign() {
	case 1:
		return "over"
	case -1:
		return "under"
	}
	return "on"
}

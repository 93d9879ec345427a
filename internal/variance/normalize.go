package variance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Role is the canonical meaning assigned to a header label.
type Role string

const (
	RoleCategory  Role = "category"
	RoleEstimated Role = "estimated_amount"
	RoleActual    Role = "actual_amount"
	RoleAmount    Role = "amount"
)

type roleRule struct {
	role     Role
	keywords []string
}

// columnRules is evaluated top to bottom; a label claimed by one rule is not
// offered to the next. Within a rule, keywords are tried in order and the
// leftmost matching label wins.
var columnRules = []roleRule{
	{RoleEstimated, []string{"budget", "estimate", "estimated", "revised", "planned"}},
	{RoleActual, []string{"actual", "spent", "final", "real"}},
	{RoleCategory, []string{"category", "description", "item", "task", "name", "line item", "line_item"}},
	{RoleAmount, []string{"amount", "cost", "value", "price", "total"}},
}

// ColumnMap holds the column index chosen for each role, or -1.
type ColumnMap struct {
	Header    []string
	Category  int
	Estimated int
	Actual    int
	Amount    int
}

// Roles returns label -> role for every mapped column.
func (m ColumnMap) Roles() map[string]Role {
	out := map[string]Role{}
	for role, idx := range map[Role]int{
		RoleCategory:  m.Category,
		RoleEstimated: m.Estimated,
		RoleActual:    m.Actual,
		RoleAmount:    m.Amount,
	} {
		if idx >= 0 {
			out[m.Header[idx]] = role
		}
	}
	return out
}

func (m ColumnMap) label(idx int) string {
	if idx < 0 {
		return ""
	}
	return m.Header[idx]
}

// MapColumns assigns canonical roles to header labels.
func MapColumns(header []string) ColumnMap {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = strings.ToLower(strings.TrimSpace(h))
	}
	m := ColumnMap{Header: header, Category: -1, Estimated: -1, Actual: -1, Amount: -1}
	claimed := make([]bool, len(header))

	pick := func(keywords []string, accept func(int) bool) int {
		for _, kw := range keywords {
			for i, h := range norm {
				if claimed[i] || h == "" || !accept(i) {
					continue
				}
				if strings.Contains(h, kw) {
					claimed[i] = true
					return i
				}
			}
		}
		return -1
	}
	anyCol := func(int) bool { return true }

	for _, rule := range columnRules {
		switch rule.role {
		case RoleEstimated:
			m.Estimated = pick(rule.keywords, anyCol)
		case RoleActual:
			m.Actual = pick(rule.keywords, anyCol)
		case RoleCategory:
			m.Category = pick(rule.keywords, func(i int) bool { return !looksLikeAmount(norm[i]) })
			if m.Category < 0 {
				m.Category = pick(rule.keywords, anyCol)
			}
		case RoleAmount:
			if m.Estimated < 0 && m.Actual < 0 {
				m.Amount = pick(rule.keywords, anyCol)
			}
		}
	}
	return m
}

func looksLikeAmount(label string) bool {
	for _, rule := range columnRules {
		if rule.role == RoleCategory {
			continue
		}
		for _, kw := range rule.keywords {
			if strings.Contains(label, kw) {
				return true
			}
		}
	}
	return false
}

// Options control how cells are materialized into a CostTable.
type Options struct {
	Duplicates DuplicatePolicy
	// Strict rejects non-numeric amount cells instead of reading them as 0.
	Strict bool
}

// Normalizer maps raw tables onto CostTables.
type Normalizer struct {
	Options Options
}

// NewNormalizer returns a Normalizer using opts.
func NewNormalizer(opts Options) *Normalizer {
	if opts.Duplicates == "" {
		opts.Duplicates = DuplicateSum
	}
	return &Normalizer{Options: opts}
}

// Normalize builds the CostTable for one side in separate-files mode. The
// side-specific amount column is preferred over a generic one.
func (n *Normalizer) Normalize(t RawTable, side Side) (*CostTable, error) {
	m := MapColumns(t.Header)
	if m.Category < 0 {
		return nil, &SchemaError{Side: side, Table: t.Name, Err: ErrNoCategoryColumn}
	}
	amount := m.Amount
	switch side {
	case SideEstimate:
		if m.Estimated >= 0 {
			amount = m.Estimated
		}
	case SideActual:
		if m.Actual >= 0 {
			amount = m.Actual
		}
	}
	if amount < 0 {
		return nil, &SchemaError{Side: side, Table: t.Name, Err: ErrNoAmountColumn}
	}
	return n.materialize(t, side, m.Category, amount, m)
}

// NormalizeCombined builds both sides from one table carrying estimated and
// actual columns.
func (n *Normalizer) NormalizeCombined(t RawTable) (estimate, actual *CostTable, err error) {
	m := MapColumns(t.Header)
	if m.Category < 0 {
		return nil, nil, &SchemaError{Side: SideEstimate, Table: t.Name, Err: ErrNoCategoryColumn}
	}
	if m.Estimated < 0 {
		return nil, nil, &SchemaError{Side: SideEstimate, Table: t.Name, Err: ErrNoAmountColumn}
	}
	if m.Actual < 0 {
		return nil, nil, &SchemaError{Side: SideActual, Table: t.Name, Err: ErrNoAmountColumn}
	}
	if estimate, err = n.materialize(t, SideEstimate, m.Category, m.Estimated, m); err != nil {
		return nil, nil, err
	}
	if actual, err = n.materialize(t, SideActual, m.Category, m.Actual, m); err != nil {
		return nil, nil, err
	}
	return estimate, actual, nil
}

func (n *Normalizer) materialize(t RawTable, side Side, catIdx, amtIdx int, m ColumnMap) (*CostTable, error) {
	out := &CostTable{
		Name:           t.Name,
		Side:           side,
		CategoryColumn: m.label(catIdx),
		AmountColumn:   m.label(amtIdx),
	}
	seen := map[string]int{}
	for i, row := range t.Rows {
		cat := strings.TrimSpace(cell(row, catIdx))
		if cat == "" {
			out.SkippedRows++
			continue
		}
		rawAmt := strings.TrimSpace(cell(row, amtIdx))
		amt := decimal.Zero
		if rawAmt != "" {
			v, ok := ParseAmount(rawAmt)
			if !ok {
				if n.Options.Strict {
					return nil, &CellError{Side: side, Row: i + 2, Column: out.AmountColumn, Value: rawAmt}
				}
				out.CoercedCells++
			} else {
				amt = v
			}
		}
		if pos, dup := seen[cat]; dup {
			switch n.Options.Duplicates {
			case DuplicateReject:
				return nil, &DuplicateError{Side: side, Category: cat, Row: i + 2}
			case DuplicateLast:
				out.Rows[pos].Amount = amt
			default:
				out.Rows[pos].Amount = out.Rows[pos].Amount.Add(amt)
			}
			continue
		}
		seen[cat] = len(out.Rows)
		out.Rows = append(out.Rows, CostRow{Category: cat, Amount: amt})
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

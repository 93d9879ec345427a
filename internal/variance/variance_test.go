package variance

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func table(t *testing.T, side Side, kv ...string) *CostTable {
	t.Helper()
	require.Zero(t, len(kv)%2)
	ct := &CostTable{Side: side}
	for i := 0; i < len(kv); i += 2 {
		ct.Rows = append(ct.Rows, CostRow{Category: kv[i], Amount: dec(t, kv[i+1])})
	}
	return ct
}

func findRow(rows []Row, cat string) *Row {
	for i := range rows {
		if rows[i].Category == cat {
			return &rows[i]
		}
	}
	return nil
}

func TestComputeProjectScenario(t *testing.T) {
	est := table(t, SideEstimate, "Labor", "50000", "Materials", "25000", "Marketing", "15000")
	act := table(t, SideActual, "Labor", "55000", "Materials", "22000", "Marketing", "18000", "Equipment", "500")

	rows := Compute(est, act)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Labor", "Materials", "Marketing", "Equipment"},
		[]string{rows[0].Category, rows[1].Category, rows[2].Category, rows[3].Category})

	labor := findRow(rows, "Labor")
	assert.True(t, labor.Variance.Equal(decimal.NewFromInt(5000)))
	assert.InDelta(t, 10.0, float64(labor.VariancePct), 1e-9)

	materials := findRow(rows, "Materials")
	assert.True(t, materials.Variance.Equal(decimal.NewFromInt(-3000)))
	assert.InDelta(t, -12.0, float64(materials.VariancePct), 1e-9)

	marketing := findRow(rows, "Marketing")
	assert.True(t, marketing.Variance.Equal(decimal.NewFromInt(3000)))
	assert.InDelta(t, 20.0, float64(marketing.VariancePct), 1e-9)

	equipment := findRow(rows, "Equipment")
	assert.True(t, equipment.Estimated.IsZero())
	assert.True(t, equipment.Variance.Equal(decimal.NewFromInt(500)))
	assert.True(t, equipment.VariancePct.IsUndefined())
	assert.Equal(t, 1, equipment.VariancePct.Sign())

	s := Summarize(rows)
	assert.True(t, s.TotalEstimated.Equal(decimal.NewFromInt(90000)))
	assert.True(t, s.TotalActual.Equal(decimal.NewFromInt(95500)))
	assert.True(t, s.TotalVariance.Equal(decimal.NewFromInt(5500)))
	assert.Equal(t, 3, s.OverBudget)
	assert.Equal(t, 1, s.UnderBudget)
	require.NotNil(t, s.BiggestOverrun)
	assert.Equal(t, "Labor", s.BiggestOverrun.Category)
	require.NotNil(t, s.BiggestUnderrun)
	assert.Equal(t, "Materials", s.BiggestUnderrun.Category)
	assert.Equal(t, "over", s.Status())
}

func TestComputeIdenticalTables(t *testing.T) {
	est := table(t, SideEstimate, "A", "10", "B", "20.50")
	act := table(t, SideActual, "A", "10", "B", "20.50")

	rows := Compute(est, act)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.True(t, r.Variance.IsZero(), r.Category)
		assert.Equal(t, Percent(0), r.VariancePct)
	}
	s := Summarize(rows)
	assert.True(t, s.TotalVariance.IsZero())
	assert.Zero(t, s.OverBudget)
	assert.Zero(t, s.UnderBudget)
	assert.Nil(t, s.BiggestOverrun)
	assert.Nil(t, s.BiggestUnderrun)
	assert.Equal(t, "on", s.Status())
}

func TestComputeUnionAndExactness(t *testing.T) {
	est := table(t, SideEstimate, "x", "0.1", "y", "0.2", "shared", "100.01")
	act := table(t, SideActual, "shared", "99.99", "z", "0.3")

	rows := Compute(est, act)
	assert.Len(t, rows, 4)
	for _, r := range rows {
		assert.True(t, r.Variance.Equal(r.Actual.Sub(r.Estimated)))
	}
	assert.True(t, findRow(rows, "x").Actual.IsZero())
	assert.True(t, findRow(rows, "z").Estimated.IsZero())
	assert.Equal(t, "-0.02", findRow(rows, "shared").Variance.String())

	s := Summarize(rows)
	assert.Equal(t, "100.31", s.TotalEstimated.String())
	assert.Equal(t, "100.29", s.TotalActual.String())
}

func TestComputeIsDeterministic(t *testing.T) {
	est := table(t, SideEstimate, "b", "1", "a", "2", "c", "3")
	act := table(t, SideActual, "d", "4", "a", "1")
	assert.Equal(t, Compute(est, act), Compute(est, act))
}

func TestComputeEmptyInputs(t *testing.T) {
	assert.Empty(t, Compute(nil, nil))
	rows := Compute(&CostTable{}, table(t, SideActual, "Only", "7"))
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Estimated.IsZero())
}

func TestUndefinedPercentKeepsSign(t *testing.T) {
	p := PercentOf(decimal.NewFromInt(-5), decimal.Zero)
	assert.True(t, p.IsUndefined())
	assert.Equal(t, -1, p.Sign())
	assert.Equal(t, Percent(0), PercentOf(decimal.Zero, decimal.Zero))

	b, err := json.Marshal(struct {
		A Percent `json:"a"`
		B Percent `json:"b"`
	}{PercentOf(decimal.NewFromInt(1), decimal.Zero), Percent(12.5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"+inf","b":12.5}`, string(b))

	var back Percent
	require.NoError(t, json.Unmarshal([]byte(`"-inf"`), &back))
	assert.True(t, math.IsInf(float64(back), -1))
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.True(t, s.TotalEstimated.IsZero())
	assert.True(t, s.TotalActual.IsZero())
	assert.True(t, s.TotalVariance.IsZero())
	assert.Equal(t, Percent(0), s.TotalVariancePct)
	assert.Nil(t, s.BiggestOverrun)
	assert.Nil(t, s.BiggestUnderrun)
}

func TestSummarizeTieKeepsFirst(t *testing.T) {
	est := table(t, SideEstimate, "first", "10", "second", "10", "low1", "10", "low2", "10")
	act := table(t, SideActual, "first", "15", "second", "15", "low1", "5", "low2", "5")
	s := Summarize(Compute(est, act))
	assert.Equal(t, "first", s.BiggestOverrun.Category)
	assert.Equal(t, "low1", s.BiggestUnderrun.Category)
}

func TestSummarizeZeroEstimateTotals(t *testing.T) {
	s := Summarize(Compute(nil, table(t, SideActual, "New", "250")))
	assert.True(t, s.TotalVariancePct.IsUndefined())
	assert.Equal(t, 1, s.TotalVariancePct.Sign())
}

func TestMapColumnsRoles(t *testing.T) {
	cases := []struct {
		name   string
		header []string
		want   ColumnMap
	}{
		{"separate generic", []string{"Category", "Amount"}, ColumnMap{Category: 0, Estimated: -1, Actual: -1, Amount: 1}},
		{"combined", []string{"Line Item", "Budgeted Cost", "Actual Cost"}, ColumnMap{Category: 0, Estimated: 1, Actual: 2, Amount: -1}},
		{"priority beats position", []string{"Name", "Category", "Cost"}, ColumnMap{Category: 1, Estimated: -1, Actual: -1, Amount: 2}},
		{"leftmost within keyword", []string{" item code ", "Item", "Price"}, ColumnMap{Category: 0, Estimated: -1, Actual: -1, Amount: 2}},
		{"category avoids amount labels", []string{"Total Cost", "Description"}, ColumnMap{Category: 1, Estimated: -1, Actual: -1, Amount: 0}},
		{"specific suppresses generic", []string{"Task", "Planned", "Amount"}, ColumnMap{Category: 0, Estimated: 1, Actual: -1, Amount: -1}},
		{"nothing", []string{"foo", "bar"}, ColumnMap{Category: -1, Estimated: -1, Actual: -1, Amount: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapColumns(tc.header)
			tc.want.Header = tc.header
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMapColumnsRolesByLabel(t *testing.T) {
	m := MapColumns([]string{"Category", "Estimate", "Actual"})
	assert.Equal(t, map[string]Role{
		"Category": RoleCategory,
		"Estimate": RoleEstimated,
		"Actual":   RoleActual,
	}, m.Roles())
}

func TestNormalizeSchemaErrors(t *testing.T) {
	n := NewNormalizer(Options{})

	_, err := n.Normalize(RawTable{Name: "est.xlsx", Header: []string{"Amount"}}, SideEstimate)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SideEstimate, se.Side)
	assert.ErrorIs(t, err, ErrNoCategoryColumn)

	_, err = n.Normalize(RawTable{Name: "act.xlsx", Header: []string{"Category", "Notes"}}, SideActual)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SideActual, se.Side)
	assert.ErrorIs(t, err, ErrNoAmountColumn)
	assert.Contains(t, err.Error(), "act.xlsx")

	_, _, err = n.NormalizeCombined(RawTable{Header: []string{"Category", "Budget"}})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SideActual, se.Side)
}

func TestNormalizeMaterializesRows(t *testing.T) {
	n := NewNormalizer(Options{})
	ct, err := n.Normalize(RawTable{
		Header: []string{"Category", "Cost"},
		Rows: [][]string{
			{"  Labor ", "$50,000"},
			{"", "12"},
			{"Materials", "n/a"},
			{"Misc"},
		},
	}, SideEstimate)
	require.NoError(t, err)
	require.Len(t, ct.Rows, 3)
	assert.Equal(t, "Labor", ct.Rows[0].Category)
	assert.Equal(t, "50000", ct.Rows[0].Amount.String())
	assert.True(t, ct.Rows[1].Amount.IsZero())
	assert.True(t, ct.Rows[2].Amount.IsZero())
	assert.Equal(t, 1, ct.SkippedRows)
	assert.Equal(t, 1, ct.CoercedCells)
	assert.Equal(t, "Cost", ct.AmountColumn)
}

func TestNormalizeKeepsFractionalAmounts(t *testing.T) {
	n := NewNormalizer(Options{Strict: true})
	est, err := n.Normalize(RawTable{
		Header: []string{"Category", "Cost"},
		Rows:   [][]string{{"Fuel", "0.500"}, {"Tolls", "1.250"}},
	}, SideEstimate)
	require.NoError(t, err)
	act, err := n.Normalize(RawTable{
		Header: []string{"Category", "Cost"},
		Rows:   [][]string{{"Fuel", "0.750"}, {"Tolls", "1.250"}},
	}, SideActual)
	require.NoError(t, err)
	assert.Equal(t, "0.5", est.Rows[0].Amount.String())

	rows := Compute(est, act)
	require.Len(t, rows, 2)
	assert.Equal(t, "0.25", rows[0].Variance.String())
	assert.Equal(t, 50.0, float64(rows[0].VariancePct))
	assert.True(t, rows[1].Variance.IsZero())
}

func TestNormalizeStrictRejectsText(t *testing.T) {
	n := NewNormalizer(Options{Strict: true})
	_, err := n.Normalize(RawTable{
		Header: []string{"Item", "Amount"},
		Rows:   [][]string{{"A", "1"}, {"B", "lots"}},
	}, SideActual)
	var ce *CellError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Row)
	assert.Equal(t, "lots", ce.Value)
}

func TestNormalizeDuplicatePolicies(t *testing.T) {
	raw := RawTable{
		Header: []string{"Category", "Amount"},
		Rows:   [][]string{{"A", "10"}, {"B", "1"}, {"A", "5"}},
	}

	sum, err := NewNormalizer(Options{Duplicates: DuplicateSum}).Normalize(raw, SideEstimate)
	require.NoError(t, err)
	require.Len(t, sum.Rows, 2)
	assert.Equal(t, "A", sum.Rows[0].Category)
	assert.Equal(t, "15", sum.Rows[0].Amount.String())

	last, err := NewNormalizer(Options{Duplicates: DuplicateLast}).Normalize(raw, SideEstimate)
	require.NoError(t, err)
	assert.Equal(t, "5", last.Rows[0].Amount.String())

	_, err = NewNormalizer(Options{Duplicates: DuplicateReject}).Normalize(raw, SideEstimate)
	var de *DuplicateError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "A", de.Category)
	assert.Equal(t, 4, de.Row)
}

func TestNormalizeCombined(t *testing.T) {
	est, act, err := NewNormalizer(Options{}).NormalizeCombined(RawTable{
		Header: []string{"Description", "Estimated", "Actual Spent"},
		Rows:   [][]string{{"Labor", "100", "120"}, {"Travel", "50", ""}},
	})
	require.NoError(t, err)
	rows := Compute(est, act)
	require.Len(t, rows, 2)
	assert.Equal(t, "20", rows[0].Variance.String())
	assert.Equal(t, "-50", rows[1].Variance.String())
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicateSum, p)
	_, err = ParseDuplicatePolicy("first")
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"1234":       "1234",
		"$1,234.56":  "1234.56",
		"1.234,56 €": "1234.56",
		"50,000":     "50000",
		"12,5":       "12.5",
		"(500)":      "-500",
		"$(1,200)":   "-1200",
		"3000-":      "-3000",
		"-42.10":     "-42.1",
		"USD 1 200":  "1200",
		"1.234.567":  "1234567",
		"0.75":       "0.75",
		"0.500":      "0.5",
		"1.250":      "1.25",
		"12.345":     "12.345",
		"0,125":      "0.125",
		"00,125":     "0.125",
		"1,250":      "1250",
	}
	for in, want := range cases {
		got, ok := ParseAmount(in)
		if assert.True(t, ok, in) {
			assert.Equal(t, want, got.String(), in)
		}
	}
	for _, bad := range []string{"", "n/a", "abc", "-", "1,2,3.4.5"} {
		_, ok := ParseAmount(bad)
		assert.False(t, ok, bad)
	}
}

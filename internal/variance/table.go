// Package variance turns two cost spreadsheets into per-category variance rows
// and headline statistics. It performs no I/O.
package variance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Side identifies which input a table came from.
type Side string

const (
	SideEstimate Side = "estimate"
	SideActual   Side = "actual"
)

// RawTable is a header row plus string cells, as produced by a spreadsheet loader.
type RawTable struct {
	Name   string
	Header []string
	Rows   [][]string
}

// CostRow is one category/amount pair.
type CostRow struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// CostTable is a normalized category->amount table built from one input.
type CostTable struct {
	Name           string    `json:"name"`
	Side           Side      `json:"side"`
	CategoryColumn string    `json:"category_column"`
	AmountColumn   string    `json:"amount_column"`
	Rows           []CostRow `json:"rows"`
	// CoercedCells counts non-numeric amount cells that were read as 0.
	CoercedCells int `json:"coerced_cells"`
	// SkippedRows counts rows dropped for a blank category.
	SkippedRows int `json:"skipped_rows"`
}

// NewCostTable builds a table from category/amount pairs. Intended for callers
// that already hold clean data.
func NewCostTable(side Side, pairs ...CostRow) *CostTable {
	rows := make([]CostRow, len(pairs))
	copy(rows, pairs)
	return &CostTable{Side: side, Rows: rows}
}

// DuplicatePolicy decides what happens when a category repeats inside one table.
type DuplicatePolicy string

const (
	// DuplicateSum adds repeated amounts into the first occurrence.
	DuplicateSum DuplicatePolicy = "sum"
	// DuplicateLast keeps the last amount at the first occurrence's position.
	DuplicateLast DuplicatePolicy = "last"
	// DuplicateReject fails with *DuplicateError.
	DuplicateReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy accepts "", "sum", "last" or "reject".
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicateSum:
		return DuplicateSum, nil
	case DuplicateLast:
		return DuplicateLast, nil
	case DuplicateReject:
		return DuplicateReject, nil
	}
	return "", fmt.Errorf("invalid duplicate policy: %s (use sum|last|reject)", s)
}

var (
	ErrNoCategoryColumn = errors.New("no recognizable category column")
	ErrNoAmountColumn   = errors.New("no recognizable amount column")
)

// SchemaError reports an input whose header could not be mapped.
type SchemaError struct {
	Side  Side
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("%s table %q: %v", e.Side, e.Table, e.Err)
	}
	return fmt.Sprintf("%s table: %v", e.Side, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// CellError is returned in strict mode for an amount cell that is not a number.
type CellError struct {
	Side   Side
	Row    int // 1-based, header is row 1
	Column string
	Value  string
}

func (e *CellError) Error() string {
	return fmt.Sprintf("%s table: row %d column %q: not a number: %q", e.Side, e.Row, e.Column, e.Value)
}

// DuplicateError is returned under DuplicateReject.
type DuplicateError struct {
	Side     Side
	Category string
	Row      int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s table: duplicate category %q at row %d", e.Side, e.Category, e.Row)
}

package parser_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/KaramelBytes/estimate-insight/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			r := row
			require.NoError(t, f.SetSheetRow(name, cell, &r))
		}
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Estimate": {
			{},
			{"Category", "Amount"},
			{"Labor", 50000},
			{"Materials", 25000.5},
		},
	})
	tbl, err := parser.Parse("estimate.xlsx", data, parser.Options{})
	require.NoError(t, err)
	assert.Equal(t, "estimate.xlsx", tbl.Name)
	assert.Equal(t, []string{"Category", "Amount"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"Labor", "50000"}, tbl.Rows[0])
	assert.Equal(t, "25000.5", tbl.Rows[1][1])
}

func TestParseXLSXNamedSheet(t *testing.T) {
	data := buildWorkbook(t, map[string][][]any{
		"Costs": {{"Item", "Actual"}, {"Fuel", 12}},
	})
	tbl, err := parser.Parse("book.xlsx", data, parser.Options{Sheet: "costs"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Item", "Actual"}, tbl.Header)

	_, err = parser.Parse("book.xlsx", data, parser.Options{Sheet: "missing"})
	assert.ErrorContains(t, err, "not found")
}

func TestParseCSVDetectsDelimiter(t *testing.T) {
	content := "\xef\xbb\xbfCategory;Cost\nLabor;\"1.500,25\"\nTravel;300\n"
	tbl, err := parser.Parse("costs.csv", []byte(content), parser.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Cost"}, tbl.Header)
	assert.Equal(t, [][]string{{"Labor", "1.500,25"}, {"Travel", "300"}}, tbl.Rows)
}

func TestParseFileTSV(t *testing.T) {
	p := filepath.Join(t.TempDir(), "actual.tsv")
	require.NoError(t, os.WriteFile(p, []byte("Name\tSpent\nA\t1\n"), 0o644))
	tbl, err := parser.ParseFile(p, parser.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Spent"}, tbl.Header)
}

func TestParseRejectsUnknownFormats(t *testing.T) {
	_, err := parser.Parse("old.xls", []byte("x"), parser.Options{})
	assert.True(t, errors.Is(err, parser.ErrUnsupported))
	assert.ErrorContains(t, err, ".xlsx")

	_, err = parser.Parse("notes.txt", []byte("x"), parser.Options{})
	assert.ErrorIs(t, err, parser.ErrUnsupported)
	assert.False(t, parser.Supported("notes.txt"))
	assert.True(t, parser.Supported("A.XLSX"))
}

func TestParseEmptyCSV(t *testing.T) {
	_, err := parser.Parse("empty.csv", []byte("\n\n"), parser.Options{})
	assert.ErrorIs(t, err, parser.ErrEmpty)
}

package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/KaramelBytes/estimate-insight/internal/variance"
	"github.com/xuri/excelize/v2"
)

type xlsxParser struct{}

func (xlsxParser) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

// Parse reads one worksheet with raw cell values so number formats such as
// currency or thousands grouping do not leak into amounts.
func (xlsxParser) Parse(_ string, content []byte, opts Options) (variance.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return variance.RawTable{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return variance.RawTable{}, ErrEmpty
	}
	sheet := sheets[0]
	if opts.Sheet != "" {
		sheet = ""
		for _, s := range sheets {
			if strings.EqualFold(s, opts.Sheet) {
				sheet = s
				break
			}
		}
		if sheet == "" {
			return variance.RawTable{}, fmt.Errorf("sheet %q not found (have: %s)", opts.Sheet, strings.Join(sheets, ", "))
		}
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return variance.RawTable{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	header, body, err := splitHeader(rows)
	if err != nil {
		return variance.RawTable{}, err
	}
	return variance.RawTable{Header: header, Rows: body}, nil
}

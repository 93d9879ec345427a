// Package parser loads cost spreadsheets into raw header/row tables.
package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

// Parser reads one spreadsheet format.
type Parser interface {
	CanParse(filename string) bool
	Parse(name string, content []byte, opts Options) (variance.RawTable, error)
}

// Options select what part of a workbook is read.
type Options struct {
	// Sheet names the xlsx worksheet; empty means the first sheet.
	Sheet string
	// Delimiter for CSV. If 0, it is detected from the header line.
	Delimiter rune
}

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

var (
	// ErrUnsupported indicates a format that no registered parser reads.
	ErrUnsupported = errors.New("unsupported spreadsheet format")
	// ErrEmpty indicates a file without a header row.
	ErrEmpty = errors.New("spreadsheet has no header row")
)

// Supported reports whether some parser accepts filename.
func Supported(filename string) bool {
	for _, p := range registry {
		if p.CanParse(filename) {
			return true
		}
	}
	return false
}

// Parse dispatches content to the parser matching name's extension.
func Parse(name string, content []byte, opts Options) (variance.RawTable, error) {
	if strings.EqualFold(filepath.Ext(name), ".xls") {
		return variance.RawTable{}, fmt.Errorf("%s: legacy .xls workbooks are not supported, save as .xlsx: %w", filepath.Base(name), ErrUnsupported)
	}
	for _, p := range registry {
		if p.CanParse(name) {
			t, err := p.Parse(name, content, opts)
			if err != nil {
				return variance.RawTable{}, fmt.Errorf("%s: %w", filepath.Base(name), err)
			}
			t.Name = filepath.Base(name)
			return t, nil
		}
	}
	return variance.RawTable{}, fmt.Errorf("%s: %w", filepath.Base(name), ErrUnsupported)
}

// ParseFile reads path and parses it.
func ParseFile(path string, opts Options) (variance.RawTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return variance.RawTable{}, fmt.Errorf("read file: %w", err)
	}
	return Parse(path, data, opts)
}

// splitHeader drops leading blank rows and returns the first non-blank row as
// the header. Trailing blank header cells are trimmed.
func splitHeader(rows [][]string) ([]string, [][]string, error) {
	for i, r := range rows {
		if blank(r) {
			continue
		}
		header := make([]string, len(r))
		for j, h := range r {
			header[j] = strings.TrimSpace(h)
		}
		for len(header) > 0 && header[len(header)-1] == "" {
			header = header[:len(header)-1]
		}
		return header, rows[i+1:], nil
	}
	return nil, nil, ErrEmpty
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func init() {
	Register(csvParser{})
	Register(xlsxParser{})
}

package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/KaramelBytes/estimate-insight/internal/variance"
)

type csvParser struct{}

func (csvParser) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvParser) Parse(name string, content []byte, opts Options) (variance.RawTable, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	delim := opts.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name, content)
	}
	r := csv.NewReader(bytes.NewReader(content))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return variance.RawTable{}, fmt.Errorf("read csv: %w", err)
	}
	header, rows, err := splitHeader(records)
	if err != nil {
		return variance.RawTable{}, err
	}
	return variance.RawTable{Header: header, Rows: rows}, nil
}

// sniffDelimiter picks tab for .tsv files, otherwise the most frequent of
// ',', ';' and tab on the first line. Comma wins ties.
func sniffDelimiter(name string, content []byte) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

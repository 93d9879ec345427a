package variance

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a money cell as exported by common spreadsheet tools.
// Currency symbols, ISO codes, percent signs and thousands separators are
// dropped; "(1,200)" and "1200-" are negative. The decimal separator is
// auto-detected: with both ',' and '.' present the rightmost one wins. A
// repeated separator groups thousands. A lone '.' is always the decimal
// point; a lone ',' groups thousands only when followed by exactly three
// digits and preceded by a non-zero integer part.
func ParseAmount(s string) (decimal.Decimal, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return decimal.Zero, false
	}
	raw = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || r == '%' || r == '\'' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	raw = strings.TrimFunc(raw, unicode.IsLetter)
	neg := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		neg = true
		raw = strings.TrimFunc(raw[1:len(raw)-1], unicode.IsLetter)
	}
	if strings.HasSuffix(raw, "-") {
		neg = !neg
		raw = strings.TrimSuffix(raw, "-")
	}
	if strings.HasPrefix(raw, "-") {
		neg = !neg
		raw = strings.TrimPrefix(raw, "-")
	}
	raw = strings.TrimPrefix(raw, "+")
	if raw == "" {
		return decimal.Zero, false
	}

	raw = normalizeSeparators(raw)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

func normalizeSeparators(raw string) string {
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	switch {
	case cpos >= 0 && dpos >= 0:
		if cpos > dpos {
			raw = strings.ReplaceAll(raw, ".", "")
			return strings.Replace(raw, ",", ".", 1)
		}
		return strings.ReplaceAll(raw, ",", "")
	case cpos >= 0:
		if groupsThousands(raw, ",", cpos) {
			return strings.ReplaceAll(raw, ",", "")
		}
		return strings.Replace(raw, ",", ".", 1)
	case dpos >= 0:
		if strings.Count(raw, ".") > 1 {
			return strings.ReplaceAll(raw, ".", "")
		}
	}
	return raw
}

func groupsThousands(raw, sep string, last int) bool {
	if strings.Count(raw, sep) > 1 {
		return true
	}
	tail := raw[last+1:]
	if len(tail) != 3 || strings.TrimLeft(raw[:last], "0") == "" {
		return false
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

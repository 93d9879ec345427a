package variance

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percent is a variance percentage. A zero estimate with a non-zero variance
// has no defined percentage; it is held as +Inf or -Inf following the sign of
// the variance.
type Percent float64

// PercentOf returns variance/base*100 under the zero-denominator policy.
func PercentOf(variance, base decimal.Decimal) Percent {
	if base.IsZero() {
		switch variance.Sign() {
		case 1:
			return Percent(math.Inf(1))
		case -1:
			return Percent(math.Inf(-1))
		}
		return 0
	}
	return Percent(variance.Mul(hundred).Div(base).InexactFloat64())
}

// IsUndefined reports whether the percentage is the signed undefined marker.
func (p Percent) IsUndefined() bool { return math.IsInf(float64(p), 0) }

// Sign returns -1, 0 or +1.
func (p Percent) Sign() int {
	switch {
	case p > 0:
		return 1
	case p < 0:
		return -1
	}
	return 0
}

// String renders finite values with one decimal and a sign, e.g. "+10.0%".
func (p Percent) String() string {
	if p.IsUndefined() {
		if p > 0 {
			return "+∞ (no estimate)"
		}
		return "-∞ (no estimate)"
	}
	return fmt.Sprintf("%+.1f%%", float64(p))
}

func (p Percent) MarshalJSON() ([]byte, error) {
	if p.IsUndefined() {
		if p > 0 {
			return []byte(`"+inf"`), nil
		}
		return []byte(`"-inf"`), nil
	}
	return []byte(strconv.FormatFloat(float64(p), 'f', -1, 64)), nil
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		switch s {
		case "+inf", "inf":
			*p = Percent(math.Inf(1))
		case "-inf":
			*p = Percent(math.Inf(-1))
		default:
			return fmt.Errorf("invalid percent: %q", s)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*p = Percent(f)
	return nil
}

package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Formatter renders amounts with the configured currency conventions
type Formatter struct {
	CurrencySymbol       string
	UseThousandSeparator bool
	DecimalPlaces        int32
}

// NewFormatter returns a Formatter. Zero decimal places suits currencies
// without minor units; negative values fall back to 2.
func NewFormatter(symbol string, thousandSeparator bool, decimalPlaces int) Formatter {
	if decimalPlaces < 0 {
		decimalPlaces = 2
	}
	return Formatter{
		CurrencySymbol:       symbol,
		UseThousandSeparator: thousandSeparator,
		DecimalPlaces:        int32(decimalPlaces),
	}
}

// Format rounds d to the display precision, without currency symbol
func (f Formatter) Format(d decimal.Decimal) string {
	return f.group(d.StringFixed(f.DecimalPlaces))
}

// FormatMoney is Format prefixed with the currency symbol
func (f Formatter) FormatMoney(d decimal.Decimal) string {
	return f.CurrencySymbol + f.Format(d)
}

// FormatInput formats a typed amount with separators but keeps its own precision
func (f Formatter) FormatInput(d decimal.Decimal) string {
	return f.group(d.String())
}

func (f Formatter) group(s string) string {
	if !f.UseThousandSeparator {
		return s
	}

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}

	out := sign + b.String()
	if hasFrac {
		out += "." + frac
	}
	return out
}

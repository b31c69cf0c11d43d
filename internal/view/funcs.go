package view

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Funcs returns the helpers available to document templates.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"get_item":        getItem,
		"subtract":        subtract,
		"split_by_period": splitByPeriod,
		"money":           money,
		"currency_symbol": currencySymbol,
		"date":            formatDate,
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, nil
		}
		return *n, nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	default:
		return decimal.Zero, fmt.Errorf("not a number: %T", v)
	}
}

// subtract returns a - b, or an empty string when either is not numeric.
func subtract(a, b any) any {
	x, err := toDecimal(a)
	if err != nil {
		return ""
	}
	y, err := toDecimal(b)
	if err != nil {
		return ""
	}
	return x.Sub(y)
}

// money formats v with two decimals and comma thousands separators.
func money(v any) string {
	d, err := toDecimal(v)
	if err != nil {
		return ""
	}
	fixed := d.StringFixedBank(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}

// currencySymbol returns the narrow symbol for an ISO code, or the code
// itself for units x/text does not know.
func currencySymbol(v any) string {
	code := fmt.Sprint(v)
	unit, err := currency.ParseISO(code)
	if err != nil {
		return code
	}
	return message.NewPrinter(language.English).Sprint(currency.NarrowSymbol(unit))
}

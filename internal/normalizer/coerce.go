package normalizer

import (
	"fmt"
	"strings"

	"pricetrack/internal/htmlutil"
	"pricetrack/internal/record"

	"github.com/shopspring/decimal"
)

var groupingSeparators = strings.NewReplacer(
	",", "",
	"_", "",
	"'", "",
	" ", "",
)

// ParseGroupedDecimal parses numbers like "1,234.50" or "12 000".
func ParseGroupedDecimal(s string) (decimal.Decimal, error) {
	cleaned := groupingSeparators.Replace(htmlutil.CleanText(s))
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("not a decimal: %q", s)
	}
	return d, nil
}

// coerce converts a raw cell, a blank cell produces a null value.
func coerce(c Coercion, raw string) (record.Value, error) {
	switch c {
	case CoerceText:
		if strings.TrimSpace(raw) == "" {
			return record.Null(record.KindText), nil
		}
		return record.Text(raw), nil
	case CoerceDecimalGrouped:
		if htmlutil.CleanText(raw) == "" {
			return record.Null(record.KindDecimal), nil
		}
		d, err := ParseGroupedDecimal(raw)
		if err != nil {
			return record.Value{}, err
		}
		return record.Decimal(d), nil
	case CoercePercentText:
		s := htmlutil.CleanText(raw)
		if s == "" {
			return record.Null(record.KindText), nil
		}
		return record.Text(strings.ReplaceAll(s, " %", "%")), nil
	case "", CoerceTrimmedText:
		s := htmlutil.CleanText(raw)
		if s == "" {
			return record.Null(record.KindText), nil
		}
		return record.Text(s), nil
	}
	return record.Value{}, fmt.Errorf("unknown coercion %q", c)
}

package record

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind int

const (
	KindText Kind = iota
	KindDecimal
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDecimal:
		return "decimal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Value is a single measurement, either text or a decimal number. A null
// value stands for an optional cell that was absent or empty.
type Value struct {
	kind  Kind
	valid bool
	text  string
	dec   decimal.Decimal
}

func Text(s string) Value {
	return Value{kind: KindText, valid: true, text: s}
}

func Decimal(d decimal.Decimal) Value {
	return Value{kind: KindDecimal, valid: true, dec: d}
}

func Null(kind Kind) Value {
	return Value{kind: kind}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return !v.valid
}

// Decimal returns the decimal and true for a non-null decimal value.
func (v Value) Decimal() (decimal.Decimal, bool) {
	if v.kind != KindDecimal || !v.valid {
		return decimal.Decimal{}, false
	}
	return v.dec, true
}

// String is the persisted form of the value, null renders as "".
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	if v.kind == KindDecimal {
		return v.dec.String()
	}
	return v.text
}

// Equal compares numerically for decimals, so 1.50 equals 1.5.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind || v.valid != o.valid {
		return false
	}
	if !v.valid {
		return true
	}
	if v.kind == KindDecimal {
		return v.dec.Equal(o.dec)
	}
	return v.text == o.text
}

// ParseValue reads the persisted form of a value back.
func ParseValue(kind Kind, s string) (Value, error) {
	if s == "" {
		return Null(kind), nil
	}
	switch kind {
	case KindText:
		return Text(s), nil
	case KindDecimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return Value{}, fmt.Errorf("parse decimal %q: %w", s, err)
		}
		return Decimal(d), nil
	}
	return Value{}, fmt.Errorf("unknown value kind %d", kind)
}

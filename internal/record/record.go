package record

import (
	"cmp"
	"fmt"
	"maps"
	"time"
)

// Date is a calendar date without a time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays normalizes overflowing days the same way time.Date does.
func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC))
}

func (d Date) Compare(o Date) int {
	if c := cmp.Compare(d.Year, o.Year); c != 0 {
		return c
	}
	if c := cmp.Compare(d.Month, o.Month); c != 0 {
		return c
	}
	return cmp.Compare(d.Day, o.Day)
}

// Key identifies a record within a historical dataset.
type Key struct {
	Date      Date
	SourceKey string
}

// Compare orders keys by date then source key.
func (k Key) Compare(o Key) int {
	if c := k.Date.Compare(o.Date); c != 0 {
		return c
	}
	return cmp.Compare(k.SourceKey, o.SourceKey)
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s", k.Date, k.SourceKey)
}

// Record is one normalized observation. Records are treated as immutable once
// built, anything that needs a different record builds a new one.
type Record struct {
	SourceKey string
	Date      Date
	Values    map[string]Value
}

func (r Record) Key() Key {
	return Key{Date: r.Date, SourceKey: r.SourceKey}
}

// Value returns the named measurement, a missing field reads as null text.
func (r Record) Value(field string) Value {
	v, ok := r.Values[field]
	if !ok {
		return Null(KindText)
	}
	return v
}

func (r Record) Equal(o Record) bool {
	if r.SourceKey != o.SourceKey || r.Date != o.Date {
		return false
	}
	return maps.EqualFunc(r.Values, o.Values, Value.Equal)
}

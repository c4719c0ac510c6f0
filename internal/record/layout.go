package record

import (
	"fmt"
	"slices"
)

const DateColumn = "date"

type Field struct {
	Name string
	Kind Kind
}

// Layout is the persisted column set of a source: the date, the source key
// column and the measurement fields in order.
type Layout struct {
	KeyName string
	Fields  []Field
}

func (l Layout) Header() []string {
	header := make([]string, 0, len(l.Fields)+2)
	header = append(header, DateColumn, l.KeyName)
	for _, f := range l.Fields {
		header = append(header, f.Name)
	}
	return header
}

func (l Layout) Equal(o Layout) bool {
	return l.KeyName == o.KeyName && slices.Equal(l.Fields, o.Fields)
}

// Row renders a record in Header order.
func (l Layout) Row(r Record) []string {
	row := make([]string, 0, len(l.Fields)+2)
	row = append(row, r.Date.String(), r.SourceKey)
	for _, f := range l.Fields {
		row = append(row, r.Value(f.Name).String())
	}
	return row
}

// CheckHeader verifies that a persisted header matches the layout.
func (l Layout) CheckHeader(header []string) error {
	expected := l.Header()
	if !slices.Equal(expected, header) {
		return fmt.Errorf("header mismatch: expected %v, got %v", expected, header)
	}
	return nil
}

// ParseRow is the inverse of Row.
func (l Layout) ParseRow(row []string) (Record, error) {
	if len(row) != len(l.Fields)+2 {
		return Record{}, fmt.Errorf("expected %d columns, got %d", len(l.Fields)+2, len(row))
	}
	date, err := ParseDate(row[0])
	if err != nil {
		return Record{}, fmt.Errorf("parse date: %w", err)
	}
	if row[1] == "" {
		return Record{}, fmt.Errorf("empty %s", l.KeyName)
	}

	values := make(map[string]Value, len(l.Fields))
	for i, f := range l.Fields {
		v, err := ParseValue(f.Kind, row[i+2])
		if err != nil {
			return Record{}, fmt.Errorf("column %s: %w", f.Name, err)
		}
		values[f.Name] = v
	}
	return Record{SourceKey: row[1], Date: date, Values: values}, nil
}

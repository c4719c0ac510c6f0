package normalizer

import (
	"fmt"

	"pricetrack/internal/record"
)

type Coercion string

const (
	CoerceText           Coercion = "text"
	CoerceTrimmedText    Coercion = "trimmed_text"
	CoerceDecimalGrouped Coercion = "decimal_grouped"
	CoercePercentText    Coercion = "percent_text"
)

// Kind is the record value kind a coercion produces. The empty coercion means
// trimmed_text.
func (c Coercion) Kind() record.Kind {
	if c == CoerceDecimalGrouped {
		return record.KindDecimal
	}
	return record.KindText
}

func (c Coercion) valid() bool {
	switch c {
	case "", CoerceText, CoerceTrimmedText, CoerceDecimalGrouped, CoercePercentText:
		return true
	}
	return false
}

// Column maps one cell onto a record field. The cell is read from Const when
// it is set, from Path for JSON objects, and from the Index'th cell otherwise.
type Column struct {
	Field    string   `json:"field" validate:"required"`
	Index    int      `json:"index" validate:"gte=0"`
	Path     string   `json:"path"`
	Const    string   `json:"const"`
	Required bool     `json:"required"`
	Coerce   Coercion `json:"coerce" validate:"omitempty,oneof=text trimmed_text decimal_grouped percent_text"`
}

// Schema describes how the rows of one source become records.
type Schema struct {
	// Key is the "name" cell, it becomes Record.SourceKey.
	Key     Column   `json:"key"`
	Columns []Column `json:"columns"`
	// HeaderTokens drop a row when the key cell contains any of them (case-insensitive).
	HeaderTokens []string `json:"header_tokens"`
	// FillerLiterals drop a row when the key cell equals any of them (case-insensitive).
	FillerLiterals []string `json:"filler_literals"`
	// MinCells drops rows with fewer cells.
	MinCells int `json:"min_cells" validate:"gte=0"`
	// SkipRows drops the first n rows of the table.
	SkipRows int `json:"skip_rows" validate:"gte=0"`
}

// Layout is the persisted column set produced by this schema.
func (s Schema) Layout() record.Layout {
	fields := make([]record.Field, len(s.Columns))
	for i, c := range s.Columns {
		fields[i] = record.Field{Name: c.Field, Kind: c.Coerce.Kind()}
	}
	return record.Layout{KeyName: s.Key.Field, Fields: fields}
}

func (s Schema) Validate() error {
	if s.Key.Field == "" {
		return fmt.Errorf("schema: key field is required")
	}
	if s.Key.Coerce.Kind() != record.KindText {
		return fmt.Errorf("schema: key column must be text")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("schema: at least one column is required")
	}

	seen := map[string]bool{
		record.DateColumn: true,
		s.Key.Field:       true,
	}
	for _, c := range s.Columns {
		if c.Field == "" {
			return fmt.Errorf("schema: column without a field name")
		}
		if seen[c.Field] {
			return fmt.Errorf("schema: duplicate or reserved field %q", c.Field)
		}
		seen[c.Field] = true
		if !c.Coerce.valid() {
			return fmt.Errorf("schema: field %q has unknown coercion %q", c.Field, c.Coerce)
		}
		if c.Index < 0 {
			return fmt.Errorf("schema: field %q has negative index", c.Field)
		}
	}
	return nil
}

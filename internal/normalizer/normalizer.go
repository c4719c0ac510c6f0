// Package normalizer turns located tables into dated records.
package normalizer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"pricetrack/internal/htmlutil"
	"pricetrack/internal/locator"
	"pricetrack/internal/record"
	"pricetrack/internal/textutil"
)

// RowError describes a row that was dropped because one of its cells could
// not be coerced.
type RowError struct {
	// Row is the zero-based position of the row in the located table.
	Row    int
	Field  string
	Cell   string
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: field %q (%q): %s", e.Row, e.Field, e.Cell, e.Reason)
}

// Result is the outcome of normalizing one table. Records keep the source
// order of their rows.
type Result struct {
	Records  []record.Record
	Rejected []RowError
	// Skipped counts header, filler, blank and short rows.
	Skipped int
}

type cellGetter func(c Column) (string, error)

// Normalize converts every row of the table into a record stamped with
// runDate. Rows failing coercion are reported in Result.Rejected and never
// abort the rest of the table.
func Normalize(table locator.TableCandidate, schema Schema, runDate record.Date) Result {
	var res Result

	if table.Objects != nil {
		for i, obj := range table.Objects {
			normalizeRow(&res, i, objectCells(obj), schema, runDate)
		}
		return res
	}

	for i, row := range table.Rows {
		if i < schema.SkipRows || len(row) < schema.MinCells {
			res.Skipped++
			continue
		}
		normalizeRow(&res, i, rowCells(row), schema, runDate)
	}
	return res
}

func normalizeRow(res *Result, i int, get cellGetter, schema Schema, runDate record.Date) {
	rawKey, err := get(schema.Key)
	if err != nil {
		res.Skipped++
		return
	}
	key := htmlutil.CleanText(rawKey)
	if key == "" ||
		textutil.MatchName(key, schema.HeaderTokens) ||
		textutil.EqualName(key, schema.FillerLiterals) {
		res.Skipped++
		return
	}
	if schema.Key.Coerce == CoerceText {
		key = rawKey
	}

	rec := record.Record{
		SourceKey: key,
		Date:      runDate,
		Values:    make(map[string]record.Value, len(schema.Columns)),
	}
	for _, c := range schema.Columns {
		raw, err := get(c)
		if err != nil {
			if c.Required {
				res.Rejected = append(res.Rejected, RowError{
					Row:    i,
					Field:  c.Field,
					Reason: err.Error(),
				})
				return
			}
			rec.Values[c.Field] = record.Null(c.Coerce.Kind())
			continue
		}

		v, err := coerce(c.Coerce, raw)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{
				Row:    i,
				Field:  c.Field,
				Cell:   raw,
				Reason: err.Error(),
			})
			return
		}
		if v.IsNull() && c.Required {
			res.Rejected = append(res.Rejected, RowError{
				Row:    i,
				Field:  c.Field,
				Cell:   raw,
				Reason: "missing required value",
			})
			return
		}
		rec.Values[c.Field] = v
	}
	res.Records = append(res.Records, rec)
}

var errMissingCell = fmt.Errorf("missing cell")

func rowCells(row []string) cellGetter {
	return func(c Column) (string, error) {
		if c.Const != "" {
			return c.Const, nil
		}
		if c.Index >= len(row) {
			return "", errMissingCell
		}
		return row[c.Index], nil
	}
}

func objectCells(obj map[string]any) cellGetter {
	return func(c Column) (string, error) {
		if c.Const != "" {
			return c.Const, nil
		}
		if c.Path == "" {
			return "", fmt.Errorf("column %q has no path", c.Field)
		}
		v, ok := lookup(obj, c.Path)
		if !ok {
			return "", fmt.Errorf("missing %q", c.Path)
		}
		return scalarString(v)
	}
}

func lookup(obj map[string]any, path string) (any, bool) {
	var current any = obj
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func scalarString(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", fmt.Errorf("value of type %T is not a scalar", v)
}

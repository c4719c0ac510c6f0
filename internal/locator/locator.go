package locator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"pricetrack/internal/fetcher"
	"pricetrack/internal/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// RootPath selects the whole decoded JSON document.
const RootPath = "$"

// TableCandidate is what the locator hands to the normalizer: rows of cell
// text for HTML documents or decoded objects for JSON documents.
type TableCandidate struct {
	Rows    [][]string
	Objects []map[string]any
}

func (t TableCandidate) Len() int {
	if t.Objects != nil {
		return len(t.Objects)
	}
	return len(t.Rows)
}

// Locate finds the dataset selected by d inside doc. It is deterministic for a
// given document, it either finds the target under the stated rule or fails
// with ErrNotFound / ErrMalformed.
func Locate(doc fetcher.RawDocument, d Discriminator) (TableCandidate, error) {
	if err := d.Validate(); err != nil {
		return TableCandidate{}, err
	}
	if d.IsJSON() {
		return locateJSON(doc.Body, d)
	}
	return locateHTML(doc.Body, d)
}

func locateHTML(body []byte, d Discriminator) (TableCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return TableCandidate{}, fmt.Errorf("%w: parse html: %w", ErrMalformed, err)
	}

	tables := doc.Find("table")
	notFound := &NotFoundError{Discriminator: d, Tables: tables.Length()}

	var table *goquery.Selection
	switch d.Kind {
	case Positional:
		if d.Index >= tables.Length() {
			return TableCandidate{}, notFound
		}
		table = tables.Eq(d.Index)
	case CSSClass:
		table = tables.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.HasClass(d.Class)
		}).First()
		if table.Length() == 0 {
			return TableCandidate{}, notFound
		}
	case HeaderContains:
		want := strings.ToLower(d.Substring)
		var bestScore float64
		tables.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			rows := ownRows(s)
			if rows.Length() == 0 {
				return true
			}
			header := strings.ToLower(headerText(rows.First()))
			if strings.Contains(header, want) {
				table = s
				return false
			}
			score := matchr.JaroWinkler(header, want, false)
			if score > bestScore {
				bestScore = score
				notFound.Closest = header
			}
			return true
		})
		if table == nil {
			return TableCandidate{}, notFound
		}
	}

	return TableCandidate{Rows: tableRows(table)}, nil
}

// headerText joins the cell texts of a row with single spaces.
func headerText(tr *goquery.Selection) string {
	var cells []string
	tr.ChildrenFiltered("td, th").Each(func(_ int, c *goquery.Selection) {
		text := htmlutil.SelectionText(c)
		if text != "" {
			cells = append(cells, text)
		}
	})
	return strings.Join(cells, " ")
}

// ownRows returns the rows that belong to table itself, rows of nested tables
// are left out.
func ownRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
}

func tableRows(table *goquery.Selection) [][]string {
	rows := [][]string{}
	ownRows(table).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td, th")
		row := make([]string, cells.Length())
		cells.Each(func(i int, c *goquery.Selection) {
			row[i] = htmlutil.SelectionText(c)
		})
		rows = append(rows, row)
	})
	return rows
}

func locateJSON(body []byte, d Discriminator) (TableCandidate, error) {
	var root any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	err := dec.Decode(&root)
	if err != nil {
		return TableCandidate{}, fmt.Errorf("%w: decode json: %w", ErrMalformed, err)
	}

	notFound := &NotFoundError{Discriminator: d, Tables: -1}

	current := root
	if d.Path != RootPath {
		for _, part := range strings.Split(d.Path, ".") {
			obj, ok := current.(map[string]any)
			if !ok {
				return TableCandidate{}, notFound
			}
			next, ok := obj[part]
			if !ok || next == nil {
				return TableCandidate{}, notFound
			}
			current = next
		}
	}

	switch v := current.(type) {
	case map[string]any:
		return TableCandidate{Objects: []map[string]any{v}}, nil
	case []any:
		var objects []map[string]any
		for _, item := range v {
			obj, ok := item.(map[string]any)
			if ok {
				objects = append(objects, obj)
			}
		}
		if len(objects) == 0 {
			return TableCandidate{}, notFound
		}
		return TableCandidate{Objects: objects}, nil
	}
	return TableCandidate{}, notFound
}

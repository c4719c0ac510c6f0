// Package export renders a source's history into spreadsheet form.
package export

import (
	"fmt"
	"io"
	"strings"

	"pricetrack/internal/history"
	"pricetrack/internal/record"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

var invalidSheetChars = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

func sheetName(name string) string {
	name = invalidSheetChars.Replace(name)
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	if name == "" {
		name = "history"
	}
	return name
}

func cellValue(v record.Value) any {
	if v.IsNull() {
		return nil
	}
	if d, ok := v.Decimal(); ok {
		return d.InexactFloat64()
	}
	return v.String()
}

// NewWorkbook builds a workbook with one sheet holding the dataset in
// history order, decimals are written as numbers.
func NewWorkbook(sheet string, data history.Dataset) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet = sheetName(sheet)
	err := f.SetSheetName(f.GetSheetName(0), sheet)
	if err != nil {
		f.Close()
		return nil, err
	}

	layout := data.Layout()
	header := layout.Header()
	headerRow := make([]any, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	err = f.SetSheetRow(sheet, "A1", &headerRow)
	if err != nil {
		f.Close()
		return nil, err
	}

	for i, r := range data.Records() {
		row := make([]any, 0, len(header))
		row = append(row, r.Date.String(), r.SourceKey)
		for _, field := range layout.Fields {
			row = append(row, cellValue(r.Value(field.Name)))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		err = f.SetSheetRow(sheet, cell, &row)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	return f, nil
}

// WriteXLSX writes the workbook of the dataset to w.
func WriteXLSX(w io.Writer, sheet string, data history.Dataset) error {
	f, err := NewWorkbook(sheet, data)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// SaveXLSX writes the workbook of the dataset to path.
func SaveXLSX(path, sheet string, data history.Dataset) error {
	f, err := NewWorkbook(sheet, data)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

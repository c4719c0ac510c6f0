package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pricetrack/internal/record"
)

// Store persists the history of one source.
type Store interface {
	// ID identifies the underlying artifact, two stores with the same ID
	// must never be written concurrently.
	ID() string
	// Load returns an empty dataset when nothing was persisted yet and
	// ErrCorruptHistory when the artifact cannot be decoded.
	Load(ctx context.Context) (Dataset, error)
	// Save replaces the persisted history with the dataset.
	Save(ctx context.Context, data Dataset) error
}

// CSVStore keeps history in a single csv file with the layout's header.
type CSVStore struct {
	path   string
	layout record.Layout
}

func NewCSVStore(path string, layout record.Layout) CSVStore {
	return CSVStore{path: path, layout: layout}
}

func (s CSVStore) Path() string {
	return s.path
}

func (s CSVStore) ID() string {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		abs = filepath.Clean(s.path)
	}
	return "csv:" + abs
}

func (s CSVStore) Load(ctx context.Context) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewDataset(s.layout), nil
	}
	if err != nil {
		return Dataset{}, err
	}
	defer f.Close()

	data, err := readCSV(f, s.layout)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: %s: %w", ErrCorruptHistory, s.path, err)
	}
	return data, nil
}

func (s CSVStore) Save(ctx context.Context, data Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := writeFileAtomic(s.path, func(w io.Writer) error {
		return writeCSV(w, s.layout, data.Records())
	})
	if err != nil {
		return fmt.Errorf("save history %s: %w", s.path, err)
	}
	return nil
}

func readCSV(r io.Reader, layout record.Layout) (Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(layout.Fields) + 2

	header, err := reader.Read()
	if err == io.EOF {
		return Dataset{}, fmt.Errorf("empty file")
	}
	if err != nil {
		return Dataset{}, err
	}
	if err := layout.CheckHeader(header); err != nil {
		return Dataset{}, err
	}

	data := NewDataset(layout)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Dataset{}, err
		}
		rec, err := layout.ParseRow(row)
		if err != nil {
			line, _ := reader.FieldPos(0)
			return Dataset{}, fmt.Errorf("line %d: %w", line, err)
		}
		data.put(rec)
	}
	return data, nil
}

func writeCSV(w io.Writer, layout record.Layout, records []record.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(layout.Header()); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write(layout.Row(r)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

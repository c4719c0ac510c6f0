package history

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"pricetrack/internal/record"
)

// SnapshotWriter writes the raw batch of a run next to, never into, the
// history.
type SnapshotWriter struct {
	dir string
}

func NewSnapshotWriter(dir string) SnapshotWriter {
	return SnapshotWriter{dir: dir}
}

// Path is <dir>/<YYYY-MM-DD>_<source>.csv.
func (w SnapshotWriter) Path(source string, date record.Date) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s_%s.csv", date, source))
}

// Write replaces the snapshot of (source, date) with the batch in its
// original order.
func (w SnapshotWriter) Write(ctx context.Context, source string, date record.Date, layout record.Layout, batch []record.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := w.Path(source, date)
	err := writeFileAtomic(path, func(out io.Writer) error {
		return writeCSV(out, layout, batch)
	})
	if err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return path, nil
}

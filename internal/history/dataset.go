// Package history keeps the deduplicated, per-source time series of records
// and persists it atomically.
package history

import (
	"errors"
	"slices"

	"pricetrack/internal/record"
)

// ErrCorruptHistory is returned when persisted history exists but cannot be
// decoded. Callers must never treat it as an empty history.
var ErrCorruptHistory = errors.New("corrupt history")

// Dataset holds at most one record per (date, source key).
type Dataset struct {
	layout  record.Layout
	records map[record.Key]record.Record
}

func NewDataset(layout record.Layout) Dataset {
	return Dataset{
		layout:  layout,
		records: make(map[record.Key]record.Record),
	}
}

func (d Dataset) Layout() record.Layout {
	return d.layout
}

func (d Dataset) Len() int {
	return len(d.records)
}

func (d Dataset) Get(key record.Key) (record.Record, bool) {
	r, ok := d.records[key]
	return r, ok
}

// Records returns every record ordered by date and then source key.
func (d Dataset) Records() []record.Record {
	out := make([]record.Record, 0, len(d.records))
	for _, r := range d.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b record.Record) int {
		return a.Key().Compare(b.Key())
	})
	return out
}

func (d Dataset) put(r record.Record) {
	d.records[r.Key()] = r
}

func (d Dataset) clone() Dataset {
	out := Dataset{
		layout:  d.layout,
		records: make(map[record.Key]record.Record, len(d.records)),
	}
	for k, r := range d.records {
		out.records[k] = r
	}
	return out
}

type MergeStats struct {
	Added     int
	Replaced  int
	Unchanged int
}

// Merge folds incoming into a copy of existing, an incoming record replaces
// the existing record with the same key. Merging the same batch twice yields
// the same dataset.
func Merge(existing Dataset, incoming []record.Record) (Dataset, MergeStats) {
	out := existing.clone()

	var stats MergeStats
	for _, r := range incoming {
		prev, ok := out.records[r.Key()]
		switch {
		case !ok:
			stats.Added++
		case prev.Equal(r):
			stats.Unchanged++
		default:
			stats.Replaced++
		}
		out.put(r)
	}
	return out, stats
}

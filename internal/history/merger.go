package history

import (
	"context"
	"fmt"

	"pricetrack/internal/assert"
	"pricetrack/internal/record"
	"pricetrack/internal/telemetry"
)

const (
	report_merger_snapshot = "merger.snapshot"
	report_merger_commit   = "merger.commit"
)

// Merger snapshots a batch and folds it into the history of one source.
type Merger struct {
	source    string
	layout    record.Layout
	store     Store
	snapshots *SnapshotWriter
	locks     *Locker
	tel       telemetry.API
}

// NewMerger creates a merger, snapshots may be nil to skip writing them.
func NewMerger(source string, layout record.Layout, store Store, snapshots *SnapshotWriter, locks *Locker, tel telemetry.API) Merger {
	assert.NotEmptyStr(source)
	assert.NotNil(store)
	assert.NotNil(locks)
	assert.NotNil(tel)
	return Merger{
		source:    source,
		layout:    layout,
		store:     store,
		snapshots: snapshots,
		locks:     locks,
		tel:       tel,
	}
}

type CommitResult struct {
	Stats        MergeStats
	SnapshotPath string
	Total        int
}

// Commit writes the snapshot, then loads, merges and saves the history while
// holding the store's lock. Nothing is saved when loading fails.
func (m Merger) Commit(ctx context.Context, date record.Date, batch []record.Record) (CommitResult, error) {
	var res CommitResult

	if m.snapshots != nil {
		path, err := m.snapshots.Write(ctx, m.source, date, m.layout, batch)
		if err != nil {
			m.tel.ReportBroken(report_merger_snapshot, telemetry.KV{Key: "source", Value: m.source}, err)
			return res, err
		}
		res.SnapshotPath = path
	}

	unlock, err := m.locks.Lock(ctx, m.store.ID())
	if err != nil {
		return res, err
	}
	defer unlock()

	existing, err := m.store.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load history: %w", err)
	}
	merged, stats := Merge(existing, batch)
	res.Stats = stats
	res.Total = merged.Len()

	if stats.Added == 0 && stats.Replaced == 0 {
		m.tel.ReportDebug("history unchanged", telemetry.KV{Key: "source", Value: m.source})
		return res, nil
	}
	err = m.store.Save(ctx, merged)
	if err != nil {
		m.tel.ReportBroken(report_merger_commit, telemetry.KV{Key: "source", Value: m.source}, err)
		return res, err
	}
	return res, nil
}

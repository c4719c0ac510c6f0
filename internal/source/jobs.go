package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"pricetrack/internal/fetcher"
	"pricetrack/internal/history"
	"pricetrack/internal/pipeline"
)

// Request is the fetch request of the source.
func (s Source) Request() fetcher.Request {
	return fetcher.Request{
		Method:  s.Method,
		URL:     s.URL,
		Headers: s.Headers,
		Body:    s.Body,
		Timeout: time.Duration(s.TimeoutSeconds) * time.Second,
	}
}

// Resources owns the databases opened for sqlite history stores.
type Resources struct {
	dbs map[string]*sql.DB
}

func NewResources() *Resources {
	return &Resources{dbs: make(map[string]*sql.DB)}
}

func (r *Resources) Close() error {
	var errlist []error
	for _, db := range r.dbs {
		errlist = append(errlist, db.Close())
	}
	return errors.Join(errlist...)
}

func (r *Resources) db(config history.SQLConfig) (*sql.DB, string, error) {
	id := config.ID()
	if db, ok := r.dbs[id]; ok {
		return db, id, nil
	}
	db, err := config.OpenDB()
	if err != nil {
		return nil, "", err
	}
	r.dbs[id] = db
	return db, id, nil
}

// Store opens the history store of a source.
func (r *Resources) Store(ctx context.Context, s Source) (history.Store, error) {
	layout := s.Schema.Layout()
	switch s.History.Kind {
	case HistoryCSV:
		return history.NewCSVStore(s.History.Path, layout), nil
	case HistorySQLite:
		db, id, err := r.db(s.History.SQLConfig)
		if err != nil {
			return nil, fmt.Errorf("open history database: %w", err)
		}
		return history.NewSQLStore(ctx, db, id, s.Name, layout)
	}
	return nil, fmt.Errorf("unknown history kind %q", s.History.Kind)
}

// Jobs builds the pipeline jobs of the named sources, or of every source
// when names is empty. The returned Resources must be closed once the jobs
// are done.
func (c Config) Jobs(ctx context.Context, names []string) ([]pipeline.Job, *Resources, error) {
	selected := c.Sources
	if len(names) > 0 {
		selected = nil
		for _, name := range names {
			s, ok := c.Source(name)
			if !ok {
				return nil, nil, fmt.Errorf("unknown source %q", name)
			}
			selected = append(selected, s)
		}
	}

	res := NewResources()
	jobs := make([]pipeline.Job, 0, len(selected))
	for _, s := range selected {
		store, err := res.Store(ctx, s)
		if err != nil {
			res.Close()
			return nil, nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		job := pipeline.Job{
			Name:          s.Name,
			Request:       s.Request(),
			Discriminator: s.Discriminator,
			Schema:        s.Schema,
			Store:         store,
		}
		if !s.NoSnapshot {
			snapshots := history.NewSnapshotWriter(s.SnapshotDir)
			job.Snapshots = &snapshots
		}
		jobs = append(jobs, job)
	}
	return jobs, res, nil
}

// Dirs lists the directories the selected sources write into.
func (c Config) Dirs() []string {
	seen := map[string]bool{}
	var dirs []string
	add := func(dir string) {
		if dir != "" && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	for _, s := range c.Sources {
		if !s.NoSnapshot {
			add(s.SnapshotDir)
		}
		switch s.History.Kind {
		case HistoryCSV:
			add(filepath.Dir(s.History.Path))
		case HistorySQLite:
			if s.History.Url == "" {
				add(filepath.Dir(s.History.File))
			}
		}
	}
	return dirs
}

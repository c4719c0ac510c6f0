package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"

	"pricetrack/internal/record"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const sqlSchema = `
create table if not exists history (
	source text not null,
	date text not null,
	source_key text not null,
	fields text not null,
	primary key (source, date, source_key)
);
`

// SQLConfig selects a local sqlite file or a remote libsql database.
type SQLConfig struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// ID is shared by every store opened from the same database.
func (config SQLConfig) ID() string {
	if config.Url != "" {
		return "sql:" + config.Url
	}
	abs, err := filepath.Abs(config.File)
	if err != nil {
		abs = filepath.Clean(config.File)
	}
	return "sql:file:" + abs
}

// libsqlDSN carries the auth token as a query parameter, keeping any query the
// url already has.
func (config SQLConfig) libsqlDSN() (string, error) {
	u, err := url.Parse(config.Url)
	if err != nil {
		return "", fmt.Errorf("libsql url: %w", err)
	}
	if config.AuthToken != "" {
		values := u.Query()
		values.Set("authToken", config.AuthToken)
		u.RawQuery = values.Encode()
	}
	return u.String(), nil
}

func (config SQLConfig) OpenDB() (*sql.DB, error) {
	if config.Url == "" {
		if config.File == "" {
			return nil, fmt.Errorf("a path was not specified")
		}
		db, err := sql.Open("sqlite", config.File)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		_, err = db.Exec("PRAGMA journal_mode=WAL")
		if err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	dsn, err := config.libsqlDSN()
	if err != nil {
		return nil, err
	}
	return sql.Open("libsql", dsn)
}

// SQLStore keeps the history of many sources in one table, each source owns
// the rows carrying its name.
type SQLStore struct {
	db     *sql.DB
	id     string
	source string
	layout record.Layout
}

// NewSQLStore creates the history table if needed. id must be the same for
// every store sharing the database.
func NewSQLStore(ctx context.Context, db *sql.DB, id, source string, layout record.Layout) (SQLStore, error) {
	_, err := db.ExecContext(ctx, sqlSchema)
	if err != nil {
		return SQLStore{}, fmt.Errorf("create history table: %w", err)
	}
	return SQLStore{db: db, id: id, source: source, layout: layout}, nil
}

func (s SQLStore) ID() string {
	return s.id
}

func (s SQLStore) Close() error {
	return s.db.Close()
}

func (s SQLStore) Load(ctx context.Context) (Dataset, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"select date, source_key, fields from history where source = ?",
		s.source,
	)
	if err != nil {
		return Dataset{}, err
	}
	defer rows.Close()

	data := NewDataset(s.layout)
	for rows.Next() {
		var date, key, fields string
		err := rows.Scan(&date, &key, &fields)
		if err != nil {
			return Dataset{}, err
		}
		rec, err := s.decode(date, key, fields)
		if err != nil {
			return Dataset{}, fmt.Errorf("%w: %s (%s, %s): %w", ErrCorruptHistory, s.source, date, key, err)
		}
		data.put(rec)
	}
	if err := rows.Err(); err != nil {
		return Dataset{}, err
	}
	return data, nil
}

func (s SQLStore) Save(ctx context.Context, data Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "delete from history where source = ?", s.source)
	if err != nil {
		return err
	}
	for _, r := range data.Records() {
		fields, err := s.encode(r)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(
			ctx,
			"insert into history (source, date, source_key, fields) values (?, ?, ?, ?)",
			s.source, r.Date.String(), r.SourceKey, fields,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s SQLStore) encode(r record.Record) (string, error) {
	fields := make(map[string]*string, len(s.layout.Fields))
	for _, f := range s.layout.Fields {
		v := r.Value(f.Name)
		if v.IsNull() {
			fields[f.Name] = nil
			continue
		}
		str := v.String()
		fields[f.Name] = &str
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s SQLStore) decode(date, key, raw string) (record.Record, error) {
	d, err := record.ParseDate(date)
	if err != nil {
		return record.Record{}, err
	}
	if key == "" {
		return record.Record{}, fmt.Errorf("empty %s", s.layout.KeyName)
	}

	var fields map[string]*string
	err = json.Unmarshal([]byte(raw), &fields)
	if err != nil {
		return record.Record{}, err
	}
	values := make(map[string]record.Value, len(s.layout.Fields))
	for _, f := range s.layout.Fields {
		str := fields[f.Name]
		if str == nil {
			values[f.Name] = record.Null(f.Kind)
			continue
		}
		v, err := record.ParseValue(f.Kind, *str)
		if err != nil {
			return record.Record{}, fmt.Errorf("field %s: %w", f.Name, err)
		}
		values[f.Name] = v
	}
	return record.Record{SourceKey: key, Date: d, Values: values}, nil
}

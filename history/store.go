package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/spance/devicecheck/readiness/definitions"
)

const fileName = "history.db"

// Store keeps past readiness checks in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one recorded run.
type Entry struct {
	ID           string
	Address      string
	StartedAt    time.Time
	Duration     time.Duration
	ConnectedVia string
	Success      bool
	ErrorKind    definitions.ErrorKind
	Report       *definitions.Report
}

// Open opens (or creates) the history database inside dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create history dir")
	}
	dbPath := filepath.Join(dir, fileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open history db")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set WAL mode")
	}
	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		connected_via TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL DEFAULT 0,
		error_kind TEXT NOT NULL DEFAULT '',
		report TEXT NOT NULL DEFAULT '{}'
	);

	CREATE INDEX IF NOT EXISTS idx_runs_address ON runs(address);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "migrate")
	}
	return nil
}

// Record stores a finished report. Recording the same run twice replaces it.
func (s *Store) Record(ctx context.Context, r *definitions.Report) error {
	data, err := sonic.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, address, started_at, duration_ms, connected_via, success, error_kind, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Address.String(), r.StartedAt.UnixMilli(), r.Duration.Milliseconds(),
		r.ConnectedVia, r.OverallSuccess, string(r.ErrorKind), string(data),
	)
	if err != nil {
		return errors.Wrap(err, "record run")
	}
	return nil
}

// Recent returns up to limit runs, newest first. A non-empty address filters by device.
func (s *Store) Recent(ctx context.Context, address string, limit int) ([]Entry, error) {
	query := `SELECT id, address, started_at, duration_ms, connected_via, success, error_kind, report FROM runs`
	var args []any
	if address != "" {
		query += ` WHERE address = ?`
		args = append(args, address)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			startedMS  int64
			durationMS int64
			kind       string
			data       string
		)
		if err := rows.Scan(&e.ID, &e.Address, &startedMS, &durationMS, &e.ConnectedVia, &e.Success, &kind, &data); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		e.StartedAt = time.UnixMilli(startedMS)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.ErrorKind = definitions.ErrorKind(kind)

		var report definitions.Report
		if err := sonic.UnmarshalString(data, &report); err != nil {
			return nil, errors.Wrapf(err, "decode report %s", e.ID)
		}
		e.Report = &report
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

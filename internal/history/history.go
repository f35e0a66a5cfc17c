// Package history keeps a small SQLite log of past runs so the status command
// can show trends beyond the latest status artifact.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	state       TEXT NOT NULL,
	cases_ok    INTEGER NOT NULL,
	cases_err   INTEGER NOT NULL,
	message     TEXT NOT NULL DEFAULT ''
);
`

// nowUTC returns the current UTC time as an ISO 8601 string.
func nowUTC() string { return time.Now().UTC().Format(time.RFC3339) }

// Run is one recorded pipeline run.
type Run struct {
	ID         int64
	StartedAt  string
	FinishedAt string
	State      string
	CasesOK    int
	CasesErr   int
	Message    string
}

// Store is the SQLite-backed run log.
type Store struct {
	db *sql.DB
}

// Open opens or creates the run-history database at path, creating the parent
// directory if needed.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun appends one run to the log and returns its id.
func (s *Store) RecordRun(startedAt time.Time, state string, casesOK, casesErr int, message string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs(started_at, finished_at, state, cases_ok, cases_err, message)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		startedAt.UTC().Format(time.RFC3339), nowUTC(), state, casesOK, casesErr, message,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Recent returns the newest runs, most recent first.
func (s *Store) Recent(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, state, cases_ok, cases_err, message
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	var list []*Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.State, &r.CasesOK, &r.CasesErr, &r.Message); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		list = append(list, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return list, nil
}

// Package store persists named sessions in SQLite so that separate CLI
// invocations can continue one logical session.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Load and Delete for unknown session names.
var ErrNotFound = errors.New("session not found")

// Record is the persisted state of one session.
type Record struct {
	Name      string
	Cookie    string
	Encoding  string
	LastURL   string
	UpdatedAt time.Time
}

// Store is a SQLite-backed session table.
type Store struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
}

const schema = `CREATE TABLE IF NOT EXISTS sessions (
	name       TEXT PRIMARY KEY,
	cookie     TEXT NOT NULL DEFAULT '',
	encoding   TEXT NOT NULL DEFAULT '',
	last_url   TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
)`

// Open opens (creating if needed) the store at path. Both plain paths and
// "sqlite://path" are accepted.
func Open(path string) (*Store, error) {
	dsn := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(path), "sqlite://"), "sqlite:")
	if dsn == "" {
		return nil, fmt.Errorf("empty session store path")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}

	return &Store{
		db:           db,
		path:         dsn,
		queryTimeout: 10 * time.Second,
	}, nil
}

// Path returns the database file in use.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Load(ctx context.Context, name string) (*Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var (
		rec     Record
		updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, cookie, encoding, last_url, updated_at FROM sessions WHERE name = ?`, name,
	).Scan(&rec.Name, &rec.Cookie, &rec.Encoding, &rec.LastURL, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	rec.UpdatedAt = time.UnixMilli(updated)
	return &rec, nil
}

// Save inserts or replaces rec. UpdatedAt is set to now when zero.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if rec.Name == "" {
		return fmt.Errorf("session name is required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (name, cookie, encoding, last_url, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			cookie = excluded.cookie,
			encoding = excluded.encoding,
			last_url = excluded.last_url,
			updated_at = excluded.updated_at`,
		rec.Name, rec.Cookie, rec.Encoding, rec.LastURL, rec.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.Name, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// List returns all sessions ordered by name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, cookie, encoding, last_url, updated_at FROM sessions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var (
			rec     Record
			updated int64
		)
		if err := rows.Scan(&rec.Name, &rec.Cookie, &rec.Encoding, &rec.LastURL, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		rec.UpdatedAt = time.UnixMilli(updated)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

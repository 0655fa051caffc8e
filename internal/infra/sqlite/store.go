// Package sqlite is the event store: append-only and mutable-status records
// for users, referral edges, manual point grants, and service requests.
// It exclusively owns all persisted entities; every write is a single
// transaction scoped to one logical event.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is a fixed-width RFC3339 variant so stored timestamps sort
// lexicographically in SQL. Trailing nanosecond zeros are kept on purpose.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// A single writer keeps SQLITE_BUSY out of the picture; reads still
	// serve concurrently through the same connection's serialization.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		// Tolerate plain RFC3339 rows written by older tooling.
		t, _ = time.Parse(time.RFC3339Nano, v)
	}
	return t
}

// now is swappable so tests can control creation-order timestamps.
var now = time.Now

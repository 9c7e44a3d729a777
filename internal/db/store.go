// Package db is the persistence layer: SQLite-backed conversation storage and
// the read-only life-tracking tables the query tool exposes.
package db

import (
	"database/sql"
)

// Store wraps the shared database connection.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store from an open database connection
func NewStore(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB}
}

// DB returns the underlying connection for sharing with other components
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Checkpoint forces a WAL checkpoint, truncating the log. Run from the
// nightly maintenance job.
func (s *Store) Checkpoint() error {
	_, err := s.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

// Package store persists libraries, books and their canonical metadata
// records in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/lepinkainen/bookmeta/internal/metadata"
	_ "modernc.org/sqlite"
)

// Library groups books.
type Library struct {
	ID   int64
	Name string
}

// Book is a catalog entry. FileName is nil for books without a file.
type Book struct {
	ID        int64
	LibraryID int64
	FileName  *string
	Record    *metadata.Record
}

// SQLiteStore implements the catalog on top of a local SQLite database
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLiteStore instance
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{
		dbPath: dbPath,
	}
}

// Open creates a store and connects to it.
func Open(dbPath string) (*SQLiteStore, error) {
	s := NewSQLiteStore(dbPath)
	if err := s.Connect(); err != nil {
		return nil, err
	}
	return s, nil
}

// Connect opens the database with foreign keys enforced and creates the
// schema.
func (s *SQLiteStore) Connect() error {
	db, err := sql.Open("sqlite", dsn(s.dbPath))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps the pragmas applied.
	db.SetMaxOpenConns(1)
	s.db = db

	for _, stmt := range schema {
		if err := s.CreateTable(stmt); err != nil {
			_ = db.Close()
			s.db = nil
			return err
		}
	}
	return nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// CreateTable creates a new table with the given schema if it doesn't exist
func (s *SQLiteStore) CreateTable(schema string) error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// inTx runs fn in a transaction and commits when it returns nil.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback if we don't commit - ignore errors as they're expected if transaction was committed
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Package sqlite provides a SQLite-backed implementation of the storage.Store
// interface. The database is always opened in memory: it gives the catalog
// SQL semantics for ordering and atomic checkout, and disappears with the
// process like the memory backend does.
package sqlite

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // registers the sqlite3 dialect
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/librarian/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

const (
	driverName  = "sqlite"
	dialectName = "sqlite3"

	// Every connection to ":memory:" is its own database, so the pool is
	// pinned to one connection that is never recycled.
	memoryDSN = ":memory:"
)

const (
	tableBooks        = "books"
	tableBorrowers    = "borrowers"
	tableTransactions = "transactions"

	colSeq          = "seq"
	colID           = "id"
	colTitle        = "title"
	colAuthor       = "author"
	colISBN         = "isbn"
	colAvailable    = "available"
	colCreatedAt    = "created_at"
	colName         = "name"
	colExternalID   = "external_id"
	colBookID       = "book_id"
	colBorrowerID   = "borrower_id"
	colCheckedOutAt = "checked_out_at"
)

// SQLiteStore implements storage.Store using an in-memory SQLite database.
type SQLiteStore struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// New opens a fresh in-memory database and runs migrations.
func New() (*SQLiteStore, error) {
	db, err := sqlx.Open(driverName, memoryDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(context.Background(), db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		dialect: goqu.Dialect(dialectName),
	}, nil
}

// Close closes the database connection, discarding all data.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

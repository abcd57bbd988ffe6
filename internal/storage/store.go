// Package storage provides abstractions for catalog record storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/librarian/internal/models"
)

var (
	// ErrNotFound is returned when no record has the requested key.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a checkout targets a book that is
	// already checked out.
	ErrConflict = errors.New("book is already checked out")
)

// Store defines the interface for catalog storage operations.
// This abstraction allows swapping storage backends (memory, SQLite)
// without changing the service layer.
//
// All List methods return records in insertion order. Records are never
// deleted and never reordered.
type Store interface {
	// CreateBook appends a new book.
	// The book.Key and book.CreatedAt fields are populated by the store
	// when empty.
	CreateBook(ctx context.Context, book *models.Book) error

	// GetBook retrieves a book by key. Returns ErrNotFound if absent.
	GetBook(ctx context.Context, key string) (*models.Book, error)

	// ListBooks returns every book in insertion order.
	ListBooks(ctx context.Context) ([]*models.Book, error)

	// CreateBorrower appends a new borrower, populating Key and CreatedAt.
	CreateBorrower(ctx context.Context, borrower *models.Borrower) error

	// GetBorrower retrieves a borrower by key. Returns ErrNotFound if absent.
	GetBorrower(ctx context.Context, key string) (*models.Borrower, error)

	// ListBorrowers returns every borrower in insertion order.
	ListBorrowers(ctx context.Context) ([]*models.Borrower, error)

	// RecordCheckout atomically marks txn.BookKey unavailable and appends
	// txn, populating txn.Key. Returns ErrNotFound if the book or borrower
	// key is unknown and ErrConflict if the book is already checked out.
	// Nothing changes on error.
	RecordCheckout(ctx context.Context, txn *models.Transaction) error

	// RecordReturn marks the book available again. Returning a book that
	// is already available is a no-op. Returns ErrNotFound for an unknown key.
	RecordReturn(ctx context.Context, bookKey string) error

	// ListTransactions returns every transaction in insertion order.
	ListTransactions(ctx context.Context) ([]*models.Transaction, error)

	// Close releases any resources held by the store.
	Close() error
}

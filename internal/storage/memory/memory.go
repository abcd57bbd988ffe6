// Package memory provides an in-process implementation of the storage.Store
// interface. Records live in insertion-ordered slices with a key index on
// the side; nothing survives the process.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/librarian/internal/models"
	"github.com/mmynk/librarian/internal/storage"
)

// Ensure MemoryStore implements storage.Store
var _ storage.Store = (*MemoryStore)(nil)

// MemoryStore implements storage.Store with plain slices.
type MemoryStore struct {
	mu sync.RWMutex

	books        []models.Book
	borrowers    []models.Borrower
	transactions []models.Transaction

	// key -> index into the slices above
	bookIndex     map[string]int
	borrowerIndex map[string]int
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		bookIndex:     make(map[string]int),
		borrowerIndex: make(map[string]int),
	}
}

// Close is a no-op; the store is discarded with the process.
func (s *MemoryStore) Close() error {
	return nil
}

// CreateBook appends a book to the catalog.
func (s *MemoryStore) CreateBook(ctx context.Context, book *models.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if book.Key == "" {
		book.Key = uuid.New().String()
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.bookIndex[book.Key]; exists {
		return fmt.Errorf("failed to insert book: duplicate key %s", book.Key)
	}
	s.bookIndex[book.Key] = len(s.books)
	s.books = append(s.books, *book)

	return nil
}

// GetBook retrieves a book by key.
func (s *MemoryStore) GetBook(ctx context.Context, key string) (*models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.bookIndex[key]
	if !ok {
		return nil, fmt.Errorf("book %s: %w", key, storage.ErrNotFound)
	}
	book := s.books[i]
	return &book, nil
}

// ListBooks returns copies of all books in insertion order.
func (s *MemoryStore) ListBooks(ctx context.Context) ([]*models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	books := make([]*models.Book, len(s.books))
	for i := range s.books {
		book := s.books[i]
		books[i] = &book
	}
	return books, nil
}

// CreateBorrower appends a borrower.
func (s *MemoryStore) CreateBorrower(ctx context.Context, borrower *models.Borrower) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if borrower.Key == "" {
		borrower.Key = uuid.New().String()
	}
	if borrower.CreatedAt.IsZero() {
		borrower.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.borrowerIndex[borrower.Key]; exists {
		return fmt.Errorf("failed to insert borrower: duplicate key %s", borrower.Key)
	}
	s.borrowerIndex[borrower.Key] = len(s.borrowers)
	s.borrowers = append(s.borrowers, *borrower)

	return nil
}

// GetBorrower retrieves a borrower by key.
func (s *MemoryStore) GetBorrower(ctx context.Context, key string) (*models.Borrower, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.borrowerIndex[key]
	if !ok {
		return nil, fmt.Errorf("borrower %s: %w", key, storage.ErrNotFound)
	}
	borrower := s.borrowers[i]
	return &borrower, nil
}

// ListBorrowers returns copies of all borrowers in insertion order.
func (s *MemoryStore) ListBorrowers(ctx context.Context) ([]*models.Borrower, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	borrowers := make([]*models.Borrower, len(s.borrowers))
	for i := range s.borrowers {
		borrower := s.borrowers[i]
		borrowers[i] = &borrower
	}
	return borrowers, nil
}

// RecordCheckout flips the book to unavailable and appends the transaction
// under a single lock.
func (s *MemoryStore) RecordCheckout(ctx context.Context, txn *models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bi, ok := s.bookIndex[txn.BookKey]
	if !ok {
		return fmt.Errorf("book %s: %w", txn.BookKey, storage.ErrNotFound)
	}
	if _, ok := s.borrowerIndex[txn.BorrowerKey]; !ok {
		return fmt.Errorf("borrower %s: %w", txn.BorrowerKey, storage.ErrNotFound)
	}
	if !s.books[bi].Available {
		return fmt.Errorf("book %s: %w", txn.BookKey, storage.ErrConflict)
	}

	if txn.Key == "" {
		txn.Key = uuid.New().String()
	}
	if txn.CheckedOutAt.IsZero() {
		txn.CheckedOutAt = time.Now()
	}

	s.books[bi].Available = false
	s.transactions = append(s.transactions, *txn)

	return nil
}

// RecordReturn puts the book back on the shelf.
func (s *MemoryStore) RecordReturn(ctx context.Context, bookKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bi, ok := s.bookIndex[bookKey]
	if !ok {
		return fmt.Errorf("book %s: %w", bookKey, storage.ErrNotFound)
	}
	s.books[bi].Available = true

	return nil
}

// ListTransactions returns copies of all transactions in insertion order.
func (s *MemoryStore) ListTransactions(ctx context.Context) ([]*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	transactions := make([]*models.Transaction, len(s.transactions))
	for i := range s.transactions {
		txn := s.transactions[i]
		transactions[i] = &txn
	}
	return transactions, nil
}

// Package service implements the library catalog: the aggregate of books,
// borrowers and checkout transactions, and the operations on it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmynk/librarian/internal/calculator"
	"github.com/mmynk/librarian/internal/metrics"
	"github.com/mmynk/librarian/internal/models"
	"github.com/mmynk/librarian/internal/storage"
)

// DefaultCurrency is the currency fines are reported in.
const DefaultCurrency = "USD"

// Clock returns the current time. Injected so fines are testable.
type Clock func() time.Time

// CatalogService owns one catalog for the life of the process.
// Lookups by identifier (ISBN, borrower ID) take the first match in
// insertion order; records are addressed uniquely only by their Key.
type CatalogService struct {
	store      storage.Store
	metrics    *metrics.Metrics
	now        Clock
	ratePerDay float64
	currency   string
}

// Option configures a CatalogService.
type Option func(*CatalogService)

// WithClock overrides time.Now.
func WithClock(clock Clock) Option {
	return func(s *CatalogService) { s.now = clock }
}

// WithFineRate sets the flat fine charged per day.
func WithFineRate(ratePerDay float64) Option {
	return func(s *CatalogService) { s.ratePerDay = ratePerDay }
}

// WithCurrency sets the currency code fines are reported in.
func WithCurrency(currency string) Option {
	return func(s *CatalogService) { s.currency = currency }
}

// WithMetrics records operation counts on m instead of a private set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CatalogService) { s.metrics = m }
}

// NewCatalogService creates a CatalogService with the given storage backend.
func NewCatalogService(store storage.Store, opts ...Option) *CatalogService {
	s := &CatalogService{
		store:      store,
		metrics:    metrics.New(),
		now:        time.Now,
		ratePerDay: calculator.DefaultRatePerDay,
		currency:   DefaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fine is a fine computed for one checkout.
type Fine struct {
	calculator.Fine

	// Currency is the ISO code of Amount.
	Currency string

	// Transaction is the checkout the fine was computed for.
	Transaction *models.Transaction

	// Book and Borrower are the records Transaction refers to.
	Book     *models.Book
	Borrower *models.Borrower
}

// AddBook appends a new, available book. Nothing is validated.
func (s *CatalogService) AddBook(ctx context.Context, title, author, isbn string) (*models.Book, error) {
	slog.Debug("AddBook request received", "title", title, "author", author, "isbn", isbn)

	book := models.NewBook(title, author, isbn)
	book.CreatedAt = s.now()
	if err := s.store.CreateBook(ctx, book); err != nil {
		slog.Error("AddBook failed", "isbn", isbn, "error", err)
		s.metrics.Observe(metrics.OpAddBook, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to add book: %w", err)
	}

	slog.Info("Book added", "book_key", book.Key, "isbn", isbn)
	s.metrics.Observe(metrics.OpAddBook, metrics.OutcomeOK)
	return book, nil
}

// AddBorrower appends a new borrower. Nothing is validated.
func (s *CatalogService) AddBorrower(ctx context.Context, name, id string) (*models.Borrower, error) {
	slog.Debug("AddBorrower request received", "name", name, "borrower_id", id)

	borrower := models.NewBorrower(name, id)
	borrower.CreatedAt = s.now()
	if err := s.store.CreateBorrower(ctx, borrower); err != nil {
		slog.Error("AddBorrower failed", "borrower_id", id, "error", err)
		s.metrics.Observe(metrics.OpAddBorrower, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to add borrower: %w", err)
	}

	slog.Info("Borrower added", "borrower_key", borrower.Key, "borrower_id", id)
	s.metrics.Observe(metrics.OpAddBorrower, metrics.OutcomeOK)
	return borrower, nil
}

// SearchBooks returns, in insertion order, every book whose title, author
// or ISBN contains term. Matching is case-sensitive; an empty term matches
// every book.
func (s *CatalogService) SearchBooks(ctx context.Context, term string) ([]*models.Book, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		slog.Error("SearchBooks failed", "error", err)
		s.metrics.Observe(metrics.OpSearchBooks, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to search books: %w", err)
	}

	var matches []*models.Book
	for _, book := range books {
		if strings.Contains(book.Title, term) ||
			strings.Contains(book.Author, term) ||
			strings.Contains(book.ISBN, term) {
			matches = append(matches, book)
		}
	}

	slog.Debug("SearchBooks successful", "term", term, "count", len(matches))
	s.metrics.Observe(metrics.OpSearchBooks, metrics.OutcomeOK)
	return matches, nil
}

// CheckoutBook lends the first available book with the given ISBN to the
// first borrower with the given ID.
//
// Failures leave the catalog unchanged and wrap ErrCheckoutRejected:
// ErrBookNotFound, ErrBookUnavailable or ErrBorrowerNotFound, checked in
// that order.
func (s *CatalogService) CheckoutBook(ctx context.Context, isbn, borrowerID string) (*models.Transaction, error) {
	slog.Debug("CheckoutBook request received", "isbn", isbn, "borrower_id", borrowerID)

	txn, err := s.checkout(ctx, isbn, borrowerID)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookUnavailable):
			s.metrics.Observe(metrics.OpCheckoutBook, metrics.OutcomeUnavailable)
		case errors.Is(err, ErrCheckoutRejected):
			s.metrics.Observe(metrics.OpCheckoutBook, metrics.OutcomeNotFound)
		default:
			slog.Error("CheckoutBook failed", "isbn", isbn, "borrower_id", borrowerID, "error", err)
			s.metrics.Observe(metrics.OpCheckoutBook, metrics.OutcomeError)
			return nil, err
		}
		slog.Info("CheckoutBook rejected", "isbn", isbn, "borrower_id", borrowerID, "reason", err)
		return nil, err
	}

	slog.Info("Book checked out", "transaction_key", txn.Key, "book_key", txn.BookKey, "borrower_key", txn.BorrowerKey)
	s.metrics.Observe(metrics.OpCheckoutBook, metrics.OutcomeOK)
	return txn, nil
}

func (s *CatalogService) checkout(ctx context.Context, isbn, borrowerID string) (*models.Transaction, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	var book *models.Book
	isbnExists := false
	for _, b := range books {
		if b.ISBN != isbn {
			continue
		}
		isbnExists = true
		if b.Available {
			book = b
			break
		}
	}
	if book == nil {
		if isbnExists {
			return nil, ErrBookUnavailable
		}
		return nil, ErrBookNotFound
	}

	borrowers, err := s.store.ListBorrowers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list borrowers: %w", err)
	}

	var borrower *models.Borrower
	for _, b := range borrowers {
		if b.ID == borrowerID {
			borrower = b
			break
		}
	}
	if borrower == nil {
		return nil, ErrBorrowerNotFound
	}

	txn := models.NewTransaction(book.Key, borrower.Key, s.now())
	if err := s.store.RecordCheckout(ctx, txn); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrBookUnavailable
		}
		return nil, fmt.Errorf("failed to record checkout: %w", err)
	}

	return txn, nil
}

// ReturnBook puts a book with the given ISBN back on the shelf.
//
// The open checkout of the first checked-out book with that ISBN is
// closed. When no such book is out but some checkout ever referenced the
// ISBN, the return succeeds without changing anything. Otherwise it fails
// with ErrTransactionNotFound.
func (s *CatalogService) ReturnBook(ctx context.Context, isbn string) (*models.Transaction, error) {
	slog.Debug("ReturnBook request received", "isbn", isbn)

	txn, open, err := s.resolveTransaction(ctx, isbn)
	if err != nil {
		return nil, s.lookupFailed(metrics.OpReturnBook, isbn, err)
	}

	if err := s.store.RecordReturn(ctx, txn.BookKey); err != nil {
		slog.Error("ReturnBook failed", "isbn", isbn, "book_key", txn.BookKey, "error", err)
		s.metrics.Observe(metrics.OpReturnBook, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to record return: %w", err)
	}

	slog.Info("Book returned", "transaction_key", txn.Key, "book_key", txn.BookKey, "was_open", open)
	s.metrics.Observe(metrics.OpReturnBook, metrics.OutcomeOK)
	return txn, nil
}

// CalculateFine computes the overdue fine for a book with the given ISBN.
//
// The checkout is resolved like ReturnBook does, without changing
// anything. The fine runs from checkout to now at the flat daily rate,
// whether or not the book has since been returned.
func (s *CatalogService) CalculateFine(ctx context.Context, isbn string) (*Fine, error) {
	slog.Debug("CalculateFine request received", "isbn", isbn)

	txn, open, err := s.resolveTransaction(ctx, isbn)
	if err != nil {
		return nil, s.lookupFailed(metrics.OpCalculateFine, isbn, err)
	}

	book, err := s.store.GetBook(ctx, txn.BookKey)
	if err != nil {
		slog.Error("CalculateFine failed", "isbn", isbn, "book_key", txn.BookKey, "error", err)
		s.metrics.Observe(metrics.OpCalculateFine, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	borrower, err := s.store.GetBorrower(ctx, txn.BorrowerKey)
	if err != nil {
		slog.Error("CalculateFine failed", "isbn", isbn, "borrower_key", txn.BorrowerKey, "error", err)
		s.metrics.Observe(metrics.OpCalculateFine, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}

	fine, err := calculator.CalculateFine(txn.CheckedOutAt, s.now(), s.ratePerDay)
	if err != nil {
		slog.Error("CalculateFine failed", "isbn", isbn, "error", err)
		s.metrics.Observe(metrics.OpCalculateFine, metrics.OutcomeError)
		return nil, fmt.Errorf("failed to calculate fine: %w", err)
	}

	slog.Info("Fine calculated",
		"transaction_key", txn.Key,
		"title", book.Title,
		"borrower_id", borrower.ID,
		"days", fine.Days,
		"amount", fine.Amount,
		"currency", s.currency,
		"open", open,
	)
	s.metrics.Observe(metrics.OpCalculateFine, metrics.OutcomeOK)
	s.metrics.AddFine(fine.Amount)

	return &Fine{
		Fine:        fine,
		Currency:    s.currency,
		Transaction: txn,
		Book:        book,
		Borrower:    borrower,
	}, nil
}

// ListBorrowers returns every borrower in insertion order.
func (s *CatalogService) ListBorrowers(ctx context.Context) ([]*models.Borrower, error) {
	return s.store.ListBorrowers(ctx)
}

// ListTransactions returns the full checkout history in insertion order.
func (s *CatalogService) ListTransactions(ctx context.Context) ([]*models.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

// Metrics returns the collectors this catalog reports to.
func (s *CatalogService) Metrics() *metrics.Metrics {
	return s.metrics
}

// resolveTransaction finds the checkout an ISBN refers to.
//
// Preference goes to the open checkout of the first checked-out book with
// the ISBN. Failing that, the first checkout in history whose book has the
// ISBN is used and open is false.
func (s *CatalogService) resolveTransaction(ctx context.Context, isbn string) (txn *models.Transaction, open bool, err error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list books: %w", err)
	}
	transactions, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list transactions: %w", err)
	}

	matching := make(map[string]bool)
	for _, book := range books {
		if book.ISBN != isbn {
			continue
		}
		matching[book.Key] = true

		if !book.Available {
			if latest := latestTransaction(transactions, book.Key); latest != nil {
				return latest, true, nil
			}
		}
	}

	for _, t := range transactions {
		if matching[t.BookKey] {
			return t, false, nil
		}
	}

	return nil, false, ErrTransactionNotFound
}

// latestTransaction returns the most recent transaction of a book, or nil.
func latestTransaction(transactions []*models.Transaction, bookKey string) *models.Transaction {
	for i := len(transactions) - 1; i >= 0; i-- {
		if transactions[i].BookKey == bookKey {
			return transactions[i]
		}
	}
	return nil
}

func (s *CatalogService) lookupFailed(operation, isbn string, err error) error {
	if errors.Is(err, ErrTransactionNotFound) {
		slog.Info("Transaction lookup found nothing", "operation", operation, "isbn", isbn)
		s.metrics.Observe(operation, metrics.OutcomeNotFound)
		return err
	}
	slog.Error("Transaction lookup failed", "operation", operation, "isbn", isbn, "error", err)
	s.metrics.Observe(operation, metrics.OutcomeError)
	return err
}

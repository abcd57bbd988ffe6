package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/mmynk/librarian/internal/models"
	"github.com/mmynk/librarian/internal/storage"
)

// bookRow is the database shape of models.Book.
type bookRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Author    string `db:"author"`
	ISBN      string `db:"isbn"`
	Available bool   `db:"available"`
	CreatedAt int64  `db:"created_at"`
}

func (r bookRow) toModel() *models.Book {
	return &models.Book{
		Key:       r.ID,
		Title:     r.Title,
		Author:    r.Author,
		ISBN:      r.ISBN,
		Available: r.Available,
		CreatedAt: time.Unix(0, r.CreatedAt),
	}
}

func (s *SQLiteStore) selectBooks() *goqu.SelectDataset {
	return s.dialect.From(tableBooks).
		Prepared(true).
		Select(colID, colTitle, colAuthor, colISBN, colAvailable, colCreatedAt)
}

// CreateBook inserts a new book.
func (s *SQLiteStore) CreateBook(ctx context.Context, book *models.Book) error {
	if book.Key == "" {
		book.Key = uuid.New().String()
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now()
	}

	query, args, err := s.dialect.Insert(tableBooks).
		Prepared(true).
		Rows(goqu.Record{
			colID:        book.Key,
			colTitle:     book.Title,
			colAuthor:    book.Author,
			colISBN:      book.ISBN,
			colAvailable: boolToInt(book.Available),
			colCreatedAt: book.CreatedAt.UnixNano(),
		}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build book insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

// GetBook retrieves a book by key.
func (s *SQLiteStore) GetBook(ctx context.Context, key string) (*models.Book, error) {
	query, args, err := s.selectBooks().Where(goqu.C(colID).Eq(key)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build book query: %w", err)
	}

	var row bookRow
	err = s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	return row.toModel(), nil
}

// ListBooks returns all books in insertion order.
func (s *SQLiteStore) ListBooks(ctx context.Context) ([]*models.Book, error) {
	query, args, err := s.selectBooks().Order(goqu.C(colSeq).Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build book query: %w", err)
	}

	var rows []bookRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	books := make([]*models.Book, len(rows))
	for i, row := range rows {
		books[i] = row.toModel()
	}
	return books, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

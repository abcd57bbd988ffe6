package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mmynk/librarian/internal/models"
	"github.com/mmynk/librarian/internal/storage"
)

type transactionRow struct {
	ID           string `db:"id"`
	BookID       string `db:"book_id"`
	BorrowerID   string `db:"borrower_id"`
	CheckedOutAt int64  `db:"checked_out_at"`
}

func (r transactionRow) toModel() *models.Transaction {
	return &models.Transaction{
		Key:          r.ID,
		BookKey:      r.BookID,
		BorrowerKey:  r.BorrowerID,
		CheckedOutAt: time.Unix(0, r.CheckedOutAt),
	}
}

// RecordCheckout marks the book unavailable and inserts the transaction in
// one database transaction.
func (s *SQLiteStore) RecordCheckout(ctx context.Context, txn *models.Transaction) error {
	if txn.Key == "" {
		txn.Key = uuid.New().String()
	}
	if txn.CheckedOutAt.IsZero() {
		txn.CheckedOutAt = time.Now()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Check the book is on the shelf
	query, args, err := s.dialect.From(tableBooks).
		Prepared(true).
		Select(colAvailable).
		Where(goqu.C(colID).Eq(txn.BookKey)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build availability query: %w", err)
	}
	var available bool
	err = tx.GetContext(ctx, &available, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("book %s: %w", txn.BookKey, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check availability: %w", err)
	}

	// Check the borrower exists
	query, args, err = s.dialect.From(tableBorrowers).
		Prepared(true).
		Select(goqu.COUNT(colID)).
		Where(goqu.C(colID).Eq(txn.BorrowerKey)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build borrower query: %w", err)
	}
	var borrowers int
	if err := tx.GetContext(ctx, &borrowers, query, args...); err != nil {
		return fmt.Errorf("failed to check borrower: %w", err)
	}
	if borrowers == 0 {
		return fmt.Errorf("borrower %s: %w", txn.BorrowerKey, storage.ErrNotFound)
	}

	if !available {
		return fmt.Errorf("book %s: %w", txn.BookKey, storage.ErrConflict)
	}

	if err := s.setAvailable(ctx, tx, txn.BookKey, false); err != nil {
		return err
	}

	query, args, err = s.dialect.Insert(tableTransactions).
		Prepared(true).
		Rows(goqu.Record{
			colID:           txn.Key,
			colBookID:       txn.BookKey,
			colBorrowerID:   txn.BorrowerKey,
			colCheckedOutAt: txn.CheckedOutAt.UnixNano(),
		}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build transaction insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// RecordReturn marks the book available.
func (s *SQLiteStore) RecordReturn(ctx context.Context, bookKey string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.setAvailable(ctx, tx, bookKey, true); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListTransactions returns all transactions in insertion order.
func (s *SQLiteStore) ListTransactions(ctx context.Context) ([]*models.Transaction, error) {
	query, args, err := s.dialect.From(tableTransactions).
		Prepared(true).
		Select(colID, colBookID, colBorrowerID, colCheckedOutAt).
		Order(goqu.C(colSeq).Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction query: %w", err)
	}

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	transactions := make([]*models.Transaction, len(rows))
	for i, row := range rows {
		transactions[i] = row.toModel()
	}
	return transactions, nil
}

// setAvailable updates one book's availability inside tx.
// Returns storage.ErrNotFound when no row has the key.
func (s *SQLiteStore) setAvailable(ctx context.Context, tx *sqlx.Tx, bookKey string, available bool) error {
	query, args, err := s.dialect.Update(tableBooks).
		Prepared(true).
		Set(goqu.Record{colAvailable: boolToInt(available)}).
		Where(goqu.C(colID).Eq(bookKey)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build availability update: %w", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("book %s: %w", bookKey, storage.ErrNotFound)
	}
	return nil
}

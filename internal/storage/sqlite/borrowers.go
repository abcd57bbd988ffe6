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

type borrowerRow struct {
	ID         string `db:"id"`
	Name       string `db:"name"`
	ExternalID string `db:"external_id"`
	CreatedAt  int64  `db:"created_at"`
}

func (r borrowerRow) toModel() *models.Borrower {
	return &models.Borrower{
		Key:       r.ID,
		Name:      r.Name,
		ID:        r.ExternalID,
		CreatedAt: time.Unix(0, r.CreatedAt),
	}
}

func (s *SQLiteStore) selectBorrowers() *goqu.SelectDataset {
	return s.dialect.From(tableBorrowers).
		Prepared(true).
		Select(colID, colName, colExternalID, colCreatedAt)
}

// CreateBorrower inserts a new borrower.
func (s *SQLiteStore) CreateBorrower(ctx context.Context, borrower *models.Borrower) error {
	if borrower.Key == "" {
		borrower.Key = uuid.New().String()
	}
	if borrower.CreatedAt.IsZero() {
		borrower.CreatedAt = time.Now()
	}

	query, args, err := s.dialect.Insert(tableBorrowers).
		Prepared(true).
		Rows(goqu.Record{
			colID:         borrower.Key,
			colName:       borrower.Name,
			colExternalID: borrower.ID,
			colCreatedAt:  borrower.CreatedAt.UnixNano(),
		}).
		ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build borrower insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert borrower: %w", err)
	}
	return nil
}

// GetBorrower retrieves a borrower by key.
func (s *SQLiteStore) GetBorrower(ctx context.Context, key string) (*models.Borrower, error) {
	query, args, err := s.selectBorrowers().Where(goqu.C(colID).Eq(key)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build borrower query: %w", err)
	}

	var row borrowerRow
	err = s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("borrower %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}

	return row.toModel(), nil
}

// ListBorrowers returns all borrowers in insertion order.
func (s *SQLiteStore) ListBorrowers(ctx context.Context) ([]*models.Borrower, error) {
	query, args, err := s.selectBorrowers().Order(goqu.C(colSeq).Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build borrower query: %w", err)
	}

	var rows []borrowerRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list borrowers: %w", err)
	}

	borrowers := make([]*models.Borrower, len(rows))
	for i, row := range rows {
		borrowers[i] = row.toModel()
	}
	return borrowers, nil
}

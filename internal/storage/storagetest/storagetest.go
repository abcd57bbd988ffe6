// Package storagetest holds the behavior every storage.Store backend must
// share. Backends call Run from their own tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/librarian/internal/models"
	"github.com/mmynk/librarian/internal/storage"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) storage.Store

// Run exercises a storage.Store implementation against the shared contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateBook generates key and timestamp", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		book := models.NewBook("Dune", "Herbert", "ISBN1")
		require.NoError(t, store.CreateBook(ctx, book))

		assert.NotEmpty(t, book.Key)
		assert.False(t, book.CreatedAt.IsZero())

		got, err := store.GetBook(ctx, book.Key)
		require.NoError(t, err)
		assert.Equal(t, book.Key, got.Key)
		assert.Equal(t, "Dune", got.Title)
		assert.Equal(t, "Herbert", got.Author)
		assert.Equal(t, "ISBN1", got.ISBN)
		assert.True(t, got.Available)
		assert.WithinDuration(t, book.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("GetBook returns ErrNotFound for unknown key", func(t *testing.T) {
		store := newStore(t)

		_, err := store.GetBook(context.Background(), "nonexistent-key")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ListBooks keeps insertion order and duplicates", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, title := range []string{"Zeta", "Alpha", "Mu"} {
			require.NoError(t, store.CreateBook(ctx, models.NewBook(title, "Anon", "SAME")))
		}

		books, err := store.ListBooks(ctx)
		require.NoError(t, err)
		require.Len(t, books, 3)
		assert.Equal(t, "Zeta", books[0].Title)
		assert.Equal(t, "Alpha", books[1].Title)
		assert.Equal(t, "Mu", books[2].Title)
		for _, b := range books {
			assert.Equal(t, "SAME", b.ISBN)
		}
	})

	t.Run("empty store lists nothing", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		books, err := store.ListBooks(ctx)
		require.NoError(t, err)
		assert.Empty(t, books)

		borrowers, err := store.ListBorrowers(ctx)
		require.NoError(t, err)
		assert.Empty(t, borrowers)

		txns, err := store.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, txns)
	})

	t.Run("CreateBorrower and GetBorrower", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		alice := models.NewBorrower("Alice", "B1")
		require.NoError(t, store.CreateBorrower(ctx, alice))
		assert.NotEmpty(t, alice.Key)

		got, err := store.GetBorrower(ctx, alice.Key)
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.Name)
		assert.Equal(t, "B1", got.ID)

		_, err = store.GetBorrower(ctx, "nonexistent-key")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, store.CreateBorrower(ctx, models.NewBorrower("Bob", "B1")))
		borrowers, err := store.ListBorrowers(ctx)
		require.NoError(t, err)
		require.Len(t, borrowers, 2)
		assert.Equal(t, "Alice", borrowers[0].Name)
		assert.Equal(t, "Bob", borrowers[1].Name)
	})

	t.Run("RecordCheckout flips availability and appends", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		book, borrower := seed(t, store)

		checkedOutAt := time.Date(2026, time.May, 4, 10, 30, 0, 0, time.UTC)
		txn := models.NewTransaction(book.Key, borrower.Key, checkedOutAt)
		require.NoError(t, store.RecordCheckout(ctx, txn))
		assert.NotEmpty(t, txn.Key)

		got, err := store.GetBook(ctx, book.Key)
		require.NoError(t, err)
		assert.False(t, got.Available)

		txns, err := store.ListTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, txn.Key, txns[0].Key)
		assert.Equal(t, book.Key, txns[0].BookKey)
		assert.Equal(t, borrower.Key, txns[0].BorrowerKey)
		assert.True(t, checkedOutAt.Equal(txns[0].CheckedOutAt),
			"checked out at %v, want %v", txns[0].CheckedOutAt, checkedOutAt)
	})

	t.Run("RecordCheckout rejects a book already out", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		book, borrower := seed(t, store)

		require.NoError(t, store.RecordCheckout(ctx, models.NewTransaction(book.Key, borrower.Key, time.Now())))

		err := store.RecordCheckout(ctx, models.NewTransaction(book.Key, borrower.Key, time.Now()))
		assert.ErrorIs(t, err, storage.ErrConflict)

		txns, err := store.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Len(t, txns, 1, "a rejected checkout must not append")
	})

	t.Run("RecordCheckout with unknown keys changes nothing", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		book, borrower := seed(t, store)

		err := store.RecordCheckout(ctx, models.NewTransaction(book.Key, "missing-borrower", time.Now()))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = store.RecordCheckout(ctx, models.NewTransaction("missing-book", borrower.Key, time.Now()))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		got, err := store.GetBook(ctx, book.Key)
		require.NoError(t, err)
		assert.True(t, got.Available)

		txns, err := store.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, txns)
	})

	t.Run("RecordReturn is idempotent and keeps history", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		book, borrower := seed(t, store)

		require.NoError(t, store.RecordCheckout(ctx, models.NewTransaction(book.Key, borrower.Key, time.Now())))
		require.NoError(t, store.RecordReturn(ctx, book.Key))
		require.NoError(t, store.RecordReturn(ctx, book.Key))

		got, err := store.GetBook(ctx, book.Key)
		require.NoError(t, err)
		assert.True(t, got.Available)

		txns, err := store.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Len(t, txns, 1, "returns never remove transactions")

		assert.ErrorIs(t, store.RecordReturn(ctx, "missing-book"), storage.ErrNotFound)
	})

	t.Run("ListTransactions keeps checkout order", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		book, borrower := seed(t, store)

		first := models.NewTransaction(book.Key, borrower.Key, time.Now())
		require.NoError(t, store.RecordCheckout(ctx, first))
		require.NoError(t, store.RecordReturn(ctx, book.Key))
		second := models.NewTransaction(book.Key, borrower.Key, time.Now())
		require.NoError(t, store.RecordCheckout(ctx, second))

		txns, err := store.ListTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, txns, 2)
		assert.Equal(t, first.Key, txns[0].Key)
		assert.Equal(t, second.Key, txns[1].Key)
	})

	t.Run("canceled context is honored", func(t *testing.T) {
		store := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.Error(t, store.CreateBook(ctx, models.NewBook("T", "A", "I")))
	})
}

func seed(t *testing.T, store storage.Store) (*models.Book, *models.Borrower) {
	t.Helper()
	ctx := context.Background()

	book := models.NewBook("Dune", "Herbert", "ISBN1")
	require.NoError(t, store.CreateBook(ctx, book))

	borrower := models.NewBorrower("Alice", "B1")
	require.NoError(t, store.CreateBorrower(ctx, borrower))

	return book, borrower
}

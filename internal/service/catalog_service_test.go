package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/librarian/internal/calculator"
	"github.com/mmynk/librarian/internal/metrics"
	"github.com/mmynk/librarian/internal/models"
	"github.com/mmynk/librarian/internal/storage"
	"github.com/mmynk/librarian/internal/storage/memory"
	"github.com/mmynk/librarian/internal/storage/sqlite"
)

// fakeClock is a settable clock for deterministic fines.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)}
}

// backends lists every store the catalog must behave identically on.
var backends = []struct {
	name string
	open func(t *testing.T) storage.Store
}{
	{"memory", func(t *testing.T) storage.Store { return memory.New() }},
	{"sqlite", func(t *testing.T) storage.Store {
		store, err := sqlite.New()
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	}},
}

// setupCatalog creates a catalog on a fresh store with a fake clock.
func setupCatalog(t *testing.T, store storage.Store, opts ...Option) (*CatalogService, *fakeClock) {
	t.Helper()

	clock := newClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewCatalogService(store, opts...), clock
}

func forEachBackend(t *testing.T, fn func(t *testing.T, svc *CatalogService, clock *fakeClock)) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			svc, clock := setupCatalog(t, backend.open(t))
			fn(t, svc, clock)
		})
	}
}

func TestAddBook_ThenSearchBySubstring(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *CatalogService, _ *fakeClock) {
		ctx := context.Background()

		book, err := svc.AddBook(ctx, "The Left Hand of Darkness", "Ursula K. Le Guin", "978-0441478125")
		require.NoError(t, err)
		assert.NotEmpty(t, book.Key)
		_, err = svc.AddBook(ctx, "Dune", "Frank Herbert", "978-0441013593")
		require.NoError(t, err)

		for _, term := range []string{"Left Hand", "Le Guin", "478125"} {
			results, err := svc.SearchBooks(ctx, term)
			require.NoError(t, err)
			require.Len(t, results, 1, "term %q", term)
			assert.Equal(t, book.Key, results[0].Key)
			assert.Equal(t, "Available", results[0].AvailabilityLabel())
		}
	})
}

func TestSearchBooks(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *CatalogService, _ *fakeClock) {
		ctx := context.Background()

		_, err := svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
		require.NoError(t, err)
		_, err = svc.AddBook(ctx, "Dune Messiah", "Herbert", "ISBN2")
		require.NoError(t, err)
		_, err = svc.AddBook(ctx, "Neuromancer", "Gibson", "ISBN3")
		require.NoError(t, err)

		tests := []struct {
			term       string
			wantTitles []string
		}{
			{"", []string{"Dune", "Dune Messiah", "Neuromancer"}},
			{"Dune", []string{"Dune", "Dune Messiah"}},
			{"dune", nil},
			{"ISBN", []string{"Dune", "Dune Messiah", "Neuromancer"}},
			{"Gibson", []string{"Neuromancer"}},
			{"nothing", nil},
		}

		for _, tt := range tests {
			results, err := svc.SearchBooks(ctx, tt.term)
			require.NoError(t, err)

			var titles []string
			for _, b := range results {
				titles = append(titles, b.Title)
			}
			assert.Equal(t, tt.wantTitles, titles, "term %q", tt.term)
		}
	})
}

func TestCheckoutBook_SucceedsOnce(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *CatalogService, clock *fakeClock) {
		ctx := context.Background()

		book, err := svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
		require.NoError(t, err)
		alice, err := svc.AddBorrower(ctx, "Alice", "B1")
		require.NoError(t, err)

		txn, err := svc.CheckoutBook(ctx, "ISBN1", "B1")
		require.NoError(t, err)
		assert.Equal(t, book.Key, txn.BookKey)
		assert.Equal(t, alice.Key, txn.BorrowerKey)
		assert.True(t, clock.Now().Equal(txn.CheckedOutAt))

		_, err = svc.CheckoutBook(ctx, "ISBN1", "B1")
		assert.ErrorIs(t, err, ErrBookUnavailable)
		assert.ErrorIs(t, err, ErrCheckoutRejected)

		txns, err := svc.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Len(t, txns, 1)

		_, err = svc.ReturnBook(ctx, "ISBN1")
		require.NoError(t, err)

		_, err = svc.CheckoutBook(ctx, "ISBN1", "B1")
		assert.NoError(t, err, "checkout works again after return")
	})
}

func TestCheckoutBook_Rejections(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *CatalogService, _ *fakeClock) {
		ctx := context.Background()

		_, err := svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
		require.NoError(t, err)
		_, err = svc.AddBorrower(ctx, "Alice", "B1")
		require.NoError(t, err)

		_, err = svc.CheckoutBook(ctx, "UNKNOWN", "B1")
		assert.ErrorIs(t, err, ErrBookNotFound)
		assert.ErrorIs(t, err, ErrCheckoutRejected)

		_, err = svc.CheckoutBook(ctx, "ISBN1", "NOBODY")
		assert.ErrorIs(t, err, ErrBorrowerNotFound)
		assert.ErrorIs(t, err, ErrCheckoutRejected)

		// Book check comes first when both lookups fail.
		_, err = svc.CheckoutBook(ctx, "UNKNOWN", "NOBODY")
		assert.ErrorIs(t, err, ErrBookNotFound)

		results, err := svc.SearchBooks(ctx, "Dune")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Available, "a rejected checkout leaves the book available")

		txns, err := svc.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, txns)
	})
}

func TestCheckoutBook_DuplicateIdentifiers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *CatalogService, _ *fakeClock) {
		ctx := context.Background()

		first, err := svc.AddBook(ctx, "Dune (copy 1)", "Herbert", "ISBN1")
		require.NoError(t, err)
		second, err := svc.AddBook(ctx, "Dune (copy 2)", "Herbert", "ISBN1")
		require.NoError(t, err)
		alice, err := svc.AddBorrower(ctx, "Alice", "B1")
		require.NoError(t, err)
		_, err = svc.AddBorrower(ctx, "Alicia", "B1")
		require.NoError(t, err)

		txn, err := svc.CheckoutBook(ctx, "ISBN1", "B1")
		require.NoError(t, err)
		assert.Equal(t, first.Key, txn.BookKey, "first available copy in insertion order")
		assert.Equal(t, alice.Key, txn.BorrowerKey, "first borrower in insertion order")

		txn, err = svc.CheckoutBook(ctx, "ISBN1", "B1")
		require.NoError(t, err)
		assert.Equal(t, second.Key, txn.BookKey, "next available copy")

		_, err = svc.CheckoutBook(ctx, "ISBN1", "B1")
		assert.ErrorIs(t, err, ErrBookUnavailable)
	})
}

func TestReturnBook(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *CatalogService, _ *fakeClock) {
		ctx := context.Background()

		_, err := svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
		require.NoError(t, err)
		_, err = svc.AddBorrower(ctx, "Alice", "B1")
		require.NoError(t, err)

		_, err = svc.ReturnBook(ctx, "ISBN1")
		assert.ErrorIs(t, err, ErrTransactionNotFound, "never checked out")

		checkout, err := svc.CheckoutBook(ctx, "ISBN1", "B1")
		require.NoError(t, err)

		returned, err := svc.ReturnBook(ctx, "ISBN1")
		require.NoError(t, err)
		assert.Equal(t, checkout.Key, returned.Key)

		results, err := svc.SearchBooks(ctx, "ISBN1")
		require.NoError(t, err)
		assert.True(t, results[0].Available)

		// Returning again is idempotent.
		_, err = svc.ReturnBook(ctx, "ISBN1")
		assert.NoError(t, err)

		txns, err := svc.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Len(t, txns, 1, "returns keep the history")
	})
}

func TestReturnBook_ClosesActiveCheckout(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *CatalogService, clock *fakeClock) {
		ctx := context.Background()

		_, err := svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
		require.NoError(t, err)
		_, err = svc.AddBorrower(ctx, "Alice", "B1")
		require.NoError(t, err)
		_, err = svc.AddBorrower(ctx, "Bob", "B2")
		require.NoError(t, err)

		first, err := svc.CheckoutBook(ctx, "ISBN1", "B1")
		require.NoError(t, err)
		_, err = svc.ReturnBook(ctx, "ISBN1")
		require.NoError(t, err)

		clock.Advance(3 * calculator.Day)
		second, err := svc.CheckoutBook(ctx, "ISBN1", "B2")
		require.NoError(t, err)
		require.NotEqual(t, first.Key, second.Key)

		clock.Advance(2 * calculator.Day)
		fine, err := svc.CalculateFine(ctx, "ISBN1")
		require.NoError(t, err)
		assert.Equal(t, second.Key, fine.Transaction.Key, "fine follows the active checkout")
		assert.InDelta(t, 1.0, fine.Amount, 1e-9)

		returned, err := svc.ReturnBook(ctx, "ISBN1")
		require.NoError(t, err)
		assert.Equal(t, second.Key, returned.Key, "return closes the active checkout")

		// With nothing out, lookups fall back to the first checkout in history.
		fine, err = svc.CalculateFine(ctx, "ISBN1")
		require.NoError(t, err)
		assert.Equal(t, first.Key, fine.Transaction.Key)
	})
}

func TestCalculateFine(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *CatalogService, clock *fakeClock) {
		ctx := context.Background()

		_, err := svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
		require.NoError(t, err)
		_, err = svc.AddBorrower(ctx, "Alice", "B1")
		require.NoError(t, err)
		_, err = svc.CheckoutBook(ctx, "ISBN1", "B1")
		require.NoError(t, err)

		const days = 14
		clock.Advance(days * calculator.Day)

		fine, err := svc.CalculateFine(ctx, "ISBN1")
		require.NoError(t, err)
		assert.InDelta(t, 0.50*days, fine.Amount, 1e-9)
		assert.InDelta(t, float64(days), fine.Days, 1e-9)
		assert.Equal(t, "USD", fine.Currency)
		require.NotNil(t, fine.Book)
		require.NotNil(t, fine.Borrower)
		assert.Equal(t, fine.Transaction.BookKey, fine.Book.Key)
		assert.Equal(t, "Dune", fine.Book.Title)
		assert.False(t, fine.Book.Available)
		assert.Equal(t, fine.Transaction.BorrowerKey, fine.Borrower.Key)
		assert.Equal(t, "Alice", fine.Borrower.Name)

		// Returning does not stop the fine from being reported.
		_, err = svc.ReturnBook(ctx, "ISBN1")
		require.NoError(t, err)

		fine, err = svc.CalculateFine(ctx, "ISBN1")
		require.NoError(t, err)
		assert.InDelta(t, 0.50*days, fine.Amount, 1e-9)
		assert.True(t, fine.Book.Available)

		_, err = svc.CalculateFine(ctx, "UNKNOWN")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestCalculateFine_ClockSkewIsNotGuarded(t *testing.T) {
	svc, clock := setupCatalog(t, memory.New())
	ctx := context.Background()

	_, err := svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
	require.NoError(t, err)
	_, err = svc.AddBorrower(ctx, "Alice", "B1")
	require.NoError(t, err)
	_, err = svc.CheckoutBook(ctx, "ISBN1", "B1")
	require.NoError(t, err)

	clock.Advance(-1 * calculator.Day)

	fine, err := svc.CalculateFine(ctx, "ISBN1")
	require.NoError(t, err)
	assert.InDelta(t, -0.50, fine.Amount, 1e-9)
}

func TestCalculateFine_CustomRateAndCurrency(t *testing.T) {
	svc, clock := setupCatalog(t, memory.New(), WithFineRate(0.25), WithCurrency("EUR"))
	ctx := context.Background()

	_, err := svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
	require.NoError(t, err)
	_, err = svc.AddBorrower(ctx, "Alice", "B1")
	require.NoError(t, err)
	_, err = svc.CheckoutBook(ctx, "ISBN1", "B1")
	require.NoError(t, err)

	clock.Advance(4 * calculator.Day)

	fine, err := svc.CalculateFine(ctx, "ISBN1")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, fine.Amount, 1e-9)
	assert.Equal(t, "EUR", fine.Currency)
}

func TestScenario_DuneLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *CatalogService, _ *fakeClock) {
		ctx := context.Background()

		availability := func() string {
			results, err := svc.SearchBooks(ctx, "Dune")
			require.NoError(t, err)
			require.Len(t, results, 1)
			return results[0].AvailabilityLabel()
		}

		_, err := svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
		require.NoError(t, err)
		assert.Equal(t, models.LabelAvailable, availability())

		_, err = svc.AddBorrower(ctx, "Alice", "B1")
		require.NoError(t, err)

		_, err = svc.CheckoutBook(ctx, "ISBN1", "B1")
		require.NoError(t, err)
		assert.Equal(t, models.LabelNotAvailable, availability())

		_, err = svc.ReturnBook(ctx, "ISBN1")
		require.NoError(t, err)
		assert.Equal(t, models.LabelAvailable, availability())
	})
}

func TestScenario_UnknownCheckoutCreatesNoTransaction(t *testing.T) {
	forEachBackend(t, func(t *testing.T, svc *CatalogService, _ *fakeClock) {
		ctx := context.Background()

		_, err := svc.AddBorrower(ctx, "Alice", "B1")
		require.NoError(t, err)

		_, err = svc.CheckoutBook(ctx, "UNKNOWN", "B1")
		assert.ErrorIs(t, err, ErrCheckoutRejected)

		_, err = svc.CalculateFine(ctx, "UNKNOWN")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestCatalogService_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	svc, clock := setupCatalog(t, memory.New(), WithMetrics(m))
	ctx := context.Background()

	_, _ = svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
	_, _ = svc.AddBorrower(ctx, "Alice", "B1")
	_, _ = svc.CheckoutBook(ctx, "ISBN1", "B1")
	_, _ = svc.CheckoutBook(ctx, "ISBN1", "B1")
	_, _ = svc.CheckoutBook(ctx, "MISSING", "B1")
	_, _ = svc.ReturnBook(ctx, "MISSING")
	clock.Advance(2 * calculator.Day)
	_, _ = svc.CalculateFine(ctx, "ISBN1")

	assert.Same(t, m, svc.Metrics())

	lines, err := m.Summary()
	require.NoError(t, err)
	assert.Contains(t, lines, `librarian_catalog_operations_total{operation="checkout_book",outcome="ok"} 1`)
	assert.Contains(t, lines, `librarian_catalog_operations_total{operation="checkout_book",outcome="unavailable"} 1`)
	assert.Contains(t, lines, `librarian_catalog_operations_total{operation="checkout_book",outcome="not_found"} 1`)
	assert.Contains(t, lines, `librarian_catalog_operations_total{operation="return_book",outcome="not_found"} 1`)
	assert.Contains(t, lines, `librarian_catalog_fines_assessed_total 1`)

	count, err := testutil.GatherAndCount(m.Registry(), "librarian_catalog_fines_assessed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCatalogService_StorageErrors(t *testing.T) {
	store, err := sqlite.New()
	require.NoError(t, err)
	svc, _ := setupCatalog(t, store)

	// A closed database makes every operation a storage failure, never a
	// domain rejection.
	require.NoError(t, store.Close())
	ctx := context.Background()

	_, err = svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
	assert.Error(t, err)

	_, err = svc.CheckoutBook(ctx, "ISBN1", "B1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCheckoutRejected)

	_, err = svc.ReturnBook(ctx, "ISBN1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransactionNotFound)
}

// missingBorrowerStore loses every borrower lookup by key.
type missingBorrowerStore struct {
	storage.Store
}

func (missingBorrowerStore) GetBorrower(context.Context, string) (*models.Borrower, error) {
	return nil, storage.ErrNotFound
}

func TestCalculateFine_UnresolvableBorrower(t *testing.T) {
	svc, _ := setupCatalog(t, missingBorrowerStore{Store: memory.New()})
	ctx := context.Background()

	_, err := svc.AddBook(ctx, "Dune", "Herbert", "ISBN1")
	require.NoError(t, err)
	_, err = svc.AddBorrower(ctx, "Alice", "B1")
	require.NoError(t, err)
	_, err = svc.CheckoutBook(ctx, "ISBN1", "B1")
	require.NoError(t, err)

	_, err = svc.CalculateFine(ctx, "ISBN1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NotErrorIs(t, err, ErrTransactionNotFound)
}

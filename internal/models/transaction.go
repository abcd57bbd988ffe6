package models

import "time"

// Transaction records one checkout of a book by a borrower.
//
// Transactions are never mutated after creation. Whether a transaction is
// still open is derived: it is open when it is the latest transaction of
// its book and the book is unavailable.
type Transaction struct {
	// Key is the unique identifier for the transaction (UUID format).
	Key string

	// BookKey references the Book that was checked out.
	BookKey string

	// BorrowerKey references the Borrower who checked it out.
	BorrowerKey string

	// CheckedOutAt is when the checkout happened.
	CheckedOutAt time.Time
}

// NewTransaction creates a checkout record for the given book and borrower.
func NewTransaction(bookKey, borrowerKey string, checkedOutAt time.Time) *Transaction {
	return &Transaction{
		BookKey:      bookKey,
		BorrowerKey:  borrowerKey,
		CheckedOutAt: checkedOutAt,
	}
}

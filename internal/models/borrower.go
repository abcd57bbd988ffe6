package models

import "time"

// Borrower represents a registered patron.
type Borrower struct {
	// Key is the unique identifier for the borrower (UUID format).
	Key string

	// Name is the display name of the borrower.
	Name string

	// ID is the borrower identifier as entered (e.g. a library card number).
	// Not validated and not unique; lookups take the first match.
	ID string

	// CreatedAt is when the borrower was registered.
	CreatedAt time.Time
}

// NewBorrower creates a borrower. The key is left for the store to assign.
func NewBorrower(name, id string) *Borrower {
	return &Borrower{Name: name, ID: id}
}

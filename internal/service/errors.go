package service

import (
	"errors"
	"fmt"
)

var (
	// ErrCheckoutRejected is the common cause of every failed checkout.
	// Callers that do not care why a checkout failed match on this one.
	ErrCheckoutRejected = errors.New("book or borrower not found or book is not available")

	// ErrBookNotFound is returned when no book carries the identifier.
	ErrBookNotFound = fmt.Errorf("%w: no book with that identifier", ErrCheckoutRejected)

	// ErrBookUnavailable is returned when every book with the identifier is
	// checked out.
	ErrBookUnavailable = fmt.Errorf("%w: book is checked out", ErrCheckoutRejected)

	// ErrBorrowerNotFound is returned when no borrower carries the identifier.
	ErrBorrowerNotFound = fmt.Errorf("%w: no borrower with that identifier", ErrCheckoutRejected)

	// ErrTransactionNotFound is returned by return and fine lookups when no
	// checkout ever referenced the identifier.
	ErrTransactionNotFound = errors.New("book transaction not found")
)

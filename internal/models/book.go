package models

import "time"

const (
	// LabelAvailable is the availability label of a book on the shelf.
	LabelAvailable = "Available"

	// LabelNotAvailable is the availability label of a checked-out book.
	LabelNotAvailable = "Not Available"
)

// Book represents a single catalog entry.
type Book struct {
	// Key is the unique identifier for the book (UUID format).
	// Assigned by the store on creation.
	Key string

	// Title is the book title as entered.
	Title string

	// Author is the author name as entered.
	Author string

	// ISBN is the catalog identifier as entered.
	// Not validated and not unique; lookups take the first match.
	ISBN string

	// Available is true while the book is on the shelf.
	// Books start available and flip to false on checkout.
	Available bool

	// CreatedAt is when the book was added to the catalog.
	CreatedAt time.Time
}

// NewBook creates an available book. The key is left for the store to assign.
func NewBook(title, author, isbn string) *Book {
	return &Book{
		Title:     title,
		Author:    author,
		ISBN:      isbn,
		Available: true,
	}
}

// AvailabilityLabel renders the availability flag for display.
func (b Book) AvailabilityLabel() string {
	if b.Available {
		return LabelAvailable
	}
	return LabelNotAvailable
}

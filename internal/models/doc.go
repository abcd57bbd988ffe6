// Package models defines the core domain records for the library catalog.
//
// # Records
//
//   - Book: a catalog entry, available or checked out
//   - Borrower: a registered patron
//   - Transaction: one checkout event linking a Book to a Borrower
//
// # Keys and Identifiers
//
// Every record carries a Key, a UUID generated when the record is stored.
// Keys are unique and stable for the life of the process; relationships
// between records always go through keys, never through pointers into a
// collection.
//
// Identifiers (Book.ISBN, Borrower.ID) are whatever the librarian typed.
// They are not validated and not unique. Any lookup by identifier resolves
// to the first matching record in insertion order; callers that need to
// address one specific record use its Key.
//
// # Transactions
//
// Transactions are append-only. A return never edits or removes one. A
// transaction is "open" when it is the most recent transaction of a book
// that is currently unavailable; see Transaction for details.
package models

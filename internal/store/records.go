// internal/store/records.go
package store

import (
	"time"

	"github.com/google/uuid"
)

// Book is a catalog entry. IDs are assigned by the store on insert.
type Book struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	ISBN            string    `json:"isbn" db:"isbn"`
	TotalCopies     int       `json:"total_copies" db:"total_copies"`
	AvailableCopies int       `json:"available_copies" db:"available_copies"`
}

// BorrowRecord tracks one loan of one book to one patron. A record with no
// return date is active; there is at most one active record per
// (patron, book) pair, enforced by the caller before insert.
type BorrowRecord struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	PatronID   string     `json:"patron_id" db:"patron_id"`
	BookID     uuid.UUID  `json:"book_id" db:"book_id"`
	BorrowDate time.Time  `json:"borrow_date" db:"borrow_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
}

// Active reports whether the loan is still outstanding.
func (r BorrowRecord) Active() bool {
	return r.ReturnDate == nil
}

// PatronRecord is a borrow record joined with the book's title and author,
// as returned by ListBorrowRecords for status reporting.
type PatronRecord struct {
	BorrowRecord
	Title  string `json:"title" db:"title"`
	Author string `json:"author" db:"author"`
}

// internal/store/store.go
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by lookups when no matching record exists.
	ErrNotFound = errors.New("record not found")
	// ErrAvailabilityBounds is returned when an availability adjustment
	// would push available_copies below zero or above total_copies.
	ErrAvailabilityBounds = errors.New("availability adjustment out of bounds")
	// ErrDuplicateISBN is returned by InsertBook when the ISBN is taken.
	ErrDuplicateISBN = errors.New("isbn already exists")
)

// Store persists books and borrow records. Implementations are expected to
// complete synchronously or fail fast; no cross-call locking is provided, so
// the usual read-check-then-write sequences in callers are racy under
// concurrent requests for the same patron or book.
type Store interface {
	FindBookByID(ctx context.Context, id uuid.UUID) (*Book, error)
	FindBookByISBN(ctx context.Context, isbn string) (*Book, error)
	InsertBook(ctx context.Context, title, author, isbn string, totalCopies, availableCopies int) (*Book, error)

	// ListBooks returns the whole catalog ordered by title ascending.
	ListBooks(ctx context.Context) ([]Book, error)

	// SearchBooks matches title/author case-insensitively by substring and
	// isbn exactly. An empty term or an unsupported search type yields an
	// empty result, not an error.
	SearchBooks(ctx context.Context, term, searchType string) ([]Book, error)

	CountActiveBorrows(ctx context.Context, patronID string) (int, error)
	FindActiveBorrow(ctx context.Context, patronID string, bookID uuid.UUID) (*BorrowRecord, error)
	ListBorrowRecords(ctx context.Context, patronID string) ([]PatronRecord, error)
	InsertBorrowRecord(ctx context.Context, patronID string, bookID uuid.UUID, borrowDate, dueDate time.Time) error

	// SetReturnDate closes the active borrow record for the pair.
	SetReturnDate(ctx context.Context, patronID string, bookID uuid.UUID, returnDate time.Time) error

	// AdjustAvailability shifts available_copies by delta, keeping it within
	// [0, total_copies].
	AdjustAvailability(ctx context.Context, bookID uuid.UUID, delta int) error

	Close() error
}

// Allowed search types for SearchBooks.
const (
	SearchByTitle  = "title"
	SearchByAuthor = "author"
	SearchByISBN   = "isbn"
)

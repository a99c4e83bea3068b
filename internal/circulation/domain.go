// internal/circulation/domain.go
package circulation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Borrowing policy.
const (
	LoanPeriodDays = 14
	MaxActiveLoans = 5
)

// Late fee tiering: $0.50/day for the first week overdue, $1.00/day beyond,
// capped at $15.00.
const (
	FirstWeekDailyFee = 0.50
	LaterDailyFee     = 1.00
	FirstWeekDays     = 7
	MaxLateFee        = 15.00
)

var (
	ErrInvalidPatronID     = errors.New("Invalid patron ID. Must be exactly 6 digits.")
	ErrBookNotFound        = errors.New("Book not found.")
	ErrBookUnavailable     = errors.New("This book is currently not available.")
	ErrBorrowLimitExceeded = errors.New("You have reached the maximum borrowing limit of 5 books.")
	ErrNoActiveBorrow      = errors.New("No active borrow record found for this patron and book.")
)

// LateFeeResult is the computed fee for one loan at one point in time. It is
// derived, never persisted.
type LateFeeResult struct {
	FeeAmount   float64 `json:"fee_amount"`
	DaysOverdue int     `json:"days_overdue"`
	Status      string  `json:"status"`
}

// BorrowConfirmation is returned on a successful borrow.
type BorrowConfirmation struct {
	BookID  uuid.UUID `json:"book_id"`
	Title   string    `json:"title"`
	DueDate time.Time `json:"due_date"`
	Message string    `json:"message"`
}

// ReturnConfirmation is returned on a successful return, carrying the fee
// computed before the record was closed.
type ReturnConfirmation struct {
	BookID  uuid.UUID     `json:"book_id"`
	Title   string        `json:"title"`
	Fee     LateFeeResult `json:"fee"`
	Message string        `json:"message"`
}

// Loan is one borrow record annotated for a patron status report. IsOverdue
// and LateFee are only populated for current loans.
type Loan struct {
	BookID     uuid.UUID  `json:"book_id"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	IsOverdue  bool       `json:"is_overdue"`
	LateFee    float64    `json:"late_fee"`
}

// PatronStatusReport aggregates a patron's loans, recomputed per request.
type PatronStatusReport struct {
	PatronID      string  `json:"patron_id"`
	CurrentLoans  []Loan  `json:"current_loans"`
	History       []Loan  `json:"history"`
	ActiveCount   int     `json:"active_count"`
	TotalLateFees float64 `json:"total_late_fees"`
	Status        string  `json:"status"`
}

// ValidPatronID reports whether id is exactly six digits.
func ValidPatronID(id string) bool {
	if len(id) != 6 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

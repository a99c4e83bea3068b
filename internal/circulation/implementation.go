// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"circulib/internal/store"
)

// service implements the Service interface.
type service struct {
	store store.Store
}

// NewService creates a new circulation service instance.
func NewService(st store.Store) Service {
	return &service{store: st}
}

// BorrowBook checks out a book to a patron. Checks run in order and stop at
// the first failure; on success the due date is the borrow date plus the loan
// period.
func (s *service) BorrowBook(ctx context.Context, patronID string, bookID uuid.UUID) (*BorrowConfirmation, error) {
	if !ValidPatronID(patronID) {
		return nil, ErrInvalidPatronID
	}

	book, err := s.store.FindBookByID(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up book: %w", err)
	}

	if book.AvailableCopies <= 0 {
		return nil, ErrBookUnavailable
	}

	active, err := s.store.CountActiveBorrows(ctx, patronID)
	if err != nil {
		return nil, fmt.Errorf("count active borrows: %w", err)
	}
	if active >= MaxActiveLoans {
		return nil, ErrBorrowLimitExceeded
	}

	borrowDate := time.Now()
	dueDate := borrowDate.AddDate(0, 0, LoanPeriodDays)

	if err := s.store.InsertBorrowRecord(ctx, patronID, bookID, borrowDate, dueDate); err != nil {
		return nil, fmt.Errorf("database error occurred while creating borrow record: %w", err)
	}

	if err := s.store.AdjustAvailability(ctx, bookID, -1); err != nil {
		// The borrow record already exists; there is no rollback here, so the
		// stored availability is now stale until corrected.
		log.Printf("availability decrement failed after borrow insert for book %s: %v", bookID, err)
		return nil, fmt.Errorf("database error occurred while updating book availability: %w", err)
	}

	return &BorrowConfirmation{
		BookID:  bookID,
		Title:   book.Title,
		DueDate: dueDate,
		Message: fmt.Sprintf("Successfully borrowed %q. Due date: %s.", book.Title, dueDate.Format("2006-01-02")),
	}, nil
}

// ReturnBook closes the active borrow record for the pair and restores one
// copy. The late fee is computed before any state changes.
func (s *service) ReturnBook(ctx context.Context, patronID string, bookID uuid.UUID) (*ReturnConfirmation, error) {
	if !ValidPatronID(patronID) {
		return nil, ErrInvalidPatronID
	}

	book, err := s.store.FindBookByID(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("look up book: %w", err)
	}

	record, err := s.store.FindActiveBorrow(ctx, patronID, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoActiveBorrow
	}
	if err != nil {
		return nil, fmt.Errorf("look up active borrow: %w", err)
	}

	fee := feeForRecord(*record, time.Now())

	if err := s.store.SetReturnDate(ctx, patronID, bookID, time.Now()); err != nil {
		return nil, fmt.Errorf("database error occurred while updating borrow record: %w", err)
	}

	if err := s.store.AdjustAvailability(ctx, bookID, 1); err != nil {
		log.Printf("availability increment failed after return for book %s: %v", bookID, err)
		return nil, fmt.Errorf("database error occurred while updating book availability: %w", err)
	}

	return &ReturnConfirmation{
		BookID: bookID,
		Title:  book.Title,
		Fee:    fee,
		Message: fmt.Sprintf("Book %q successfully returned. Late fee: $%.2f. %s",
			book.Title, fee.FeeAmount, fee.Status),
	}, nil
}

// CalculateLateFee computes the current fee for the active loan of the pair.
// It never mutates state; with no active loan the fee is zero.
func (s *service) CalculateLateFee(ctx context.Context, patronID string, bookID uuid.UUID) (LateFeeResult, error) {
	record, err := s.store.FindActiveBorrow(ctx, patronID, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return LateFeeResult{
			FeeAmount:   0,
			DaysOverdue: 0,
			Status:      "No active borrow found for this patron and book.",
		}, nil
	}
	if err != nil {
		return LateFeeResult{}, fmt.Errorf("look up active borrow: %w", err)
	}

	return feeForRecord(*record, time.Now()), nil
}

// PatronStatus builds the full report for a patron: current loans annotated
// with live fees, returned history, and totals. An invalid patron id yields
// an empty report without touching the store.
func (s *service) PatronStatus(ctx context.Context, patronID string) (*PatronStatusReport, error) {
	if !ValidPatronID(patronID) {
		return &PatronStatusReport{
			PatronID:     patronID,
			CurrentLoans: []Loan{},
			History:      []Loan{},
			Status:       ErrInvalidPatronID.Error(),
		}, nil
	}

	records, err := s.store.ListBorrowRecords(ctx, patronID)
	if err != nil {
		return nil, fmt.Errorf("list borrow records: %w", err)
	}

	now := time.Now()
	report := &PatronStatusReport{
		PatronID:     patronID,
		CurrentLoans: []Loan{},
		History:      []Loan{},
	}

	for _, rec := range records {
		loan := Loan{
			BookID:     rec.BookID,
			Title:      rec.Title,
			Author:     rec.Author,
			BorrowDate: rec.BorrowDate,
			DueDate:    rec.DueDate,
			ReturnDate: rec.ReturnDate,
		}
		if rec.Active() {
			fee := feeForRecord(rec.BorrowRecord, now)
			loan.IsOverdue = fee.DaysOverdue > 0
			loan.LateFee = fee.FeeAmount
			report.TotalLateFees += fee.FeeAmount
			report.CurrentLoans = append(report.CurrentLoans, loan)
		} else {
			report.History = append(report.History, loan)
		}
	}

	report.ActiveCount = len(report.CurrentLoans)
	report.TotalLateFees = round2(report.TotalLateFees)
	if len(records) > 0 {
		report.Status = "OK"
	} else {
		report.Status = "No borrow records found."
	}
	return report, nil
}

// feeForRecord prices an active loan against the tiered schedule. Overdue
// days are whole elapsed days, floored.
func feeForRecord(rec store.BorrowRecord, now time.Time) LateFeeResult {
	daysOverdue := int(math.Floor(now.Sub(rec.DueDate).Hours() / 24))
	if daysOverdue < 0 {
		daysOverdue = 0
	}

	if daysOverdue == 0 {
		return LateFeeResult{
			FeeAmount:   0,
			DaysOverdue: 0,
			Status:      "Book returned on time.",
		}
	}

	return LateFeeResult{
		FeeAmount:   feeForDays(daysOverdue),
		DaysOverdue: daysOverdue,
		Status:      "Book is overdue.",
	}
}

func feeForDays(daysOverdue int) float64 {
	if daysOverdue <= 0 {
		return 0
	}
	firstWeek := daysOverdue
	if firstWeek > FirstWeekDays {
		firstWeek = FirstWeekDays
	}
	remaining := daysOverdue - FirstWeekDays
	if remaining < 0 {
		remaining = 0
	}
	fee := float64(firstWeek)*FirstWeekDailyFee + float64(remaining)*LaterDailyFee
	return round2(math.Min(fee, MaxLateFee))
}

func round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

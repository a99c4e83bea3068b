// internal/circulation/service.go
package circulation

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the circulation service.
type Service interface {
	BorrowBook(ctx context.Context, patronID string, bookID uuid.UUID) (*BorrowConfirmation, error)
	ReturnBook(ctx context.Context, patronID string, bookID uuid.UUID) (*ReturnConfirmation, error)
	CalculateLateFee(ctx context.Context, patronID string, bookID uuid.UUID) (LateFeeResult, error)
	PatronStatus(ctx context.Context, patronID string) (*PatronStatusReport, error)
}

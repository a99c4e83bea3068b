// internal/payments/service.go
package payments

import (
	"context"

	"github.com/google/uuid"

	"circulib/internal/circulation"
)

// Service defines the interface for the payment reconciliation service.
type Service interface {
	PayLateFee(ctx context.Context, patronID string, bookID uuid.UUID) PaymentOutcome
	RefundLateFee(ctx context.Context, transactionID string, amount float64) PaymentOutcome
}

// FeeCalculator supplies the current late fee for a loan. The circulation
// service satisfies it.
type FeeCalculator interface {
	CalculateLateFee(ctx context.Context, patronID string, bookID uuid.UUID) (circulation.LateFeeResult, error)
}

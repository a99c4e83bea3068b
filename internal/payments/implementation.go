// internal/payments/implementation.go
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"circulib/internal/circulation"
	"circulib/internal/store"
)

// service implements the Service interface.
type service struct {
	gateway Gateway
	store   store.Store
	fees    FeeCalculator
	limiter *rate.Limiter
}

// NewService creates a new payments service instance.
func NewService(gateway Gateway, st store.Store, fees FeeCalculator) Service {
	return &service{
		gateway: gateway,
		store:   st,
		fees:    fees,
		limiter: rate.NewLimiter(rate.Every(time.Second), 10), // 10-call burst toward the provider
	}
}

func acceptedPaymentStatus(status string) bool {
	switch strings.ToLower(status) {
	case "approved", "success", "ok":
		return true
	}
	return false
}

func acceptedRefundStatus(status string) bool {
	switch strings.ToLower(status) {
	case "refunded", "success", "ok":
		return true
	}
	return false
}

// PayLateFee charges the patron's current late fee for a book through the
// gateway. The fee is recomputed first; with nothing due the gateway is never
// invoked. Gateway failures never mutate borrow or book state.
func (s *service) PayLateFee(ctx context.Context, patronID string, bookID uuid.UUID) PaymentOutcome {
	if !circulation.ValidPatronID(patronID) {
		return failure("invalid patron id; must be 6 digits.", "", 0)
	}

	book, err := s.store.FindBookByID(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return failure("book not found.", "", 0)
	}
	if err != nil {
		return failure(fmt.Sprintf("payment failed: %v", err), "", 0)
	}

	fee, err := s.fees.CalculateLateFee(ctx, patronID, bookID)
	if err != nil {
		return failure(fmt.Sprintf("payment failed: %v", err), "", 0)
	}
	amount := round2(fee.FeeAmount)
	if amount <= 0 {
		return failure("no late fees due for this book.", "", 0)
	}

	if !s.limiter.Allow() {
		return failure("payment rate limit exceeded.", "", amount)
	}

	resp, err := s.gateway.Authorize(ctx, patronID, bookID, amount)
	if err != nil {
		var gErr *GatewayError
		if errors.As(err, &gErr) {
			return failure(fmt.Sprintf("payment gateway error: %v", gErr), "", amount)
		}
		return failure(fmt.Sprintf("payment failed: %v", err), "", amount)
	}

	if !acceptedPaymentStatus(resp.Status) {
		return failure("payment declined by gateway.", resp.TransactionID, amount)
	}

	return success(
		fmt.Sprintf("late fee payment recorded for %q.", book.Title),
		resp.TransactionID,
		amount,
	)
}

// RefundLateFee reverses a prior fee payment. The amount must be positive and
// no more than the largest possible fee; anything else is rejected before the
// gateway is touched.
func (s *service) RefundLateFee(ctx context.Context, transactionID string, amount float64) PaymentOutcome {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return failure("transaction id is required.", "", 0)
	}

	amount = round2(amount)
	if amount <= 0 {
		return failure("refund amount must be positive.", "", 0)
	}
	if amount > MaxRefundAmount {
		return failure("refund amount cannot exceed $15.00.", "", 0)
	}

	if !s.limiter.Allow() {
		return failure("payment rate limit exceeded.", "", amount)
	}

	resp, err := s.gateway.Refund(ctx, transactionID, amount)
	if err != nil {
		var gErr *GatewayError
		if errors.As(err, &gErr) {
			return failure(fmt.Sprintf("payment gateway error: %v", gErr), "", amount)
		}
		return failure(fmt.Sprintf("refund failed: %v", err), "", amount)
	}

	echoedID := resp.TransactionID
	if echoedID == "" {
		echoedID = transactionID
	}

	if !acceptedRefundStatus(resp.Status) {
		return failure("refund declined by gateway.", echoedID, amount)
	}

	return success(fmt.Sprintf("refund issued for $%.2f.", amount), echoedID, amount)
}

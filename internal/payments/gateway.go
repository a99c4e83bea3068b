// internal/payments/gateway.go
package payments

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// GatewayResponse is the provider's answer to an authorize or refund call.
type GatewayResponse struct {
	TransactionID string  `json:"transaction_id"`
	Status        string  `json:"status"`
	Amount        float64 `json:"amount"`
}

// GatewayError signals that the provider refused to act. It is returned as a
// value, never panicked, so callers can fold it into a PaymentOutcome.
type GatewayError struct {
	Reason string
}

func (e *GatewayError) Error() string {
	return e.Reason
}

// Gateway is the payment provider capability consumed by the service. Test
// doubles implement the same interface.
type Gateway interface {
	Authorize(ctx context.Context, patronID string, bookID uuid.UUID, amount float64) (GatewayResponse, error)
	Refund(ctx context.Context, transactionID string, amount float64) (GatewayResponse, error)
}

// SimulatedGateway is a fake provider issuing synthetic transaction IDs.
// The ID format carries the patron and book plus a nanosecond timestamp and
// a sequence number; only uniqueness is contractual.
type SimulatedGateway struct {
	seq atomic.Uint64
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{}
}

func (g *SimulatedGateway) Authorize(_ context.Context, patronID string, bookID uuid.UUID, amount float64) (GatewayResponse, error) {
	if amount <= 0 {
		return GatewayResponse{}, &GatewayError{Reason: "amount must be positive"}
	}
	return GatewayResponse{
		TransactionID: fmt.Sprintf("pay_%s_%s_%d_%d", patronID, bookID, time.Now().UnixNano(), g.seq.Add(1)),
		Status:        "approved",
		Amount:        round2(amount),
	}, nil
}

func (g *SimulatedGateway) Refund(_ context.Context, transactionID string, amount float64) (GatewayResponse, error) {
	if transactionID == "" {
		return GatewayResponse{}, &GatewayError{Reason: "transaction id required"}
	}
	if amount <= 0 {
		return GatewayResponse{}, &GatewayError{Reason: "amount must be positive"}
	}
	return GatewayResponse{
		TransactionID: transactionID,
		Status:        "refunded",
		Amount:        round2(amount),
	}, nil
}

func round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

var _ Gateway = (*SimulatedGateway)(nil)

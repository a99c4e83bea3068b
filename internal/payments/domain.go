// internal/payments/domain.go
package payments

// MaxRefundAmount is the largest refundable amount, equal to the maximum
// possible late fee.
const MaxRefundAmount = 15.00

// PaymentOutcome reports the result of a payment or refund attempt. Failures
// are carried in the value, never thrown across the service boundary.
type PaymentOutcome struct {
	Success       bool    `json:"success"`
	Message       string  `json:"message"`
	TransactionID string  `json:"transaction_id,omitempty"`
	Amount        float64 `json:"amount"`
}

func failure(message string, transactionID string, amount float64) PaymentOutcome {
	return PaymentOutcome{
		Success:       false,
		Message:       message,
		TransactionID: transactionID,
		Amount:        round2(amount),
	}
}

func success(message string, transactionID string, amount float64) PaymentOutcome {
	return PaymentOutcome{
		Success:       true,
		Message:       message,
		TransactionID: transactionID,
		Amount:        round2(amount),
	}
}

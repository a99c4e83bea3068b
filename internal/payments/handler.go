// internal/payments/handler.go
package payments

import (
	"net/http"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func writeOutcome(w http.ResponseWriter, outcome PaymentOutcome) {
	w.Header().Set("Content-Type", "application/json")
	if !outcome.Success {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	json.NewEncoder(w).Encode(outcome)
}

func (h *Handler) HandlePayLateFee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatronID string    `json:"patron_id"`
		BookID   uuid.UUID `json:"book_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeOutcome(w, h.service.PayLateFee(r.Context(), req.PatronID, req.BookID))
}

func (h *Handler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TransactionID string  `json:"transaction_id"`
		Amount        float64 `json:"amount"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeOutcome(w, h.service.RefundLateFee(r.Context(), req.TransactionID, req.Amount))
}

// internal/circulation/handler.go
package circulation

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
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

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrInvalidPatronID):
		return http.StatusBadRequest
	case errors.Is(err, ErrBookNotFound), errors.Is(err, ErrNoActiveBorrow):
		return http.StatusNotFound
	case errors.Is(err, ErrBookUnavailable), errors.Is(err, ErrBorrowLimitExceeded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatronID string    `json:"patron_id"`
		BookID   uuid.UUID `json:"book_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	confirmation, err := h.service.BorrowBook(r.Context(), req.PatronID, req.BookID)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(confirmation)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatronID string    `json:"patron_id"`
		BookID   uuid.UUID `json:"book_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	confirmation, err := h.service.ReturnBook(r.Context(), req.PatronID, req.BookID)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(confirmation)
}

func (h *Handler) HandleLateFee(w http.ResponseWriter, r *http.Request) {
	patronID := chi.URLParam(r, "patronID")
	bookID, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	fee, err := h.service.CalculateLateFee(r.Context(), patronID, bookID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fee)
}

func (h *Handler) HandlePatronStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.PatronStatus(r.Context(), chi.URLParam(r, "patronID"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

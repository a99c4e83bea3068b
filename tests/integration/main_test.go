// tests/integration/main_test.go
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circulib/internal/catalog"
	"circulib/internal/circulation"
	"circulib/internal/payments"
	"circulib/internal/server"
	"circulib/internal/store"
)

type testSuite struct {
	store  store.Store
	server *httptest.Server
}

func setupTestSuite(t *testing.T) *testSuite {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)

	catalogService := catalog.NewService(st)
	circulationService := circulation.NewService(st)
	paymentsService := payments.NewService(payments.NewSimulatedGateway(), st, circulationService)

	srv := httptest.NewServer(server.NewRouter(catalogService, circulationService, paymentsService))
	t.Cleanup(func() {
		srv.Close()
		st.Close()
	})

	return &testSuite{store: st, server: srv}
}

func (ts *testSuite) postJSON(t *testing.T, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(ts.server.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func httpGet(t *testing.T, url string, into any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, into)
}

func TestBorrowAndReturnFlow(t *testing.T) {
	ts := setupTestSuite(t)

	// Add a book to the catalog.
	var added struct {
		Message string     `json:"message"`
		Book    store.Book `json:"book"`
	}
	resp := ts.postJSON(t, "/books", map[string]any{
		"title":        "Pride and Prejudice",
		"author":       "Jane Austen",
		"isbn":         "9780141439518",
		"total_copies": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &added)
	require.NotEqual(t, uuid.Nil, added.Book.ID)

	// Borrow it.
	var confirmation circulation.BorrowConfirmation
	resp = ts.postJSON(t, "/borrow", map[string]any{
		"patron_id": "123456",
		"book_id":   added.Book.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &confirmation)
	assert.Contains(t, confirmation.Message, "Successfully borrowed")

	// Availability dropped by one.
	book, err := ts.store.FindBookByID(context.Background(), added.Book.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, book.AvailableCopies)

	// The status report shows one current loan.
	var report circulation.PatronStatusReport
	httpGet(t, ts.server.URL+"/patrons/123456/status", &report)
	assert.Equal(t, 1, report.ActiveCount)
	assert.Equal(t, "OK", report.Status)

	// Return it.
	var returned circulation.ReturnConfirmation
	resp = ts.postJSON(t, "/return", map[string]any{
		"patron_id": "123456",
		"book_id":   added.Book.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &returned)
	assert.Contains(t, returned.Message, "successfully returned")
	assert.Equal(t, 0.0, returned.Fee.FeeAmount)

	// Availability restored.
	book, err = ts.store.FindBookByID(context.Background(), added.Book.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, book.AvailableCopies)

	// A second return fails: nothing is active anymore.
	resp = ts.postJSON(t, "/return", map[string]any{
		"patron_id": "123456",
		"book_id":   added.Book.ID,
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSearchEndpoint(t *testing.T) {
	ts := setupTestSuite(t)

	for i, title := range []string{"alpha code", "alpha guide", "unrelated title"} {
		resp := ts.postJSON(t, "/books", map[string]any{
			"title":        title,
			"author":       "Author",
			"isbn":         fmt.Sprintf("100000000000%d", i+1),
			"total_copies": 1,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	var books []store.Book
	httpGet(t, ts.server.URL+"/books/search?q=ALPHA&type=title", &books)
	require.Len(t, books, 2)
	assert.Equal(t, "alpha code", books[0].Title)
	assert.Equal(t, "alpha guide", books[1].Title)
}

func TestOverdueFeePaymentAndRefundFlow(t *testing.T) {
	ts := setupTestSuite(t)
	ctx := context.Background()

	var added struct {
		Book store.Book `json:"book"`
	}
	resp := ts.postJSON(t, "/books", map[string]any{
		"title":        "The Great Gatsby",
		"author":       "F. Scott Fitzgerald",
		"isbn":         "9780743273565",
		"total_copies": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &added)

	// Seed an overdue loan directly, 10 days late. Fixed-duration offsets
	// keep the elapsed-hours floor at exactly 10 regardless of DST.
	dueDate := time.Now().Add(-10*24*time.Hour - time.Hour)
	borrowDate := dueDate.Add(-14 * 24 * time.Hour)
	require.NoError(t, ts.store.InsertBorrowRecord(ctx, "123456", added.Book.ID, borrowDate, dueDate))
	require.NoError(t, ts.store.AdjustAvailability(ctx, added.Book.ID, -1))

	var fee circulation.LateFeeResult
	httpGet(t, fmt.Sprintf("%s/fees/123456/%s", ts.server.URL, added.Book.ID), &fee)
	assert.Equal(t, 10, fee.DaysOverdue)
	assert.Equal(t, 6.50, fee.FeeAmount)

	// Pay the fee through the simulated gateway.
	var payment payments.PaymentOutcome
	resp = ts.postJSON(t, "/payments/late-fee", map[string]any{
		"patron_id": "123456",
		"book_id":   added.Book.ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &payment)
	assert.True(t, payment.Success)
	assert.NotEmpty(t, payment.TransactionID)
	assert.Equal(t, 6.50, payment.Amount)

	// Refund it.
	var refund payments.PaymentOutcome
	resp = ts.postJSON(t, "/payments/refund", map[string]any{
		"transaction_id": payment.TransactionID,
		"amount":         payment.Amount,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &refund)
	assert.True(t, refund.Success)
	assert.Equal(t, payment.TransactionID, refund.TransactionID)

	// An out-of-range refund is rejected without reaching the gateway.
	resp = ts.postJSON(t, "/payments/refund", map[string]any{
		"transaction_id": payment.TransactionID,
		"amount":         20.00,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	decodeBody(t, resp, &refund)
	assert.False(t, refund.Success)
	assert.Contains(t, refund.Message, "cannot exceed")
}

func TestPaymentWithNothingDueFails(t *testing.T) {
	ts := setupTestSuite(t)

	var added struct {
		Book store.Book `json:"book"`
	}
	resp := ts.postJSON(t, "/books", map[string]any{
		"title":        "On Time",
		"author":       "Author",
		"isbn":         "1000000000001",
		"total_copies": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeBody(t, resp, &added)

	var outcome payments.PaymentOutcome
	resp = ts.postJSON(t, "/payments/late-fee", map[string]any{
		"patron_id": "123456",
		"book_id":   added.Book.ID,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	decodeBody(t, resp, &outcome)
	assert.False(t, outcome.Success)
	assert.Equal(t, "no late fees due for this book.", outcome.Message)
}

// internal/server/router.go
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"circulib/internal/catalog"
	"circulib/internal/circulation"
	"circulib/internal/observability"
	"circulib/internal/payments"
)

// NewRouter mounts the service handlers. The routes are thin request/response
// glue; all business validation happens in the services.
func NewRouter(cat catalog.Service, circ circulation.Service, pay payments.Service) http.Handler {
	catalogHandler := catalog.NewHandler(cat)
	circulationHandler := circulation.NewHandler(circ)
	paymentsHandler := payments.NewHandler(pay)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(observability.CountRequests)

	r.Post("/books", catalogHandler.HandleAddBook)
	r.Get("/books", catalogHandler.HandleListBooks)
	r.Get("/books/search", catalogHandler.HandleSearch)

	r.Post("/borrow", circulationHandler.HandleBorrow)
	r.Post("/return", circulationHandler.HandleReturn)
	r.Get("/fees/{patronID}/{bookID}", circulationHandler.HandleLateFee)
	r.Get("/patrons/{patronID}/status", circulationHandler.HandlePatronStatus)

	r.Post("/payments/late-fee", paymentsHandler.HandlePayLateFee)
	r.Post("/payments/refund", paymentsHandler.HandleRefund)

	r.Method(http.MethodGet, "/metrics", observability.MetricsHandler())

	return r
}

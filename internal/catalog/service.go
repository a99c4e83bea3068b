// internal/catalog/service.go
package catalog

import (
	"context"

	"circulib/internal/store"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, title, author, isbn string, totalCopies int) (*store.Book, error)
	ListBooks(ctx context.Context) ([]store.Book, error)
	Search(ctx context.Context, term, searchType string) ([]store.Book, error)
}

// internal/catalog/implementation.go
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"circulib/internal/store"
)

// service implements the Service interface.
type service struct {
	store store.Store
}

// NewService creates a new catalog service instance.
func NewService(st store.Store) Service {
	return &service{store: st}
}

// AddBook validates and inserts a new catalog entry. Validation runs in a
// fixed order and stops at the first failure; the new book starts with all
// copies available.
func (s *service) AddBook(ctx context.Context, title, author, isbn string, totalCopies int) (*store.Book, error) {
	title = strings.TrimSpace(title)
	author = strings.TrimSpace(author)

	if title == "" {
		return nil, &ValidationError{Field: "title", Reason: "Title is required."}
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return nil, &ValidationError{Field: "title", Reason: "Title must be less than 200 characters."}
	}
	if author == "" {
		return nil, &ValidationError{Field: "author", Reason: "Author is required."}
	}
	if utf8.RuneCountInString(author) > MaxAuthorLen {
		return nil, &ValidationError{Field: "author", Reason: "Author must be less than 100 characters."}
	}
	if len(isbn) != ISBNLength || !allDigits(isbn) {
		return nil, &ValidationError{Field: "isbn", Reason: "ISBN must be exactly 13 digits."}
	}
	if totalCopies <= 0 {
		return nil, &ValidationError{Field: "total_copies", Reason: "Total copies must be a positive integer."}
	}

	_, err := s.store.FindBookByISBN(ctx, isbn)
	if err == nil {
		return nil, ErrDuplicateISBN
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check duplicate isbn: %w", err)
	}

	book, err := s.store.InsertBook(ctx, title, author, isbn, totalCopies, totalCopies)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateISBN) {
			return nil, ErrDuplicateISBN
		}
		return nil, fmt.Errorf("database error occurred while adding the book: %w", err)
	}
	return book, nil
}

// ListBooks returns the full catalog, ordered by title.
func (s *service) ListBooks(ctx context.Context) ([]store.Book, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return books, nil
}

// Search finds books by title, author, or isbn. An empty term or an
// unsupported type yields an empty result rather than an error.
func (s *service) Search(ctx context.Context, term, searchType string) ([]store.Book, error) {
	if term == "" || searchType == "" {
		return []store.Book{}, nil
	}

	books, err := s.store.SearchBooks(ctx, term, searchType)
	if err != nil {
		return nil, fmt.Errorf("search catalog: %w", err)
	}
	return books, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

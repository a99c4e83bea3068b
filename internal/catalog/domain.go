// internal/catalog/domain.go
package catalog

import "errors"

// Validation limits for catalog additions.
const (
	MaxTitleLen  = 200
	MaxAuthorLen = 100
	ISBNLength   = 13
)

// ErrDuplicateISBN is returned when the catalog already holds the ISBN.
var ErrDuplicateISBN = errors.New("A book with this ISBN already exists.")

// ValidationError reports a malformed catalog field with a display message.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

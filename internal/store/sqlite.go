// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore implements Store on an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:     db,
		tracer: otel.Tracer("circulib/store"),
	}, nil
}

func applySchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			isbn TEXT NOT NULL UNIQUE,
			total_copies INTEGER NOT NULL CHECK (total_copies > 0),
			available_copies INTEGER NOT NULL
				CHECK (available_copies >= 0 AND available_copies <= total_copies)
		);`,
		`CREATE TABLE IF NOT EXISTS borrow_records (
			id TEXT PRIMARY KEY,
			patron_id TEXT NOT NULL,
			book_id TEXT NOT NULL REFERENCES books(id),
			borrow_date TEXT NOT NULL,
			due_date TEXT NOT NULL,
			return_date TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_borrow_records_patron
			ON borrow_records(patron_id);`,
		`CREATE INDEX IF NOT EXISTS idx_borrow_records_active
			ON borrow_records(patron_id, book_id) WHERE return_date IS NULL;`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Timestamps are stored as RFC 3339 text so rows stay readable with the
// sqlite CLI.
func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode timestamp %q: %w", s, err)
	}
	return t, nil
}

const sqliteBookColumns = `id, title, author, isbn, total_copies, available_copies`

func scanBook(row *sql.Row) (*Book, error) {
	var b Book
	var id string
	err := row.Scan(&id, &b.Title, &b.Author, &b.ISBN, &b.TotalCopies, &b.AvailableCopies)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan book: %w", err)
	}
	b.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse book id: %w", err)
	}
	return &b, nil
}

func (s *SQLiteStore) FindBookByID(ctx context.Context, id uuid.UUID) (*Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteBookColumns+` FROM books WHERE id = ?`, id.String())
	return scanBook(row)
}

func (s *SQLiteStore) FindBookByISBN(ctx context.Context, isbn string) (*Book, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteBookColumns+` FROM books WHERE isbn = ?`, isbn)
	return scanBook(row)
}

func (s *SQLiteStore) InsertBook(ctx context.Context, title, author, isbn string, totalCopies, availableCopies int) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "store.insert_book",
		trace.WithAttributes(attribute.String("book.isbn", isbn)),
	)
	defer span.End()

	id := uuid.New()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO books (id, title, author, isbn, total_copies, available_copies)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), title, author, isbn, totalCopies, availableCopies)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrDuplicateISBN
		}
		return nil, fmt.Errorf("insert book: %w", err)
	}

	return &Book{
		ID:              id,
		Title:           title,
		Author:          author,
		ISBN:            isbn,
		TotalCopies:     totalCopies,
		AvailableCopies: availableCopies,
	}, nil
}

func (s *SQLiteStore) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteBookColumns+` FROM books ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

func (s *SQLiteStore) SearchBooks(ctx context.Context, term, searchType string) ([]Book, error) {
	ctx, span := s.tracer.Start(ctx, "store.search_books",
		trace.WithAttributes(attribute.String("search.type", searchType)),
	)
	defer span.End()

	if term == "" {
		return []Book{}, nil
	}

	var query string
	var arg any
	switch searchType {
	case SearchByTitle:
		query = `SELECT ` + sqliteBookColumns + ` FROM books
			WHERE LOWER(title) LIKE '%' || LOWER(?) || '%' ORDER BY title ASC`
		arg = term
	case SearchByAuthor:
		query = `SELECT ` + sqliteBookColumns + ` FROM books
			WHERE LOWER(author) LIKE '%' || LOWER(?) || '%' ORDER BY title ASC`
		arg = term
	case SearchByISBN:
		query = `SELECT ` + sqliteBookColumns + ` FROM books WHERE isbn = ?`
		arg = term
	default:
		return []Book{}, nil
	}

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

func collectBooks(rows *sql.Rows) ([]Book, error) {
	books := []Book{}
	for rows.Next() {
		var b Book
		var id string
		if err := rows.Scan(&id, &b.Title, &b.Author, &b.ISBN, &b.TotalCopies, &b.AvailableCopies); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse book id: %w", err)
		}
		b.ID = parsed
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *SQLiteStore) CountActiveBorrows(ctx context.Context, patronID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM borrow_records
		 WHERE patron_id = ? AND return_date IS NULL`, patronID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active borrows: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) FindActiveBorrow(ctx context.Context, patronID string, bookID uuid.UUID) (*BorrowRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, patron_id, book_id, borrow_date, due_date, return_date
		 FROM borrow_records
		 WHERE patron_id = ? AND book_id = ? AND return_date IS NULL`,
		patronID, bookID.String())

	rec, err := scanBorrowRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

type scanFunc func(dest ...any) error

func scanBorrowRecord(scan scanFunc) (*BorrowRecord, error) {
	var rec BorrowRecord
	var id, bookID, borrowDate, dueDate string
	var returnDate sql.NullString

	if err := scan(&id, &rec.PatronID, &bookID, &borrowDate, &dueDate, &returnDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan borrow record: %w", err)
	}

	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse record id: %w", err)
	}
	if rec.BookID, err = uuid.Parse(bookID); err != nil {
		return nil, fmt.Errorf("parse book id: %w", err)
	}
	if rec.BorrowDate, err = decodeTime(borrowDate); err != nil {
		return nil, err
	}
	if rec.DueDate, err = decodeTime(dueDate); err != nil {
		return nil, err
	}
	if returnDate.Valid {
		t, err := decodeTime(returnDate.String)
		if err != nil {
			return nil, err
		}
		rec.ReturnDate = &t
	}
	return &rec, nil
}

func (s *SQLiteStore) ListBorrowRecords(ctx context.Context, patronID string) ([]PatronRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.patron_id, r.book_id, r.borrow_date, r.due_date, r.return_date,
		        b.title, b.author
		 FROM borrow_records r
		 JOIN books b ON b.id = r.book_id
		 WHERE r.patron_id = ?
		 ORDER BY r.borrow_date ASC`, patronID)
	if err != nil {
		return nil, fmt.Errorf("list borrow records: %w", err)
	}
	defer rows.Close()

	records := []PatronRecord{}
	for rows.Next() {
		var pr PatronRecord
		rec, err := scanBorrowRecord(func(dest ...any) error {
			return rows.Scan(append(dest, &pr.Title, &pr.Author)...)
		})
		if err != nil {
			return nil, err
		}
		pr.BorrowRecord = *rec
		records = append(records, pr)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) InsertBorrowRecord(ctx context.Context, patronID string, bookID uuid.UUID, borrowDate, dueDate time.Time) error {
	ctx, span := s.tracer.Start(ctx, "store.insert_borrow_record",
		trace.WithAttributes(
			attribute.String("patron.id", patronID),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO borrow_records (id, patron_id, book_id, borrow_date, due_date)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), patronID, bookID.String(), encodeTime(borrowDate), encodeTime(dueDate))
	if err != nil {
		return fmt.Errorf("insert borrow record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetReturnDate(ctx context.Context, patronID string, bookID uuid.UUID, returnDate time.Time) error {
	ctx, span := s.tracer.Start(ctx, "store.set_return_date",
		trace.WithAttributes(
			attribute.String("patron.id", patronID),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE borrow_records SET return_date = ?
		 WHERE patron_id = ? AND book_id = ? AND return_date IS NULL`,
		encodeTime(returnDate), patronID, bookID.String())
	if err != nil {
		return fmt.Errorf("set return date: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set return date rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) AdjustAvailability(ctx context.Context, bookID uuid.UUID, delta int) error {
	ctx, span := s.tracer.Start(ctx, "store.adjust_availability",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.Int("delta", delta),
		),
	)
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE books SET available_copies = available_copies + ?
		 WHERE id = ?
		   AND available_copies + ? >= 0
		   AND available_copies + ? <= total_copies`,
		delta, bookID.String(), delta, delta)
	if err != nil {
		return fmt.Errorf("adjust availability: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust availability rows affected: %w", err)
	}
	if affected == 0 {
		if _, lookupErr := s.FindBookByID(ctx, bookID); errors.Is(lookupErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrAvailabilityBounds
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)

// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const pqUniqueViolation = "23505"

const (
	booksTable         = "books"
	borrowRecordsTable = "borrow_records"
)

// PostgresStore implements Store on PostgreSQL via sqlx, with goqu building
// the SQL.
type PostgresStore struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	tracer  trace.Tracer
}

// NewPostgresStore connects to the database at url and ensures the schema
// exists.
func NewPostgresStore(url string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := applyPostgresSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgresStore{
		db:      db,
		dialect: goqu.Dialect("postgres"),
		tracer:  otel.Tracer("circulib/store"),
	}, nil
}

func applyPostgresSchema(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			isbn TEXT NOT NULL UNIQUE,
			total_copies INT NOT NULL CHECK (total_copies > 0),
			available_copies INT NOT NULL
				CHECK (available_copies >= 0 AND available_copies <= total_copies)
		);`,
		`CREATE TABLE IF NOT EXISTS borrow_records (
			id UUID PRIMARY KEY,
			patron_id TEXT NOT NULL,
			book_id UUID NOT NULL REFERENCES books(id),
			borrow_date TIMESTAMPTZ NOT NULL,
			due_date TIMESTAMPTZ NOT NULL,
			return_date TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS idx_borrow_records_patron
			ON borrow_records(patron_id);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) getBook(ctx context.Context, where goqu.Expression) (*Book, error) {
	query, args, err := s.dialect.From(booksTable).Where(where).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build book query: %w", err)
	}

	var b Book
	if err := s.db.GetContext(ctx, &b, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) FindBookByID(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.getBook(ctx, goqu.C("id").Eq(id))
}

func (s *PostgresStore) FindBookByISBN(ctx context.Context, isbn string) (*Book, error) {
	return s.getBook(ctx, goqu.C("isbn").Eq(isbn))
}

func (s *PostgresStore) InsertBook(ctx context.Context, title, author, isbn string, totalCopies, availableCopies int) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "store.insert_book",
		trace.WithAttributes(attribute.String("book.isbn", isbn)),
	)
	defer span.End()

	id := uuid.New()
	query, args, err := s.dialect.Insert(booksTable).Rows(goqu.Record{
		"id":               id,
		"title":            title,
		"author":           author,
		"isbn":             isbn,
		"total_copies":     totalCopies,
		"available_copies": availableCopies,
	}).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
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

func (s *PostgresStore) ListBooks(ctx context.Context) ([]Book, error) {
	query, args, err := s.dialect.From(booksTable).
		Order(goqu.C("title").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	books := []Book{}
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// searchDataset builds the filtered dataset for a search term, or nil when
// the term or type yields no query at all.
func (s *PostgresStore) searchDataset(term, searchType string) *goqu.SelectDataset {
	if term == "" {
		return nil
	}
	switch searchType {
	case SearchByTitle:
		return s.dialect.From(booksTable).
			Where(goqu.C("title").ILike("%" + term + "%")).
			Order(goqu.C("title").Asc())
	case SearchByAuthor:
		return s.dialect.From(booksTable).
			Where(goqu.C("author").ILike("%" + term + "%")).
			Order(goqu.C("title").Asc())
	case SearchByISBN:
		return s.dialect.From(booksTable).Where(goqu.C("isbn").Eq(term))
	default:
		return nil
	}
}

func (s *PostgresStore) SearchBooks(ctx context.Context, term, searchType string) ([]Book, error) {
	ctx, span := s.tracer.Start(ctx, "store.search_books",
		trace.WithAttributes(attribute.String("search.type", searchType)),
	)
	defer span.End()

	ds := s.searchDataset(term, searchType)
	if ds == nil {
		return []Book{}, nil
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	books := []Book{}
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}

func (s *PostgresStore) CountActiveBorrows(ctx context.Context, patronID string) (int, error) {
	query, args, err := s.dialect.From(borrowRecordsTable).
		Select(goqu.COUNT("*")).
		Where(goqu.C("patron_id").Eq(patronID), goqu.C("return_date").IsNull()).
		Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count active borrows: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) FindActiveBorrow(ctx context.Context, patronID string, bookID uuid.UUID) (*BorrowRecord, error) {
	query, args, err := s.dialect.From(borrowRecordsTable).
		Where(
			goqu.C("patron_id").Eq(patronID),
			goqu.C("book_id").Eq(bookID),
			goqu.C("return_date").IsNull(),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build active borrow query: %w", err)
	}

	var rec BorrowRecord
	if err := s.db.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get active borrow: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) ListBorrowRecords(ctx context.Context, patronID string) ([]PatronRecord, error) {
	query, args, err := s.dialect.From(goqu.T(borrowRecordsTable).As("r")).
		Join(goqu.T(booksTable).As("b"), goqu.On(goqu.Ex{"b.id": goqu.I("r.book_id")})).
		Select(
			goqu.I("r.id"), goqu.I("r.patron_id"), goqu.I("r.book_id"),
			goqu.I("r.borrow_date"), goqu.I("r.due_date"), goqu.I("r.return_date"),
			goqu.I("b.title"), goqu.I("b.author"),
		).
		Where(goqu.I("r.patron_id").Eq(patronID)).
		Order(goqu.I("r.borrow_date").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build borrow records query: %w", err)
	}

	records := []PatronRecord{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list borrow records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) InsertBorrowRecord(ctx context.Context, patronID string, bookID uuid.UUID, borrowDate, dueDate time.Time) error {
	ctx, span := s.tracer.Start(ctx, "store.insert_borrow_record",
		trace.WithAttributes(
			attribute.String("patron.id", patronID),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()

	query, args, err := s.dialect.Insert(borrowRecordsTable).Rows(goqu.Record{
		"id":          uuid.New(),
		"patron_id":   patronID,
		"book_id":     bookID,
		"borrow_date": borrowDate,
		"due_date":    dueDate,
	}).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert borrow record: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetReturnDate(ctx context.Context, patronID string, bookID uuid.UUID, returnDate time.Time) error {
	ctx, span := s.tracer.Start(ctx, "store.set_return_date",
		trace.WithAttributes(
			attribute.String("patron.id", patronID),
			attribute.String("book.id", bookID.String()),
		),
	)
	defer span.End()

	query, args, err := s.dialect.Update(borrowRecordsTable).
		Set(goqu.Record{"return_date": returnDate}).
		Where(
			goqu.C("patron_id").Eq(patronID),
			goqu.C("book_id").Eq(bookID),
			goqu.C("return_date").IsNull(),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
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

func (s *PostgresStore) AdjustAvailability(ctx context.Context, bookID uuid.UUID, delta int) error {
	ctx, span := s.tracer.Start(ctx, "store.adjust_availability",
		trace.WithAttributes(
			attribute.String("book.id", bookID.String()),
			attribute.Int("delta", delta),
		),
	)
	defer span.End()

	query, args, err := s.dialect.Update(booksTable).
		Set(goqu.Record{"available_copies": goqu.L("available_copies + ?", delta)}).
		Where(
			goqu.C("id").Eq(bookID),
			goqu.L("available_copies + ? >= 0", delta),
			goqu.L("available_copies + ? <= total_copies", delta),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
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

var _ Store = (*PostgresStore)(nil)

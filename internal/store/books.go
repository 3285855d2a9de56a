package store

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/metadata"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AddLibrary creates a library.
func (s *SQLiteStore) AddLibrary(ctx context.Context, name string) (Library, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Library{}, fmt.Errorf("library name is required")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO libraries (name) VALUES (?)`, name)
	if err != nil {
		return Library{}, fmt.Errorf("failed to insert library: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Library{}, fmt.Errorf("failed to read library id: %w", err)
	}
	return Library{ID: id, Name: name}, nil
}

// GetLibrary returns the library with the given id.
func (s *SQLiteStore) GetLibrary(ctx context.Context, id int64) (Library, error) {
	return getLibrary(ctx, s.db, id)
}

func getLibrary(ctx context.Context, q querier, id int64) (Library, error) {
	lib := Library{ID: id}
	err := q.QueryRowContext(ctx, `SELECT name FROM libraries WHERE id = ?`, id).Scan(&lib.Name)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return Library{}, errors.NewNotFoundError("library", id)
	}
	if err != nil {
		return Library{}, fmt.Errorf("failed to load library %d: %w", id, err)
	}
	return lib, nil
}

// AddBook creates a book in a library together with its empty metadata
// record.
func (s *SQLiteStore) AddBook(ctx context.Context, libraryID int64, fileName *string) (Book, error) {
	var book Book
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getLibrary(ctx, tx, libraryID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO books (library_id, file_name) VALUES (?, ?)`, libraryID, nullable(fileName))
		if err != nil {
			return fmt.Errorf("failed to insert book: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read book id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO book_metadata (book_id) VALUES (?)`, id); err != nil {
			return fmt.Errorf("failed to create metadata record: %w", err)
		}
		book = Book{ID: id, LibraryID: libraryID, FileName: fileName, Record: &metadata.Record{BookID: id}}
		return nil
	})
	return book, err
}

// GetBook loads a book and its metadata record.
func (s *SQLiteStore) GetBook(ctx context.Context, id int64) (Book, error) {
	book := Book{ID: id}
	var fileName sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT library_id, file_name FROM books WHERE id = ?`, id).
		Scan(&book.LibraryID, &fileName)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return Book{}, errors.NewNotFoundError("book", id)
	}
	if err != nil {
		return Book{}, fmt.Errorf("failed to load book %d: %w", id, err)
	}
	book.FileName = fromNullString(fileName)

	rec, err := loadRecord(ctx, s.db, id)
	if err != nil {
		return Book{}, err
	}
	book.Record = rec
	return book, nil
}

// GetBooks loads the given books in the order requested.
func (s *SQLiteStore) GetBooks(ctx context.Context, ids []int64) ([]Book, error) {
	books := make([]Book, 0, len(ids))
	for _, id := range ids {
		book, err := s.GetBook(ctx, id)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

// ListBooks loads every book of a library ordered by id.
func (s *SQLiteStore) ListBooks(ctx context.Context, libraryID int64) ([]Book, error) {
	if _, err := s.GetLibrary(ctx, libraryID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM books WHERE library_id = ? ORDER BY id`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan book id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := stdErrors.Join(rows.Err(), rows.Close()); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	return s.GetBooks(ctx, ids)
}

// DeleteBook removes a book. Its metadata record, author and category links
// and awards go with it.
func (s *SQLiteStore) DeleteBook(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete book %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("book", id)
	}
	return nil
}

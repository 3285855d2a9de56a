package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/metadata"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

// LoadRecord returns the metadata record of a book.
func (s *SQLiteStore) LoadRecord(ctx context.Context, bookID int64) (*metadata.Record, error) {
	return loadRecord(ctx, s.db, bookID)
}

// SaveRecord writes every field of rec, its author and category links and
// its awards in one transaction. Author and category names are normalized
// and rec is updated to the stored names.
func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *metadata.Record) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return saveRecord(ctx, tx, rec)
	})
}

func loadRecord(ctx context.Context, q querier, bookID int64) (*metadata.Record, error) {
	var (
		title, subtitle, description, publisher, published, language sql.NullString
		isbn10, isbn13, asin, seriesName, thumbnail, coverUpdated    sql.NullString
		pageCount, ratingCount, reviewCount, seriesTotal             sql.NullInt64
		rating, seriesNumber                                         sql.NullFloat64
		allLocked                                                    bool
		lockedFields                                                 string
	)
	err := q.QueryRowContext(ctx, `SELECT
		title, subtitle, description, publisher, published_date, language,
		isbn10, isbn13, asin, page_count, rating, rating_count, review_count,
		series_name, series_number, series_total, thumbnail_path, cover_updated_on,
		all_fields_locked, locked_fields
		FROM book_metadata WHERE book_id = ?`, bookID).Scan(
		&title, &subtitle, &description, &publisher, &published, &language,
		&isbn10, &isbn13, &asin, &pageCount, &rating, &ratingCount, &reviewCount,
		&seriesName, &seriesNumber, &seriesTotal, &thumbnail, &coverUpdated,
		&allLocked, &lockedFields,
	)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("book", bookID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata for book %d: %w", bookID, err)
	}

	rec := &metadata.Record{
		BookID:         bookID,
		Title:          fromNullString(title),
		Subtitle:       fromNullString(subtitle),
		Description:    fromNullString(description),
		Publisher:      fromNullString(publisher),
		PublishedDate:  parseTime(published, dateLayout),
		Language:       fromNullString(language),
		ISBN10:         fromNullString(isbn10),
		ISBN13:         fromNullString(isbn13),
		ASIN:           fromNullString(asin),
		PageCount:      fromNullInt(pageCount),
		Rating:         fromNullFloat(rating),
		RatingCount:    fromNullInt(ratingCount),
		ReviewCount:    fromNullInt(reviewCount),
		SeriesName:     fromNullString(seriesName),
		SeriesNumber:   fromNullFloat(seriesNumber),
		SeriesTotal:    fromNullInt(seriesTotal),
		ThumbnailPath:  fromNullString(thumbnail),
		CoverUpdatedOn: parseTime(coverUpdated, timestampLayout),
		Locks:          metadata.LockSet{AllFieldsLocked: allLocked},
	}
	if err := json.Unmarshal([]byte(lockedFields), &rec.Locks.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode locks for book %d: %w", bookID, err)
	}

	if rec.Authors, err = names(ctx, q, `SELECT a.name FROM book_authors ba
		JOIN authors a ON a.id = ba.author_id
		WHERE ba.book_id = ? ORDER BY ba.position`, bookID); err != nil {
		return nil, err
	}
	if rec.Categories, err = names(ctx, q, `SELECT c.name FROM book_categories bc
		JOIN categories c ON c.id = bc.category_id
		WHERE bc.book_id = ? ORDER BY c.name`, bookID); err != nil {
		return nil, err
	}
	if rec.Awards, err = awards(ctx, q, bookID); err != nil {
		return nil, err
	}
	return rec, nil
}

func names(ctx context.Context, q querier, query string, bookID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query names: %w", err)
	}
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan name: %w", err)
		}
		out = append(out, name)
	}
	if err := stdErrors.Join(rows.Err(), rows.Close()); err != nil {
		return nil, fmt.Errorf("failed to query names: %w", err)
	}
	return out, nil
}

func awards(ctx context.Context, q querier, bookID int64) ([]metadata.Award, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, category, designation, awarded_at
		FROM book_awards WHERE book_id = ? ORDER BY id`, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query awards: %w", err)
	}
	var out []metadata.Award
	for rows.Next() {
		var (
			a         metadata.Award
			awardedAt sql.NullString
		)
		if err := rows.Scan(&a.Name, &a.Category, &a.Designation, &awardedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan award: %w", err)
		}
		a.AwardedAt = parseTime(awardedAt, dateLayout)
		out = append(out, a)
	}
	if err := stdErrors.Join(rows.Err(), rows.Close()); err != nil {
		return nil, fmt.Errorf("failed to query awards: %w", err)
	}
	return out, nil
}

func saveRecord(ctx context.Context, tx *sql.Tx, rec *metadata.Record) error {
	locks, err := json.Marshal(lockFieldsOrEmpty(rec.Locks.Fields))
	if err != nil {
		return fmt.Errorf("failed to encode locks: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE book_metadata SET
		title = ?, subtitle = ?, description = ?, publisher = ?, published_date = ?, language = ?,
		isbn10 = ?, isbn13 = ?, asin = ?, page_count = ?, rating = ?, rating_count = ?, review_count = ?,
		series_name = ?, series_number = ?, series_total = ?, thumbnail_path = ?, cover_updated_on = ?,
		all_fields_locked = ?, locked_fields = ?
		WHERE book_id = ?`,
		nullable(rec.Title), nullable(rec.Subtitle), nullable(rec.Description), nullable(rec.Publisher),
		formatTime(rec.PublishedDate, dateLayout), nullable(rec.Language),
		nullable(rec.ISBN10), nullable(rec.ISBN13), nullable(rec.ASIN), nullable(rec.PageCount),
		nullable(rec.Rating), nullable(rec.RatingCount), nullable(rec.ReviewCount),
		nullable(rec.SeriesName), nullable(rec.SeriesNumber), nullable(rec.SeriesTotal),
		nullable(rec.ThumbnailPath), formatTime(rec.CoverUpdatedOn, timestampLayout),
		rec.Locks.AllFieldsLocked, string(locks),
		rec.BookID,
	)
	if err != nil {
		return fmt.Errorf("failed to update metadata for book %d: %w", rec.BookID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("book", rec.BookID)
	}

	rec.Authors = NormalizeNames(rec.Authors)
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_authors WHERE book_id = ?`, rec.BookID); err != nil {
		return fmt.Errorf("failed to clear authors: %w", err)
	}
	for i, name := range rec.Authors {
		id, err := findOrCreate(ctx, tx, authorsTable, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO book_authors (book_id, author_id, position) VALUES (?, ?, ?)`,
			rec.BookID, id, i); err != nil {
			return fmt.Errorf("failed to link author: %w", err)
		}
	}

	rec.Categories = NormalizeNames(rec.Categories)
	if _, err := tx.ExecContext(ctx, `DELETE FROM book_categories WHERE book_id = ?`, rec.BookID); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}
	for _, name := range rec.Categories {
		id, err := findOrCreate(ctx, tx, categoriesTable, name)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO book_categories (book_id, category_id) VALUES (?, ?)`,
			rec.BookID, id); err != nil {
			return fmt.Errorf("failed to link category: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_awards WHERE book_id = ?`, rec.BookID); err != nil {
		return fmt.Errorf("failed to clear awards: %w", err)
	}
	for _, a := range rec.Awards {
		if _, err := tx.ExecContext(ctx, `INSERT INTO book_awards (book_id, name, category, designation, awarded_at)
			VALUES (?, ?, ?, ?, ?)`,
			rec.BookID, a.Name, a.Category, a.Designation, formatTime(a.AwardedAt, dateLayout)); err != nil {
			return fmt.Errorf("failed to insert award: %w", err)
		}
	}
	return nil
}

func lockFieldsOrEmpty(fields map[metadata.LockField]bool) map[metadata.LockField]bool {
	if fields == nil {
		return map[metadata.LockField]bool{}
	}
	return fields
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

func formatTime(t *time.Time, layout string) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(layout)
}

func parseTime(ns sql.NullString, layout string) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(layout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

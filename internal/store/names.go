package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	authorsTable    = "authors"
	categoriesTable = "categories"
)

// NormalizeName trims a person or category name and converts it to NFC so
// that visually identical names share one row.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// NormalizeNames normalizes names, dropping blanks and duplicates while
// keeping the original order.
func NormalizeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = NormalizeName(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// FindOrCreateAuthor returns the id of the author with the normalized name,
// creating it when missing.
func (s *SQLiteStore) FindOrCreateAuthor(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = findOrCreate(ctx, tx, authorsTable, NormalizeName(name))
		return err
	})
	return id, err
}

// FindOrCreateCategory returns the id of the category with the normalized
// name, creating it when missing.
func (s *SQLiteStore) FindOrCreateCategory(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = findOrCreate(ctx, tx, categoriesTable, NormalizeName(name))
		return err
	})
	return id, err
}

// findOrCreate expects an already normalized name. table is one of the
// constants above.
func findOrCreate(ctx context.Context, q querier, table, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%s: blank name", table)
	}
	insert := fmt.Sprintf(`INSERT INTO %s (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, table)
	if _, err := q.ExecContext(ctx, insert, name); err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	var id int64
	if err := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE name = ?`, table), name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to look up %s %q: %w", table, name, err)
	}
	return id, nil
}

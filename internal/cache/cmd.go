package cache

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// ClearCmd is the `cache clear` subcommand.
type ClearCmd struct {
	Source  string `arg:"" optional:"" help:"Cache source to clear: googlebooks, openlibrary, hardcover, goodreads (default: all)"`
	Expired bool   `help:"Only remove expired entries"`
}

func (c *ClearCmd) Run() error {
	tables, err := c.tables()
	if err != nil {
		return err
	}

	cacheInstance, err := GetGlobalCache()
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	slog.Info("Clearing cache", "tables", tables, "database", cacheInstance.Path(), "expired_only", c.Expired)

	var total int64
	for _, table := range tables {
		var rows int64
		if c.Expired {
			rows, err = cacheInstance.ClearExpired(table)
		} else {
			rows, err = cacheInstance.InvalidateSource(table)
		}
		if err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
		total += rows
	}

	slog.Info("Cache cleared", "rows_deleted", total)
	return nil
}

func (c *ClearCmd) tables() ([]string, error) {
	if c.Source == "" || c.Source == "all" {
		return tableNames(), nil
	}
	table, ok := Sources[strings.ToLower(c.Source)]
	if !ok {
		valid := make([]string, 0, len(Sources))
		for name := range Sources {
			valid = append(valid, name)
		}
		slices.Sort(valid)
		return nil, fmt.Errorf("invalid cache source '%s'; valid sources are: %s", c.Source, strings.Join(valid, ", "))
	}
	return []string{table}, nil
}

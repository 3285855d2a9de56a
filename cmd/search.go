package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/provider"
	"github.com/lepinkainen/bookmeta/internal/tui"
)

var selectCandidate = tui.Select

// SearchCmd lists detailed candidates from several providers, optionally
// letting the user pick one and apply it to a book.
type SearchCmd struct {
	Title       string   `help:"Title to search for"`
	Author      string   `help:"Author to search for"`
	ISBN        string   `help:"ISBN to search for"`
	Providers   []string `help:"Providers to query" default:"GoodReads,GoogleBooks,OpenLibrary,Hardcover"`
	Interactive bool     `short:"i" help:"Pick a candidate in an interactive list"`
	ApplyTo     int64    `help:"Apply the picked candidate to this book ID (requires --interactive)"`
	JSON        bool     `help:"Print candidates as JSON"`
}

func (c *SearchCmd) Run(ctx context.Context) error {
	q := provider.Query{Title: c.Title, Author: c.Author, ISBN: c.ISBN}
	if q.Title == "" && q.Author == "" && q.ISBN == "" {
		return fmt.Errorf("at least one of --title, --author or --isbn is required")
	}
	if c.ApplyTo != 0 && !c.Interactive {
		return fmt.Errorf("--apply-to requires --interactive")
	}

	ids := make([]provider.ID, 0, len(c.Providers))
	for _, name := range c.Providers {
		id, err := provider.ParseID(name)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	candidates, err := a.fetcher.SearchInterleaved(ctx, q, ids)
	if err != nil {
		return err
	}
	slog.Debug("Search finished", "candidates", len(candidates))

	if !c.Interactive {
		if c.JSON {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(candidates)
		}
		printCandidates(stdout, candidates)
		return nil
	}

	result, err := selectCandidate(searchTitle(q), candidates)
	if err != nil {
		return err
	}
	if result.Action == tui.ActionStopped {
		return errors.NewStopProcessingError("search stopped by user")
	}
	if result.Action != tui.ActionSelected || result.Selection == nil {
		slog.Info("No candidate selected")
		return nil
	}

	picked := result.Selection
	if c.ApplyTo == 0 {
		printCandidates(stdout, []provider.Metadata{*picked})
		return nil
	}

	outcome, err := a.merger.ApplyEdit(ctx, c.ApplyTo, picked)
	if err != nil {
		return err
	}
	slog.Info("Applied candidate",
		"book_id", c.ApplyTo,
		"provider", picked.Provider,
		"changed", strings.Join(outcome.Changed, ","))
	return nil
}

func searchTitle(q provider.Query) string {
	var parts []string
	for _, s := range []string{q.Title, q.Author, q.ISBN} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return "Select a match for " + strings.Join(parts, " / ")
}

func printCandidates(w io.Writer, candidates []provider.Metadata) {
	for _, md := range candidates {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			md.Provider,
			md.ProviderBookID,
			deref(md.Title),
			strings.Join(md.Authors, ", "))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bookmeta/internal/refresh"
	"github.com/lepinkainen/bookmeta/internal/resolve"
)

// RefreshCmd refreshes books from their providers.
type RefreshCmd struct {
	Book    RefreshBookCmd    `cmd:"" help:"Refresh a single book"`
	Library RefreshLibraryCmd `cmd:"" help:"Refresh every book in a library"`
	Books   RefreshBooksCmd   `cmd:"" help:"Refresh the listed books"`
}

// RefreshFlags selects the refresh options shared by all refresh commands.
type RefreshFlags struct {
	Quick       bool   `help:"Use the configured quick refresh options"`
	OptionsFile string `help:"YAML file with refresh options" type:"existingfile"`
}

// options returns nil for quick refreshes so the coordinator uses its defaults.
func (f RefreshFlags) options() (*resolve.RefreshOptions, error) {
	if f.Quick {
		return nil, nil
	}
	if f.OptionsFile == "" {
		return nil, fmt.Errorf("either --quick or --options-file is required")
	}
	opts, err := resolve.LoadOptions(f.OptionsFile)
	if err != nil {
		return nil, err
	}
	return &opts, nil
}

type RefreshBookCmd struct {
	BookID int64 `arg:"" name:"book-id" help:"Book ID"`
	RefreshFlags
}

func (c *RefreshBookCmd) Run(ctx context.Context) error {
	opts, err := c.options()
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.coordinator.RefreshBook(ctx, c.BookID, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d\t%s\n", rec.BookID, rec.DisplayTitle())
	return nil
}

type RefreshLibraryCmd struct {
	LibraryID int64 `arg:"" name:"library-id" help:"Library ID"`
	RefreshFlags
}

func (c *RefreshLibraryCmd) Run(ctx context.Context) error {
	return runBatch(ctx, c.RefreshFlags, refresh.Request{
		Type:      refresh.Library,
		LibraryID: c.LibraryID,
	})
}

type RefreshBooksCmd struct {
	BookIDs []int64 `arg:"" name:"book-ids" help:"Book IDs"`
	RefreshFlags
}

func (c *RefreshBooksCmd) Run(ctx context.Context) error {
	return runBatch(ctx, c.RefreshFlags, refresh.Request{
		Type:    refresh.Books,
		BookIDs: c.BookIDs,
	})
}

func runBatch(ctx context.Context, flags RefreshFlags, req refresh.Request) error {
	opts, err := flags.options()
	if err != nil {
		return err
	}
	req.Options = opts
	req.Quick = flags.Quick

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.coordinator.Refresh(ctx, req)
	if err != nil {
		return err
	}
	slog.Info("Refresh complete",
		"processed", summary.Processed,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed)
	fmt.Fprintf(stdout, "processed=%d updated=%d skipped=%d failed=%d\n",
		summary.Processed, summary.Updated, summary.Skipped, summary.Failed)
	return nil
}

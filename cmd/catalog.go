package cmd

import (
	"context"
	"fmt"

	"github.com/lepinkainen/bookmeta/internal/provider"
)

// AddLibraryCmd creates a library.
type AddLibraryCmd struct {
	Name string `arg:"" help:"Library name"`
}

func (c *AddLibraryCmd) Run(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	lib, err := a.store.AddLibrary(ctx, c.Name)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d\t%s\n", lib.ID, lib.Name)
	return nil
}

// AddBookCmd adds a book to a library, optionally seeding the fields that
// drive provider lookups.
type AddBookCmd struct {
	LibraryID int64    `arg:"" help:"Library ID"`
	File      string   `help:"Book file name"`
	Title     string   `help:"Initial title"`
	Authors   []string `help:"Initial authors"`
	ISBN      string   `name:"isbn" help:"ISBN-10 or ISBN-13"`
}

func (c *AddBookCmd) Run(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var fileName *string
	if c.File != "" {
		fileName = &c.File
	}
	book, err := a.store.AddBook(ctx, c.LibraryID, fileName)
	if err != nil {
		return err
	}

	seed := &provider.Metadata{Title: provider.Text(c.Title)}
	if len(c.Authors) > 0 {
		seed.Authors = c.Authors
	}
	seed.ISBN10, seed.ISBN13 = provider.ISBNs(c.ISBN)
	if seed.Title != nil || seed.Authors != nil || seed.ISBN10 != nil || seed.ISBN13 != nil {
		if _, err := a.merger.ApplyEdit(ctx, book.ID, seed); err != nil {
			return fmt.Errorf("seeding book %d: %w", book.ID, err)
		}
	}
	fmt.Fprintf(stdout, "%d\n", book.ID)
	return nil
}

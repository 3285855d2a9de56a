package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/metadata"
	"github.com/lepinkainen/bookmeta/internal/provider"
)

// LockCmd locks or unlocks one field, or every field with the name "all".
type LockCmd struct {
	BookID int64  `arg:"" help:"Book ID"`
	Field  string `arg:"" help:"Field name, or 'all' for the master lock"`
	State  string `arg:"" enum:"true,false" help:"true to lock, false to unlock"`
}

func (c *LockCmd) Run(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.merger.SetFieldLock(ctx, c.BookID, c.Field, c.State == "true")
	if err != nil {
		return err
	}
	locked := make([]string, 0, len(metadata.AllLockFields))
	for _, f := range rec.Locks.LockedFields() {
		locked = append(locked, f.String())
	}
	fmt.Fprintf(stdout, "all=%t fields=%s\n", rec.Locks.AllFieldsLocked, strings.Join(locked, ","))
	return nil
}

// EditCmd applies an explicit edit. Every given field must be unlocked or the
// whole edit is rejected.
type EditCmd struct {
	BookID int64 `arg:"" name:"book-id" help:"Book ID"`

	Title         string   `help:"Title"`
	Subtitle      string   `help:"Subtitle"`
	Description   string   `help:"Description"`
	Publisher     string   `help:"Publisher"`
	PublishedDate string   `help:"Publication date (YYYY-MM-DD, YYYY-MM or YYYY)"`
	Language      string   `help:"Language code"`
	ISBN10        string   `name:"isbn10" help:"ISBN-10"`
	ISBN13        string   `name:"isbn13" help:"ISBN-13"`
	PageCount     int      `help:"Number of pages"`
	Authors       []string `help:"Authors in order"`
	Categories    []string `help:"Categories"`
	SeriesName    string   `help:"Series name"`
	SeriesNumber  float64  `help:"Position in the series"`
	SeriesTotal   int      `help:"Number of books in the series"`
	CoverURL      string   `name:"cover-url" help:"Download a new cover from this URL"`

	Clear  []string `help:"Text or list fields to clear"`
	Lock   []string `help:"Fields to lock after the edit"`
	Unlock []string `help:"Fields to unlock after the edit"`
}

func (c *EditCmd) Run(ctx context.Context) error {
	edit, err := c.metadata()
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.merger.ApplyEdit(ctx, c.BookID, edit)
	if err != nil {
		return err
	}
	slog.Info("Book edited", "book_id", c.BookID, "changed", strings.Join(outcome.Changed, ","))
	return nil
}

// metadata converts the flags into an explicit edit. Unset flags stay absent.
func (c *EditCmd) metadata() (*provider.Metadata, error) {
	md := &provider.Metadata{}

	texts := map[string]textFlag{
		"title":       {c.Title, &md.Title},
		"subtitle":    {c.Subtitle, &md.Subtitle},
		"description": {c.Description, &md.Description},
		"publisher":   {c.Publisher, &md.Publisher},
		"language":    {c.Language, &md.Language},
		"isbn10":      {c.ISBN10, &md.ISBN10},
		"isbn13":      {c.ISBN13, &md.ISBN13},
		"seriesName":  {c.SeriesName, &md.SeriesName},
	}
	for _, t := range texts {
		if t.value != "" {
			value := t.value
			*t.dst = &value
		}
	}

	if c.PublishedDate != "" {
		md.PublishedDate = provider.ParseDate(c.PublishedDate)
		if md.PublishedDate == nil {
			return nil, fmt.Errorf("invalid published date %q", c.PublishedDate)
		}
	}
	md.PageCount = provider.Positive(c.PageCount)
	md.SeriesTotal = provider.Positive(c.SeriesTotal)
	if c.SeriesNumber > 0 {
		md.SeriesNumber = &c.SeriesNumber
	}
	if len(c.Authors) > 0 {
		md.Authors = c.Authors
	}
	if len(c.Categories) > 0 {
		md.Categories = c.Categories
	}
	if c.CoverURL != "" {
		md.ThumbnailURL = &c.CoverURL
	}

	for _, name := range c.Clear {
		switch {
		case strings.EqualFold(name, "authors"):
			md.Authors = []string{}
		case strings.EqualFold(name, "categories"):
			md.Categories = []string{}
		default:
			t, ok := lookupText(texts, name)
			if !ok {
				return nil, fmt.Errorf("field %q cannot be cleared", name)
			}
			empty := ""
			*t = &empty
		}
	}

	for _, names := range []struct {
		list   []string
		locked bool
	}{{c.Lock, true}, {c.Unlock, false}} {
		for _, name := range names.list {
			f, err := metadata.ParseLockField(name)
			if err != nil {
				return nil, err
			}
			if md.Locks.Fields == nil {
				md.Locks.Fields = make(map[metadata.LockField]bool)
			}
			md.Locks.Fields[f] = names.locked
		}
	}
	return md, nil
}

type textFlag struct {
	value string
	dst   **string
}

func lookupText(texts map[string]textFlag, name string) (**string, bool) {
	for key, t := range texts {
		if strings.EqualFold(key, strings.TrimSpace(name)) {
			return t.dst, true
		}
	}
	return nil, false
}

// CoverCmd uploads a local image as the book cover.
type CoverCmd struct {
	BookID int64  `arg:"" help:"Book ID"`
	Image  string `arg:"" type:"existingfile" help:"Image file (JPEG, PNG, GIF)"`
}

func (c *CoverCmd) Run(ctx context.Context) error {
	data, err := readImageFile(c.Image)
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.Image, err)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.merger.UploadCover(ctx, c.BookID, data)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, deref(rec.ThumbnailPath))
	return nil
}

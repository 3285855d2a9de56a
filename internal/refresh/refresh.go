// Package refresh runs metadata refreshes over a library or a list of
// books, one book at a time.
package refresh

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/merge"
	"github.com/lepinkainen/bookmeta/internal/metadata"
	"github.com/lepinkainen/bookmeta/internal/metrics"
	"github.com/lepinkainen/bookmeta/internal/provider"
	"github.com/lepinkainen/bookmeta/internal/resolve"
	"github.com/lepinkainen/bookmeta/internal/store"
)

// Type selects which books a request covers.
type Type string

const (
	Library Type = "LIBRARY"
	Books   Type = "BOOKS"
)

const (
	DefaultJitterMin = 500 * time.Millisecond
	DefaultJitterMax = 1500 * time.Millisecond
)

// Request describes a batch refresh. Quick requests ignore Options and use
// the coordinator's default options.
type Request struct {
	Type      Type
	LibraryID int64
	BookIDs   []int64
	Options   *resolve.RefreshOptions
	Quick     bool
}

// Summary counts what a batch refresh did. Processed excludes skipped books.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int
	Updated   int
}

// Catalog loads the books to refresh.
type Catalog interface {
	GetBook(ctx context.Context, id int64) (store.Book, error)
	GetBooks(ctx context.Context, ids []int64) ([]store.Book, error)
	ListBooks(ctx context.Context, libraryID int64) ([]store.Book, error)
}

// Fetcher gathers provider results for one book.
type Fetcher interface {
	FetchAll(ctx context.Context, q provider.Query, ids []provider.ID) (map[provider.ID]*provider.Metadata, error)
}

// Merger writes resolved metadata into a record.
type Merger interface {
	ApplyRefresh(ctx context.Context, bookID int64, resolved *provider.Metadata, flags merge.RefreshFlags) (merge.Outcome, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Coordinator drives refreshes.
type Coordinator struct {
	catalog   Catalog
	fetcher   Fetcher
	merger    Merger
	defaults  resolve.RefreshOptions
	sleep     Sleeper
	jitterMin time.Duration
	jitterMax time.Duration
}

// Option is a functional option for configuring the Coordinator.
type Option func(*Coordinator)

// WithSleeper replaces the delay used between GoodReads lookups.
func WithSleeper(s Sleeper) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithJitter sets the random delay range between books when GoodReads is
// queried.
func WithJitter(minDelay, maxDelay time.Duration) Option {
	return func(c *Coordinator) {
		if minDelay >= 0 && maxDelay >= minDelay {
			c.jitterMin, c.jitterMax = minDelay, maxDelay
		}
	}
}

// New creates a Coordinator. defaults are the options quick refreshes use.
func New(catalog Catalog, fetcher Fetcher, merger Merger, defaults resolve.RefreshOptions, opts ...Option) *Coordinator {
	c := &Coordinator{
		catalog:   catalog,
		fetcher:   fetcher,
		merger:    merger,
		defaults:  defaults,
		sleep:     sleepContext,
		jitterMin: DefaultJitterMin,
		jitterMax: DefaultJitterMax,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh processes every book of the request in file name order. Failures
// of single books are logged and counted; only request level problems such
// as an unknown library, an invalid type or an unregistered provider end the
// run early.
func (c *Coordinator) Refresh(ctx context.Context, req Request) (Summary, error) {
	start := time.Now()
	defer metrics.RecordRefreshDuration(start)

	opts, err := c.options(req.Options, req.Quick)
	if err != nil {
		return Summary{}, err
	}

	var books []store.Book
	switch req.Type {
	case Library:
		books, err = c.catalog.ListBooks(ctx, req.LibraryID)
	case Books:
		books, err = c.catalog.GetBooks(ctx, req.BookIDs)
	default:
		return Summary{}, fmt.Errorf("%w: %q", errors.ErrInvalidRefreshType, req.Type)
	}
	if err != nil {
		return Summary{}, err
	}

	SortByFileName(books)
	providers := opts.Providers()
	politeness := opts.Uses(provider.GoodReads)

	slog.Info("Starting metadata refresh", "type", req.Type, "books", len(books), "providers", providers)

	var summary Summary
	for i, book := range books {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if book.Record != nil && book.Record.Locks.AllFieldsLocked {
			slog.Info("Skipping book with all fields locked", "book_id", book.ID, "file", fileName(book))
			summary.Skipped++
			metrics.RecordBook(metrics.StatusSkipped)
			continue
		}

		summary.Processed++
		out, err := c.refreshOne(ctx, book, opts, providers)
		switch {
		case errors.IsProviderNotRegistered(err):
			return summary, err
		case err != nil:
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			metrics.RecordBook(metrics.StatusFailed)
			slog.Error("Failed to refresh book", "book_id", book.ID, "file", fileName(book), "error", err)
		case out.Updated():
			summary.Updated++
			metrics.RecordBook(metrics.StatusUpdated)
		default:
			metrics.RecordBook(metrics.StatusUnchanged)
		}

		if politeness && i < len(books)-1 {
			if err := c.sleep(ctx, c.jitter()); err != nil {
				return summary, err
			}
		}
	}

	slog.Info("Metadata refresh finished",
		"processed", summary.Processed,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}

// RefreshBook refreshes a single book and returns its record. A nil opts
// uses the default options.
func (c *Coordinator) RefreshBook(ctx context.Context, bookID int64, opts *resolve.RefreshOptions) (*metadata.Record, error) {
	resolved, err := c.options(opts, opts == nil)
	if err != nil {
		return nil, err
	}
	book, err := c.catalog.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	out, err := c.refreshOne(ctx, book, resolved, resolved.Providers())
	if err != nil {
		return nil, err
	}
	return out.Record, nil
}

func (c *Coordinator) options(opts *resolve.RefreshOptions, quick bool) (resolve.RefreshOptions, error) {
	chosen := c.defaults
	if !quick {
		if opts == nil {
			return resolve.RefreshOptions{}, fmt.Errorf("refresh options are required unless quick is set")
		}
		chosen = *opts
	}
	if err := chosen.Validate(); err != nil {
		return resolve.RefreshOptions{}, err
	}
	return chosen, nil
}

func (c *Coordinator) refreshOne(ctx context.Context, book store.Book, opts resolve.RefreshOptions, providers []provider.ID) (out merge.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while refreshing book %d: %v", book.ID, r)
		}
	}()

	results, err := c.fetcher.FetchAll(ctx, QueryFor(book), providers)
	if err != nil {
		return merge.Outcome{}, err
	}
	resolved := resolve.Resolve(results, opts)
	return c.merger.ApplyRefresh(ctx, book.ID, resolved, merge.RefreshFlags{
		MergeCategories: opts.MergeCategories,
		RefreshCovers:   opts.RefreshCovers,
	})
}

func (c *Coordinator) jitter() time.Duration {
	span := int64(c.jitterMax - c.jitterMin)
	if span <= 0 {
		return c.jitterMin
	}
	return c.jitterMin + time.Duration(rand.Int64N(span+1))
}

// QueryFor builds the provider query for a book from its current record.
func QueryFor(book store.Book) provider.Query {
	q := provider.Query{BookID: book.ID}
	if book.FileName != nil {
		q.FileName = *book.FileName
	}
	rec := book.Record
	if rec == nil {
		return q
	}
	if rec.Title != nil {
		q.Title = *rec.Title
	}
	if len(rec.Authors) > 0 {
		q.Author = rec.Authors[0]
	}
	switch {
	case rec.ISBN13 != nil:
		q.ISBN = *rec.ISBN13
	case rec.ISBN10 != nil:
		q.ISBN = *rec.ISBN10
	}
	return q
}

// SortByFileName orders books by file name with unnamed books last.
func SortByFileName(books []store.Book) {
	slices.SortStableFunc(books, func(a, b store.Book) int {
		switch {
		case a.FileName == nil && b.FileName == nil:
			return 0
		case a.FileName == nil:
			return 1
		case b.FileName == nil:
			return -1
		default:
			return cmp.Compare(*a.FileName, *b.FileName)
		}
	})
}

func fileName(b store.Book) string {
	if b.FileName == nil {
		return ""
	}
	return *b.FileName
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

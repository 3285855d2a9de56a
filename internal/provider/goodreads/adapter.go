// Package goodreads scrapes book metadata from goodreads.com search and book
// pages. Book pages embed their Apollo cache as JSON in a __NEXT_DATA__
// script, which is where the details come from.
package goodreads

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/lepinkainen/bookmeta/internal/provider"
	"github.com/lepinkainen/bookmeta/internal/ratelimit"
)

const (
	defaultBaseURL = "https://www.goodreads.com"
	// DefaultDelay is the pause between consecutive page requests.
	DefaultDelay = time.Second
)

// PageFetcher downloads an HTML page.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// Adapter implements provider.Adapter for GoodReads.
type Adapter struct {
	baseURL string
	fetcher PageFetcher
	limiter *ratelimit.Limiter
}

var _ provider.Adapter = (*Adapter)(nil)

// Option is a functional option for configuring the Adapter.
type Option func(*Adapter)

// WithBaseURL points the adapter at another host, mainly for tests.
func WithBaseURL(base string) Option {
	return func(a *Adapter) {
		if base != "" {
			a.baseURL = base
		}
	}
}

// WithFetcher replaces the default HTTP page fetcher.
func WithFetcher(f PageFetcher) Option {
	return func(a *Adapter) {
		if f != nil {
			a.fetcher = f
		}
	}
}

// WithDelay sets the minimum pause between page requests. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(a *Adapter) {
		a.limiter = ratelimit.NewInterval("GoodReads", d)
	}
}

// New creates a GoodReads adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		baseURL: defaultBaseURL,
		limiter: ratelimit.NewInterval("GoodReads", DefaultDelay),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.fetcher == nil {
		a.fetcher = NewHTTPFetcher()
	}
	return a
}

// ID returns provider.GoodReads.
func (a *Adapter) ID() provider.ID {
	return provider.GoodReads
}

// SearchPreviews runs a site search and returns one preview per result row.
func (a *Adapter) SearchPreviews(ctx context.Context, q provider.Query) ([]provider.Metadata, error) {
	term := searchTerm(q)
	if term == "" {
		slog.Debug("GoodReads: nothing to search for", "book_id", q.BookID)
		return nil, nil
	}

	slog.Info("GoodReads: fetching metadata previews", "term", term)
	page, err := a.fetch(ctx, a.baseURL+"/search?q="+url.QueryEscape(term))
	if err != nil {
		return nil, fmt.Errorf("goodreads search %q: %w", term, err)
	}

	previews, err := parseSearchResults(page)
	if err != nil {
		return nil, fmt.Errorf("goodreads search %q: %w", term, err)
	}
	return previews, nil
}

// FetchDetails loads each preview's book page in order. Pages that cannot be
// fetched or parsed are logged and skipped.
func (a *Adapter) FetchDetails(ctx context.Context, previews []provider.Metadata) ([]provider.Metadata, error) {
	detailed := make([]provider.Metadata, 0, len(previews))
	for _, preview := range previews {
		title := ""
		if preview.Title != nil {
			title = *preview.Title
		}
		slog.Info("GoodReads: fetching metadata", "title", title, "goodreads_id", preview.ProviderBookID)

		page, err := a.fetch(ctx, a.baseURL+"/book/show/"+url.PathEscape(preview.ProviderBookID))
		if err != nil {
			if ctx.Err() != nil {
				return detailed, ctx.Err()
			}
			slog.Error("GoodReads: failed to fetch book page", "goodreads_id", preview.ProviderBookID, "error", err)
			continue
		}

		md, err := parseBookPage(page, preview.ProviderBookID)
		if err != nil {
			slog.Error("GoodReads: failed to parse book page", "goodreads_id", preview.ProviderBookID, "error", err)
			continue
		}
		detailed = append(detailed, *md)
	}
	return detailed, nil
}

// FetchTop returns the detailed metadata of the best search hit.
func (a *Adapter) FetchTop(ctx context.Context, q provider.Query) (*provider.Metadata, error) {
	return provider.TopFrom(ctx, a, q)
}

func (a *Adapter) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return a.fetcher.Fetch(ctx, pageURL)
}

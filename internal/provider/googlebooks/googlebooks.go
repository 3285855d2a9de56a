// Package googlebooks implements the Google Books volumes API adapter.
package googlebooks

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/cache"
	"github.com/lepinkainen/bookmeta/internal/httpclient"
	"github.com/lepinkainen/bookmeta/internal/provider"
	"github.com/lepinkainen/bookmeta/internal/ratelimit"
)

const (
	defaultBaseURL = "https://www.googleapis.com/books/v1"
	maxResults     = 10
)

// Adapter implements provider.Adapter for Google Books.
type Adapter struct {
	baseURL string
	apiKey  string
	client  *httpclient.Client
	limiter *ratelimit.Limiter
}

var _ provider.Adapter = (*Adapter)(nil)

// Option is a functional option for configuring the Adapter.
type Option func(*Adapter)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(base string) Option {
	return func(a *Adapter) {
		if base != "" {
			a.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithAPIKey sets the API key. Without one the adapter reads
// GOOGLE_BOOKS_API_KEY; anonymous requests also work at a lower quota.
func WithAPIKey(key string) Option {
	return func(a *Adapter) {
		a.apiKey = key
	}
}

// WithHTTPClient sets the transport.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
	}
}

// WithRateLimit sets the request rate.
func WithRateLimit(requestsPerSecond int) Option {
	return func(a *Adapter) {
		if requestsPerSecond > 0 {
			a.limiter = ratelimit.New("GoogleBooks", requestsPerSecond)
		}
	}
}

// New creates a Google Books adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		baseURL: defaultBaseURL,
		apiKey:  os.Getenv("GOOGLE_BOOKS_API_KEY"),
		client:  httpclient.New("googlebooks"),
		limiter: ratelimit.New("GoogleBooks", 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns provider.GoogleBooks.
func (a *Adapter) ID() provider.ID {
	return provider.GoogleBooks
}

// cachedSearch wraps results with metadata for caching.
type cachedSearch struct {
	Results  []provider.Metadata `json:"results"`
	NotFound bool                `json:"not_found"`
}

// SearchPreviews queries volumes by ISBN when known, otherwise by title and
// author. Volumes come back fully detailed.
func (a *Adapter) SearchPreviews(ctx context.Context, q provider.Query) ([]provider.Metadata, error) {
	query := buildQuery(q)
	if query == "" {
		return nil, nil
	}

	cached, _, err := cache.GetOrFetchWithTTL(cache.GoogleBooksTable, query, func() (*cachedSearch, error) {
		return a.search(ctx, query)
	}, cache.SelectNegativeCacheTTL(func(r *cachedSearch) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, fmt.Errorf("googlebooks search %q: %w", query, err)
	}
	return cached.Results, nil
}

// FetchDetails returns previews unchanged.
func (a *Adapter) FetchDetails(_ context.Context, previews []provider.Metadata) ([]provider.Metadata, error) {
	return previews, nil
}

// FetchTop returns the best matching volume.
func (a *Adapter) FetchTop(ctx context.Context, q provider.Query) (*provider.Metadata, error) {
	return provider.TopFrom(ctx, a, q)
}

func buildQuery(q provider.Query) string {
	if isbn := provider.NormalizeISBN(q.ISBN); isbn != "" {
		return "isbn:" + isbn
	}
	var parts []string
	if t := strings.TrimSpace(q.Title); t != "" {
		parts = append(parts, "intitle:"+t)
	}
	if au := strings.TrimSpace(q.Author); au != "" {
		parts = append(parts, "inauthor:"+au)
	}
	return strings.Join(parts, " ")
}

// volumesResponse matches the Google Books API response structure.
type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		ID         string `json:"id"`
		VolumeInfo struct {
			Title               string   `json:"title"`
			Subtitle            string   `json:"subtitle"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			Description         string   `json:"description"`
			PageCount           int      `json:"pageCount"`
			Categories          []string `json:"categories"`
			Language            string   `json:"language"`
			AverageRating       float64  `json:"averageRating"`
			RatingsCount        int      `json:"ratingsCount"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
			ImageLinks struct {
				Thumbnail      string `json:"thumbnail"`
				SmallThumbnail string `json:"smallThumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (a *Adapter) search(ctx context.Context, query string) (*cachedSearch, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", fmt.Sprint(maxResults))
	params.Set("printType", "books")
	if a.apiKey != "" {
		params.Set("key", a.apiKey)
	}

	var result volumesResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/volumes?"+params.Encode(), &result); err != nil {
		return nil, err
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return &cachedSearch{NotFound: true}, nil
	}

	out := make([]provider.Metadata, 0, len(result.Items))
	for _, item := range result.Items {
		vol := item.VolumeInfo
		md := provider.Metadata{
			Provider:       provider.GoogleBooks,
			ProviderBookID: item.ID,
			Title:          provider.Text(vol.Title),
			Subtitle:       provider.Text(vol.Subtitle),
			Description:    provider.Text(vol.Description),
			Publisher:      provider.Text(vol.Publisher),
			PublishedDate:  provider.ParseDate(vol.PublishedDate),
			Language:       provider.Text(vol.Language),
			PageCount:      provider.Positive(vol.PageCount),
			RatingCount:    provider.Positive(vol.RatingsCount),
			Authors:        vol.Authors,
			Categories:     splitCategories(vol.Categories),
		}
		if vol.AverageRating > 0 {
			rating := vol.AverageRating
			md.Rating = &rating
		}

		for _, id := range vol.IndustryIdentifiers {
			switch id.Type {
			case "ISBN_10":
				md.ISBN10 = provider.Text(id.Identifier)
			case "ISBN_13":
				md.ISBN13 = provider.Text(id.Identifier)
			}
		}

		// Prefer larger thumbnail
		coverURL := vol.ImageLinks.Thumbnail
		if coverURL == "" {
			coverURL = vol.ImageLinks.SmallThumbnail
		}
		if coverURL != "" {
			coverURL = strings.Replace(coverURL, "zoom=1", "zoom=0", 1)
			coverURL = strings.Replace(coverURL, "http://", "https://", 1)
			md.ThumbnailURL = &coverURL
		}

		out = append(out, md)
	}
	return &cachedSearch{Results: out}, nil
}

// splitCategories flattens "Fiction / Science Fiction / General" paths.
func splitCategories(categories []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range categories {
		for _, part := range strings.Split(c, "/") {
			part = strings.TrimSpace(part)
			if part == "" || strings.EqualFold(part, "General") || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

// Package hardcover implements the Hardcover.app GraphQL adapter.
package hardcover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/cache"
	"github.com/lepinkainen/bookmeta/internal/httpclient"
	"github.com/lepinkainen/bookmeta/internal/provider"
	"github.com/lepinkainen/bookmeta/internal/ratelimit"
)

const (
	defaultEndpoint = "https://api.hardcover.app/v1/graphql"
	searchLimit     = 5
)

const searchQuery = `query SearchBooks($query: String!, $limit: Int!) {
  search_books(query: $query, limit: $limit) {
    results { hits { document {
      id title subtitle author_names image { url } description
      release_year release_date slug publisher isbns pages
      rating ratings_count reviews_count genres series_names
    } } }
  }
}`

// Adapter implements provider.Adapter for Hardcover.
type Adapter struct {
	endpoint string
	token    string
	client   *httpclient.Client
	limiter  *ratelimit.Limiter
}

var _ provider.Adapter = (*Adapter)(nil)

// Option is a functional option for configuring the Adapter.
type Option func(*Adapter)

// WithEndpoint sets the GraphQL endpoint.
func WithEndpoint(endpoint string) Option {
	return func(a *Adapter) {
		if endpoint != "" {
			a.endpoint = endpoint
		}
	}
}

// WithToken sets the API token. Defaults to HARDCOVER_API_TOKEN.
func WithToken(token string) Option {
	return func(a *Adapter) {
		a.token = token
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
			a.limiter = ratelimit.New("Hardcover", requestsPerSecond)
		}
	}
}

// New creates a Hardcover adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		endpoint: defaultEndpoint,
		token:    os.Getenv("HARDCOVER_API_TOKEN"),
		client:   httpclient.New("hardcover"),
		// Hardcover allows 60 requests per minute
		limiter: ratelimit.New("Hardcover", 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns provider.Hardcover.
func (a *Adapter) ID() provider.ID {
	return provider.Hardcover
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data *struct {
		SearchBooks *struct {
			Results *struct {
				Hits []struct {
					Document document `json:"document"`
				} `json:"hits"`
			} `json:"results"`
		} `json:"search_books"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type document struct {
	ID          flexString `json:"id"`
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	AuthorNames []string   `json:"author_names"`
	Image       *struct {
		URL string `json:"url"`
	} `json:"image"`
	Description  string   `json:"description"`
	ReleaseYear  int      `json:"release_year"`
	ReleaseDate  string   `json:"release_date"`
	Slug         string   `json:"slug"`
	Publisher    string   `json:"publisher"`
	ISBNs        []string `json:"isbns"`
	Pages        int      `json:"pages"`
	Rating       float64  `json:"rating"`
	RatingsCount int      `json:"ratings_count"`
	ReviewsCount int      `json:"reviews_count"`
	Genres       []string `json:"genres"`
	SeriesNames  []string `json:"series_names"`
}

// flexString accepts ids encoded as either JSON strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		s = ""
	}
	*f = flexString(s)
	return nil
}

type cachedSearch struct {
	Results  []provider.Metadata `json:"results"`
	NotFound bool                `json:"not_found"`
}

// SearchPreviews runs a book search. Without an API token the provider is
// silently empty.
func (a *Adapter) SearchPreviews(ctx context.Context, q provider.Query) ([]provider.Metadata, error) {
	if a.token == "" {
		slog.Debug("Hardcover: no API token configured, skipping")
		return nil, nil
	}

	term := searchTerm(q)
	if term == "" {
		return nil, nil
	}

	cached, _, err := cache.GetOrFetchWithTTL(cache.HardcoverTable, term, func() (*cachedSearch, error) {
		return a.search(ctx, term)
	}, cache.SelectNegativeCacheTTL(func(r *cachedSearch) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, fmt.Errorf("hardcover search %q: %w", term, err)
	}
	return cached.Results, nil
}

// FetchDetails returns previews unchanged; search documents are complete.
func (a *Adapter) FetchDetails(_ context.Context, previews []provider.Metadata) ([]provider.Metadata, error) {
	return previews, nil
}

// FetchTop returns the best search hit.
func (a *Adapter) FetchTop(ctx context.Context, q provider.Query) (*provider.Metadata, error) {
	return provider.TopFrom(ctx, a, q)
}

func searchTerm(q provider.Query) string {
	if isbn := provider.NormalizeISBN(q.ISBN); isbn != "" {
		return isbn
	}
	return strings.TrimSpace(strings.TrimSpace(q.Title) + " " + strings.TrimSpace(q.Author))
}

func (a *Adapter) search(ctx context.Context, term string) (*cachedSearch, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := graphQLRequest{
		Query:     searchQuery,
		Variables: map[string]any{"query": term, "limit": searchLimit},
	}
	var resp graphQLResponse
	headers := http.Header{"Authorization": {"Bearer " + a.token}}
	if err := a.client.PostJSON(ctx, a.endpoint, req, &resp, headers); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, errors.New("graphql: " + strings.Join(msgs, "; "))
	}
	if resp.Data == nil || resp.Data.SearchBooks == nil || resp.Data.SearchBooks.Results == nil ||
		len(resp.Data.SearchBooks.Results.Hits) == 0 {
		return &cachedSearch{NotFound: true}, nil
	}

	hits := resp.Data.SearchBooks.Results.Hits
	out := make([]provider.Metadata, 0, len(hits))
	for _, hit := range hits {
		out = append(out, toMetadata(hit.Document))
	}
	return &cachedSearch{Results: out}, nil
}

func toMetadata(doc document) provider.Metadata {
	id := string(doc.ID)
	if id == "" {
		id = doc.Slug
	}
	md := provider.Metadata{
		Provider:       provider.Hardcover,
		ProviderBookID: id,
		Title:          provider.Text(doc.Title),
		Subtitle:       provider.Text(doc.Subtitle),
		Description:    provider.Text(doc.Description),
		Publisher:      provider.Text(doc.Publisher),
		PageCount:      provider.Positive(doc.Pages),
		RatingCount:    provider.Positive(doc.RatingsCount),
		ReviewCount:    provider.Positive(doc.ReviewsCount),
		Authors:        doc.AuthorNames,
		Categories:     doc.Genres,
	}
	md.ISBN10, md.ISBN13 = provider.ISBNs(doc.ISBNs...)
	if doc.Rating > 0 {
		rating := doc.Rating
		md.Rating = &rating
	}
	if doc.Image != nil {
		md.ThumbnailURL = provider.Text(doc.Image.URL)
	}
	md.PublishedDate = provider.ParseDate(doc.ReleaseDate)
	if md.PublishedDate == nil && doc.ReleaseYear > 0 {
		md.PublishedDate = provider.ParseDate(strconv.Itoa(doc.ReleaseYear))
	}
	if len(doc.SeriesNames) > 0 {
		md.SeriesName = provider.Text(doc.SeriesNames[0])
	}
	return md
}

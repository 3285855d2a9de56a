// Package openlibrary implements the Open Library search and books API adapter.
package openlibrary

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/cache"
	"github.com/lepinkainen/bookmeta/internal/httpclient"
	"github.com/lepinkainen/bookmeta/internal/provider"
	"github.com/lepinkainen/bookmeta/internal/ratelimit"
)

const (
	defaultBaseURL      = "https://openlibrary.org"
	defaultCoverBaseURL = "https://covers.openlibrary.org"
	searchLimit         = 10
	searchFields        = "key,title,subtitle,author_name,first_publish_year,isbn,publisher,language,number_of_pages_median,cover_i,subject,ratings_average,ratings_count"
	maxSubjects         = 10
)

// Adapter implements provider.Adapter for Open Library.
type Adapter struct {
	baseURL      string
	coverBaseURL string
	client       *httpclient.Client
	limiter      *ratelimit.Limiter
}

var _ provider.Adapter = (*Adapter)(nil)

// Option is a functional option for configuring the Adapter.
type Option func(*Adapter)

// WithBaseURL sets a custom base URL for the API and cover host.
func WithBaseURL(base string) Option {
	return func(a *Adapter) {
		if base != "" {
			a.baseURL = strings.TrimRight(base, "/")
			a.coverBaseURL = a.baseURL
		}
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
			a.limiter = ratelimit.New("OpenLibrary", requestsPerSecond)
		}
	}
}

// New creates an Open Library adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		baseURL:      defaultBaseURL,
		coverBaseURL: defaultCoverBaseURL,
		client:       httpclient.New("openlibrary", httpclient.WithHeader("User-Agent", "bookmeta (https://github.com/lepinkainen/bookmeta)")),
		limiter:      ratelimit.New("OpenLibrary", 1),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns provider.OpenLibrary.
func (a *Adapter) ID() provider.ID {
	return provider.OpenLibrary
}

type searchResponse struct {
	NumFound int `json:"numFound"`
	Docs     []struct {
		Key                 string   `json:"key"`
		Title               string   `json:"title"`
		Subtitle            string   `json:"subtitle"`
		AuthorName          []string `json:"author_name"`
		FirstPublishYear    int      `json:"first_publish_year"`
		ISBN                []string `json:"isbn"`
		Publisher           []string `json:"publisher"`
		Language            []string `json:"language"`
		NumberOfPagesMedian int      `json:"number_of_pages_median"`
		CoverID             int      `json:"cover_i"`
		Subject             []string `json:"subject"`
		RatingsAverage      float64  `json:"ratings_average"`
		RatingsCount        int      `json:"ratings_count"`
	} `json:"docs"`
}

type cachedSearch struct {
	Results  []provider.Metadata `json:"results"`
	NotFound bool                `json:"not_found"`
}

// SearchPreviews queries search.json by ISBN or by title and author.
func (a *Adapter) SearchPreviews(ctx context.Context, q provider.Query) ([]provider.Metadata, error) {
	params := searchParams(q)
	if params == nil {
		return nil, nil
	}
	key := params.Encode()

	cached, _, err := cache.GetOrFetchWithTTL(cache.OpenLibraryTable, "search:"+key, func() (*cachedSearch, error) {
		return a.search(ctx, params)
	}, cache.SelectNegativeCacheTTL(func(r *cachedSearch) bool {
		return r.NotFound
	}))
	if err != nil {
		return nil, fmt.Errorf("openlibrary search %q: %w", key, err)
	}
	return cached.Results, nil
}

func searchParams(q provider.Query) url.Values {
	params := url.Values{}
	if isbn := provider.NormalizeISBN(q.ISBN); isbn != "" {
		params.Set("isbn", isbn)
	} else {
		title := strings.TrimSpace(q.Title)
		if title == "" {
			return nil
		}
		params.Set("title", title)
		if author := strings.TrimSpace(q.Author); author != "" {
			params.Set("author", author)
		}
	}
	params.Set("fields", searchFields)
	params.Set("limit", strconv.Itoa(searchLimit))
	return params
}

func (a *Adapter) search(ctx context.Context, params url.Values) (*cachedSearch, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := a.client.GetJSON(ctx, a.baseURL+"/search.json?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Docs) == 0 {
		return &cachedSearch{NotFound: true}, nil
	}

	out := make([]provider.Metadata, 0, len(resp.Docs))
	for _, doc := range resp.Docs {
		md := provider.Metadata{
			Provider:       provider.OpenLibrary,
			ProviderBookID: strings.TrimPrefix(doc.Key, "/works/"),
			Title:          provider.Text(doc.Title),
			Subtitle:       provider.Text(doc.Subtitle),
			Authors:        doc.AuthorName,
			PageCount:      provider.Positive(doc.NumberOfPagesMedian),
			RatingCount:    provider.Positive(doc.RatingsCount),
		}
		md.ISBN10, md.ISBN13 = provider.ISBNs(doc.ISBN...)
		if len(doc.Publisher) > 0 {
			md.Publisher = provider.Text(doc.Publisher[0])
		}
		if len(doc.Language) > 0 {
			md.Language = provider.Text(doc.Language[0])
		}
		if doc.FirstPublishYear > 0 {
			md.PublishedDate = provider.ParseDate(strconv.Itoa(doc.FirstPublishYear))
		}
		if doc.RatingsAverage > 0 {
			rating := doc.RatingsAverage
			md.Rating = &rating
		}
		if doc.CoverID > 0 {
			cover := fmt.Sprintf("%s/b/id/%d-L.jpg", a.coverBaseURL, doc.CoverID)
			md.ThumbnailURL = &cover
		}
		if len(doc.Subject) > maxSubjects {
			doc.Subject = doc.Subject[:maxSubjects]
		}
		md.Categories = doc.Subject
		out = append(out, md)
	}
	return &cachedSearch{Results: out}, nil
}

// bookResponse matches the jscmd=data shape of /api/books.
type bookResponse struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	PublishDate   string `json:"publish_date"`
	NumberOfPages int    `json:"number_of_pages"`
	Description   any    `json:"description"`
	Notes         any    `json:"notes"`
	Cover         struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"cover"`
	Subjects []struct {
		Name string `json:"name"`
	} `json:"subjects"`
}

type cachedEdition struct {
	Edition  *bookResponse `json:"edition"`
	NotFound bool          `json:"not_found"`
}

// FetchDetails expands previews that carry an ISBN with edition data from
// /api/books. Previews without an ISBN are returned as they are.
func (a *Adapter) FetchDetails(ctx context.Context, previews []provider.Metadata) ([]provider.Metadata, error) {
	out := make([]provider.Metadata, 0, len(previews))
	for _, preview := range previews {
		isbn := ""
		switch {
		case preview.ISBN13 != nil:
			isbn = *preview.ISBN13
		case preview.ISBN10 != nil:
			isbn = *preview.ISBN10
		}
		if isbn == "" {
			out = append(out, preview)
			continue
		}

		cached, _, err := cache.GetOrFetchWithTTL(cache.OpenLibraryTable, "isbn:"+isbn, func() (*cachedEdition, error) {
			return a.fetchEdition(ctx, isbn)
		}, cache.SelectNegativeCacheTTL(func(r *cachedEdition) bool {
			return r.NotFound
		}))
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			slog.Error("OpenLibrary: failed to fetch edition", "isbn", isbn, "error", err)
			continue
		}
		if cached.Edition != nil {
			mergeEdition(&preview, cached.Edition)
		}
		out = append(out, preview)
	}
	return out, nil
}

// FetchTop returns the best search hit expanded with edition data.
func (a *Adapter) FetchTop(ctx context.Context, q provider.Query) (*provider.Metadata, error) {
	return provider.TopFrom(ctx, a, q)
}

func (a *Adapter) fetchEdition(ctx context.Context, isbn string) (*cachedEdition, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", a.baseURL, url.QueryEscape(isbn))
	var result map[string]bookResponse
	if err := a.client.GetJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	edition, ok := result["ISBN:"+isbn]
	if !ok {
		return &cachedEdition{NotFound: true}, nil
	}
	return &cachedEdition{Edition: &edition}, nil
}

// mergeEdition overlays edition fields onto the work-level preview.
func mergeEdition(md *provider.Metadata, ed *bookResponse) {
	if t := provider.Text(ed.Title); t != nil {
		md.Title = t
	}
	if s := provider.Text(ed.Subtitle); s != nil {
		md.Subtitle = s
	}
	if len(ed.Publishers) > 0 {
		if p := provider.Text(ed.Publishers[0].Name); p != nil {
			md.Publisher = p
		}
	}
	if d := provider.ParseDate(ed.PublishDate); d != nil {
		md.PublishedDate = d
	}
	if p := provider.Positive(ed.NumberOfPages); p != nil {
		md.PageCount = p
	}
	if desc := extractDescription(ed.Description); desc != "" {
		md.Description = &desc
	} else if notes := extractDescription(ed.Notes); notes != "" {
		md.Description = &notes
	}
	if cover := ed.Cover.Large; cover != "" {
		md.ThumbnailURL = &cover
	} else if cover := ed.Cover.Medium; cover != "" {
		md.ThumbnailURL = &cover
	}
	if len(ed.Authors) > 0 {
		authors := make([]string, 0, len(ed.Authors))
		for _, au := range ed.Authors {
			if name := strings.TrimSpace(au.Name); name != "" {
				authors = append(authors, name)
			}
		}
		if len(authors) > 0 {
			md.Authors = authors
		}
	}
	if len(ed.Subjects) > 0 && len(md.Categories) == 0 {
		for _, s := range ed.Subjects {
			if name := strings.TrimSpace(s.Name); name != "" && len(md.Categories) < maxSubjects {
				md.Categories = append(md.Categories, name)
			}
		}
	}
}

// extractDescription handles both plain strings and {"type": ..., "value": ...}.
func extractDescription(v any) string {
	switch d := v.(type) {
	case string:
		return strings.TrimSpace(d)
	case map[string]any:
		if value, ok := d["value"].(string); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

package provider

import (
	"strings"
	"time"

	"github.com/lepinkainen/bookmeta/internal/metadata"
)

// Query describes the book to look up. It is passed by value and never
// modified by adapters.
type Query struct {
	Title    string
	Author   string
	ISBN     string
	BookID   int64
	FileName string
}

// Metadata is a single provider's snapshot of a book. Provider and
// ProviderBookID are always set; everything else is optional and nil or
// empty when the provider had nothing.
type Metadata struct {
	Provider       ID     `json:"provider"`
	ProviderBookID string `json:"providerBookId"`

	Title         *string    `json:"title,omitempty"`
	Subtitle      *string    `json:"subtitle,omitempty"`
	Description   *string    `json:"description,omitempty"`
	Publisher     *string    `json:"publisher,omitempty"`
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
	Language      *string    `json:"language,omitempty"`
	ISBN10        *string    `json:"isbn10,omitempty"`
	ISBN13        *string    `json:"isbn13,omitempty"`
	ASIN          *string    `json:"asin,omitempty"`
	PageCount     *int       `json:"pageCount,omitempty"`
	Rating        *float64   `json:"rating,omitempty"`
	RatingCount   *int       `json:"ratingCount,omitempty"`
	ReviewCount   *int       `json:"reviewCount,omitempty"`
	ThumbnailURL  *string    `json:"thumbnailUrl,omitempty"`
	SeriesName    *string    `json:"seriesName,omitempty"`
	SeriesNumber  *float64   `json:"seriesNumber,omitempty"`
	SeriesTotal   *int       `json:"seriesTotal,omitempty"`

	Authors    []string         `json:"authors,omitempty"`
	Categories []string         `json:"categories,omitempty"`
	Awards     []metadata.Award `json:"awards,omitempty"`

	// Locks carries lock changes to apply before the metadata is merged.
	Locks metadata.LockUpdate `json:"locks,omitzero"`
}

// Text returns a pointer to the trimmed value, or nil when it is blank.
func Text(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Positive returns a pointer to n, or nil when n is not positive.
func Positive(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}

// NormalizeISBN strips hyphens and spaces from an ISBN.
func NormalizeISBN(isbn string) string {
	normalized := strings.ReplaceAll(isbn, "-", "")
	normalized = strings.ReplaceAll(normalized, " ", "")
	return normalized
}

// ISBNs sorts raw identifiers into ISBN-10 and ISBN-13 by length.
func ISBNs(raw ...string) (isbn10, isbn13 *string) {
	for _, r := range raw {
		n := NormalizeISBN(r)
		switch {
		case len(n) == 10 && isbn10 == nil:
			isbn10 = &n
		case len(n) == 13 && isbn13 == nil:
			isbn13 = &n
		}
	}
	return isbn10, isbn13
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01",
	"2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2006",
	"Jan 2006",
}

// ParseDate reads the partial and free-form dates book APIs return. Missing
// month or day default to the first.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := metadata.Date(t)
			return &d
		}
	}
	return nil
}

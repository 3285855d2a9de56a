// Package resolve reconciles metadata from several providers into a single
// snapshot according to per-field provider priorities.
//
// Scalars walk the priority slots from P3 up to P1 and every present value
// overwrites the previous one, so the highest-priority provider with a value
// wins. Lists take the first non-empty list in the same walk. Fields without
// their own priority use the global AllP3/AllP2/AllP1 cascade.
package resolve

import (
	"slices"
	"strings"
	"time"

	"github.com/lepinkainen/bookmeta/internal/metadata"
	"github.com/lepinkainen/bookmeta/internal/provider"
)

// Results maps providers to their snapshot. Missing or nil entries are
// providers that returned nothing.
type Results map[provider.ID]*provider.Metadata

// Resolve builds the merged snapshot. It never fails: fields nobody provided
// stay nil.
func Resolve(results Results, opts RefreshOptions) *provider.Metadata {
	fallback := opts.Fallback()
	fields := opts.FieldOptions
	orFallback := func(fp FieldPriority) FieldPriority {
		if fp.IsZero() {
			return fallback
		}
		return fp
	}

	out := &provider.Metadata{}

	out.Title = scalar(results, orFallback(fields.Title), func(m *provider.Metadata) *string { return m.Title })
	out.Description = scalar(results, orFallback(fields.Description), func(m *provider.Metadata) *string { return m.Description })
	out.ThumbnailURL = scalar(results, orFallback(fields.Cover), func(m *provider.Metadata) *string { return m.ThumbnailURL })

	out.Authors = firstList(results, orFallback(fields.Authors), func(m *provider.Metadata) []string { return m.Authors })
	if opts.MergeCategories {
		out.Categories = union(results, orFallback(fields.Categories), func(m *provider.Metadata) []string { return m.Categories })
	} else {
		out.Categories = firstList(results, orFallback(fields.Categories), func(m *provider.Metadata) []string { return m.Categories })
	}

	out.Subtitle = scalar(results, fallback, func(m *provider.Metadata) *string { return m.Subtitle })
	out.Publisher = scalar(results, fallback, func(m *provider.Metadata) *string { return m.Publisher })
	out.PublishedDate = scalar(results, fallback, func(m *provider.Metadata) *time.Time { return m.PublishedDate })
	out.Language = scalar(results, fallback, func(m *provider.Metadata) *string { return m.Language })
	out.ISBN10 = scalar(results, fallback, func(m *provider.Metadata) *string { return m.ISBN10 })
	out.ISBN13 = scalar(results, fallback, func(m *provider.Metadata) *string { return m.ISBN13 })
	out.ASIN = scalar(results, fallback, func(m *provider.Metadata) *string { return m.ASIN })
	out.PageCount = scalar(results, fallback, func(m *provider.Metadata) *int { return m.PageCount })
	out.Rating = scalar(results, fallback, func(m *provider.Metadata) *float64 { return m.Rating })
	out.RatingCount = scalar(results, fallback, func(m *provider.Metadata) *int { return m.RatingCount })
	out.ReviewCount = scalar(results, fallback, func(m *provider.Metadata) *int { return m.ReviewCount })
	out.SeriesName = scalar(results, fallback, func(m *provider.Metadata) *string { return m.SeriesName })
	out.SeriesNumber = scalar(results, fallback, func(m *provider.Metadata) *float64 { return m.SeriesNumber })
	out.SeriesTotal = scalar(results, fallback, func(m *provider.Metadata) *int { return m.SeriesTotal })
	out.Awards = lastList(results, fallback, func(m *provider.Metadata) []metadata.Award { return m.Awards })

	return out
}

func scalar[T any](results Results, fp FieldPriority, get func(*provider.Metadata) *T) *T {
	var out *T
	for _, id := range fp.ascending() {
		md := lookup(results, id)
		if md == nil {
			continue
		}
		if v := get(md); v != nil {
			out = v
		}
	}
	return out
}

// lastList treats a whole list as one value: the highest-priority
// non-empty list wins.
func lastList[T any](results Results, fp FieldPriority, get func(*provider.Metadata) []T) []T {
	var out []T
	for _, id := range fp.ascending() {
		md := lookup(results, id)
		if md == nil {
			continue
		}
		if v := get(md); len(v) > 0 {
			out = v
		}
	}
	return slices.Clone(out)
}

// firstList returns the first non-empty list walking P3, P2, P1.
func firstList(results Results, fp FieldPriority, get func(*provider.Metadata) []string) []string {
	for _, id := range fp.ascending() {
		md := lookup(results, id)
		if md == nil {
			continue
		}
		if v := get(md); len(v) > 0 {
			return slices.Clone(v)
		}
	}
	return nil
}

// union merges the lists of every slot, dropping blanks and duplicates, and
// sorts the result.
func union(results Results, fp FieldPriority, get func(*provider.Metadata) []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range fp.ascending() {
		md := lookup(results, id)
		if md == nil {
			continue
		}
		for _, v := range get(md) {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

func lookup(results Results, id provider.ID) *provider.Metadata {
	if id == "" {
		return nil
	}
	return results[id]
}

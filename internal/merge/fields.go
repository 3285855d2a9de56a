package merge

import (
	"slices"
	"strings"
	"time"

	"github.com/lepinkainen/bookmeta/internal/metadata"
	"github.com/lepinkainen/bookmeta/internal/provider"
)

// field describes how one value flows from provider metadata into a record.
// lock is empty for values only the master lock protects.
type field struct {
	name    string
	lock    metadata.LockField
	present func(md *provider.Metadata, explicit bool) bool
	write   func(rec *metadata.Record, md *provider.Metadata, flags RefreshFlags) bool
}

// fields lists every mergeable value except the cover, which needs the
// thumbnail service.
var fields = []field{
	textField("title", metadata.FieldTitle,
		func(m *provider.Metadata) *string { return m.Title },
		func(r *metadata.Record) **string { return &r.Title }),
	textField("subtitle", metadata.FieldSubtitle,
		func(m *provider.Metadata) *string { return m.Subtitle },
		func(r *metadata.Record) **string { return &r.Subtitle }),
	textField("publisher", metadata.FieldPublisher,
		func(m *provider.Metadata) *string { return m.Publisher },
		func(r *metadata.Record) **string { return &r.Publisher }),
	dateField("publishedDate", metadata.FieldPublishedDate,
		func(m *provider.Metadata) *time.Time { return m.PublishedDate },
		func(r *metadata.Record) **time.Time { return &r.PublishedDate }),
	textField("language", metadata.FieldLanguage,
		func(m *provider.Metadata) *string { return m.Language },
		func(r *metadata.Record) **string { return &r.Language }),
	textField("isbn10", metadata.FieldISBN10,
		func(m *provider.Metadata) *string { return m.ISBN10 },
		func(r *metadata.Record) **string { return &r.ISBN10 }),
	textField("isbn13", metadata.FieldISBN13,
		func(m *provider.Metadata) *string { return m.ISBN13 },
		func(r *metadata.Record) **string { return &r.ISBN13 }),
	textField("asin", "",
		func(m *provider.Metadata) *string { return m.ASIN },
		func(r *metadata.Record) **string { return &r.ASIN }),
	textField("description", metadata.FieldDescription,
		func(m *provider.Metadata) *string { return m.Description },
		func(r *metadata.Record) **string { return &r.Description }),
	valueField("pageCount", metadata.FieldPageCount,
		func(m *provider.Metadata) *int { return m.PageCount },
		func(r *metadata.Record) **int { return &r.PageCount }),
	valueField("rating", metadata.FieldRating,
		func(m *provider.Metadata) *float64 { return m.Rating },
		func(r *metadata.Record) **float64 { return &r.Rating }),
	valueField("ratingCount", metadata.FieldRating,
		func(m *provider.Metadata) *int { return m.RatingCount },
		func(r *metadata.Record) **int { return &r.RatingCount }),
	valueField("reviewCount", metadata.FieldReviewCount,
		func(m *provider.Metadata) *int { return m.ReviewCount },
		func(r *metadata.Record) **int { return &r.ReviewCount }),
	textField("seriesName", metadata.FieldSeriesName,
		func(m *provider.Metadata) *string { return m.SeriesName },
		func(r *metadata.Record) **string { return &r.SeriesName }),
	valueField("seriesNumber", metadata.FieldSeriesNumber,
		func(m *provider.Metadata) *float64 { return m.SeriesNumber },
		func(r *metadata.Record) **float64 { return &r.SeriesNumber }),
	valueField("seriesTotal", metadata.FieldSeriesTotal,
		func(m *provider.Metadata) *int { return m.SeriesTotal },
		func(r *metadata.Record) **int { return &r.SeriesTotal }),
	{
		name:    "authors",
		lock:    metadata.FieldAuthors,
		present: listPresent(func(m *provider.Metadata) []string { return m.Authors }),
		write: func(rec *metadata.Record, md *provider.Metadata, _ RefreshFlags) bool {
			next := nonBlank(md.Authors)
			if slices.Equal(rec.Authors, next) {
				return false
			}
			rec.Authors = next
			return true
		},
	},
	{
		name:    "categories",
		lock:    metadata.FieldCategories,
		present: listPresent(func(m *provider.Metadata) []string { return m.Categories }),
		write: func(rec *metadata.Record, md *provider.Metadata, flags RefreshFlags) bool {
			next := nonBlank(md.Categories)
			if flags.MergeCategories {
				next = union(rec.Categories, next)
			}
			if sameSet(rec.Categories, next) {
				return false
			}
			rec.Categories = next
			return true
		},
	},
}

// textField treats blank strings as absent during a refresh. An explicit
// edit with a blank string clears the value.
func textField(name string, lock metadata.LockField, src func(*provider.Metadata) *string, dst func(*metadata.Record) **string) field {
	return field{
		name: name,
		lock: lock,
		present: func(md *provider.Metadata, explicit bool) bool {
			v := src(md)
			if v == nil {
				return false
			}
			return explicit || strings.TrimSpace(*v) != ""
		},
		write: func(rec *metadata.Record, md *provider.Metadata, _ RefreshFlags) bool {
			next := provider.Text(*src(md))
			cur := dst(rec)
			if equalPtr(*cur, next) {
				return false
			}
			*cur = next
			return true
		},
	}
}

func valueField[T comparable](name string, lock metadata.LockField, src func(*provider.Metadata) *T, dst func(*metadata.Record) **T) field {
	return field{
		name: name,
		lock: lock,
		present: func(md *provider.Metadata, _ bool) bool {
			return src(md) != nil
		},
		write: func(rec *metadata.Record, md *provider.Metadata, _ RefreshFlags) bool {
			v := *src(md)
			cur := dst(rec)
			if *cur != nil && **cur == v {
				return false
			}
			*cur = &v
			return true
		},
	}
}

func dateField(name string, lock metadata.LockField, src func(*provider.Metadata) *time.Time, dst func(*metadata.Record) **time.Time) field {
	return field{
		name: name,
		lock: lock,
		present: func(md *provider.Metadata, _ bool) bool {
			return src(md) != nil
		},
		write: func(rec *metadata.Record, md *provider.Metadata, _ RefreshFlags) bool {
			v := metadata.Date(*src(md))
			cur := dst(rec)
			if *cur != nil && metadata.SameDay(**cur, v) {
				return false
			}
			*cur = &v
			return true
		},
	}
}

// listPresent treats nil as absent. During a refresh a list with only blank
// entries is absent too; an explicit empty list clears the value.
func listPresent(get func(*provider.Metadata) []string) func(*provider.Metadata, bool) bool {
	return func(md *provider.Metadata, explicit bool) bool {
		list := get(md)
		if explicit {
			return list != nil
		}
		return len(nonBlank(list)) > 0
	}
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func nonBlank(list []string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func union(existing, incoming []string) []string {
	out := slices.Clone(existing)
	for _, v := range incoming {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(slices.Compact(a), slices.Compact(b))
}

// addAwards appends awards not already on the record. Awards without a date
// are stamped with today.
func addAwards(rec *metadata.Record, awards []metadata.Award, today time.Time) bool {
	changed := false
	for _, a := range awards {
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			continue
		}
		if a.AwardedAt == nil {
			d := today
			a.AwardedAt = &d
		}
		if slices.ContainsFunc(rec.Awards, a.SameAs) {
			continue
		}
		rec.Awards = append(rec.Awards, a)
		changed = true
	}
	return changed
}

package metadata

import (
	"strings"
	"time"
)

// Award is a literary award attached to a book.
type Award struct {
	Name        string     `json:"name"`
	Category    string     `json:"category,omitempty"`
	Designation string     `json:"designation,omitempty"`
	AwardedAt   *time.Time `json:"awardedAt,omitempty"`
}

// SameAs reports whether two awards describe the same entry. Awards are
// identified by name, category and award date.
func (a Award) SameAs(other Award) bool {
	if a.Name != other.Name || a.Category != other.Category {
		return false
	}
	switch {
	case a.AwardedAt == nil && other.AwardedAt == nil:
		return true
	case a.AwardedAt == nil || other.AwardedAt == nil:
		return false
	default:
		return SameDay(*a.AwardedAt, *other.AwardedAt)
	}
}

// Record is the canonical, persisted metadata of a single book.
type Record struct {
	BookID int64

	Title         *string
	Subtitle      *string
	Description   *string
	Publisher     *string
	PublishedDate *time.Time
	Language      *string
	ISBN10        *string
	ISBN13        *string
	ASIN          *string
	PageCount     *int
	Rating        *float64
	RatingCount   *int
	ReviewCount   *int
	SeriesName    *string
	SeriesNumber  *float64
	SeriesTotal   *int

	Authors    []string
	Categories []string
	Awards     []Award

	ThumbnailPath  *string
	CoverUpdatedOn *time.Time

	Locks LockSet
}

// DisplayTitle returns the title or a placeholder used in log lines.
func (r *Record) DisplayTitle() string {
	if r.Title != nil && strings.TrimSpace(*r.Title) != "" {
		return *r.Title
	}
	return "(untitled)"
}

// Date truncates t to a UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay compares two times by UTC calendar date.
func SameDay(a, b time.Time) bool {
	return Date(a).Equal(Date(b))
}

// Package metadata defines the canonical book metadata record and the
// per-field lock model that guards it against automatic refreshes.
package metadata

import (
	"fmt"
	"strings"

	"github.com/lepinkainen/bookmeta/internal/errors"
)

// LockField names a record field that can be locked against changes.
type LockField string

// Lockable fields. The string values match the field names used in the CLI
// and in refresh options files.
const (
	FieldTitle         LockField = "title"
	FieldSubtitle      LockField = "subtitle"
	FieldPublisher     LockField = "publisher"
	FieldPublishedDate LockField = "publishedDate"
	FieldLanguage      LockField = "language"
	FieldISBN10        LockField = "isbn10"
	FieldISBN13        LockField = "isbn13"
	FieldDescription   LockField = "description"
	FieldPageCount     LockField = "pageCount"
	FieldRating        LockField = "rating"
	FieldReviewCount   LockField = "reviewCount"
	FieldAuthors       LockField = "authors"
	FieldCategories    LockField = "categories"
	FieldCover         LockField = "cover"
	FieldSeriesName    LockField = "seriesName"
	FieldSeriesNumber  LockField = "seriesNumber"
	FieldSeriesTotal   LockField = "seriesTotal"
)

// AllLockFields lists every lockable field in a stable order.
var AllLockFields = []LockField{
	FieldTitle,
	FieldSubtitle,
	FieldPublisher,
	FieldPublishedDate,
	FieldLanguage,
	FieldISBN10,
	FieldISBN13,
	FieldDescription,
	FieldPageCount,
	FieldRating,
	FieldReviewCount,
	FieldAuthors,
	FieldCategories,
	FieldCover,
	FieldSeriesName,
	FieldSeriesNumber,
	FieldSeriesTotal,
}

// ParseLockField converts a field name into a LockField. Matching ignores
// case and surrounding whitespace. Unknown names wrap errors.ErrUnknownLockField.
func ParseLockField(name string) (LockField, error) {
	trimmed := strings.TrimSpace(name)
	for _, f := range AllLockFields {
		if strings.EqualFold(string(f), trimmed) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", errors.ErrUnknownLockField, name)
}

func (f LockField) String() string {
	return string(f)
}

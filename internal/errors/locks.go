package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMetadataLocked is returned when an edit targets a record whose
	// master lock is set.
	ErrMetadataLocked = errors.New("metadata is locked")

	// ErrUnknownLockField is returned when a lock request names a field that
	// cannot be locked.
	ErrUnknownLockField = errors.New("unknown lock field")

	// ErrInvalidRefreshType is returned for refresh requests that are neither
	// library nor book scoped.
	ErrInvalidRefreshType = errors.New("invalid refresh type")
)

// LockedFieldsError lists every field an edit tried to change while locked.
// The edit is rejected as a whole.
type LockedFieldsError struct {
	Fields []string
}

func (e *LockedFieldsError) Error() string {
	return fmt.Sprintf("fields are locked: %s", strings.Join(e.Fields, ", "))
}

// NewLockedFieldsError creates a LockedFieldsError.
func NewLockedFieldsError(fields []string) *LockedFieldsError {
	return &LockedFieldsError{Fields: fields}
}

// IsLockedFields reports whether err is a LockedFieldsError (even when wrapped).
func IsLockedFields(err error) bool {
	var lfErr *LockedFieldsError
	return errors.As(err, &lfErr)
}

package provider

import (
	"fmt"
	"strings"
)

// ID identifies a metadata provider.
type ID string

// Known providers. Amazon is recognised in configuration but has no adapter.
const (
	GoodReads   ID = "GoodReads"
	GoogleBooks ID = "GoogleBooks"
	Hardcover   ID = "Hardcover"
	OpenLibrary ID = "OpenLibrary"
	Amazon      ID = "Amazon"
)

// KnownIDs lists every provider identifier.
var KnownIDs = []ID{GoodReads, GoogleBooks, Hardcover, OpenLibrary, Amazon}

// ParseID converts a provider name into an ID, ignoring case.
func ParseID(s string) (ID, error) {
	trimmed := strings.TrimSpace(s)
	for _, id := range KnownIDs {
		if strings.EqualFold(string(id), trimmed) {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

func (id ID) String() string {
	return string(id)
}

// UnmarshalText validates provider names in YAML and JSON options files.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

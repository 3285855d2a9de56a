package cache

import "fmt"

// Provider cache tables. Every table shares the same layout so entries can be
// written and expired generically.
const (
	GoogleBooksTable = "googlebooks_cache"
	OpenLibraryTable = "openlibrary_cache"
	HardcoverTable   = "hardcover_cache"
	GoodReadsTable   = "goodreads_cache"
)

// ValidCacheTableNames is the whitelist of allowed cache table names.
// Table names are interpolated into SQL, so nothing else may be used.
var ValidCacheTableNames = map[string]bool{
	GoogleBooksTable: true,
	OpenLibraryTable: true,
	HardcoverTable:   true,
	GoodReadsTable:   true,
}

// Sources maps the short source names accepted by `cache clear` to tables.
var Sources = map[string]string{
	"googlebooks": GoogleBooksTable,
	"openlibrary": OpenLibraryTable,
	"hardcover":   HardcoverTable,
	"goodreads":   GoodReadsTable,
}

// tableSchema returns the DDL for a cache table. expires_at holds the TTL
// chosen when the entry was written so negative entries age out sooner.
func tableSchema(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_expires_at ON %[1]s(expires_at);
`, table)
}

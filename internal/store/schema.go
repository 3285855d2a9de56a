package store

// schema is applied in order on Connect. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS libraries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		library_id INTEGER NOT NULL REFERENCES libraries(id) ON DELETE CASCADE,
		file_name TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_books_library ON books(library_id)`,
	`CREATE TABLE IF NOT EXISTS book_metadata (
		book_id INTEGER PRIMARY KEY REFERENCES books(id) ON DELETE CASCADE,
		title TEXT,
		subtitle TEXT,
		description TEXT,
		publisher TEXT,
		published_date TEXT,
		language TEXT,
		isbn10 TEXT,
		isbn13 TEXT,
		asin TEXT,
		page_count INTEGER,
		rating REAL,
		rating_count INTEGER,
		review_count INTEGER,
		series_name TEXT,
		series_number REAL,
		series_total INTEGER,
		thumbnail_path TEXT,
		cover_updated_on TEXT,
		all_fields_locked INTEGER NOT NULL DEFAULT 0,
		locked_fields TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS authors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS book_authors (
		book_id INTEGER NOT NULL REFERENCES book_metadata(book_id) ON DELETE CASCADE,
		author_id INTEGER NOT NULL REFERENCES authors(id),
		position INTEGER NOT NULL,
		PRIMARY KEY (book_id, author_id)
	)`,
	`CREATE TABLE IF NOT EXISTS book_categories (
		book_id INTEGER NOT NULL REFERENCES book_metadata(book_id) ON DELETE CASCADE,
		category_id INTEGER NOT NULL REFERENCES categories(id),
		PRIMARY KEY (book_id, category_id)
	)`,
	`CREATE TABLE IF NOT EXISTS book_awards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		book_id INTEGER NOT NULL REFERENCES book_metadata(book_id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		designation TEXT NOT NULL DEFAULT '',
		awarded_at TEXT
	)`,
}

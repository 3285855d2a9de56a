package goodreads

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/lepinkainen/bookmeta/internal/provider"
)

const (
	contributorKeyMarker = "Contributor:kca"
	bookKeyMarker        = "Book:kca:"
	workKeyMarker        = "Work:kca:"
)

var errNoNextData = errors.New("no __NEXT_DATA__ script on page")

// apolloState is the page's normalized Apollo cache. Key order matters:
// the first matching entry is the one describing the page's book.
type apolloState struct {
	keys    []string
	entries map[string]json.RawMessage
}

// firstKey returns the first key containing marker.
func (s *apolloState) firstKey(marker string) string {
	for _, k := range s.keys {
		if strings.Contains(k, marker) {
			return k
		}
	}
	return ""
}

// object decodes the entry stored under key.
func (s *apolloState) object(key string) (object, error) {
	raw, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("missing entry %s", key)
	}
	return decodeObject(raw)
}

// extractor fills some fields of md from the Apollo state.
type extractor struct {
	name string
	fn   func(*apolloState, *provider.Metadata) error
}

var extractors = []extractor{
	{"contributor", extractContributor},
	{"book", extractBook},
	{"work", extractWork},
}

// parseBookPage builds detailed metadata from a book page. The page as a
// whole must carry the Apollo state; individual extractors that fail only
// leave their fields empty.
func parseBookPage(page []byte, bookID string) (*provider.Metadata, error) {
	state, err := readApolloState(page)
	if err != nil {
		return nil, err
	}

	md := &provider.Metadata{Provider: provider.GoodReads, ProviderBookID: bookID}
	for _, ex := range extractors {
		runExtractor(ex, state, md, bookID)
	}
	return md, nil
}

func runExtractor(ex extractor, state *apolloState, md *provider.Metadata, bookID string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("GoodReads: extractor panicked", "extractor", ex.name, "goodreads_id", bookID, "panic", r)
		}
	}()
	if err := ex.fn(state, md); err != nil {
		slog.Warn("GoodReads: extractor failed", "extractor", ex.name, "goodreads_id", bookID, "error", err)
	}
}

func readApolloState(page []byte) (*apolloState, error) {
	raw, err := nextData(page)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Props struct {
			PageProps struct {
				ApolloState json.RawMessage `json:"apolloState"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding __NEXT_DATA__: %w", err)
	}
	if len(doc.Props.PageProps.ApolloState) == 0 {
		return nil, errors.New("__NEXT_DATA__ has no props.pageProps.apolloState")
	}
	return decodeOrdered(doc.Props.PageProps.ApolloState)
}

// nextData returns the contents of <script id="__NEXT_DATA__">.
func nextData(page []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing book page: %w", err)
	}
	script := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "script") && attr(n, "id") == "__NEXT_DATA__"
	})
	if script == nil {
		return nil, errNoNextData
	}
	var b strings.Builder
	for c := script.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return []byte(b.String()), nil
}

// decodeOrdered decodes a JSON object keeping its key order.
func decodeOrdered(raw json.RawMessage) (*apolloState, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding apolloState: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("apolloState is not an object")
	}

	state := &apolloState{entries: make(map[string]json.RawMessage)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding apolloState key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected apolloState token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decoding apolloState[%s]: %w", key, err)
		}
		if _, dup := state.entries[key]; !dup {
			state.keys = append(state.keys, key)
		}
		state.entries[key] = value
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding apolloState: %w", err)
	}
	return state, nil
}

func extractContributor(state *apolloState, md *provider.Metadata) error {
	key := state.firstKey(contributorKeyMarker)
	if key == "" {
		return nil
	}
	contributor, err := state.object(key)
	if err != nil {
		return err
	}
	if name := contributor.text("name"); name != nil {
		md.Authors = []string{*name}
	}
	return nil
}

// bookEntry returns the first Book entry with a title. Pages also cache
// related books without titles under the same prefix.
func bookEntry(state *apolloState) object {
	for _, k := range state.keys {
		if !strings.Contains(k, bookKeyMarker) {
			continue
		}
		book, err := state.object(k)
		if err != nil {
			continue
		}
		if title, ok := book.scalar("title"); ok && title != "" {
			return book
		}
	}
	return nil
}

func extractBook(state *apolloState, md *provider.Metadata) error {
	book := bookEntry(state)
	if book == nil {
		return nil
	}

	md.Title = book.text("title")
	md.Description = book.text("description")
	md.ThumbnailURL = book.text("imageUrl")
	md.Categories = genres(book)

	details := book.object("details")
	if details == nil {
		return nil
	}
	md.ASIN = details.text("asin")
	md.PageCount = details.integer("numPages")
	md.PublishedDate = details.epochMillisDate("publicationTime")
	md.Publisher = details.text("publisher")
	md.ISBN10 = details.text("isbn")
	md.ISBN13 = details.text("isbn13")
	if language := details.object("language"); language != nil {
		md.Language = language.text("name")
	}
	return nil
}

func genres(book object) []string {
	var entries []struct {
		Genre *struct {
			Name string `json:"name"`
		} `json:"genre"`
	}
	raw, ok := book["bookGenres"]
	if !ok || json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.Genre == nil || strings.TrimSpace(e.Genre.Name) == "" {
			continue
		}
		out = append(out, e.Genre.Name)
	}
	return out
}

func extractWork(state *apolloState, md *provider.Metadata) error {
	key := state.firstKey(workKeyMarker)
	if key == "" {
		return nil
	}
	work, err := state.object(key)
	if err != nil {
		return err
	}
	stats := work.object("stats")
	if stats == nil {
		return nil
	}
	md.Rating = stats.float("averageRating")
	md.RatingCount = stats.integer("ratingsCount")
	md.ReviewCount = stats.integer("textReviewsCount")
	return nil
}

package goodreads

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/lepinkainen/bookmeta/internal/provider"
)

const maxSearchTermLength = 60

var (
	bookIDPattern      = regexp.MustCompile(`/book/show/(\d+)`)
	searchPunctuation  = regexp.MustCompile("[.,\\-\\[\\]{}()!@#$%^&*_=+|~`<>?/\";:]")
	bracketedFileNoise = regexp.MustCompile(`[\[(][^\])]*[\])]`)
)

// searchTerm picks what to type into the GoodReads search box: the title,
// else a cleaned file name, else the ISBN.
func searchTerm(q provider.Query) string {
	term := strings.TrimSpace(q.Title)
	if term == "" && q.FileName != "" {
		term = cleanFileName(q.FileName)
	}
	if term == "" {
		return provider.NormalizeISBN(strings.TrimSpace(q.ISBN))
	}

	term = strings.TrimSpace(searchPunctuation.ReplaceAllString(term, ""))
	if utf8.RuneCountInString(term) <= maxSearchTermLength {
		return term
	}

	var b strings.Builder
	for _, word := range strings.Fields(term) {
		if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(word)+1 > maxSearchTermLength {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() == 0 {
		// a single overlong word
		return string([]rune(term)[:maxSearchTermLength])
	}
	return b.String()
}

// cleanFileName turns "Frank_Herbert - Dune (1965) [retail].epub" into
// "Frank Herbert - Dune".
func cleanFileName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = bracketedFileNoise.ReplaceAllString(base, " ")
	base = strings.ReplaceAll(base, "_", " ")
	return strings.Join(strings.Fields(base), " ")
}

// parseSearchResults reads result rows from the search page. A page without
// a result table has no results.
func parseSearchResults(page []byte) ([]provider.Metadata, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing search page: %w", err)
	}

	table := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" && hasClass(n, "tableList")
	})
	if table == nil {
		return nil, nil
	}

	rows := findAll(table, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "tr" && attr(n, "itemtype") == "http://schema.org/Book"
	})

	previews := make([]provider.Metadata, 0, len(rows))
	for _, row := range rows {
		id := previewBookID(row)
		if id == "" {
			continue
		}
		md := provider.Metadata{
			Provider:       provider.GoodReads,
			ProviderBookID: id,
			Title:          previewTitle(row),
			Authors:        previewAuthors(row),
		}
		previews = append(previews, md)
	}
	return previews, nil
}

func previewBookID(row *html.Node) string {
	link := findFirst(row, func(n *html.Node) bool {
		return isElement(n, "a") && hasClass(n, "bookTitle")
	})
	if link == nil {
		return ""
	}
	m := bookIDPattern.FindStringSubmatch(attr(link, "href"))
	if m == nil {
		return ""
	}
	return m[1]
}

func previewTitle(row *html.Node) *string {
	link := findFirst(row, func(n *html.Node) bool {
		_, ok := lookupAttr(n, "title")
		return isElement(n, "a") && ok
	})
	if link == nil {
		return nil
	}
	return provider.Text(attr(link, "title"))
}

func previewAuthors(row *html.Node) []string {
	var authors []string
	for _, a := range findAll(row, func(n *html.Node) bool {
		return isElement(n, "a") && hasClass(n, "authorName")
	}) {
		if name := textContent(a); name != "" {
			authors = append(authors, name)
		}
	}
	return authors
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	v, _ := lookupAttr(n, key)
	return v
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	for n := range root.Descendants() {
		if match(n) {
			return n
		}
	}
	return nil
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for n := range root.Descendants() {
		if match(n) {
			out = append(out, n)
		}
	}
	return out
}

// textContent returns the element's text with whitespace collapsed.
func textContent(n *html.Node) string {
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

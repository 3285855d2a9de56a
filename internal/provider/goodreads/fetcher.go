package goodreads

import (
	"context"

	"github.com/lepinkainen/bookmeta/internal/httpclient"
)

// Plain HTTP requests are only answered with the full page when they look
// like they come from a browser.
var browserHeaders = map[string]string{
	"Accept":             "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language":    "en-US,en;q=0.9",
	"Sec-Ch-Ua":          `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
	"Sec-Ch-Ua-Mobile":   "?0",
	"Sec-Ch-Ua-Platform": `"macOS"`,
	"Sec-Fetch-Dest":     "document",
	"Sec-Fetch-Mode":     "navigate",
	"Sec-Fetch-Site":     "same-origin",
	"User-Agent":         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// HTTPFetcher downloads pages with browser-like request headers.
type HTTPFetcher struct {
	client *httpclient.Client
}

// NewHTTPFetcher creates the default page fetcher. Extra options are applied
// after the browser headers.
func NewHTTPFetcher(opts ...httpclient.Option) *HTTPFetcher {
	base := make([]httpclient.Option, 0, len(browserHeaders)+len(opts))
	for k, v := range browserHeaders {
		base = append(base, httpclient.WithHeader(k, v))
	}
	return &HTTPFetcher{client: httpclient.New("goodreads", append(base, opts...)...)}
}

// Fetch implements PageFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	return f.client.Get(ctx, pageURL)
}

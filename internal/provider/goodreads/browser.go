package goodreads

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

var (
	chromedpExecAllocator = chromedp.NewExecAllocator
	chromedpContext       = chromedp.NewContext
	chromedpRunner        = chromedp.Run
)

// BrowserOptions configures the headless Chrome fetcher.
type BrowserOptions struct {
	Headless bool
	Timeout  time.Duration
}

// BrowserFetcher renders pages in Chrome. It is slower than HTTPFetcher but
// gets through when GoodReads serves plain HTTP clients a challenge page.
type BrowserFetcher struct {
	opts BrowserOptions

	once       sync.Once
	browserCtx context.Context
	cancel     context.CancelFunc
}

// NewBrowserFetcher creates a fetcher. Chrome is started on first use.
func NewBrowserFetcher(opts BrowserOptions) *BrowserFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 45 * time.Second
	}
	return &BrowserFetcher{opts: opts}
}

func buildExecAllocatorOptions(opts BrowserOptions) []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.UserAgent(browserHeaders["User-Agent"]),
	}
}

func (f *BrowserFetcher) start() {
	f.once.Do(func() {
		allocCtx, cancelAllocator := chromedpExecAllocator(context.Background(), buildExecAllocatorOptions(f.opts)...)
		browserCtx, cancelBrowser := chromedpContext(allocCtx)
		f.browserCtx = browserCtx
		f.cancel = func() {
			cancelBrowser()
			cancelAllocator()
		}
		slog.Debug("Started Chrome for GoodReads", "headless", f.opts.Headless)
	})
}

// Fetch navigates to pageURL and returns the rendered document.
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	f.start()

	tabCtx, cancelTab := chromedpContext(f.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.opts.Timeout)
	defer cancelTimeout()

	// propagate caller cancellation into the tab
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	headers := network.Headers{"Accept-Language": browserHeaders["Accept-Language"]}

	var html string
	err := chromedpRunner(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}
	return []byte(html), nil
}

// Close shuts Chrome down.
func (f *BrowserFetcher) Close() error {
	if f.cancel != nil {
		f.cancel()
	}
	return nil
}

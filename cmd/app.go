package cmd

import (
	stdErrors "errors"
	"io"
	"os"

	"github.com/lepinkainen/bookmeta/internal/config"
	"github.com/lepinkainen/bookmeta/internal/cover"
	"github.com/lepinkainen/bookmeta/internal/fetch"
	"github.com/lepinkainen/bookmeta/internal/merge"
	"github.com/lepinkainen/bookmeta/internal/notify"
	"github.com/lepinkainen/bookmeta/internal/provider"
	"github.com/lepinkainen/bookmeta/internal/provider/goodreads"
	"github.com/lepinkainen/bookmeta/internal/provider/googlebooks"
	"github.com/lepinkainen/bookmeta/internal/provider/hardcover"
	"github.com/lepinkainen/bookmeta/internal/provider/openlibrary"
	"github.com/lepinkainen/bookmeta/internal/refresh"
	"github.com/lepinkainen/bookmeta/internal/store"
)

// Replaced in tests.
var (
	openApp                 = openConfiguredApp
	stdout        io.Writer = os.Stdout
	readImageFile           = os.ReadFile
)

// app holds the wired engine for one command invocation.
type app struct {
	cfg         config.Config
	store       *store.SQLiteStore
	registry    *provider.Registry
	fetcher     *fetch.Orchestrator
	merger      *merge.Merger
	coordinator *refresh.Coordinator
	closers     []io.Closer
}

func openConfiguredApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	registry, closers := buildRegistry(cfg)
	return newApp(cfg, registry, closers...)
}

func newApp(cfg config.Config, registry *provider.Registry, closers ...io.Closer) (*app, error) {
	st, err := store.Open(cfg.CatalogDB)
	if err != nil {
		return nil, err
	}

	merger := merge.New(st,
		merge.WithThumbnailer(cover.New(cfg.ThumbnailDir)),
		merge.WithNotifier(notify.LogNotifier{}),
	)
	fetcher := fetch.New(registry, fetch.WithTimeout(cfg.FetchTimeout))
	coordinator := refresh.New(st, fetcher, merger, cfg.QuickOptions,
		refresh.WithJitter(cfg.JitterMin, cfg.JitterMax),
	)

	return &app{
		cfg:         cfg,
		store:       st,
		registry:    registry,
		fetcher:     fetcher,
		merger:      merger,
		coordinator: coordinator,
		closers:     closers,
	}, nil
}

func (a *app) Close() error {
	errs := []error{a.store.Close()}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return stdErrors.Join(errs...)
}

// buildRegistry registers every provider with an adapter. Amazon has none.
func buildRegistry(cfg config.Config) (*provider.Registry, []io.Closer) {
	var closers []io.Closer

	grOpts := []goodreads.Option{
		goodreads.WithBaseURL(cfg.GoodReads.BaseURL),
		goodreads.WithDelay(cfg.GoodReads.Delay),
	}
	if cfg.GoodReads.Browser {
		browser := goodreads.NewBrowserFetcher(goodreads.BrowserOptions{
			Headless: true,
			Timeout:  cfg.GoodReads.BrowserTimeout,
		})
		grOpts = append(grOpts, goodreads.WithFetcher(browser))
		closers = append(closers, browser)
	}

	var gbOpts []googlebooks.Option
	if cfg.GoogleBooksAPIKey != "" {
		gbOpts = append(gbOpts, googlebooks.WithAPIKey(cfg.GoogleBooksAPIKey))
	}
	var hcOpts []hardcover.Option
	if cfg.HardcoverToken != "" {
		hcOpts = append(hcOpts, hardcover.WithToken(cfg.HardcoverToken))
	}

	registry := provider.NewRegistry(
		goodreads.New(grOpts...),
		googlebooks.New(gbOpts...),
		hardcover.New(hcOpts...),
		openlibrary.New(),
	)
	return registry, closers
}

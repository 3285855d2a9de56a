// Package config turns viper settings into the typed configuration the CLI
// wires the engine with.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lepinkainen/bookmeta/internal/provider"
	"github.com/lepinkainen/bookmeta/internal/resolve"
)

// GoodReads holds scraper settings.
type GoodReads struct {
	BaseURL string
	Delay   time.Duration
	Browser bool
	// BrowserTimeout bounds one headless page load.
	BrowserTimeout time.Duration
}

// Config is the process configuration.
type Config struct {
	CatalogDB    string
	CacheDB      string
	CacheTTL     time.Duration
	ThumbnailDir string
	FetchTimeout time.Duration

	GoodReads         GoodReads
	GoogleBooksAPIKey string
	HardcoverToken    string

	JitterMin time.Duration
	JitterMax time.Duration

	// QuickOptions replace the request options of a quick refresh.
	QuickOptions resolve.RefreshOptions
}

// DefaultQuickOptions is used for quick refreshes when the configuration
// does not override it.
func DefaultQuickOptions() resolve.RefreshOptions {
	return resolve.RefreshOptions{
		AllP3: provider.OpenLibrary,
		AllP2: provider.GoogleBooks,
		AllP1: provider.GoodReads,
	}
}

// SetDefaults registers the default value of every setting.
func SetDefaults() {
	viper.SetDefault("catalog.dbfile", "./bookmeta.db")
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days
	viper.SetDefault("covers.dir", "./covers")
	viper.SetDefault("fetch.timeout", "30s")

	viper.SetDefault("goodreads.baseurl", "https://www.goodreads.com")
	viper.SetDefault("goodreads.delay", "1s")
	viper.SetDefault("goodreads.browser", false)
	viper.SetDefault("goodreads.browsertimeout", "45s")

	viper.SetDefault("refresh.jittermin", "500ms")
	viper.SetDefault("refresh.jittermax", "1500ms")
}

// LoadEnv reads API keys from .env files when present. Missing files are
// ignored.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			slog.Debug("Loaded environment file", "file", f)
		}
	}
}

// BindEnv maps well known environment variables onto config keys.
func BindEnv() error {
	bindings := map[string]string{
		"googlebooks.apikey": "GOOGLE_BOOKS_API_KEY",
		"hardcover.token":    "HARDCOVER_API_TOKEN",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return nil
}

// Load builds a Config from the current viper state.
func Load() (Config, error) {
	cfg := Config{
		CatalogDB:    viper.GetString("catalog.dbfile"),
		CacheDB:      viper.GetString("cache.dbfile"),
		CacheTTL:     viper.GetDuration("cache.ttl"),
		ThumbnailDir: viper.GetString("covers.dir"),
		FetchTimeout: viper.GetDuration("fetch.timeout"),
		GoodReads: GoodReads{
			BaseURL:        viper.GetString("goodreads.baseurl"),
			Delay:          viper.GetDuration("goodreads.delay"),
			Browser:        viper.GetBool("goodreads.browser"),
			BrowserTimeout: viper.GetDuration("goodreads.browsertimeout"),
		},
		GoogleBooksAPIKey: viper.GetString("googlebooks.apikey"),
		HardcoverToken:    viper.GetString("hardcover.token"),
		JitterMin:         viper.GetDuration("refresh.jittermin"),
		JitterMax:         viper.GetDuration("refresh.jittermax"),
	}
	if cfg.JitterMax < cfg.JitterMin {
		return Config{}, fmt.Errorf("refresh.jittermax (%s) is below refresh.jittermin (%s)", cfg.JitterMax, cfg.JitterMin)
	}

	quick, err := quickOptions()
	if err != nil {
		return Config{}, err
	}
	cfg.QuickOptions = quick
	return cfg, nil
}

// quickOptions reads refresh.quick.file when set, otherwise applies the
// flat refresh.quick.* overrides to DefaultQuickOptions.
func quickOptions() (resolve.RefreshOptions, error) {
	if path := viper.GetString("refresh.quick.file"); path != "" {
		return resolve.LoadOptions(path)
	}

	opts := DefaultQuickOptions()
	slots := map[string]*provider.ID{
		"refresh.quick.allp1": &opts.AllP1,
		"refresh.quick.allp2": &opts.AllP2,
		"refresh.quick.allp3": &opts.AllP3,
	}
	for key, slot := range slots {
		if !viper.IsSet(key) {
			continue
		}
		raw := viper.GetString(key)
		if raw == "" {
			*slot = ""
			continue
		}
		id, err := provider.ParseID(raw)
		if err != nil {
			return resolve.RefreshOptions{}, fmt.Errorf("%s: %w", key, err)
		}
		*slot = id
	}
	if viper.IsSet("refresh.quick.mergecategories") {
		opts.MergeCategories = viper.GetBool("refresh.quick.mergecategories")
	}
	if viper.IsSet("refresh.quick.refreshcovers") {
		opts.RefreshCovers = viper.GetBool("refresh.quick.refreshcovers")
	}
	if err := opts.Validate(); err != nil {
		return resolve.RefreshOptions{}, fmt.Errorf("quick refresh options: %w", err)
	}
	return opts, nil
}

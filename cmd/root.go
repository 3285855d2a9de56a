package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/bookmeta/internal/cache"
	"github.com/lepinkainen/bookmeta/internal/config"
	"github.com/lepinkainen/bookmeta/internal/errors"
	"github.com/lepinkainen/bookmeta/internal/metrics"
)

// CLI represents the complete command structure for the bookmeta application
type CLI struct {
	// Global flags
	Verbose bool `short:"v" help:"Enable debug logging"`

	CatalogDB   string `help:"Path to the catalog SQLite database (default from catalog.dbfile)"`
	CacheDBFile string `help:"Path to cache SQLite database file (default from cache.dbfile)"`
	CacheTTL    string `help:"Cache time-to-live duration (e.g., 720h for 30 days)"`
	CoversDir   string `help:"Directory for cover thumbnails (default from covers.dir)"`
	MetricsFile string `help:"Write Prometheus metrics to this file when the command finishes"`

	Refresh    RefreshCmd    `cmd:"" help:"Refresh book metadata from providers"`
	Search     SearchCmd     `cmd:"" help:"Search every provider and list detailed candidates"`
	Lock       LockCmd       `cmd:"" help:"Lock or unlock a metadata field of a book"`
	Edit       EditCmd       `cmd:"" help:"Edit book metadata explicitly"`
	Cover      CoverCmd      `cmd:"" help:"Upload a cover image for a book"`
	AddLibrary AddLibraryCmd `cmd:"" name:"add-library" help:"Create a library"`
	AddBook    AddBookCmd    `cmd:"" name:"add-book" help:"Add a book to a library"`
	Cache      CacheCmd      `cmd:"" help:"Manage the provider response cache"`
}

// CacheCmd groups cache maintenance subcommands.
type CacheCmd struct {
	Clear cache.ClearCmd `cmd:"" help:"Clear cached provider responses"`
}

func kongOptions(ctx context.Context) []kong.Option {
	return []kong.Option{
		kong.Name("bookmeta"),
		kong.Description("Enrich a book catalog with metadata from GoodReads, Google Books, Open Library and Hardcover."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	}
}

// Execute runs the Kong-based CLI
func Execute() {
	initLogging(false)
	config.LoadEnv()
	initConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	var cli CLI
	kctx := kong.Parse(&cli, kongOptions(ctx)...)

	if cli.Verbose {
		initLogging(true)
	}
	applyGlobalFlags(&cli)

	err := kctx.Run()
	writeMetrics(cli.MetricsFile)
	stop()
	if errors.IsStopProcessingError(err) {
		slog.Info("Stopped", "reason", err)
		return
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func initConfig() {
	config.SetDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	if err := config.BindEnv(); err != nil {
		slog.Error("Failed to bind environment variable", "error", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Info("Config file not found, writing default config file...")
			if err := viper.SafeWriteConfig(); err != nil {
				slog.Error("Error writing config file", "error", err)
			}
		} else {
			slog.Error("Fatal error config file", "error", err)
			os.Exit(1)
		}
	}
}

// applyGlobalFlags lets explicit flags override the config file.
func applyGlobalFlags(cli *CLI) {
	overrides := map[string]string{
		"catalog.dbfile": cli.CatalogDB,
		"cache.dbfile":   cli.CacheDBFile,
		"cache.ttl":      cli.CacheTTL,
		"covers.dir":     cli.CoversDir,
	}
	for key, value := range overrides {
		if value != "" {
			viper.Set(key, value)
		}
	}
}

func writeMetrics(path string) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		slog.Error("Failed to write metrics", "path", path, "error", err)
		return
	}
	slog.Debug("Wrote metrics", "path", path)
}

func initLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Create a human-readable handler for logging
	handler := humanlog.NewHandler(os.Stdout, &humanlog.Options{
		Level: level,
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}

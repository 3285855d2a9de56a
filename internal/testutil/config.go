package testutil

import (
	"testing"

	"github.com/lepinkainen/bookmeta/internal/cache"
	"github.com/spf13/viper"
)

// ResetConfig resets viper now and again when the test completes.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
}

// SetupCache points the provider cache at a fresh database inside env and
// reopens the global cache. Returns the database path.
func SetupCache(t *testing.T, env *TestEnv) string {
	t.Helper()

	dbPath := env.Path("cache.db")
	viper.Set("cache.dbfile", dbPath)
	viper.Set("cache.ttl", "24h")

	if err := cache.ResetGlobalCache(); err != nil {
		t.Fatalf("failed to reset cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.ResetGlobalCache() })
	return dbPath
}

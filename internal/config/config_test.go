package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "America/Denver", cfg.Timezone)
	require.Equal(t, 90, cfg.HorizonDays)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\ncatalog:\n  path: venues.db\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Listen)
	require.Equal(t, "venues.db", cfg.Catalog.Path)
	require.Empty(t, cfg.Catalog.Refresh)
	require.Equal(t, "America/Denver", cfg.Timezone)
	require.Equal(t, "happenings.local", cfg.FeedDomain)
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Mars/Olympus\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateBasicAuth(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin"}
	require.Error(t, cfg.Validate())
	cfg.BasicAuth.Password = "secret"
	require.NoError(t, cfg.Validate())
}

func TestValidateFeeds(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Catalog.Feeds = []FeedConfig{{ID: "library", URL: "https://example.org/events.ics"}}
	require.NoError(t, cfg.Validate())

	cfg.Catalog.Feeds = append(cfg.Catalog.Feeds, FeedConfig{ID: "library", URL: "https://example.org/other.ics"})
	require.ErrorContains(t, cfg.Validate(), "duplicate feed id")

	cfg.Catalog.Feeds = []FeedConfig{{ID: "nourl"}}
	require.Error(t, cfg.Validate())
}

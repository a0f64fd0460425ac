package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"happenings/internal/datekey"
)

const (
	defaultListen      = "127.0.0.1:8080"
	defaultHorizonDays = 90
	defaultRefreshCron = "*/15 * * * *"
	defaultFeedDomain  = "happenings.local"
	defaultLogLevel    = "info"
	defaultCacheDir    = "./var/feed-cache"
)

// CatalogConfig points at the venue/event catalog the server reads.
type CatalogConfig struct {
	// Path is a .yaml/.yml file or a SQLite database (.db/.sqlite).
	Path string `yaml:"path" json:"path"`
	// Refresh is a cron expression for reloading Path. Empty disables it.
	Refresh string `yaml:"refresh" json:"refresh"`

	// Feeds are partner iCalendar URLs merged into the events on reload.
	Feeds []FeedConfig `yaml:"feeds,omitempty" json:"feeds,omitempty"`
	// CacheDir keeps the last good body of each feed.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// FeedConfig is one partner calendar subscription.
type FeedConfig struct {
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the civil calendar for date keys and "today".
	Timezone string `yaml:"timezone" json:"timezone"`

	// HorizonDays is the default expansion window length from today.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`

	// FeedDomain is the UID suffix of exported iCalendar events.
	FeedDomain string `yaml:"feed_domain" json:"feed_domain"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    datekey.DefaultZone,
		HorizonDays: defaultHorizonDays,
		Catalog: CatalogConfig{
			Path:    "./data/catalog.yaml",
			Refresh:  defaultRefreshCron,
			CacheDir: defaultCacheDir,
		},
		FeedDomain: defaultFeedDomain,
		LogLevel:   defaultLogLevel,
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = datekey.DefaultZone
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.FeedDomain == "" {
		c.FeedDomain = defaultFeedDomain
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Catalog.CacheDir == "" {
		c.Catalog.CacheDir = defaultCacheDir
	}
}

// Validate reports configuration values that cannot be used.
func (c *Config) Validate() error {
	if _, err := datekey.LoadZone(c.Timezone); err != nil {
		return err
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		return errors.New("config: basic_auth needs both username and password")
	}
	seen := make(map[string]bool, len(c.Catalog.Feeds))
	for i, f := range c.Catalog.Feeds {
		if f.ID == "" || f.URL == "" {
			return fmt.Errorf("config: catalog.feeds[%d] needs id and url", i)
		}
		if seen[f.ID] {
			return fmt.Errorf("config: duplicate feed id %q", f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".happenings-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

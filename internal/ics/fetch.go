package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "happenings/internal/log"
	"happenings/internal/model"
)

// Feed is a partner iCalendar subscription whose VEVENTs are merged into
// the event catalog.
type Feed struct {
	// ID namespaces imported event ids ("<feed>:<uid>").
	ID  string
	URL string
}

// cacheEntry holds HTTP validators for a single feed URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads feeds with conditional requests (ETag /
// Last-Modified) and keeps the last good body on disk. When the network
// or the origin fails, the cached body is served instead.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/feed-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// Events fetches and parses every feed. Failing feeds are logged and
// returned as errors; the others still contribute their events.
func (f *Fetcher) Events(ctx context.Context, feeds []Feed, loc *time.Location) ([]model.Event, []error) {
	var (
		events []model.Event
		errs   []error
	)
	for _, feed := range feeds {
		body, fromCache, err := f.Fetch(ctx, feed)
		if err == nil {
			var parsed []model.Event
			parsed, err = ParseEvents(body, loc)
			if err == nil {
				for i := range parsed {
					parsed[i].ID = feed.ID + ":" + parsed[i].ID
				}
				events = append(events, parsed...)
				appLog.Debug("feed imported", "feed", feed.ID, "events", len(parsed), "from_cache", fromCache)
				continue
			}
		}
		err = fmt.Errorf("feed %s: %w", feed.ID, err)
		appLog.Error("feed import failed", err, "url", redactURL(feed.URL))
		errs = append(errs, err)
	}
	return events, errs
}

// Fetch returns the feed body and whether it came from the disk cache.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) ([]byte, bool, error) {
	if feed.URL == "" {
		return nil, false, errors.New("feed URL is empty")
	}

	cachePath := f.cachePathForURL(feed.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return nil, false, err
	}
	meta, _ := loadCacheMeta(cachePath)
	cached, _ := os.ReadFile(filepath.Join(cachePath, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, false, err
	}
	if meta.URL == feed.URL && len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Warn("feed fetch failed, using cached body", "feed", feed.ID, "err", err)
			return cached, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		entry := cacheEntry{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, entry, body); err != nil {
			appLog.Error("feed cache save failed", err, "feed", feed.ID)
		}
		return body, false, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, false, errors.New("304 Not Modified without a cached body")
		}
		return cached, true, nil

	default:
		if len(cached) > 0 {
			appLog.Warn("feed returned non-OK status, using cached body", "feed", feed.ID, "status", resp.StatusCode)
			return cached, true, nil
		}
		return nil, false, errors.New(resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often embed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

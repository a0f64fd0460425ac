package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"happenings/internal/ics"
	appLog "happenings/internal/log"
	"happenings/internal/venue"
)

// Store holds the current Snapshot and its alias index. Reads take a
// consistent pair; Reload swaps both at once.
type Store struct {
	path string

	fetcher *ics.Fetcher
	feeds   []ics.Feed
	feedLoc *time.Location

	mu    sync.RWMutex
	snap  *Snapshot
	index venue.AliasIndex
}

// NewStore returns an empty store for path. Call Reload before use.
func NewStore(path string) *Store {
	return &Store{path: path, snap: &Snapshot{Aliases: map[string][]string{}}, index: venue.AliasIndex{}}
}

// NewStoreFromSnapshot wraps an in-memory snapshot, for tests and tools.
func NewStoreFromSnapshot(snap *Snapshot) *Store {
	s := &Store{}
	s.swap(snap)
	return s
}

// WithFeeds makes Reload merge the events of partner iCalendar feeds into
// every snapshot. Feed failures are logged and do not fail the reload.
func (s *Store) WithFeeds(f *ics.Fetcher, feeds []ics.Feed, loc *time.Location) *Store {
	s.fetcher = f
	s.feeds = feeds
	s.feedLoc = loc
	return s
}

func (s *Store) swap(snap *Snapshot) {
	idx := venue.BuildVenueAliasIndex(snap.Venues, snap.Aliases)
	s.mu.Lock()
	s.snap = snap
	s.index = idx
	s.mu.Unlock()
}

// Current returns the active snapshot and its alias index. The snapshot
// must be treated as read-only.
func (s *Store) Current() (*Snapshot, venue.AliasIndex) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.index
}

// Reload re-reads the source. On error the previous snapshot stays active.
func (s *Store) Reload(ctx context.Context) error {
	start := time.Now()
	snap, err := Load(ctx, s.path)
	if err != nil {
		return err
	}
	var imported int
	if s.fetcher != nil && len(s.feeds) > 0 {
		events, _ := s.fetcher.Events(ctx, s.feeds, s.feedLoc)
		snap.Events = append(snap.Events, events...)
		imported = len(events)
	}
	s.swap(snap)
	appLog.Info("catalog loaded",
		"path", s.path,
		"venues", len(snap.Venues),
		"events", len(snap.Events),
		"feed_events", imported,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// StartRefresh reloads the catalog on the given cron schedule until ctx
// is cancelled.
func (s *Store) StartRefresh(ctx context.Context, spec string, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(spec, func() {
		if err := s.Reload(ctx); err != nil {
			appLog.Error("catalog refresh failed; keeping previous snapshot", err, "path", s.path)
		}
	}); err != nil {
		return fmt.Errorf("catalog: refresh schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Info("catalog refresh scheduled", "spec", spec, "timezone", loc.String())

	go func() {
		<-ctx.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
		appLog.Info("catalog refresh stopped")
	}()
	return nil
}

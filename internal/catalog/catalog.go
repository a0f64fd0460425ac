// Package catalog supplies the venue catalog, curated venue aliases and
// event rows that the pure recurrence and venue packages operate on.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"happenings/internal/model"
)

// ErrUnsupportedSource is returned for catalog paths with an unknown extension.
var ErrUnsupportedSource = errors.New("catalog: unsupported source")

// Snapshot is one immutable load of the catalog.
type Snapshot struct {
	Venues []model.Venue `yaml:"venues"`
	// Aliases maps a venue slug to curated nicknames.
	Aliases map[string][]string `yaml:"aliases"`
	Events  []model.Event       `yaml:"events"`
}

// Event returns the event with the given id.
func (s *Snapshot) Event(id string) (model.Event, bool) {
	for _, ev := range s.Events {
		if ev.ID == id {
			return ev, true
		}
	}
	return model.Event{}, false
}

// Load reads a catalog from path, picking the source by file extension.
func Load(ctx context.Context, path string) (*Snapshot, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".db", ".sqlite", ".sqlite3":
		return LoadSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, path)
	}
}

// LoadYAML reads a YAML document with top-level venues, aliases and events.
func LoadYAML(path string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}
	if err := snap.validate(); err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return &snap, nil
}

func (s *Snapshot) validate() error {
	seen := make(map[string]struct{}, len(s.Venues))
	for i, v := range s.Venues {
		if strings.TrimSpace(v.ID) == "" {
			return fmt.Errorf("venue #%d has no id", i)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("duplicate venue id %q", v.ID)
		}
		seen[v.ID] = struct{}{}
	}
	if s.Aliases == nil {
		s.Aliases = map[string][]string{}
	}
	return nil
}

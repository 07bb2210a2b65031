// file: internal/syncer/marker.go

package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"fitness-connect/internal/provider"
)

// Marker records the last successfully synced measurement per metric kind.
// LastSyncedAt never decreases: the marker is written only after a
// confirmed push, and older source readings are treated as already synced.
type Marker struct {
	Kind            provider.MetricKind `json:"kind"`
	LastSyncedAt    time.Time           `json:"lastSyncedAt"`
	LastSyncedValue float64             `json:"lastSyncedValue"`
}

// Zero reports whether no sync has ever been recorded
func (m *Marker) Zero() bool {
	return m.LastSyncedAt.IsZero()
}

// Covers reports whether a fetched measurement is already accounted for:
// either strictly older than the marker, or the exact reading last synced.
func (m *Marker) Covers(meas *provider.Measurement) bool {
	if m.Zero() {
		return false
	}
	if meas.ObservedAt.Before(m.LastSyncedAt) {
		return true
	}
	return meas.ObservedAt.Equal(m.LastSyncedAt) && meas.Value == m.LastSyncedValue
}

// MarkerStore persists sync markers. Load returns a zero marker when no
// sync has been recorded yet; Save must replace atomically.
type MarkerStore interface {
	Load(ctx context.Context, kind provider.MetricKind) (*Marker, error)
	Save(ctx context.Context, marker *Marker) error
}

// FileMarkerStore keeps one JSON marker file per metric kind, written via
// temp file + rename like the credential store.
type FileMarkerStore struct {
	dir string
}

// NewFileMarkerStore creates a file-backed marker store rooted at dir.
func NewFileMarkerStore(dir string) *FileMarkerStore {
	return &FileMarkerStore{dir: dir}
}

// Load reads the marker for a metric kind, or a zero marker if absent.
func (s *FileMarkerStore) Load(_ context.Context, kind provider.MetricKind) (*Marker, error) {
	data, err := os.ReadFile(s.path(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return &Marker{Kind: kind}, nil
		}
		return nil, fmt.Errorf("failed to read sync marker for %q: %w", kind, err)
	}

	var m Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode sync marker for %q: %w", kind, err)
	}
	return &m, nil
}

// Save writes the marker atomically.
func (s *FileMarkerStore) Save(_ context.Context, marker *Marker) error {
	if marker == nil || marker.Kind == "" {
		return fmt.Errorf("marker has no metric kind")
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create marker dir: %w", err)
	}

	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sync marker for %q: %w", marker.Kind, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".marker-*")
	if err != nil {
		return fmt.Errorf("failed to create temp marker file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write sync marker for %q: %w", marker.Kind, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush sync marker for %q: %w", marker.Kind, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp marker file: %w", err)
	}

	if err := os.Rename(tmpName, s.path(marker.Kind)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace sync marker for %q: %w", marker.Kind, err)
	}

	return nil
}

func (s *FileMarkerStore) path(kind provider.MetricKind) string {
	return filepath.Join(s.dir, string(kind)+".json")
}

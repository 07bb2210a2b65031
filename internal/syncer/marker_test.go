// file: internal/syncer/marker_test.go

package syncer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fitness-connect/internal/provider"
)

func TestMarkerCovers(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	marker := &Marker{
		Kind:            provider.MetricWeight,
		LastSyncedAt:    base,
		LastSyncedValue: 72.4,
	}

	tests := []struct {
		name string
		at   time.Time
		val  float64
		want bool
	}{
		{name: "older reading is covered", at: base.Add(-time.Hour), val: 73.0, want: true},
		{name: "exact last reading is covered", at: base, val: 72.4, want: true},
		{name: "same time different value is new", at: base, val: 72.1, want: false},
		{name: "newer reading is new", at: base.Add(time.Minute), val: 72.4, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &provider.Measurement{Kind: provider.MetricWeight, Value: tt.val, ObservedAt: tt.at}
			if got := marker.Covers(m); got != tt.want {
				t.Errorf("Covers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZeroMarkerCoversNothing(t *testing.T) {
	zero := &Marker{Kind: provider.MetricWeight}
	if !zero.Zero() {
		t.Fatalf("fresh marker should report Zero")
	}

	m := &provider.Measurement{
		Kind:       provider.MetricWeight,
		Value:      72.4,
		ObservedAt: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	if zero.Covers(m) {
		t.Errorf("zero marker must not cover any measurement")
	}
}

func TestFileMarkerStoreRoundtrip(t *testing.T) {
	store := NewFileMarkerStore(t.TempDir())
	ctx := context.Background()

	saved := &Marker{
		Kind:            provider.MetricWeight,
		LastSyncedAt:    time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		LastSyncedValue: 72.4,
	}
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := store.Load(ctx, provider.MetricWeight)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !loaded.LastSyncedAt.Equal(saved.LastSyncedAt) {
		t.Errorf("LastSyncedAt = %v, want %v", loaded.LastSyncedAt, saved.LastSyncedAt)
	}
	if loaded.LastSyncedValue != 72.4 {
		t.Errorf("LastSyncedValue = %v, want 72.4", loaded.LastSyncedValue)
	}
}

func TestFileMarkerStoreMissingReturnsZero(t *testing.T) {
	store := NewFileMarkerStore(t.TempDir())

	m, err := store.Load(context.Background(), provider.MetricWeight)
	if err != nil {
		t.Fatalf("Load() on empty dir failed: %v", err)
	}
	if !m.Zero() {
		t.Errorf("missing marker should load as zero, got %+v", m)
	}
	if m.Kind != provider.MetricWeight {
		t.Errorf("zero marker kind = %q", m.Kind)
	}
}

func TestFileMarkerStoreSaveReplaces(t *testing.T) {
	dir := t.TempDir()
	store := NewFileMarkerStore(dir)
	ctx := context.Background()

	first := &Marker{Kind: provider.MetricWeight, LastSyncedAt: time.Unix(1000, 0).UTC(), LastSyncedValue: 73.0}
	second := &Marker{Kind: provider.MetricWeight, LastSyncedAt: time.Unix(2000, 0).UTC(), LastSyncedValue: 72.4}

	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("first Save() failed: %v", err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}

	loaded, err := store.Load(ctx, provider.MetricWeight)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.LastSyncedValue != 72.4 {
		t.Errorf("LastSyncedValue = %v, want 72.4", loaded.LastSyncedValue)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".marker-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one marker file, got %d", len(entries))
	}
}

func TestFileMarkerStoreRejectsKindlessMarker(t *testing.T) {
	store := NewFileMarkerStore(t.TempDir())
	if err := store.Save(context.Background(), &Marker{}); err == nil {
		t.Fatalf("Save() accepted marker without a kind")
	}
}

func TestFileMarkerStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "weight.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	store := NewFileMarkerStore(dir)
	if _, err := store.Load(context.Background(), provider.MetricWeight); err == nil {
		t.Fatalf("Load() succeeded on corrupt marker file")
	}
}

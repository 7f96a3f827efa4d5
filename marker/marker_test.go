// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package marker

import (
	"context"
	"errors"
	"testing"

	"github.com/AndersKabel/danmarkskort/spatial"
)

func TestStableIDIsDeterministicUnderJitter(t *testing.T) {
	a := StableID("default", "map-1", spatial.Point{Lat: 55.676834, Lng: 12.568337})
	b := StableID("default", "map-1", spatial.Point{Lat: 55.6768341, Lng: 12.5683369})
	if a != b {
		t.Errorf("jittered coordinates produced different ids: %q vs %q", a, b)
	}
	if a != "default|map-1|55.67683|12.56834" {
		t.Errorf("unexpected id format: %q", a)
	}
}

func TestStableIDSeparatesScopes(t *testing.T) {
	p := spatial.Point{Lat: 55.676834, Lng: 12.568337}
	if StableID("default", "map-1", p) == StableID("default", "map-2", p) {
		t.Error("same spot on different maps must have different ids")
	}
	if StableID("a", "map-1", p) == StableID("b", "map-1", p) {
		t.Error("same spot in different workspaces must have different ids")
	}
}

func TestNewHandleIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		h := NewHandle()
		if seen[h] {
			t.Fatalf("duplicate handle %q", h)
		}
		seen[h] = true
	}
}

// recordingSink captures sink calls and optionally fails them.
type recordingSink struct {
	saved   []Marker
	deleted []string
	err     error
}

func (s *recordingSink) Save(ctx context.Context, m Marker) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, m)
	return nil
}

func (s *recordingSink) Delete(ctx context.Context, stableID string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, stableID)
	return nil
}

var (
	copenhagen = spatial.Point{Lat: 55.67683, Lng: 12.56834}
	odense     = spatial.Point{Lat: 55.39594, Lng: 10.38831}
	aalborg    = spatial.Point{Lat: 57.04882, Lng: 9.92180}
)

func TestTransientModeKeepsOneMarker(t *testing.T) {
	g := NewManager("default", "map-1", nil)
	ctx := context.Background()

	first, err := g.Place(ctx, copenhagen, "København")
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.Place(ctx, odense, "Odense")
	if err != nil {
		t.Fatal(err)
	}

	all := g.List()
	if len(all) != 1 {
		t.Fatalf("transient mode must hold one marker, got %d", len(all))
	}
	if all[0].Handle != second.Handle {
		t.Error("the newest placement must be the one that survives")
	}
	if _, ok := g.Get(first.Handle); ok {
		t.Error("the retired transient marker must be gone")
	}

	sel, ok := g.Selection()
	if !ok || sel.Handle != second.Handle {
		t.Error("placing must select the new marker")
	}
}

func TestEnteringRetainedMigratesTheTransientMarker(t *testing.T) {
	g := NewManager("default", "map-1", nil)
	ctx := context.Background()

	placed, err := g.Place(ctx, copenhagen, "København")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetMode(ctx, ModeRetained); err != nil {
		t.Fatal(err)
	}

	migrated, ok := g.Get(placed.Handle)
	if !ok {
		t.Fatal("the transient marker must survive the transition")
	}
	if migrated.Mode != ModeRetained {
		t.Errorf("migrated marker mode = %v, want retained", migrated.Mode)
	}

	if _, err := g.Place(ctx, odense, "Odense"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Place(ctx, aalborg, "Aalborg"); err != nil {
		t.Fatal(err)
	}
	if got := len(g.List()); got != 3 {
		t.Errorf("retained mode must accumulate markers, got %d", got)
	}
}

func TestLeavingRetainedClearsTheCollection(t *testing.T) {
	g := NewManager("default", "map-1", nil)
	ctx := context.Background()

	if err := g.SetMode(ctx, ModeRetained); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Place(ctx, copenhagen, "København"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Place(ctx, odense, "Odense"); err != nil {
		t.Fatal(err)
	}

	if err := g.SetMode(ctx, ModeTransient); err != nil {
		t.Fatal(err)
	}
	if got := len(g.List()); got != 0 {
		t.Errorf("leaving retained mode must clear the collection, got %d markers", got)
	}
	if _, ok := g.Selection(); ok {
		t.Error("leaving retained mode must clear the selection")
	}
}

func TestRetainedDeleteRemovesOnlyThatMarker(t *testing.T) {
	g := NewManager("default", "map-1", nil)
	ctx := context.Background()

	if err := g.SetMode(ctx, ModeRetained); err != nil {
		t.Fatal(err)
	}
	keep, err := g.Place(ctx, copenhagen, "København")
	if err != nil {
		t.Fatal(err)
	}
	drop, err := g.Place(ctx, odense, "Odense")
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Remove(ctx, drop.Handle); err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Get(keep.Handle); !ok {
		t.Error("the other retained marker must stay")
	}
	if _, ok := g.Get(drop.Handle); ok {
		t.Error("the deleted marker must be gone")
	}
}

func TestPersistedModeWritesThrough(t *testing.T) {
	sink := &recordingSink{}
	g := NewManager("default", "map-1", sink)
	ctx := context.Background()

	if err := g.SetMode(ctx, ModePersisted); err != nil {
		t.Fatal(err)
	}
	placed, err := g.Place(ctx, copenhagen, "København")
	if err != nil {
		t.Fatal(err)
	}

	if len(sink.saved) != 1 {
		t.Fatalf("expected one write-through, got %d", len(sink.saved))
	}
	if sink.saved[0].StableID != placed.StableID {
		t.Errorf("sink saw %q, want %q", sink.saved[0].StableID, placed.StableID)
	}
}

func TestEnteringPersistedMigratesTheSelection(t *testing.T) {
	sink := &recordingSink{}
	g := NewManager("default", "map-1", sink)
	ctx := context.Background()

	placed, err := g.Place(ctx, copenhagen, "København")
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetMode(ctx, ModePersisted); err != nil {
		t.Fatal(err)
	}

	if len(sink.saved) != 1 {
		t.Fatalf("entering persisted mode must save the selection, got %d saves", len(sink.saved))
	}
	migrated, _ := g.Get(placed.Handle)
	if migrated.Mode != ModePersisted {
		t.Errorf("marker mode = %v, want persisted", migrated.Mode)
	}
}

func TestLeavingPersistedDetachesWithoutRemoteDeletes(t *testing.T) {
	sink := &recordingSink{}
	g := NewManager("default", "map-1", sink)
	ctx := context.Background()

	if err := g.SetMode(ctx, ModePersisted); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Place(ctx, copenhagen, "København"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Place(ctx, odense, "Odense"); err != nil {
		t.Fatal(err)
	}

	if err := g.SetMode(ctx, ModeTransient); err != nil {
		t.Fatal(err)
	}
	if got := len(g.List()); got != 0 {
		t.Errorf("leaving persisted mode must detach the view, got %d markers", got)
	}
	if len(sink.deleted) != 0 {
		t.Errorf("view detachment must not delete remotely, got %d deletes", len(sink.deleted))
	}
}

func TestWriteThroughFailureKeepsTheLocalMarker(t *testing.T) {
	sink := &recordingSink{err: errors.New("store down")}
	g := NewManager("default", "map-1", sink)
	ctx := context.Background()

	if err := g.SetMode(ctx, ModePersisted); err != nil {
		t.Fatal(err)
	}
	placed, err := g.Place(ctx, copenhagen, "København")
	if err == nil {
		t.Fatal("expected the sink failure to surface")
	}
	if _, ok := g.Get(placed.Handle); !ok {
		t.Error("the local marker must survive a failed write-through")
	}
	if _, ok := g.Selection(); !ok {
		t.Error("the selection must stay defined after a failed write-through")
	}
}

func TestRemovePersistedSoftDeletesRemotely(t *testing.T) {
	sink := &recordingSink{}
	g := NewManager("default", "map-1", sink)
	ctx := context.Background()

	if err := g.SetMode(ctx, ModePersisted); err != nil {
		t.Fatal(err)
	}
	placed, err := g.Place(ctx, copenhagen, "København")
	if err != nil {
		t.Fatal(err)
	}

	if err := g.Remove(ctx, placed.Handle); err != nil {
		t.Fatal(err)
	}
	if len(sink.deleted) != 1 || sink.deleted[0] != placed.StableID {
		t.Errorf("expected a remote soft delete of %q, got %v", placed.StableID, sink.deleted)
	}
}

func TestRemoveProceedsLocallyWhenRemoteDeleteFails(t *testing.T) {
	sink := &recordingSink{}
	g := NewManager("default", "map-1", sink)
	ctx := context.Background()

	if err := g.SetMode(ctx, ModePersisted); err != nil {
		t.Fatal(err)
	}
	placed, err := g.Place(ctx, copenhagen, "København")
	if err != nil {
		t.Fatal(err)
	}

	sink.err = errors.New("store down")
	if err := g.Remove(ctx, placed.Handle); err == nil {
		t.Fatal("expected the remote failure to surface")
	}
	if _, ok := g.Get(placed.Handle); ok {
		t.Error("local removal must stand even when the remote delete fails")
	}
}

func TestSelectRehydratesCachedDetail(t *testing.T) {
	g := NewManager("default", "map-1", nil)
	ctx := context.Background()

	if err := g.SetMode(ctx, ModeRetained); err != nil {
		t.Fatal(err)
	}
	placed, err := g.Place(ctx, copenhagen, "København")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.SetNote(placed.Handle, "mødested"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Place(ctx, odense, "Odense"); err != nil {
		t.Fatal(err)
	}

	selected, err := g.Select(placed.Handle)
	if err != nil {
		t.Fatal(err)
	}
	if selected.Note != "mødested" || selected.Title != "København" {
		t.Errorf("selection must carry the cached detail, got %+v", selected)
	}
}

func TestHighlightFlagsExactlyTheGivenIDs(t *testing.T) {
	g := NewManager("default", "map-1", nil)
	ctx := context.Background()

	if err := g.SetMode(ctx, ModeRetained); err != nil {
		t.Fatal(err)
	}
	lit, err := g.Place(ctx, copenhagen, "København")
	if err != nil {
		t.Fatal(err)
	}
	dark, err := g.Place(ctx, odense, "Odense")
	if err != nil {
		t.Fatal(err)
	}

	if n := g.Highlight([]string{lit.StableID}); n != 1 {
		t.Errorf("Highlight() = %d, want 1", n)
	}
	got, _ := g.Get(lit.Handle)
	if !got.Highlighted {
		t.Error("the listed marker must be highlighted")
	}
	other, _ := g.Get(dark.Handle)
	if other.Highlighted {
		t.Error("unlisted markers must not be highlighted")
	}

	g.Highlight(nil)
	got, _ = g.Get(lit.Handle)
	if got.Highlighted {
		t.Error("a later highlight must clear earlier flags")
	}
}

func TestUnknownHandleIsARecognizableError(t *testing.T) {
	g := NewManager("default", "map-1", nil)

	if _, err := g.Select("no-such-handle"); !errors.Is(err, ErrUnknownMarker) {
		t.Errorf("Select: got %v, want ErrUnknownMarker", err)
	}
	if err := g.Remove(context.Background(), "no-such-handle"); !errors.Is(err, ErrUnknownMarker) {
		t.Errorf("Remove: got %v, want ErrUnknownMarker", err)
	}
}

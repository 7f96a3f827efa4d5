// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package marker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AndersKabel/danmarkskort/spatial"
)

// ErrUnknownMarker is returned for operations on a handle the manager does
// not hold.
var ErrUnknownMarker = errors.New("unknown marker handle")

// RemoteSink mirrors persisted markers to a remote store. A nil sink keeps
// every marker local.
type RemoteSink interface {
	Save(ctx context.Context, m Marker) error
	Delete(ctx context.Context, stableID string) error
}

// Manager is a state machine over the placement modes. In transient mode
// there is at most one marker and placing a new one retires it; retained
// mode keeps a collection; persisted mode writes every placement through to
// the remote sink. Safe for concurrent use.
type Manager struct {
	workspace string
	mapID     string
	sink      RemoteSink

	mu        sync.Mutex
	mode      Mode
	markers   map[string]*Marker
	selection string
}

// NewManager builds a manager scoped to one workspace and map, starting in
// transient mode. sink may be nil.
func NewManager(workspace, mapID string, sink RemoteSink) *Manager {
	return &Manager{
		workspace: workspace,
		mapID:     mapID,
		sink:      sink,
		mode:      ModeTransient,
		markers:   make(map[string]*Marker),
	}
}

// Mode returns the active placement mode.
func (g *Manager) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// SetMode transitions the placement mode. Leaving retained mode drops the
// retained collection and the selection; leaving persisted mode detaches
// the locally rendered remote markers without touching the store. Entering
// retained mode migrates the current transient marker into the collection;
// entering persisted mode writes the current selection through to the sink.
func (g *Manager) SetMode(ctx context.Context, mode Mode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if mode == g.mode {
		return nil
	}

	switch g.mode {
	case ModeRetained:
		g.dropMode(ModeRetained)
		g.selection = ""
	case ModePersisted:
		// View detachment only. The store keeps the rows.
		g.dropMode(ModePersisted)
	case ModeTransient:
	}

	previous := g.mode
	g.mode = mode

	switch mode {
	case ModeRetained:
		if previous == ModeTransient {
			for _, m := range g.markers {
				if m.Mode == ModeTransient {
					m.Mode = ModeRetained
					m.UpdatedAt = time.Now()
				}
			}
		}
	case ModePersisted:
		if m, ok := g.markers[g.selection]; ok && m.Mode != ModePersisted {
			m.Mode = ModePersisted
			m.UpdatedAt = time.Now()
			if err := g.save(ctx, *m); err != nil {
				return err
			}
		}
	case ModeTransient:
	}

	return nil
}

func (g *Manager) dropMode(mode Mode) {
	for handle, m := range g.markers {
		if m.Mode == mode {
			delete(g.markers, handle)
			if g.selection == handle {
				g.selection = ""
			}
		}
	}
}

func (g *Manager) save(ctx context.Context, m Marker) error {
	if g.sink == nil {
		return nil
	}
	if err := g.sink.Save(ctx, m); err != nil {
		return fmt.Errorf("persisting marker %s: %w", m.StableID, err)
	}
	return nil
}

// Place creates a marker at the given coordinate in the active mode and
// makes it the current selection. In transient mode the previous transient
// marker goes away first; in persisted mode the marker is written through to
// the sink, and a sink failure keeps the local marker (logged, the caller
// sees an error but the map does not flicker).
func (g *Manager) Place(ctx context.Context, coord spatial.Point, title string) (Marker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.mode == ModeTransient {
		g.dropMode(ModeTransient)
	}

	now := time.Now()
	m := &Marker{
		Handle:    NewHandle(),
		StableID:  StableID(g.workspace, g.mapID, coord),
		Workspace: g.workspace,
		MapID:     g.mapID,
		Coord:     coord,
		Title:     title,
		Mode:      g.mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
	g.markers[m.Handle] = m
	g.selection = m.Handle

	if g.mode == ModePersisted {
		if err := g.save(ctx, *m); err != nil {
			log.Warn().Err(err).Str("id", m.StableID).Msg("write-through failed")
			return *m, err
		}
	}

	return *m, nil
}

// Select makes an existing marker the current selection and returns its
// snapshot, cached note and title included, with no network involved.
func (g *Manager) Select(handle string) (Marker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.markers[handle]
	if !ok {
		return Marker{}, ErrUnknownMarker
	}
	g.selection = handle
	return *m, nil
}

// Selection returns the current selection, if any.
func (g *Manager) Selection() (Marker, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.markers[g.selection]
	if !ok {
		return Marker{}, false
	}
	return *m, true
}

// Get returns a snapshot of the marker behind handle.
func (g *Manager) Get(handle string) (Marker, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.markers[handle]
	if !ok {
		return Marker{}, false
	}
	return *m, true
}

// Hydrate fills a marker's cached detail fields from a remote record.
func (g *Manager) Hydrate(handle, title, note string) (Marker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.markers[handle]
	if !ok {
		return Marker{}, ErrUnknownMarker
	}
	m.Title = title
	m.Note = note
	return *m, nil
}

// SetNote replaces the marker's note text.
func (g *Manager) SetNote(handle, note string) (Marker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.markers[handle]
	if !ok {
		return Marker{}, ErrUnknownMarker
	}
	m.Note = note
	m.UpdatedAt = time.Now()
	return *m, nil
}

// Remove drops the marker. For persisted markers the remote soft delete is
// attempted too, but the local removal stands either way; the error tells
// the caller the store may still hold the row.
func (g *Manager) Remove(ctx context.Context, handle string) error {
	g.mu.Lock()
	m, ok := g.markers[handle]
	if !ok {
		g.mu.Unlock()
		return ErrUnknownMarker
	}
	snapshot := *m
	delete(g.markers, handle)
	if g.selection == handle {
		g.selection = ""
	}
	g.mu.Unlock()

	if snapshot.Mode == ModePersisted && g.sink != nil {
		if err := g.sink.Delete(ctx, snapshot.StableID); err != nil {
			log.Warn().Err(err).Str("id", snapshot.StableID).Msg("remote delete failed")
			return fmt.Errorf("deleting marker %s remotely: %w", snapshot.StableID, err)
		}
	}

	return nil
}

// Highlight flags exactly the markers whose stable ids are listed, clearing
// the flag everywhere else. Used after a restore to light up what came back.
func (g *Manager) Highlight(stableIDs []string) int {
	wanted := make(map[string]bool, len(stableIDs))
	for _, id := range stableIDs {
		wanted[id] = true
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, m := range g.markers {
		m.Highlighted = wanted[m.StableID]
		if m.Highlighted {
			n++
		}
	}
	return n
}

// List returns snapshots of all markers in creation order.
func (g *Manager) List() []Marker {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Marker, 0, len(g.markers))
	for _, m := range g.markers {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Handle < out[j].Handle
	})
	return out
}

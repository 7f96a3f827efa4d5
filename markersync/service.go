// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package markersync

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/AndersKabel/danmarkskort/utils/debounce"
)

// DefaultNoteDelay is how long note edits settle before a patch goes out.
const DefaultNoteDelay = 400 * time.Millisecond

// identityTTL bounds the session identity index. A marker created longer ago
// than this may be written again; the store upserts, so the duplicate write
// is wasted work, not corruption.
const identityTTL = 12 * time.Hour

// Remote is the slice of the store client the service needs. *Client
// satisfies it.
type Remote interface {
	ListMarkers(ctx context.Context) ([]RemoteMarker, error)
	CreateMarker(ctx context.Context, m RemoteMarker) error
	PatchNote(ctx context.Context, id, note string) error
	DeleteMarker(ctx context.Context, id string) error
	Restore(ctx context.Context, scope RestoreScope) ([]string, error)
}

// Liveness reports whether the marker behind an id still exists locally.
// Debounced work consults it before touching the store, so a patch for a
// marker deleted mid-flight is dropped instead of resurrecting it.
type Liveness func(id string) bool

// Service coordinates marker writes against the store: duplicate creations
// are suppressed within the session, note edits settle through a debounce
// window, and deletions never block local cleanup.
type Service struct {
	remote Remote
	alive  Liveness
	filter AreaFilter

	created *cache.Cache
	sched   *debounce.Scheduler

	mu       sync.Mutex
	lastNote map[string]string
}

// NewService builds a sync service. alive may be nil, which skips liveness
// checks; noteDelay <= 0 selects DefaultNoteDelay.
func NewService(remote Remote, alive Liveness, filter AreaFilter, noteDelay time.Duration) *Service {
	if noteDelay <= 0 {
		noteDelay = DefaultNoteDelay
	}
	return &Service{
		remote:   remote,
		alive:    alive,
		filter:   filter,
		created:  cache.New(identityTTL, time.Hour),
		sched:    debounce.NewScheduler(noteDelay),
		lastNote: make(map[string]string),
	}
}

// Close drops pending note flushes.
func (s *Service) Close() {
	s.sched.Stop()
}

// Create writes a marker to the store unless this session already created
// the same identity, in which case it reports created=false without any
// store traffic.
func (s *Service) Create(ctx context.Context, m RemoteMarker) (bool, error) {
	if _, dup := s.created.Get(m.ID); dup {
		log.Debug().Str("id", m.ID).Msg("duplicate marker creation suppressed")
		return false, nil
	}
	if err := s.remote.CreateMarker(ctx, m); err != nil {
		return false, err
	}
	s.created.Set(m.ID, struct{}{}, cache.DefaultExpiration)
	s.mu.Lock()
	s.lastNote[m.ID] = m.Note
	s.mu.Unlock()
	return true, nil
}

// EditNote registers the latest note text for a marker. The patch is sent
// after the debounce window, skipped entirely when the text matches what
// this session last sent or the marker is gone by then.
func (s *Service) EditNote(ctx context.Context, id, note string) {
	s.sched.Schedule("note:"+id, func() {
		if s.alive != nil && !s.alive(id) {
			log.Debug().Str("id", id).Msg("note flush dropped, marker is gone")
			return
		}
		s.mu.Lock()
		last, sent := s.lastNote[id]
		s.mu.Unlock()
		if sent && last == note {
			return
		}
		if err := s.remote.PatchNote(ctx, id, note); err != nil {
			log.Warn().Err(err).Str("id", id).Msg("note flush failed")
			return
		}
		s.mu.Lock()
		s.lastNote[id] = note
		s.mu.Unlock()
	})
}

// Delete soft-deletes a marker in the store. The session identity index and
// any pending note flush are cleared first, so local removal stands even
// when the store call fails; the returned error is for reporting, not for
// rolling back.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.sched.Cancel("note:" + id)
	s.created.Delete(id)
	s.mu.Lock()
	delete(s.lastNote, id)
	s.mu.Unlock()

	if err := s.remote.DeleteMarker(ctx, id); err != nil {
		log.Warn().Err(err).Str("id", id).Msg("remote delete failed, local removal stands")
		return err
	}
	return nil
}

// Restore brings soft-deleted markers back within the given scope and
// returns their ids for highlighting. An empty result is success: there was
// simply nothing to restore.
func (s *Service) Restore(ctx context.Context, scope RestoreScope) ([]string, error) {
	restored, err := s.remote.Restore(ctx, scope)
	if err != nil {
		return nil, err
	}
	for _, id := range restored {
		s.created.Set(id, struct{}{}, cache.DefaultExpiration)
	}
	return restored, nil
}

// List fetches the workspace's markers and applies the area filter
// client-side.
func (s *Service) List(ctx context.Context) ([]RemoteMarker, error) {
	markers, err := s.remote.ListMarkers(ctx)
	if err != nil {
		return nil, err
	}
	filtered := markers[:0]
	for _, m := range markers {
		if s.filter.Allows(m.PostalCode) {
			filtered = append(filtered, m)
		}
	}
	return filtered, nil
}

// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package markersync

import (
	"context"

	"github.com/AndersKabel/danmarkskort/marker"
)

// Sink adapts the sync service to the lifecycle manager, so markers entering
// persisted mode flow through the session dedupe and the soft-delete policy.
type Sink struct {
	service *Service
}

// NewSink wraps a sync service as a marker sink.
func NewSink(service *Service) *Sink {
	return &Sink{service: service}
}

// Save writes the marker through to the store. A duplicate within the
// session is already there, which counts as saved.
func (s *Sink) Save(ctx context.Context, m marker.Marker) error {
	_, err := s.service.Create(ctx, RemoteMarker{
		ID:        m.StableID,
		Workspace: m.Workspace,
		MapID:     m.MapID,
		Lat:       m.Coord.Lat,
		Lng:       m.Coord.Lng,
		Title:     m.Title,
		Note:      m.Note,
	})

	return err
}

// Delete soft-deletes the marker in the store.
func (s *Sink) Delete(ctx context.Context, stableID string) error {
	return s.service.Delete(ctx, stableID)
}

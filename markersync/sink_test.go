// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package markersync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndersKabel/danmarkskort/marker"
	"github.com/AndersKabel/danmarkskort/spatial"
)

func TestSinkWritesPersistedMarkersThroughTheService(t *testing.T) {
	remote := &fakeRemote{}
	service := NewService(remote, nil, AreaFilter{all: true}, 0)
	defer service.Close()

	manager := marker.NewManager("default", "map-1", NewSink(service))
	ctx := context.Background()

	require.NoError(t, manager.SetMode(ctx, marker.ModePersisted))
	placed, err := manager.Place(ctx, spatial.Point{Lat: 55.676834, Lng: 12.568337}, "København")
	require.NoError(t, err)

	got := remote.snapshot()
	require.Len(t, got.created, 1)
	assert.Equal(t, placed.StableID, got.created[0].ID)
	assert.Equal(t, "København", got.created[0].Title)

	// The same spot again dedupes inside the service: saved, no traffic.
	_, err = manager.Place(ctx, spatial.Point{Lat: 55.6768341, Lng: 12.5683369}, "København")
	require.NoError(t, err)
	assert.Len(t, remote.snapshot().created, 1)
}

func TestSinkDeleteSoftDeletesRemotely(t *testing.T) {
	remote := &fakeRemote{}
	service := NewService(remote, nil, AreaFilter{all: true}, 0)
	defer service.Close()

	manager := marker.NewManager("default", "map-1", NewSink(service))
	ctx := context.Background()

	require.NoError(t, manager.SetMode(ctx, marker.ModePersisted))
	placed, err := manager.Place(ctx, spatial.Point{Lat: 55.676834, Lng: 12.568337}, "København")
	require.NoError(t, err)

	require.NoError(t, manager.Remove(ctx, placed.Handle))
	assert.Equal(t, []string{placed.StableID}, remote.snapshot().deleted)
}

// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package geosearch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndersKabel/danmarkskort/spatial"
)

const rescuePostGeoJSON = `{
	"type": "FeatureCollection",
	"features": [
		{"type": "Feature",
		 "properties": {"StrandNr": "A102"},
		 "geometry": {"type": "Point", "coordinates": [8.121, 55.554]}},
		{"type": "Feature",
		 "properties": {"StrandNr": "A104"},
		 "geometry": {"type": "Point", "coordinates": [8.124, 55.561]}},
		{"type": "Feature",
		 "properties": {"StrandNr": ""},
		 "geometry": {"type": "Point", "coordinates": [8.2, 55.6]}}
	]
}`

func staticLoader(points []LocalPoint, err error) Loader {
	return func(ctx context.Context) ([]LocalPoint, error) {
		return points, err
	}
}

func TestParseRescuePosts(t *testing.T) {
	points, err := ParseRescuePosts(strings.NewReader(rescuePostGeoJSON))
	require.NoError(t, err)
	require.Len(t, points, 2, "features without a post number are skipped")

	assert.Equal(t, "A102", points[0].Name)
	assert.Equal(t, "Redningsnummer: A102", points[0].DisplayText())
	assert.InDelta(t, 55.554, points[0].Coord.Lat, 1e-9)
}

func TestLocalPointSearchMatchesPostNumbersAndCuratedNames(t *testing.T) {
	posts, err := ParseRescuePosts(strings.NewReader(rescuePostGeoJSON))
	require.NoError(t, err)

	curated := []LocalPoint{
		{Name: "Sommerhuset", Coord: spatial.Point{Lat: 55.0, Lng: 10.0}},
	}
	source := NewLocalPointSource(staticLoader(posts, nil), curated, 0)

	candidates, err := source.Search(context.Background(), "A102", 30)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, KindLocalPoint, candidates[0].Kind)
	assert.Equal(t, "Redningsnummer: A102", candidates[0].DisplayText)
	require.NotNil(t, candidates[0].Coord)

	candidates, err = source.Search(context.Background(), "sommer", 30)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Sommerhuset", candidates[0].DisplayText)
}

func TestLocalPointWithinOrdersByDistance(t *testing.T) {
	posts, err := ParseRescuePosts(strings.NewReader(rescuePostGeoJSON))
	require.NoError(t, err)
	source := NewLocalPointSource(staticLoader(posts, nil), nil, 0)

	center := spatial.Point{Lat: 55.560, Lng: 8.124}
	within, err := source.Within(context.Background(), center, 2000)
	require.NoError(t, err)
	require.Len(t, within, 2)
	assert.Equal(t, "A104", within[0].Name, "nearest post first")
	assert.Equal(t, "A102", within[1].Name)

	within, err = source.Within(context.Background(), center, 200)
	require.NoError(t, err)
	require.Len(t, within, 1)
	assert.Equal(t, "A104", within[0].Name)
}

func TestLocalPointNearest(t *testing.T) {
	posts, err := ParseRescuePosts(strings.NewReader(rescuePostGeoJSON))
	require.NoError(t, err)
	source := NewLocalPointSource(staticLoader(posts, nil), nil, 0)

	nearest, err := source.Nearest(context.Background(), spatial.Point{Lat: 55.560, Lng: 8.124}, 1)
	require.NoError(t, err)
	require.Len(t, nearest, 1)
	assert.Equal(t, "A104", nearest[0].Name)
}

func TestLocalPointRefreshKeepsStaleDataOnFailure(t *testing.T) {
	posts, parseErr := ParseRescuePosts(strings.NewReader(rescuePostGeoJSON))
	require.NoError(t, parseErr)

	loads := 0
	loader := func(ctx context.Context) ([]LocalPoint, error) {
		loads++
		if loads == 1 {
			return posts, nil
		}
		return nil, errors.New("upstream gone")
	}

	source := NewLocalPointSource(loader, nil, time.Nanosecond)

	_, err := source.Search(context.Background(), "A102", 30)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	candidates, err := source.Search(context.Background(), "A102", 30)
	require.NoError(t, err, "stale dataset keeps serving after a failed refresh")
	assert.Len(t, candidates, 1)
	assert.GreaterOrEqual(t, loads, 2)
}

func TestLocalPointFirstLoadFailureSurfaces(t *testing.T) {
	source := NewLocalPointSource(staticLoader(nil, errors.New("no such file")), nil, 0)
	_, err := source.Search(context.Background(), "A102", 30)
	require.Error(t, err)
}

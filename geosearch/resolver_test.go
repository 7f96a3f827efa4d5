// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package geosearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndersKabel/danmarkskort/spatial"
)

func TestResolveCachedCoordinateWinsWithoutNetwork(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	resolver := NewResolver(NewAddressSource(server.Client(), server.URL), nil)
	cached := &spatial.Point{Lat: 55.1, Lng: 10.2}

	got := resolver.Resolve(context.Background(), "Rådhuspladsen 1", cached)
	assert.Equal(t, cached, got)
	assert.Zero(t, calls)
}

func TestResolveCoordinateLiteralWithoutNetwork(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	resolver := NewResolver(NewAddressSource(server.Client(), server.URL), nil)

	got := resolver.Resolve(context.Background(), "55.676, 11.741", nil)
	require.NotNil(t, got)
	assert.InDelta(t, 55.676, got.Lat, 1e-9)
	assert.InDelta(t, 11.741, got.Lng, 1e-9)
	assert.Zero(t, calls)
}

func TestResolveDomesticCascade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/adgangsadresser/autocomplete":
			_, _ = w.Write([]byte(`[{"tekst": "Rådhuspladsen 1, 1550 København V",
				"adgangsadresse": {"id": "abc", "postnr": "1550"}}]`))
		case "/adgangsadresser/abc":
			_, _ = w.Write([]byte(`{"adgangspunkt": {"koordinater": [12.569337, 55.675817]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	resolver := NewResolver(NewAddressSource(server.Client(), server.URL), nil)
	got := resolver.Resolve(context.Background(), "Rådhuspladsen 1", nil)
	require.NotNil(t, got)
	assert.InDelta(t, 55.675817, got.Lat, 1e-9)
}

func TestResolveFallsThroughToForeign(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/adgangsadresser/autocomplete":
			_, _ = w.Write([]byte(`[]`))
		case "/geocode/search":
			_, _ = w.Write([]byte(`{"features": [
				{"geometry": {"type": "Point", "coordinates": [9.9937, 53.5511]},
				 "properties": {"name": "Hamburg", "country": "Deutschland"}}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	resolver := NewResolver(
		NewAddressSource(server.Client(), server.URL),
		NewForeignSource(server.Client(), server.URL, "secret", nil))

	got := resolver.Resolve(context.Background(), "Hamburg", nil)
	require.NotNil(t, got)
	assert.InDelta(t, 53.5511, got.Lat, 1e-9)
}

func TestResolveExhaustedChainIsNilNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	resolver := NewResolver(NewAddressSource(server.Client(), server.URL), nil)
	assert.Nil(t, resolver.Resolve(context.Background(), "nowhere at all", nil))
}

func TestReverseCachesByRoundedCoordinate(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/adgangsadresser/reverse", r.URL.Path)
		_, _ = w.Write([]byte(`{"vejnavn": "Rådhuspladsen", "husnr": "1",
			"postnr": "1550", "postnrnavn": "København V"}`))
	}))
	defer server.Close()

	resolver := NewReverseResolver(NewAddressSource(server.Client(), server.URL), nil)

	p := spatial.Point{Lat: 55.675817, Lng: 12.569337}
	first := resolver.Reverse(context.Background(), p)
	assert.Equal(t, "Rådhuspladsen 1, 1550 København V", first.Label)
	require.NotNil(t, first.Address)
	assert.False(t, first.Foreign)

	// A nearby coordinate rounding to the same key must hit the cache.
	jittered := spatial.Point{Lat: 55.6758171, Lng: 12.5693369}
	second := resolver.Reverse(context.Background(), jittered)
	assert.Equal(t, first.Label, second.Label)
	assert.Equal(t, 1, calls)
}

func TestReverseOutsideDenmarkSkipsDomesticRegistry(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{"features": [
			{"geometry": {"type": "Point", "coordinates": [9.9937, 53.5511]},
			 "properties": {"name": "Hamburg", "country": "Deutschland"}}]}`))
	}))
	defer server.Close()

	resolver := NewReverseResolver(
		NewAddressSource(server.Client(), server.URL),
		NewForeignSource(server.Client(), server.URL, "secret", nil))

	got := resolver.Reverse(context.Background(), spatial.Point{Lat: 53.5511, Lng: 9.9937})
	assert.Equal(t, "Hamburg, Deutschland", got.Label)
	assert.True(t, got.Foreign)
	assert.Equal(t, []string{"/geocode/reverse"}, paths)
}

func TestReverseFallbackLabelIsTheCoordinate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	resolver := NewReverseResolver(NewAddressSource(server.Client(), server.URL), nil)
	got := resolver.Reverse(context.Background(), spatial.Point{Lat: 55.676, Lng: 11.741})
	assert.Equal(t, "Koordinater: 55.67600, 11.74100", got.Label)
	assert.Nil(t, got.Address)
}

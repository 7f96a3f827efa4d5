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
)

func TestForeignSearchWithoutKeyIsInert(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	source := NewForeignSource(server.Client(), server.URL, "", nil)
	candidates, err := source.Search(context.Background(), "hamburg", 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
	assert.Zero(t, calls, "unconfigured source must not call out")
}

func TestForeignSearchParsesFeaturesAndRecordsQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/geocode/search", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		assert.Equal(t, "hamburg", r.URL.Query().Get("text"))
		w.Header().Set("X-Ratelimit-Limit", "1000")
		w.Header().Set("X-Ratelimit-Remaining", "987")
		_, _ = w.Write([]byte(`{"features": [
			{"geometry": {"type": "Point", "coordinates": [9.9937, 53.5511]},
			 "properties": {"name": "Hamburg", "locality": "Hamburg",
			                "region": "Hamburg", "country": "Deutschland"}}
		]}`))
	}))
	defer server.Close()

	tracker := NewQuotaTracker()
	source := NewForeignSource(server.Client(), server.URL, "secret", tracker)
	candidates, err := source.Search(context.Background(), "hamburg", 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	got := candidates[0]
	assert.Equal(t, KindForeignAddress, got.Kind)
	assert.Equal(t, "Hamburg, Hamburg, Deutschland", got.DisplayText)
	require.NotNil(t, got.Coord)
	assert.InDelta(t, 53.5511, got.Coord.Lat, 1e-9)

	quota, ok := tracker.Last("openrouteservice")
	require.True(t, ok)
	assert.Equal(t, 987, quota.Remaining)
	assert.Equal(t, 1000, quota.Limit)
	assert.False(t, quota.Exhausted())
}

func TestForeignLabelPrefersStreetPair(t *testing.T) {
	props := foreignProperties{
		Name:        "Elbphilharmonie",
		Street:      "Platz der Deutschen Einheit",
		HouseNumber: "4",
		PostalCode:  "20457",
		Locality:    "Hamburg",
		Region:      "Hamburg",
		Country:     "Deutschland",
	}
	assert.Equal(t,
		"Platz der Deutschen Einheit 4, 20457 Hamburg, Deutschland",
		props.label())

	noStreet := foreignProperties{Name: "Heligoland", Country: "Deutschland"}
	assert.Equal(t, "Heligoland, Deutschland", noStreet.label())

	bare := foreignProperties{Label: "Somewhere"}
	assert.Equal(t, "Somewhere", bare.label())
}

func TestForeignReverse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/geocode/reverse", r.URL.Path)
		assert.Equal(t, "53.5511", r.URL.Query().Get("point.lat"))
		assert.Equal(t, "9.9937", r.URL.Query().Get("point.lon"))
		_, _ = w.Write([]byte(`{"features": [
			{"geometry": {"type": "Point", "coordinates": [9.9937, 53.5511]},
			 "properties": {"name": "Hamburg", "country": "Deutschland"}}
		]}`))
	}))
	defer server.Close()

	source := NewForeignSource(server.Client(), server.URL, "secret", nil)
	candidate, err := source.Reverse(context.Background(), 53.5511, 9.9937)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, "Hamburg, Deutschland", candidate.DisplayText)
}

func TestForeignAuthErrorClassification(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusForbidden)
	}))
	defer server.Close()

	source := NewForeignSource(server.Client(), server.URL, "wrong", nil)
	_, err := source.Search(context.Background(), "hamburg", 10)
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

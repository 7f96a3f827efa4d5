// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package geosearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/AndersKabel/danmarkskort/spatial"
)

// DefaultPlaceNameBaseURL is the public endpoint of the place-name registry.
const DefaultPlaceNameBaseURL = "https://api.dataforsyningen.dk"

const placeNameSourceName = "stednavne"

// PlaceNameSource searches the national place-name registry. Hits carry
// their coordinate directly, so no detail step is needed.
type PlaceNameSource struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewPlaceNameSource builds an adapter against the given registry endpoint.
// An empty baseURL selects the public one. The token is the registry access
// token sent with every request.
func NewPlaceNameSource(client *http.Client, baseURL, token string) *PlaceNameSource {
	if baseURL == "" {
		baseURL = DefaultPlaceNameBaseURL
	}
	return &PlaceNameSource{client: client, baseURL: baseURL, token: token}
}

func (s *PlaceNameSource) Name() string {
	return placeNameSourceName
}

type placeNameEntry struct {
	Visningstekst string    `json:"visningstekst"`
	Skrivemaade   string    `json:"skrivemaade_officiel"`
	Geometri      *geometry `json:"geometri"`
	Bbox          *geometry `json:"bbox"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Search queries the registry. Hits whose geometry is not expressed in
// geographic coordinates are returned without a coordinate.
func (s *PlaceNameSource) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	if s.token != "" {
		params.Set("token", s.token)
	}

	u := s.baseURL + "/rest/gsearch/v2.0/stednavn?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating place-name request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, NewSearchError(ErrorTypeNetwork, placeNameSourceName, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewSearchError(ErrorTypeNetwork, placeNameSourceName, "reading response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPStatus(placeNameSourceName, resp.StatusCode, string(body))
	}

	var entries []placeNameEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding place-name response: %w", err)
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, entry := range entries {
		text := entry.Visningstekst
		if text == "" {
			text = entry.Skrivemaade
		}
		if text == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			Kind:        KindPlaceName,
			DisplayText: text,
			Coord:       entry.point(),
			Source:      placeNameSourceName,
		})
	}
	return candidates, nil
}

func (e placeNameEntry) point() *spatial.Point {
	for _, g := range []*geometry{e.Geometri, e.Bbox} {
		if g == nil {
			continue
		}
		if p := firstPosition(g.Coordinates); p != nil {
			return p
		}
	}
	return nil
}

// firstPosition digs the first [lon, lat] pair out of an arbitrarily nested
// GeoJSON coordinates array. Positions outside the geographic value range
// (projected coordinates) are discarded.
func firstPosition(raw json.RawMessage) *spatial.Point {
	if len(raw) == 0 {
		return nil
	}
	var pos []float64
	if err := json.Unmarshal(raw, &pos); err == nil {
		if len(pos) < 2 || pos[0] < -180 || pos[0] > 180 || pos[1] < -90 || pos[1] > 90 {
			return nil
		}
		return &spatial.Point{Lat: pos[1], Lng: pos[0]}
	}
	var nested []json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil
	}
	for _, inner := range nested {
		if p := firstPosition(inner); p != nil {
			return p
		}
	}
	return nil
}

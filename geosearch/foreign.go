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
	"strings"
)

// DefaultForeignBaseURL is the public endpoint of the global geocoder.
const DefaultForeignBaseURL = "https://api.openrouteservice.org"

const foreignSourceName = "openrouteservice"

// ForeignSource searches the global geocoder for addresses outside the
// domestic registries. It is metered: every response's rate-limit headers are
// recorded in the shared QuotaTracker. Without an API key the source is
// inert and contributes nothing.
type ForeignSource struct {
	client  *http.Client
	baseURL string
	apiKey  string
	quota   *QuotaTracker
}

// NewForeignSource builds an adapter against the given geocoder endpoint.
// An empty baseURL selects the public one. quota may be nil.
func NewForeignSource(client *http.Client, baseURL, apiKey string, quota *QuotaTracker) *ForeignSource {
	if baseURL == "" {
		baseURL = DefaultForeignBaseURL
	}
	return &ForeignSource{client: client, baseURL: baseURL, apiKey: apiKey, quota: quota}
}

func (s *ForeignSource) Name() string {
	return foreignSourceName
}

// Configured reports whether the source holds an API key.
func (s *ForeignSource) Configured() bool {
	return s.apiKey != ""
}

type foreignProperties struct {
	Label       string `json:"label"`
	Name        string `json:"name"`
	Street      string `json:"street"`
	HouseNumber string `json:"housenumber"`
	PostalCode  string `json:"postalcode"`
	Locality    string `json:"locality"`
	Region      string `json:"region"`
	Country     string `json:"country"`
}

type foreignFeature struct {
	Geometry   geometry          `json:"geometry"`
	Properties foreignProperties `json:"properties"`
}

type foreignResponse struct {
	Features []foreignFeature `json:"features"`
}

// label builds a readable address line. With a house number the street pair
// leads; otherwise the place name does. Empty components are dropped.
func (p foreignProperties) label() string {
	var parts []string
	if p.Street != "" && p.HouseNumber != "" {
		parts = append(parts, p.Street+" "+p.HouseNumber)
	} else if p.Name != "" {
		parts = append(parts, p.Name)
	}
	locality := strings.TrimSpace(p.PostalCode + " " + p.Locality)
	if locality != "" {
		parts = append(parts, locality)
	}
	if p.Region != "" && p.Region != p.Locality {
		parts = append(parts, p.Region)
	}
	if p.Country != "" {
		parts = append(parts, p.Country)
	}
	if len(parts) == 0 {
		return p.Label
	}
	return strings.Join(parts, ", ")
}

func (s *ForeignSource) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if !s.Configured() {
		return nil, nil
	}
	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("text", query)
	params.Set("size", strconv.Itoa(limit))
	return s.geocode(ctx, "/geocode/search", params)
}

// Reverse looks up the address nearest to the given coordinate. It returns
// nil without error when the geocoder knows nothing there.
func (s *ForeignSource) Reverse(ctx context.Context, lat, lon float64) (*Candidate, error) {
	if !s.Configured() {
		return nil, nil
	}
	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("point.lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("point.lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("size", "1")

	candidates, err := s.geocode(ctx, "/geocode/reverse", params)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

func (s *ForeignSource) geocode(ctx context.Context, path string, params url.Values) ([]Candidate, error) {
	u := s.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating geocoder request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, NewSearchError(ErrorTypeNetwork, foreignSourceName, "request failed", err)
	}
	defer resp.Body.Close()

	if s.quota != nil {
		s.quota.Record(foreignSourceName, resp.Header)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewSearchError(ErrorTypeNetwork, foreignSourceName, "reading response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPStatus(foreignSourceName, resp.StatusCode, string(body))
	}

	var decoded foreignResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding geocoder response: %w", err)
	}

	candidates := make([]Candidate, 0, len(decoded.Features))
	for _, feature := range decoded.Features {
		pos := firstPosition(feature.Geometry.Coordinates)
		if pos == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			Kind:        KindForeignAddress,
			DisplayText: feature.Properties.label(),
			Coord:       pos,
			Source:      foreignSourceName,
			PostalCode:  feature.Properties.PostalCode,
		})
	}
	return candidates, nil
}

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
	"sort"
	"strconv"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/AndersKabel/danmarkskort/spatial"
	"github.com/AndersKabel/danmarkskort/utils/textutil"
)

// DefaultRoadBaseURL is the public endpoint of the named-road registry.
const DefaultRoadBaseURL = "https://api.dataforsyningen.dk"

const roadSourceName = "navngivneveje"

// roadPageSize matches the registry's sweet spot for interactive queries.
const roadPageSize = 20

// RoadSource searches the named-road registry. Every query word gets a
// trailing wildcard so partial road names match, and results come back in
// Danish collation order.
type RoadSource struct {
	client  *http.Client
	baseURL string
	col     *collate.Collator
}

// NewRoadSource builds an adapter against the given registry endpoint.
// An empty baseURL selects the public one.
func NewRoadSource(client *http.Client, baseURL string) *RoadSource {
	if baseURL == "" {
		baseURL = DefaultRoadBaseURL
	}
	return &RoadSource{
		client:  client,
		baseURL: baseURL,
		col:     collate.New(language.Danish, collate.IgnoreCase),
	}
}

func (s *RoadSource) Name() string {
	return roadSourceName
}

type roadEntry struct {
	ID            string    `json:"id"`
	Navn          string    `json:"navn"`
	Visueltcenter []float64 `json:"visueltcenter"`
	Bbox          []float64 `json:"bbox"`
	Postnumre     []struct {
		Nr string `json:"nr"`
	} `json:"postnumre"`
}

// postalCode returns the road's first postal district, if the registry
// reported any.
func (e roadEntry) postalCode() string {
	if len(e.Postnumre) == 0 {
		return ""
	}

	return e.Postnumre[0].Nr
}

// point prefers the registry's visual center and falls back to the bbox
// midpoint.
func (e roadEntry) point() *spatial.Point {
	if len(e.Visueltcenter) >= 2 {
		return &spatial.Point{Lat: e.Visueltcenter[1], Lng: e.Visueltcenter[0]}
	}
	if len(e.Bbox) >= 4 {
		return &spatial.Point{
			Lat: (e.Bbox[1] + e.Bbox[3]) / 2,
			Lng: (e.Bbox[0] + e.Bbox[2]) / 2,
		}
	}
	return nil
}

func (s *RoadSource) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if limit <= 0 || limit > roadPageSize {
		limit = roadPageSize
	}
	params := url.Values{}
	params.Set("q", textutil.Wildcard(query))
	params.Set("per_side", strconv.Itoa(limit))

	u := s.baseURL + "/navngivneveje?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating road request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, NewSearchError(ErrorTypeNetwork, roadSourceName, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewSearchError(ErrorTypeNetwork, roadSourceName, "reading response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPStatus(roadSourceName, resp.StatusCode, string(body))
	}

	var entries []roadEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding road response: %w", err)
	}

	candidates := make([]Candidate, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		key := entry.Navn + "|" + entry.postalCode()
		if entry.Navn == "" || seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, Candidate{
			Kind:        KindNamedRoad,
			DisplayText: entry.Navn,
			Coord:       entry.point(),
			Source:      roadSourceName,
			Ref:         entry.ID,
			PostalCode:  entry.postalCode(),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return s.col.CompareString(candidates[i].DisplayText, candidates[j].DisplayText) < 0
	})
	return candidates, nil
}

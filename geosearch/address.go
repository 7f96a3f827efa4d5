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

// DefaultAddressBaseURL is the public endpoint of the national address
// registry.
const DefaultAddressBaseURL = "https://api.dataforsyningen.dk"

const addressSourceName = "adgangsadresser"

// Address is a structured access address as returned by the registry's
// flat representation.
type Address struct {
	RoadName         string  `json:"vejnavn"`
	HouseNumber      string  `json:"husnr"`
	PostalCode       string  `json:"postnr"`
	PostalName       string  `json:"postnrnavn"`
	MunicipalityCode string  `json:"kommunekode"`
	RoadCode         string  `json:"vejkode"`
	Lat              float64 `json:"y"`
	Lon              float64 `json:"x"`
}

// DisplayText renders the address the way the registry's own autocomplete
// formats it.
func (a Address) DisplayText() string {
	return fmt.Sprintf("%s %s, %s %s", a.RoadName, a.HouseNumber, a.PostalCode, a.PostalName)
}

// AddressSource searches the national address registry. Autocomplete hits
// carry no coordinate; a follow-up Detail fetch resolves the access point.
type AddressSource struct {
	client  *http.Client
	baseURL string
}

// NewAddressSource builds an adapter against the given registry endpoint.
// An empty baseURL selects the public one.
func NewAddressSource(client *http.Client, baseURL string) *AddressSource {
	if baseURL == "" {
		baseURL = DefaultAddressBaseURL
	}
	return &AddressSource{client: client, baseURL: baseURL}
}

func (s *AddressSource) Name() string {
	return addressSourceName
}

type autocompleteEntry struct {
	Tekst          string `json:"tekst"`
	Adgangsadresse struct {
		ID     string `json:"id"`
		Postnr string `json:"postnr"`
	} `json:"adgangsadresse"`
}

// Search queries the autocomplete endpoint. Results are two-step: Coord stays
// nil and Ref holds the registry id for Detail.
func (s *AddressSource) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("per_side", strconv.Itoa(limit))

	var entries []autocompleteEntry
	if err := s.get(ctx, "/adgangsadresser/autocomplete", params, &entries); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, entry := range entries {
		candidates = append(candidates, Candidate{
			Kind:        KindAddress,
			DisplayText: entry.Tekst,
			Source:      addressSourceName,
			Ref:         entry.Adgangsadresse.ID,
			PostalCode:  entry.Adgangsadresse.Postnr,
		})
	}
	return candidates, nil
}

type accessAddressDetail struct {
	Adgangspunkt struct {
		Koordinater []float64 `json:"koordinater"`
	} `json:"adgangspunkt"`
}

// Detail fetches the access point coordinate for an autocomplete hit.
func (s *AddressSource) Detail(ctx context.Context, ref string) (*spatial.Point, error) {
	var detail accessAddressDetail
	if err := s.get(ctx, "/adgangsadresser/"+url.PathEscape(ref), nil, &detail); err != nil {
		return nil, err
	}
	coords := detail.Adgangspunkt.Koordinater
	if len(coords) < 2 {
		return nil, NewSearchError(ErrorTypeUnknown, addressSourceName,
			fmt.Sprintf("access point for %q has no coordinate", ref), nil)
	}
	// The registry serializes positions as [lon, lat].
	return &spatial.Point{Lat: coords[1], Lng: coords[0]}, nil
}

// Reverse looks up the access address nearest to the given coordinate.
func (s *AddressSource) Reverse(ctx context.Context, lat, lon float64) (*Address, error) {
	params := url.Values{}
	params.Set("x", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("y", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("struktur", "flad")

	var addr Address
	if err := s.get(ctx, "/adgangsadresser/reverse", params, &addr); err != nil {
		return nil, err
	}
	if addr.RoadName == "" {
		return nil, nil
	}
	return &addr, nil
}

func (s *AddressSource) get(ctx context.Context, path string, params url.Values, out any) error {
	u := s.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", path, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return NewSearchError(ErrorTypeNetwork, addressSourceName, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewSearchError(ErrorTypeNetwork, addressSourceName, "reading response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ClassifyHTTPStatus(addressSourceName, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

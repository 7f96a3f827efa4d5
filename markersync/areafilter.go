// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package markersync

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AreaFilter restricts marker listings to a set of postal code areas. Terms
// are single codes ("5000"), inclusive ranges ("5000-5299"), or the word
// "all", which admits everything. An empty filter also admits everything.
type AreaFilter struct {
	all    bool
	ranges []postalRange
}

type postalRange struct {
	lo, hi int
}

// ParseAreaFilter builds a filter from its term list.
func ParseAreaFilter(terms []string) (AreaFilter, error) {
	var f AreaFilter
	if len(terms) == 0 {
		f.all = true
		return f, nil
	}
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if strings.EqualFold(term, "all") {
			f.all = true
			continue
		}
		lo, hi, ok := strings.Cut(term, "-")
		if !ok {
			hi = lo
		}
		loN, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return AreaFilter{}, fmt.Errorf("invalid postal code term %q: %w", term, err)
		}
		hiN, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return AreaFilter{}, fmt.Errorf("invalid postal code term %q: %w", term, err)
		}
		if hiN < loN {
			return AreaFilter{}, fmt.Errorf("inverted postal code range %q", term)
		}
		f.ranges = append(f.ranges, postalRange{lo: loN, hi: hiN})
	}
	return f, nil
}

// LoadAreaFilter reads a filter from a JSON config file of the form
// {"postalCodes": ["5000", "5100-5299"]}.
func LoadAreaFilter(path string) (AreaFilter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return AreaFilter{}, fmt.Errorf("reading area filter config: %w", err)
	}
	var config struct {
		PostalCodes []string `json:"postalCodes"`
	}
	if err := json.Unmarshal(raw, &config); err != nil {
		return AreaFilter{}, fmt.Errorf("decoding area filter config: %w", err)
	}
	return ParseAreaFilter(config.PostalCodes)
}

// Allows reports whether a marker with the given postal code passes the
// filter. Markers without a postal code always pass; hiding them would make
// foreign and free-floating markers invisible.
func (f AreaFilter) Allows(postalCode string) bool {
	if f.all || len(f.ranges) == 0 {
		return true
	}
	if postalCode == "" {
		return true
	}
	code, err := strconv.Atoi(strings.TrimSpace(postalCode))
	if err != nil {
		return true
	}
	for _, r := range f.ranges {
		if code >= r.lo && code <= r.hi {
			return true
		}
	}
	return false
}

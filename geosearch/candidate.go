// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

// Package geosearch aggregates location candidates from several independent
// registries and resolves free text to coordinates through a prioritized
// fallback chain.
package geosearch

import (
	"context"

	"github.com/AndersKabel/danmarkskort/spatial"
)

// Kind identifies which registry variant a candidate came from. The set is
// closed; consumers dispatch with exhaustive switches so a new variant forces
// review of every call site.
type Kind int

const (
	// KindAddress is an access address from the national address registry.
	KindAddress Kind = iota
	// KindPlaceName is a named place from the place-name registry.
	KindPlaceName
	// KindNamedRoad is a road from the named-road registry.
	KindNamedRoad
	// KindLocalPoint is a point from the locally cached dataset
	// (rescue posts and curated places).
	KindLocalPoint
	// KindForeignAddress is a hit from the global geocoder.
	KindForeignAddress
)

// String returns the glyph-free name used in logs and CLI output.
func (k Kind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindPlaceName:
		return "placename"
	case KindNamedRoad:
		return "road"
	case KindLocalPoint:
		return "localpoint"
	case KindForeignAddress:
		return "foreign"
	default:
		return "unknown"
	}
}

// NameLike reports whether the kind belongs to the name tier, which ranks
// before the address tier regardless of match quality.
func (k Kind) NameLike() bool {
	switch k {
	case KindPlaceName, KindNamedRoad, KindLocalPoint:
		return true
	case KindAddress, KindForeignAddress:
		return false
	default:
		return false
	}
}

// Candidate is a normalized, rankable search result from any source adapter.
type Candidate struct {
	Kind        Kind
	DisplayText string
	// Coord is nil until a detail fetch resolves it; sources that know the
	// coordinate at search time fill it in directly.
	Coord  *spatial.Point
	Source string
	// Ref is the source-local id used by two-step sources for the
	// detail fetch.
	Ref        string
	PostalCode string
}

// Source is the uniform contract every registry adapter implements.
// A failing source returns an error; the aggregator degrades it to an
// empty contribution.
type Source interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// DetailSource is implemented by two-step sources whose search results carry
// no coordinate until a follow-up fetch.
type DetailSource interface {
	Source
	Detail(ctx context.Context, ref string) (*spatial.Point, error)
}

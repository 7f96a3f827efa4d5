// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package geosearch

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/AndersKabel/danmarkskort/spatial"
)

// reverseCacheTTL bounds how long a reverse lookup is reused before the
// registries are asked again.
const reverseCacheTTL = 24 * time.Hour

// Resolver turns free text into a coordinate through a fixed fallback chain:
// an already-known coordinate, a coordinate literal, the domestic address
// registry, and finally the global geocoder. It never fails; exhausting the
// chain yields nil.
type Resolver struct {
	address *AddressSource
	foreign *ForeignSource
}

// NewResolver builds a resolver. foreign may be nil or unconfigured, which
// simply shortens the chain.
func NewResolver(address *AddressSource, foreign *ForeignSource) *Resolver {
	return &Resolver{address: address, foreign: foreign}
}

// Resolve walks the chain for text. cached, when non-nil, wins outright and
// no source is contacted; a coordinate literal likewise resolves without
// network access.
func (r *Resolver) Resolve(ctx context.Context, text string, cached *spatial.Point) *spatial.Point {
	if cached != nil {
		return cached
	}
	if p := spatial.ParsePoint(text); p != nil {
		return p
	}

	if r.address != nil {
		if p := r.resolveDomestic(ctx, text); p != nil {
			return p
		}
	}
	if r.foreign != nil && r.foreign.Configured() {
		candidates, err := r.foreign.Search(ctx, text, 1)
		if err != nil {
			log.Warn().Err(err).Str("text", text).Msg("foreign resolve failed")
		} else if len(candidates) > 0 && candidates[0].Coord != nil {
			return candidates[0].Coord
		}
	}
	return nil
}

func (r *Resolver) resolveDomestic(ctx context.Context, text string) *spatial.Point {
	candidates, err := r.address.Search(ctx, text, 1)
	if err != nil {
		log.Warn().Err(err).Str("text", text).Msg("address resolve failed")
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}
	p, err := r.address.Detail(ctx, candidates[0].Ref)
	if err != nil {
		log.Warn().Err(err).Str("ref", candidates[0].Ref).Msg("address detail failed")
		return nil
	}
	return p
}

// ReverseResult describes what sits at a coordinate.
type ReverseResult struct {
	Label string
	// Address is set for hits from the domestic registry.
	Address *Address
	Foreign bool
}

// ReverseResolver maps coordinates back to addresses, caching each answer for
// a day so repeated lookups of the same spot stay local.
type ReverseResolver struct {
	address *AddressSource
	foreign *ForeignSource
	cache   *cache.Cache
}

// NewReverseResolver builds a reverse resolver. foreign may be nil.
func NewReverseResolver(address *AddressSource, foreign *ForeignSource) *ReverseResolver {
	return &ReverseResolver{
		address: address,
		foreign: foreign,
		cache:   cache.New(reverseCacheTTL, reverseCacheTTL/2),
	}
}

// Reverse describes the given coordinate. Domestic coordinates go to the
// address registry, everything else to the global geocoder; when both come up
// empty the raw coordinate is formatted as the label.
func (r *ReverseResolver) Reverse(ctx context.Context, p spatial.Point) ReverseResult {
	key := fmt.Sprintf("%.5f,%.5f", spatial.Round5(p.Lat), spatial.Round5(p.Lng))
	if hit, ok := r.cache.Get(key); ok {
		return hit.(ReverseResult)
	}

	result := r.lookup(ctx, p)
	r.cache.Set(key, result, cache.DefaultExpiration)
	return result
}

func (r *ReverseResolver) lookup(ctx context.Context, p spatial.Point) ReverseResult {
	if p.InDenmark() && r.address != nil {
		addr, err := r.address.Reverse(ctx, p.Lat, p.Lng)
		if err != nil {
			log.Warn().Err(err).Stringer("point", p).Msg("domestic reverse failed")
		} else if addr != nil {
			return ReverseResult{Label: addr.DisplayText(), Address: addr}
		}
	}
	if r.foreign != nil && r.foreign.Configured() {
		candidate, err := r.foreign.Reverse(ctx, p.Lat, p.Lng)
		if err != nil {
			log.Warn().Err(err).Stringer("point", p).Msg("foreign reverse failed")
		} else if candidate != nil {
			return ReverseResult{Label: candidate.DisplayText, Foreign: true}
		}
	}
	return ReverseResult{
		Label: fmt.Sprintf("Koordinater: %.5f, %.5f", p.Lat, p.Lng),
	}
}

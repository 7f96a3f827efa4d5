// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package geosearch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/AndersKabel/danmarkskort/utils/debounce"
	"github.com/AndersKabel/danmarkskort/utils/textutil"
)

// MinQueryLen is the shortest query the aggregator will dispatch. Anything
// shorter yields an empty result without touching any source.
const MinQueryLen = 2

// DefaultPerSource caps how many candidates each source contributes.
const DefaultPerSource = 30

// DefaultDebounce is the settle time interactive sessions wait before
// dispatching a query.
const DefaultDebounce = 300 * time.Millisecond

// SearchMode selects which source set a query fans out to.
type SearchMode int

const (
	// ModeDomestic queries the national registries and the local dataset.
	ModeDomestic SearchMode = iota
	// ModeForeign queries only the global geocoder.
	ModeForeign
)

// Aggregator fans a query out to all configured sources concurrently, merges
// their contributions, and ranks the combined list. Source failures degrade
// to empty contributions; the merged result is always usable.
type Aggregator struct {
	domestic  []Source
	foreign   []Source
	perSource int
}

// AggregatorOption adjusts an aggregator at construction.
type AggregatorOption func(*Aggregator)

// OptionPerSource caps how many candidates each source may contribute.
// Values below one keep DefaultPerSource.
func OptionPerSource(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.perSource = n
		}
	}
}

// NewAggregator builds an aggregator over the given source sets. Nil entries
// are ignored.
func NewAggregator(domestic, foreign []Source, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{perSource: DefaultPerSource}
	for _, s := range domestic {
		if s != nil {
			a.domestic = append(a.domestic, s)
		}
	}
	for _, s := range foreign {
		if s != nil {
			a.foreign = append(a.foreign, s)
		}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Search runs the fan-out for one query. Queries shorter than MinQueryLen
// return an empty slice without dispatching to any source.
func (a *Aggregator) Search(ctx context.Context, query string, mode SearchMode) []Candidate {
	if len([]rune(query)) < MinQueryLen {
		return nil
	}

	sources := a.domestic
	if mode == ModeForeign {
		sources = a.foreign
	}

	slots := make([][]Candidate, len(sources))
	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, source Source) {
			defer wg.Done()
			candidates, err := source.Search(ctx, query, a.perSource)
			if err != nil {
				log.Warn().Err(err).Str("source", source.Name()).Str("query", query).
					Msg("search source failed")
				return
			}
			slots[i] = candidates
		}(i, source)
	}
	wg.Wait()

	var merged []Candidate
	for _, chunk := range slots {
		merged = append(merged, chunk...)
	}
	sortCandidates(merged, query)
	return merged
}

// sortCandidates orders candidates by tier (name-like kinds first), then by
// how well the display text matches the query. The sort is stable, so ties
// keep source order.
func sortCandidates(candidates []Candidate, query string) {
	folded := textutil.Fold(query)
	keys := make([][2]int, len(candidates))
	for i, c := range candidates {
		tier := 1
		if c.Kind.NameLike() {
			tier = 0
		}
		keys[i] = [2]int{tier, textutil.MatchClassFolded(c.DisplayText, folded)}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
}

// Results is one delivery from an interactive session.
type Results struct {
	Query      string
	Candidates []Candidate
}

// Session wraps an Aggregator for interactive use: queries settle through a
// debounce window, and a delivery is dropped when a newer query has been
// typed meanwhile.
type Session struct {
	agg     *Aggregator
	sched   *debounce.Scheduler
	deliver func(Results)

	mu  sync.Mutex
	seq uint64
}

// NewSession builds a session delivering results through the given callback.
// The callback runs on the scheduler's timer goroutine.
func NewSession(agg *Aggregator, delay time.Duration, deliver func(Results)) *Session {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Session{
		agg:     agg,
		sched:   debounce.NewScheduler(delay),
		deliver: deliver,
	}
}

// Update registers the latest query text. Short queries cancel any pending
// dispatch and deliver an empty result immediately; anything else is
// scheduled behind the debounce window.
func (s *Session) Update(ctx context.Context, query string, mode SearchMode) {
	s.mu.Lock()
	s.seq++
	mine := s.seq
	s.mu.Unlock()

	if len([]rune(query)) < MinQueryLen {
		s.sched.Cancel("query")
		if s.current() == mine {
			s.deliver(Results{Query: query})
		}
		return
	}

	s.sched.Schedule("query", func() {
		candidates := s.agg.Search(ctx, query, mode)
		if s.current() != mine {
			// A newer query superseded this one while it was in flight.
			return
		}
		s.deliver(Results{Query: query, Candidates: candidates})
	})
}

// Close drops any pending dispatch.
func (s *Session) Close() {
	s.sched.Stop()
}

func (s *Session) current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

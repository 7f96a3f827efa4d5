// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package geosearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/rs/zerolog/log"

	"github.com/AndersKabel/danmarkskort/spatial"
	"github.com/AndersKabel/danmarkskort/utils/textutil"
)

const localPointSourceName = "localpoints"

// rescuePostLabel prefixes rescue-post numbers in display text, matching the
// labelling used on the posts themselves.
const rescuePostLabel = "Redningsnummer"

// pointTolerance pads point entries into degenerate rectangles for the
// spatial index.
const pointTolerance = 0.0001

// metersPerDegree is the approximate length of one degree of latitude.
const metersPerDegree = 111_320.0

// LocalPoint is an entry of the locally cached dataset: either a numbered
// rescue post from the coastal dataset or a curated place.
type LocalPoint struct {
	Name    string
	Coord   spatial.Point
	Curated bool
}

// DisplayText renders the entry for candidate lists.
func (p LocalPoint) DisplayText() string {
	if p.Curated {
		return p.Name
	}
	return fmt.Sprintf("%s: %s", rescuePostLabel, p.Name)
}

// Loader produces the rescue-post dataset. It is invoked on first use and
// again whenever the cached copy goes stale.
type Loader func(ctx context.Context) ([]LocalPoint, error)

type rescueFeatureCollection struct {
	Features []struct {
		Properties struct {
			StrandNr string `json:"StrandNr"`
		} `json:"properties"`
		Geometry geometry `json:"geometry"`
	} `json:"features"`
}

// ParseRescuePosts decodes a GeoJSON feature collection of rescue posts.
// Features without a post number or a usable position are skipped.
func ParseRescuePosts(r io.Reader) ([]LocalPoint, error) {
	var fc rescueFeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decoding rescue-post collection: %w", err)
	}
	points := make([]LocalPoint, 0, len(fc.Features))
	for _, feature := range fc.Features {
		if feature.Properties.StrandNr == "" {
			continue
		}
		pos := firstPosition(feature.Geometry.Coordinates)
		if pos == nil {
			continue
		}
		points = append(points, LocalPoint{
			Name:  feature.Properties.StrandNr,
			Coord: *pos,
		})
	}
	return points, nil
}

// FileLoader loads the rescue-post dataset from a GeoJSON file on disk.
func FileLoader(path string) Loader {
	return func(ctx context.Context) ([]LocalPoint, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening rescue-post dataset: %w", err)
		}
		defer f.Close()
		return ParseRescuePosts(f)
	}
}

// indexedPoint adapts a LocalPoint to the spatial index.
type indexedPoint struct {
	point LocalPoint
	rect  rtreego.Rect
}

func (p *indexedPoint) Bounds() rtreego.Rect {
	return p.rect
}

// LocalPointSource serves the locally cached dataset: rescue posts loaded
// through a Loader with a freshness window, plus curated places supplied at
// construction. Lookups by name and by area both run without network access.
type LocalPointSource struct {
	loader  Loader
	curated []LocalPoint
	ttl     time.Duration

	mu       sync.Mutex
	points   []LocalPoint
	tree     *rtreego.Rtree
	loadedAt time.Time
}

// NewLocalPointSource builds the source. A zero ttl keeps the first loaded
// dataset for the lifetime of the process.
func NewLocalPointSource(loader Loader, curated []LocalPoint, ttl time.Duration) *LocalPointSource {
	for i := range curated {
		curated[i].Curated = true
	}
	return &LocalPointSource{loader: loader, curated: curated, ttl: ttl}
}

func (s *LocalPointSource) Name() string {
	return localPointSourceName
}

// ensure loads or refreshes the dataset under the lock. A failed refresh
// keeps the stale copy; a failed first load surfaces the error.
func (s *LocalPointSource) ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := !s.loadedAt.IsZero() && (s.ttl <= 0 || time.Since(s.loadedAt) < s.ttl)
	if fresh {
		return nil
	}

	loaded, err := s.loader(ctx)
	if err != nil {
		if s.tree != nil {
			log.Warn().Err(err).Msg("rescue-post refresh failed, serving stale dataset")
			return nil
		}
		return err
	}

	all := make([]LocalPoint, 0, len(loaded)+len(s.curated))
	all = append(all, loaded...)
	all = append(all, s.curated...)

	entries := make([]rtreego.Spatial, 0, len(all))
	for _, p := range all {
		rect, err := rtreego.NewRect(
			rtreego.Point{p.Coord.Lat - pointTolerance, p.Coord.Lng - pointTolerance},
			[]float64{2 * pointTolerance, 2 * pointTolerance})
		if err != nil {
			continue
		}
		entries = append(entries, &indexedPoint{point: p, rect: rect})
	}

	s.points = all
	s.tree = rtreego.NewTree(2, 25, 50, entries...)
	s.loadedAt = time.Now()
	log.Debug().Int("points", len(all)).Msg("local point dataset loaded")
	return nil
}

// Search matches the query against post numbers and curated names.
func (s *LocalPointSource) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, NewSearchError(ErrorTypeUnknown, localPointSourceName, "dataset unavailable", err)
	}

	s.mu.Lock()
	points := s.points
	s.mu.Unlock()

	candidates := make([]Candidate, 0, limit)
	for _, p := range points {
		if textutil.MatchClass(p.Name, query) > 2 {
			continue
		}
		coord := p.Coord
		candidates = append(candidates, Candidate{
			Kind:        KindLocalPoint,
			DisplayText: p.DisplayText(),
			Coord:       &coord,
			Source:      localPointSourceName,
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

// Within returns the dataset entries inside radius meters of center, ordered
// by distance.
func (s *LocalPointSource) Within(ctx context.Context, center spatial.Point, radius float64) ([]LocalPoint, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	tree := s.tree
	s.mu.Unlock()

	dLat := radius / metersPerDegree
	dLng := radius / (metersPerDegree * math.Cos(center.Lat*math.Pi/180))
	rect, err := rtreego.NewRect(
		rtreego.Point{center.Lat - dLat, center.Lng - dLng},
		[]float64{2 * dLat, 2 * dLng})
	if err != nil {
		return nil, fmt.Errorf("building query rectangle: %w", err)
	}

	matches := tree.SearchIntersect(rect)
	result := make([]LocalPoint, 0, len(matches))
	for _, m := range matches {
		entry := m.(*indexedPoint)
		if center.HaversineDistance(&entry.point.Coord) <= radius {
			result = append(result, entry.point)
		}
	}
	sortByDistance(result, center)
	return result, nil
}

// Nearest returns the k dataset entries closest to center.
func (s *LocalPointSource) Nearest(ctx context.Context, center spatial.Point, k int) ([]LocalPoint, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	tree := s.tree
	s.mu.Unlock()

	matches := tree.NearestNeighbors(k, rtreego.Point{center.Lat, center.Lng})
	result := make([]LocalPoint, 0, len(matches))
	for _, m := range matches {
		if m == nil {
			continue
		}
		result = append(result, m.(*indexedPoint).point)
	}
	return result, nil
}

func sortByDistance(points []LocalPoint, center spatial.Point) {
	sort.SliceStable(points, func(i, j int) bool {
		return center.HaversineDistance(&points[i].Coord) <
			center.HaversineDistance(&points[j].Coord)
	})
}

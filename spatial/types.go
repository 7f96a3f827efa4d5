// Copyright 2025 The Danmarkskort Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"database/sql/driver"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

const earthRadius = 6371e3 // meters

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// Value implements the driver.Valuer interface for database serialization.
func (p Point) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *Point) Scan(value interface{}) error {
	if value == nil {
		p.Lat, p.Lng = 0, 0

		return nil
	}

	switch v := value.(type) {
	case []byte:
		// The format from DuckDB is "POINT (lng lat)"
		_, err := fmt.Sscanf(string(v), "POINT (%f %f)", &p.Lng, &p.Lat)

		return err
	case map[string]interface{}:
		x, okX := v["x"].(float64)
		y, okY := v["y"].(float64)

		if !okX || !okY {
			return fmt.Errorf("spatial: invalid map for point: expected 'x' and 'y' float64 fields, got %+v", v)
		}

		p.Lng = x
		p.Lat = y

		return nil
	default:
		return fmt.Errorf("spatial: unsupported type for Point scan: %T", value)
	}
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// Round5 rounds a coordinate component to five decimals, roughly one meter
// of precision. Marker identity is derived from rounded coordinates so that
// floating-point jitter never yields two identities for the same spot.
func Round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// InDenmark reports whether the point falls inside a coarse bounding box
// around Denmark. Good enough to pick the domestic or the global geocoder,
// not a real border check.
func (p Point) InDenmark() bool {
	return p.Lat >= 54.4 && p.Lat <= 57.9 && p.Lng >= 7.5 && p.Lng <= 15.5
}

var coordPattern = regexp.MustCompile(`^(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)$`)

// ParsePoint interprets text of the form "<lat>, <lon>" as a literal
// coordinate. It returns nil when the text is not a coordinate literal,
// letting callers fall through to geocoding.
func ParsePoint(text string) *Point {
	m := coordPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}

	lng, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil
	}

	return &Point{Lat: lat, Lng: lng}
}

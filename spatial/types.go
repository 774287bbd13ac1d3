// Copyright 2026 The Ridemap Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"database/sql/driver"
	"fmt"
	"math"
)

// EarthRadiusKm is the Earth's mean radius used to convert between
// angular and physical distances.
const EarthRadiusKm = 6371.0

// Point represents a geographical point with latitude and longitude in degrees.
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

// AngularDistance returns the great-circle distance between two points as an
// angle in radians. This is the unit convention used by Index and by the
// clustering layer: radii and epsilon values are angular distances.
func (p Point) AngularDistance(other Point) float64 {
	return haversine(
		p.Lat*math.Pi/180, p.Lng*math.Pi/180,
		other.Lat*math.Pi/180, other.Lng*math.Pi/180,
	)
}

// HaversineDistance calculates the distance between two points on Earth in kilometers.
func (p Point) HaversineDistance(other Point) float64 {
	return Kilometers(p.AngularDistance(other))
}

// Kilometers converts an angular distance in radians to kilometers.
func Kilometers(rad float64) float64 {
	return rad * EarthRadiusKm
}

// Radians converts a distance in kilometers to an angular distance in radians.
func Radians(km float64) float64 {
	return km / EarthRadiusKm
}

// haversine computes the angular distance between two points given in
// radians. The asin argument is clamped to 1 since floating-point rounding
// can push it slightly past the domain boundary for near-antipodal points.
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	sinLat := math.Sin((lat2 - lat1) / 2)
	sinLng := math.Sin((lng2 - lng1) / 2)

	a := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	s := math.Sqrt(a)
	if s > 1 {
		s = 1
	}

	return 2 * math.Asin(s)
}

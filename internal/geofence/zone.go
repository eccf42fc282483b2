// Package geofence restricts scans to a physical site using a coarse
// latitude/longitude box around a target point.
package geofence

import "math"

// DefaultTolerance is roughly 20 meters at the equator.
const DefaultTolerance = 0.0002

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the point lies within the legal coordinate ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// WithinZone compares a coordinate against a target using an axis-aligned
// bounding box. It is not a geodesic radius.
func WithinZone(lat, lon, targetLat, targetLon, toleranceDeg float64) bool {
	return math.Abs(lat-targetLat) <= toleranceDeg && math.Abs(lon-targetLon) <= toleranceDeg
}

// Zone is a target point plus the box half-width in degrees.
type Zone struct {
	Center    Point
	Tolerance float64
}

// NewZone builds a zone, falling back to DefaultTolerance when tolerance is
// not positive.
func NewZone(center Point, tolerance float64) Zone {
	if tolerance <= 0 || math.IsNaN(tolerance) {
		tolerance = DefaultTolerance
	}
	return Zone{Center: center, Tolerance: tolerance}
}

// Contains reports whether p falls inside the zone box.
func (z Zone) Contains(p Point) bool {
	if !p.Valid() {
		return false
	}
	return WithinZone(p.Latitude, p.Longitude, z.Center.Latitude, z.Center.Longitude, z.Tolerance)
}

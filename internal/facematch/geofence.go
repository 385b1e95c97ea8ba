package facematch

import "math"

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// LocationPoint is a WGS84 coordinate in degrees.
type LocationPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Anchor is an authorized reference location. A nil coordinate marks an
// incomplete row that must be ignored by the range check.
type Anchor struct {
	ID        int64
	Name      string
	Latitude  *float64
	Longitude *float64
}

// Point returns the anchor as a LocationPoint, ok is false when a coordinate is missing.
func (a Anchor) Point() (LocationPoint, bool) {
	if a.Latitude == nil || a.Longitude == nil {
		return LocationPoint{}, false
	}
	return LocationPoint{Latitude: *a.Latitude, Longitude: *a.Longitude}, true
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// HaversineDistance returns the great-circle distance between two points in meters.
func HaversineDistance(a, b LocationPoint) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// IsWithinRange reports whether point lies within radiusMeters of any anchor.
// Anchors without both coordinates are skipped; an empty list is never in range.
func IsWithinRange(point LocationPoint, anchors []Anchor, radiusMeters float64) bool {
	for _, anchor := range anchors {
		p, ok := anchor.Point()
		if !ok {
			continue
		}
		if HaversineDistance(point, p) <= radiusMeters {
			return true
		}
	}
	return false
}

// Package geo holds the coordinate type shared by the estimator and the
// great-circle distance used to score estimates against ground truth.
package geo

import (
	"fmt"
	"math"
	"strconv"
)

const (
	// EarthRadiusKm is the mean Earth radius used by DistanceMiles.
	EarthRadiusKm = 6371.0
	// MilesPerKm converts kilometres to statute miles.
	MilesPerKm = 0.621371
)

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IsFinite reports whether both components are real numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		!math.IsInf(p.Lat, 0) && !math.IsInf(p.Lon, 0)
}

func (p Point) String() string {
	return fmt.Sprintf("(%s, %s)",
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
		strconv.FormatFloat(p.Lon, 'f', -1, 64))
}

// DistanceMiles returns the haversine great-circle distance between a and b.
// Antipodal inputs are not special-cased.
func DistanceMiles(a, b Point) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLon := radians(b.Lon - a.Lon)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*sinLon*sinLon

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c * MilesPerKm
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

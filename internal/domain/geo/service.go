// internal/domain/geo/service.go

package geo

import (
	"context"
	"math"
)

// Coordinates represents a resolved geographic point
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocoder resolves free-text locations to coordinates
type Geocoder interface {
	// Resolve returns the coordinates for a location, or nil when the
	// location could not be resolved. It never returns an error: lookup
	// failures are logged and reported as absent.
	Resolve(ctx context.Context, location string) *Coordinates
}

// DistanceMeters calculates the great-circle distance between two points
func DistanceMeters(a, b Coordinates) float64 {
	// Implementation of the Haversine formula for distance on a sphere
	const earthRadiusM = 6371000.0

	// Convert latitude and longitude from degrees to radians
	lat1 := a.Lat * math.Pi / 180.0
	lon1 := a.Lon * math.Pi / 180.0
	lat2 := b.Lat * math.Pi / 180.0
	lon2 := b.Lon * math.Pi / 180.0

	dLat := lat2 - lat1
	dLon := lon2 - lon1

	hSin := math.Sin(dLat / 2)
	hSin *= hSin

	vSin := math.Sin(dLon / 2)
	vSin *= vSin

	h := hSin + math.Cos(lat1)*math.Cos(lat2)*vSin

	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

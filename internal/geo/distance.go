// Package geo holds the great-circle distance math used by proximity rules.
package geo

import (
	"math"

	"github.com/satlas/satlas-sync/internal/model"
)

// EarthRadiusFeet is the mean Earth radius expressed in feet.
const EarthRadiusFeet = 20902231.0

// DistanceFeet returns the haversine great-circle distance between two
// coordinates, in feet.
func DistanceFeet(a, b model.LatLng) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusFeet * c
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

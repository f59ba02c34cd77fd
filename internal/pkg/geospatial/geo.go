// Package geospatial holds the pure geo math used by the comps search:
// radius-to-bounding-box conversion and great-circle distance. Everything
// here is a pure function over its arguments; range validation belongs to
// the caller.
package geospatial

import (
	"math"

	"github.com/rentsignal/aircomps/internal/core/domain"
)

const (
	// MilesPerDegree is the flat-earth approximation: 1 degree of latitude
	// spans about 69 miles everywhere; 1 degree of longitude spans 69 miles
	// only at the equator.
	MilesPerDegree = 69.0

	earthRadiusKm = 6371.0
	metersPerMile = 1609.344

	// MaxCorrectedLat bounds the latitude accepted by CorrectedBox. Beyond
	// it the cos(lat) term makes the longitude offset diverge.
	MaxCorrectedLat = 89.9
)

// MilesToDegrees converts a distance in miles to degrees of latitude.
func MilesToDegrees(mi float64) float64 {
	return mi / MilesPerDegree
}

// FlatBox computes a bounding box using the same degree offset for latitude
// and longitude. Simple, but the east-west extent shrinks in real ground
// distance away from the equator.
func FlatBox(center domain.GeoPoint, radiusMiles float64) domain.Bounds {
	deg := MilesToDegrees(radiusMiles)
	return domain.Bounds{
		NELat: center.Lat + deg,
		NELon: center.Lon + deg,
		SWLat: center.Lat - deg,
		SWLon: center.Lon - deg,
	}
}

// CorrectedBox computes a bounding box whose longitude offset is scaled by
// 1/cos(lat), keeping the east-west ground distance roughly constant at any
// latitude. Callers must keep |lat| <= MaxCorrectedLat; near the poles the
// longitude span diverges.
func CorrectedBox(center domain.GeoPoint, radiusMiles float64) domain.Bounds {
	latDeg := MilesToDegrees(radiusMiles)
	lonDeg := latDeg / math.Cos(toRad(center.Lat))
	return domain.Bounds{
		NELat: center.Lat + latDeg,
		NELon: center.Lon + lonDeg,
		SWLat: center.Lat - latDeg,
		SWLon: center.Lon - lonDeg,
	}
}

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// HaversineMiles is Haversine converted to statute miles, used to annotate
// each comp with its distance from the search center.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	return Haversine(lat1, lon1, lat2, lon2) / metersPerMile
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

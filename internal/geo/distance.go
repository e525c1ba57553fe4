// Package geo computes great-circle distances between WGS84 coordinates.
package geo

import (
	"math"

	"fleet_tracker/internal/apperr"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// Haversine returns the great-circle distance in kilometres between two
// points. Callers validate coordinates first; see ValidateCoordinate.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push a a hair past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// ValidateCoordinate rejects NaN, infinities and values outside
// [-90,90] latitude / [-180,180] longitude.
func ValidateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return apperr.Invalid("lat", "must be within [-90, 90]")
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return apperr.Invalid("lon", "must be within [-180, 180]")
	}
	return nil
}

// Round2 rounds a distance to two decimals for presentation.
func Round2(km float64) float64 {
	return math.Round(km*100) / 100
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

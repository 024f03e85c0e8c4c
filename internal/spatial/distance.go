package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// GreatCircleDistance calculates the distance between two points in meters using the
// spherical law of cosines:
//
//	R * acos(cos(lat1)*cos(lat2)*cos(lon2-lon1) + sin(lat1)*sin(lat2))
//
// The acos argument is clamped to [-1, 1]; rounding can push it slightly past 1 for
// identical points, which would otherwise yield NaN.
func GreatCircleDistance(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	lat1Rad := toRadians(lat1)
	lat2Rad := toRadians(lat2)
	lonDiff := toRadians(lon2) - toRadians(lon1)

	cosine := math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Cos(lonDiff) +
		math.Sin(lat1Rad)*math.Sin(lat2Rad)

	return EarthRadiusMeters * math.Acos(clamp(cosine, -1, 1))
}

// HaversineDistance calculates the great-circle distance between two points in meters
// using the Haversine formula
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Round rounds v to the given number of decimal places
func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)

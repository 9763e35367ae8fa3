// Package geo provides the great-circle math used for geofence containment.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius.
const EarthRadiusMeters = 6371008.8

type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Distance returns the haversine distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Within reports whether p lies inside the circle of radius meters around center.
func Within(p, center Point, radius float64) bool {
	return Distance(p, center) <= radius
}

// Offset returns the point reached by moving north and east meters from p.
// Accurate enough for the short distances used in simulations and tests.
func Offset(p Point, north, east float64) Point {
	dLat := north / EarthRadiusMeters
	dLng := east / (EarthRadiusMeters * math.Cos(radians(p.Lat)))
	return Point{
		Lat: p.Lat + dLat*180/math.Pi,
		Lng: p.Lng + dLng*180/math.Pi,
	}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

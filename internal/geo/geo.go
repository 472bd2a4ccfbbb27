// Package geo holds the observer location and the great-circle math used to
// derive distances to tracked aircraft.
package geo

import "math"

const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the WGS84 mean radius
	EarthRadiusKm = 6371.0
)

// Point is a WGS84 position in decimal degrees
type Point struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// DistanceKm returns the haversine great-circle distance between two points
func DistanceKm(from, to Point) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	dLat := (to.Latitude - from.Latitude) * DegreesToRadians
	dLon := (to.Longitude - from.Longitude) * DegreesToRadians

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Destination returns the point reached by travelling distanceKm from p on
// the given initial bearing (degrees from true north)
func Destination(p Point, bearing, distanceKm float64) Point {
	lat1 := p.Latitude * DegreesToRadians
	lon1 := p.Longitude * DegreesToRadians
	brg := bearing * DegreesToRadians
	d := distanceKm / EarthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(math.Sin(brg)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))

	lon := lon2 * RadiansToDegrees
	lon = math.Mod(lon+540, 360) - 180

	return Point{Latitude: lat2 * RadiansToDegrees, Longitude: lon}
}

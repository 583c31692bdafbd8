// Package geom holds the geographic helpers of the lap timing engine:
// great-circle distance and the segment crossing test used for line
// detection. Crossing tests run on a local planar approximation which is
// accurate enough for the few hundred meters a track line test spans.
package geom

import (
	"math"

	"github.com/racelogger/laptimer-go/pkg/model"
)

// EarthRadiusM is the mean earth radius used for all conversions.
const EarthRadiusM = 6371000.0

const epsilon = 1e-9

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b model.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

type planar struct {
	x, y float64
}

// project converts p into meters relative to origin using an equirectangular
// approximation around the origin latitude.
func project(p, origin model.GeoPoint) planar {
	lat0 := origin.Lat * math.Pi / 180
	return planar{
		x: (p.Lon - origin.Lon) * math.Pi / 180 * math.Cos(lat0) * EarthRadiusM,
		y: (p.Lat - origin.Lat) * math.Pi / 180 * EarthRadiusM,
	}
}

// cross is the z component of (b-a) x (c-a)
func cross(a, b, c planar) float64 {
	return (b.x-a.x)*(c.y-a.y) - (b.y-a.y)*(c.x-a.x)
}

func orientation(a, b, c planar) int {
	v := cross(a, b, c)
	if v > epsilon {
		return 1
	}
	if v < -epsilon {
		return -1
	}
	return 0
}

// onSegment reports whether c (collinear with a-b) lies within the
// bounding box of a-b.
func onSegment(a, b, c planar) bool {
	return c.x <= math.Max(a.x, b.x)+epsilon && c.x >= math.Min(a.x, b.x)-epsilon &&
		c.y <= math.Max(a.y, b.y)+epsilon && c.y >= math.Min(a.y, b.y)-epsilon
}

// SegmentsCross reports whether the path p1->p2 crosses the line l. Touching
// an endpoint counts as a crossing.
func SegmentsCross(p1, p2 model.GeoPoint, l model.TrackLine) bool {
	// project around the path midpoint to keep distortion symmetric
	origin := model.GeoPoint{
		Lat: (p1.Lat + p2.Lat) / 2,
		Lon: (p1.Lon + p2.Lon) / 2,
	}
	a := project(p1, origin)
	b := project(p2, origin)
	c := project(l.A, origin)
	d := project(l.B, origin)

	o1 := orientation(a, b, c)
	o2 := orientation(a, b, d)
	o3 := orientation(c, d, a)
	o4 := orientation(c, d, b)

	if o1 != o2 && o3 != o4 {
		return true
	}
	// collinear / touching cases
	if o1 == 0 && onSegment(a, b, c) {
		return true
	}
	if o2 == 0 && onSegment(a, b, d) {
		return true
	}
	if o3 == 0 && onSegment(c, d, a) {
		return true
	}
	if o4 == 0 && onSegment(c, d, b) {
		return true
	}
	return false
}

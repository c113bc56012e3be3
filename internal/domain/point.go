package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrOutOfRange is returned when a coordinate falls outside WGS84 bounds.
var ErrOutOfRange = errors.New("coordinate out of range")

// Point is a named location in WGS84 decimal degrees.
type Point struct {
	Name string
	Lat  float64
	Lon  float64
}

// NewPoint builds a validated Point.
func NewPoint(name string, lat, lon float64) (Point, error) {
	p := Point{Name: name, Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks latitude is within [-90, 90] and longitude within [-180, 180].
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v must be between -90 and 90", ErrOutOfRange, p.Lat)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v must be between -180 and 180", ErrOutOfRange, p.Lon)
	}
	return nil
}

// RankedResult pairs a candidate point with its distance from the reference.
type RankedResult struct {
	Point      Point
	DistanceKm float64
}

// Centroid returns the arithmetic mean of the given points' coordinates.
// The second return value is false when points is empty.
func Centroid(points []Point) (lat, lon float64, ok bool) {
	if len(points) == 0 {
		return 0, 0, false
	}
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(points))
	return lat / n, lon / n, true
}

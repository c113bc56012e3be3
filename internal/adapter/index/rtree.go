// Package index provides an R-tree over candidate points so radius queries
// only measure exact distances for points inside a bounding box.
package index

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"

	"go.ngs.io/nearest-api/internal/domain"
)

const (
	minChildren = 25
	maxChildren = 50

	// Width of the degenerate rectangle stored for each point.
	pointTolerance = 1e-9
	// Degrees added around every search box to absorb rounding.
	searchMargin = 1e-6
)

type item struct {
	rect rtreego.Rect
	idx  int
}

func (it *item) Bounds() rtreego.Rect {
	return it.rect
}

// Index is an immutable R-tree over a slice of points, keyed by slice position.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// New bulk-loads an index over points. Point i is reported as index i.
func New(points []domain.Point) *Index {
	objs := make([]rtreego.Spatial, 0, len(points))
	for i, p := range points {
		// x = longitude, y = latitude
		rect, err := rtreego.NewRect(rtreego.Point{p.Lon, p.Lat}, []float64{pointTolerance, pointTolerance})
		if err != nil {
			continue
		}
		objs = append(objs, &item{rect: rect, idx: i})
	}
	return &Index{
		tree: rtreego.NewTree(2, minChildren, maxChildren, objs...),
		size: len(points),
	}
}

// Size returns the number of indexed points.
func (ix *Index) Size() int {
	return ix.size
}

// Within returns, in ascending order, the positions of every point that may
// lie within radiusKm of ref. The result is a superset: callers still apply
// the exact distance. An infinite radius returns every position.
func (ix *Index) Within(ref domain.Point, radiusKm float64) []int {
	if math.IsNaN(radiusKm) || radiusKm < 0 {
		return []int{}
	}

	var found []int
	for _, box := range searchBoxes(ref, radiusKm) {
		for _, s := range ix.tree.SearchIntersect(box) {
			found = append(found, s.(*item).idx)
		}
	}

	sort.Ints(found)
	return dedupeSorted(found)
}

// searchBoxes computes bounding rectangles that contain the spherical cap of
// the given radius, following the bounding-coordinates method. Boxes that
// would cross the antimeridian or a pole widen to the full longitude range.
func searchBoxes(ref domain.Point, radiusKm float64) []rtreego.Rect {
	angular := radiusKm / domain.EarthRadiusKm
	if math.IsInf(angular, 1) || angular >= math.Pi {
		return []rtreego.Rect{mustRect(-180, -90, 180, 90)}
	}

	lat := ref.Lat * math.Pi / 180
	lon := ref.Lon * math.Pi / 180

	minLat := lat - angular
	maxLat := lat + angular
	minLon, maxLon := -math.Pi, math.Pi

	if minLat > -math.Pi/2 && maxLat < math.Pi/2 {
		dLon := math.Asin(math.Min(1, math.Sin(angular)/math.Cos(lat)))
		minLon = lon - dLon
		maxLon = lon + dLon
		if minLon < -math.Pi || maxLon > math.Pi {
			minLon, maxLon = -math.Pi, math.Pi
		}
	} else {
		minLat = math.Max(minLat, -math.Pi/2)
		maxLat = math.Min(maxLat, math.Pi/2)
	}

	deg := 180 / math.Pi
	return []rtreego.Rect{mustRect(
		minLon*deg-searchMargin, minLat*deg-searchMargin,
		maxLon*deg+searchMargin, maxLat*deg+searchMargin,
	)}
}

func mustRect(minX, minY, maxX, maxY float64) rtreego.Rect {
	rect, err := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{maxX - minX, maxY - minY})
	if err != nil {
		// Lengths are always positive here.
		panic(err)
	}
	return rect
}

func dedupeSorted(xs []int) []int {
	if len(xs) == 0 {
		return []int{}
	}
	out := xs[:1]
	for _, x := range xs[1:] {
		if x != out[len(out)-1] {
			out = append(out, x)
		}
	}
	return out
}

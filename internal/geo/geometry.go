package geo

import (
	"errors"
	"fmt"
	"math"
)

const (
	MinBoundaryPoints = 3
	MaxBoundaryPoints = 100

	MinBoundaryAreaM2 = 100.0
	MaxBoundaryAreaM2 = 1_000_000.0

	earthRadiusMeters = 6_371_000.0

	// Planar shoelace sums below this are treated as collinear.
	degenerateEpsilon = 1e-7
)

var (
	ErrTooFewPoints   = errors.New("boundary needs at least 3 points")
	ErrTooManyPoints  = errors.New("boundary exceeds 100 points")
	ErrDuplicatePoint = errors.New("boundary has duplicate consecutive points")
	ErrDegenerateArea = errors.New("boundary points are collinear")
	ErrAreaTooSmall   = errors.New("boundary area is below 100 m²")
	ErrAreaTooLarge   = errors.New("boundary area exceeds 1,000,000 m²")
)

// CoordinateError reports the first out-of-range vertex.
type CoordinateError struct {
	Index int
	Lat   float64
	Lon   float64
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate at index %d: (%f, %f)", e.Index, e.Lat, e.Lon)
}

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate runs every boundary check in order: point count, coordinate
// ranges, duplicate consecutive vertices, degeneracy, then area bounds.
// Callers send open rings; the closing edge back to the first vertex is
// implicit, so only in-sequence pairs are checked for duplicates.
func Validate(points []Point) error {
	if len(points) < MinBoundaryPoints {
		return ErrTooFewPoints
	}
	if len(points) > MaxBoundaryPoints {
		return ErrTooManyPoints
	}
	for i, p := range points {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return &CoordinateError{Index: i, Lat: p.Lat, Lon: p.Lon}
		}
	}
	for i := 0; i < len(points)-1; i++ {
		if points[i] == points[i+1] {
			return ErrDuplicatePoint
		}
	}
	if math.Abs(shoelaceSum(points)) < degenerateEpsilon {
		return ErrDegenerateArea
	}

	area := Area(points)
	if area < MinBoundaryAreaM2 {
		return ErrAreaTooSmall
	}
	if area > MaxBoundaryAreaM2 {
		return ErrAreaTooLarge
	}
	return nil
}

// shoelaceSum is the signed planar shoelace accumulation in degrees,
// used only to detect collinear input before the spherical area runs.
func shoelaceSum(points []Point) float64 {
	var sum float64
	n := len(points)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[i].Lon*points[j].Lat - points[j].Lon*points[i].Lat
	}
	return sum / 2
}

// Area approximates the enclosed geodesic area in square meters using a
// spherical-excess accumulation per edge. Good for the app's 100 m² to
// 1 km² range; it is not a geodesically exact formula.
func Area(points []Point) float64 {
	n := len(points)
	if n < MinBoundaryPoints {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		lat1 := toRadians(points[i].Lat)
		lat2 := toRadians(points[j].Lat)
		lon1 := toRadians(points[i].Lon)
		lon2 := toRadians(points[j].Lon)
		sum += (lon2 - lon1) * (2 + math.Sin(lat1) + math.Sin(lat2))
	}
	return math.Abs(sum * earthRadiusMeters * earthRadiusMeters / 2)
}

// Centroid is the arithmetic mean of the vertices. For concave polygons
// this can fall outside the boundary; callers that need a guaranteed
// interior point must not rely on it.
func Centroid(points []Point) Point {
	var latSum, lonSum float64
	for _, p := range points {
		latSum += p.Lat
		lonSum += p.Lon
	}
	n := float64(len(points))
	return Point{Lat: latSum / n, Lon: lonSum / n}
}

// Contains runs an even-odd ray cast with longitude as the horizontal
// axis. The edge test is half-open ((latA > lat) != (latB > lat)), so a
// point exactly at a vertex latitude counts only edges whose far endpoint
// lies strictly above it. Points exactly on an edge resolve to one
// consistent side rather than being special-cased.
func Contains(p Point, polygon []Point) bool {
	inside := false
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		a, b := polygon[i], polygon[j]
		if (a.Lat > p.Lat) == (b.Lat > p.Lat) {
			continue
		}
		lonAt := a.Lon + (p.Lat-a.Lat)/(b.Lat-a.Lat)*(b.Lon-a.Lon)
		if p.Lon < lonAt {
			inside = !inside
		}
	}
	return inside
}

// Distance returns the haversine distance in meters between two points.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// MaxRadius is the largest vertex-to-center distance in meters, used to
// size a circular monitored region that covers the whole boundary.
func MaxRadius(c Point, points []Point) float64 {
	var max float64
	for _, p := range points {
		if d := Distance(c, p); d > max {
			max = d
		}
	}
	return max
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

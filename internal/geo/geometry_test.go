package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func squareBoundary(lat, lon, side float64) []Point {
	return []Point{
		{Lat: lat, Lon: lon},
		{Lat: lat, Lon: lon + side},
		{Lat: lat + side, Lon: lon + side},
		{Lat: lat + side, Lon: lon},
	}
}

func TestContains_Square(t *testing.T) {
	square := []Point{{0, 0}, {0, 10}, {10, 10}, {10, 0}}

	assert.True(t, Contains(Point{5, 5}, square))
	assert.False(t, Contains(Point{5, 15}, square))
	assert.False(t, Contains(Point{15, 5}, square))
	assert.False(t, Contains(Point{-5, 5}, square))
}

func TestContains_Triangle(t *testing.T) {
	triangle := []Point{{0, 5}, {10, 0}, {10, 10}}

	assert.True(t, Contains(Point{6.67, 5}, triangle))
	assert.False(t, Contains(Point{2, 2}, triangle))
}

func TestValidate_PointCount(t *testing.T) {
	err := Validate([]Point{{0, 0}, {0, 1}})
	assert.ErrorIs(t, err, ErrTooFewPoints)

	many := make([]Point, 101)
	for i := range many {
		angle := float64(i) / 101 * 2 * math.Pi
		many[i] = Point{Lat: 0.005 * math.Sin(angle), Lon: 0.005 * math.Cos(angle)}
	}
	err = Validate(many)
	assert.ErrorIs(t, err, ErrTooManyPoints)
}

func TestValidate_InvalidCoordinate(t *testing.T) {
	err := Validate([]Point{{0, 0}, {91, 1}, {0, 1}})

	var coordErr *CoordinateError
	assert.True(t, errors.As(err, &coordErr))
	assert.Equal(t, 1, coordErr.Index)
}

func TestValidate_DuplicateConsecutive(t *testing.T) {
	err := Validate([]Point{{0, 0}, {0, 0.005}, {0, 0.005}, {0.005, 0}})
	assert.ErrorIs(t, err, ErrDuplicatePoint)
}

func TestValidate_Collinear(t *testing.T) {
	err := Validate([]Point{{0, 0}, {0.01, 0.01}, {0.02, 0.02}})
	assert.ErrorIs(t, err, ErrDegenerateArea)
}

func TestValidate_AreaBounds(t *testing.T) {
	// ~550 m square, well within [100, 1_000_000] m².
	assert.NoError(t, Validate(squareBoundary(0, 0, 0.005)))

	// Near-polar sliver: wide in degrees but ~20 m² on the ground.
	sliver := []Point{
		{Lat: 89.99, Lon: 0},
		{Lat: 89.99, Lon: 0.1},
		{Lat: 89.9901, Lon: 0.1},
		{Lat: 89.9901, Lon: 0},
	}
	assert.ErrorIs(t, Validate(sliver), ErrAreaTooSmall)

	// ~5.5 km square, over a million m².
	assert.ErrorIs(t, Validate(squareBoundary(0, 0, 0.05)), ErrAreaTooLarge)
}

func TestArea_EquatorSquare(t *testing.T) {
	// 0.01° square at the equator is roughly 1113 m per side.
	area := Area(squareBoundary(0, 0, 0.01))
	assert.InDelta(t, 1_239_000, area, 15_000)
}

func TestCentroid(t *testing.T) {
	c := Centroid([]Point{{0, 0}, {0, 10}, {10, 10}, {10, 0}})
	assert.InDelta(t, 5, c.Lat, 1e-9)
	assert.InDelta(t, 5, c.Lon, 1e-9)
}

func TestDistance(t *testing.T) {
	// One degree of latitude is ~111.2 km.
	d := Distance(Point{0, 0}, Point{1, 0})
	assert.InDelta(t, 111_195, d, 500)
}

func TestMaxRadius_CoversAllVertices(t *testing.T) {
	square := squareBoundary(0, 0, 0.005)
	c := Centroid(square)
	r := MaxRadius(c, square)
	for _, p := range square {
		assert.LessOrEqual(t, Distance(c, p), r+1e-6)
	}
}

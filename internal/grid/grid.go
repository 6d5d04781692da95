// Package grid builds the normalised candidate grids searched by the
// optimiser and rescales points between the unit cube and the simulator's
// native parameter units.
package grid

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrEmptyGrid is returned when a grid would contain no points.
var ErrEmptyGrid = errors.New("grid: no points")

// Grid is an ordered, immutable set of points in the unit cube.
type Grid struct {
	dims   int
	points [][]float64
}

// New builds a grid from explicit unit-cube points. All points must share a
// dimension and lie in [0, 1].
func New(points [][]float64) (*Grid, error) {
	if len(points) == 0 {
		return nil, ErrEmptyGrid
	}
	dims := len(points[0])
	if dims == 0 {
		return nil, fmt.Errorf("grid: zero-dimensional points")
	}
	cp := make([][]float64, len(points))
	for i, p := range points {
		if len(p) != dims {
			return nil, fmt.Errorf("grid: point %d has %d dims, want %d", i, len(p), dims)
		}
		for d, v := range p {
			if v < 0 || v > 1 || math.IsNaN(v) {
				return nil, fmt.Errorf("grid: point %d coordinate %d = %g outside [0,1]", i, d, v)
			}
		}
		cp[i] = append([]float64(nil), p...)
	}
	return &Grid{dims: dims, points: cp}, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

// NewMeshGrid returns the full factorial grid of Linspace(0, 1, n) along each
// of dims axes. The first coordinate varies slowest, so for two dimensions
// index a*n+b holds (xx[a], xx[b]).
func NewMeshGrid(n, dims int) (*Grid, error) {
	if n <= 0 || dims <= 0 {
		return nil, ErrEmptyGrid
	}
	total := 1
	for d := 0; d < dims; d++ {
		total *= n
		if total > MaxPoints {
			return nil, fmt.Errorf("grid: %d^%d points exceeds limit of %d", n, dims, MaxPoints)
		}
	}
	axis := Linspace(0, 1, n)
	points := make([][]float64, total)
	for i := range points {
		p := make([]float64, dims)
		rem := i
		for d := dims - 1; d >= 0; d-- {
			p[d] = axis[rem%n]
			rem /= n
		}
		points[i] = p
	}
	return &Grid{dims: dims, points: points}, nil
}

// MaxPoints bounds grid size. The selector holds an M×M covariance, so the
// limit keeps that under ~800 MB.
const MaxPoints = 10000

// Len returns the number of grid points.
func (g *Grid) Len() int { return len(g.points) }

// Dims returns the dimension of each point.
func (g *Grid) Dims() int { return g.dims }

// Point returns a copy of point i.
func (g *Grid) Point(i int) []float64 {
	return append([]float64(nil), g.points[i]...)
}

// Points returns a copy of all points.
func (g *Grid) Points() [][]float64 {
	out := make([][]float64, len(g.points))
	for i, p := range g.points {
		out[i] = append([]float64(nil), p...)
	}
	return out
}

// Nearest returns the index of the grid point closest to x in Euclidean
// distance. Ties resolve to the lowest index.
func (g *Grid) Nearest(x []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, p := range g.points {
		var d float64
		for k := range p {
			diff := p[k] - x[k]
			d += diff * diff
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Axis returns the sorted distinct values of coordinate d.
func (g *Grid) Axis(d int) []float64 {
	seen := make(map[float64]struct{})
	var out []float64
	for _, p := range g.points {
		if _, ok := seen[p[d]]; ok {
			continue
		}
		seen[p[d]] = struct{}{}
		out = append(out, p[d])
	}
	sort.Float64s(out)
	return out
}

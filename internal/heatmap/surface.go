// Package heatmap renders surrogate surfaces over the two zombie model
// parameters as PNG (gonum/plot) and HTML (go-echarts) heatmaps.
package heatmap

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/zombies.report/internal/grid"
)

// Axis labels for the zombie model's searched parameters.
const (
	ZombieAxisLabel = "Zombie Step Size"
	HumanAxisLabel  = "Human Step Size"
)

// ErrNotMesh is returned when a grid is not a full 2-D meshgrid.
var ErrNotMesh = errors.New("heatmap: grid is not a 2-D meshgrid")

// Surface holds values over a regular 2-D grid in native units. Column c
// runs along the x axis, row r along the y axis. Missing cells are NaN.
//
// Surface implements gonum/plot's plotter.GridXYZ.
type Surface struct {
	Title  string
	XLabel string
	YLabel string
	Xs     []float64
	Ys     []float64
	Values [][]float64 // Values[c][r]
}

// NewSurface lays values (one per grid point, in grid order) out on the
// native axes of a 2-D meshgrid. The first dimension is the x axis.
func NewSurface(title string, g *grid.Grid, b grid.Bounds, values []float64) (*Surface, error) {
	if g == nil || g.Dims() != 2 || b.Dims() != 2 {
		return nil, ErrNotMesh
	}
	if len(values) != g.Len() {
		return nil, fmt.Errorf("heatmap: %d values for %d grid points", len(values), g.Len())
	}
	ax, ay := g.Axis(0), g.Axis(1)
	if len(ax) < 2 || len(ay) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 values per axis", ErrNotMesh)
	}
	col := indexOf(ax)
	row := indexOf(ay)

	s := &Surface{
		Title:  title,
		XLabel: ZombieAxisLabel,
		YLabel: HumanAxisLabel,
		Xs:     make([]float64, len(ax)),
		Ys:     make([]float64, len(ay)),
		Values: make([][]float64, len(ax)),
	}
	for c, x := range ax {
		s.Xs[c] = b.Lower[0] + x*(b.Upper[0]-b.Lower[0])
		s.Values[c] = make([]float64, len(ay))
		for r := range s.Values[c] {
			s.Values[c][r] = math.NaN()
		}
	}
	for r, y := range ay {
		s.Ys[r] = b.Lower[1] + y*(b.Upper[1]-b.Lower[1])
	}
	for i, v := range values {
		p := g.Point(i)
		s.Values[col[p[0]]][row[p[1]]] = v
	}
	return s, nil
}

func indexOf(axis []float64) map[float64]int {
	out := make(map[float64]int, len(axis))
	for i, v := range axis {
		out[v] = i
	}
	return out
}

// Dims returns the number of columns and rows.
func (s *Surface) Dims() (c, r int) { return len(s.Xs), len(s.Ys) }

// Z returns the value of the cell at column c, row r.
func (s *Surface) Z(c, r int) float64 { return s.Values[c][r] }

// X returns the x coordinate of column c.
func (s *Surface) X(c int) float64 { return s.Xs[c] }

// Y returns the y coordinate of row r.
func (s *Surface) Y(r int) float64 { return s.Ys[r] }

// Range returns the smallest and largest non-NaN values. Both are NaN when
// every cell is missing.
func (s *Surface) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, col := range s.Values {
		for _, v := range col {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if lo > hi {
		return math.NaN(), math.NaN()
	}
	return lo, hi
}

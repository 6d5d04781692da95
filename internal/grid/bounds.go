package grid

import "fmt"

// Bounds maps unit-cube coordinates onto native parameter ranges.
type Bounds struct {
	Lower []float64 `json:"lower" yaml:"lower"`
	Upper []float64 `json:"upper" yaml:"upper"`
}

// ZombieBounds are the native ranges of the zombie model's two searched
// parameters: zombie step size then human step size.
func ZombieBounds() Bounds {
	return Bounds{
		Lower: []float64{0.1, 0},
		Upper: []float64{1, 3},
	}
}

// Dims returns the number of bounded dimensions.
func (b Bounds) Dims() int { return len(b.Lower) }

// Validate checks that the bounds are well formed.
func (b Bounds) Validate() error {
	if len(b.Lower) == 0 {
		return fmt.Errorf("bounds: no dimensions")
	}
	if len(b.Lower) != len(b.Upper) {
		return fmt.Errorf("bounds: %d lower values but %d upper values", len(b.Lower), len(b.Upper))
	}
	for i := range b.Lower {
		if !(b.Lower[i] < b.Upper[i]) {
			return fmt.Errorf("bounds: dimension %d lower %g must be below upper %g", i, b.Lower[i], b.Upper[i])
		}
	}
	return nil
}

// ToNativePoint rescales one unit-cube point: lb + x*(ub-lb).
func (b Bounds) ToNativePoint(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = b.Lower[i] + v*(b.Upper[i]-b.Lower[i])
	}
	return out
}

// ToUnitPoint inverts ToNativePoint.
func (b Bounds) ToUnitPoint(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - b.Lower[i]) / (b.Upper[i] - b.Lower[i])
	}
	return out
}

// ToNative rescales every point. Points must have b.Dims() coordinates.
func (b Bounds) ToNative(points [][]float64) ([][]float64, error) {
	return b.mapPoints(points, b.ToNativePoint)
}

// ToUnit rescales native points back into the unit cube.
func (b Bounds) ToUnit(points [][]float64) ([][]float64, error) {
	return b.mapPoints(points, b.ToUnitPoint)
}

func (b Bounds) mapPoints(points [][]float64, f func([]float64) []float64) ([][]float64, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	out := make([][]float64, len(points))
	for i, p := range points {
		if len(p) != b.Dims() {
			return nil, fmt.Errorf("bounds: point %d has %d dims, want %d", i, len(p), b.Dims())
		}
		out[i] = f(p)
	}
	return out, nil
}

package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBounds_ToNative(t *testing.T) {
	b := ZombieBounds()
	require.NoError(t, b.Validate())

	native, err := b.ToNative([][]float64{{0, 0}, {1, 1}, {0.5, 0.5}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.1, 0}, native[0], 1e-12)
	assert.InDeltaSlice(t, []float64{1, 3}, native[1], 1e-12)
	assert.InDeltaSlice(t, []float64{0.55, 1.5}, native[2], 1e-12)
}

func TestBounds_RoundTrip(t *testing.T) {
	b := Bounds{Lower: []float64{-2, 10}, Upper: []float64{2, 20}}
	g, err := NewMeshGrid(7, 2)
	require.NoError(t, err)

	native, err := b.ToNative(g.Points())
	require.NoError(t, err)
	unit, err := b.ToUnit(native)
	require.NoError(t, err)

	for i, p := range g.Points() {
		assert.InDeltaSlice(t, p, unit[i], 1e-12, "point %d", i)
	}
}

func TestBounds_Validate(t *testing.T) {
	testCases := []struct {
		name   string
		bounds Bounds
		ok     bool
	}{
		{"zombie_defaults", ZombieBounds(), true},
		{"empty", Bounds{}, false},
		{"length_mismatch", Bounds{Lower: []float64{0, 0}, Upper: []float64{1}}, false},
		{"inverted", Bounds{Lower: []float64{1}, Upper: []float64{0}}, false},
		{"degenerate", Bounds{Lower: []float64{1}, Upper: []float64{1}}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.bounds.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestBounds_DimensionMismatch(t *testing.T) {
	_, err := ZombieBounds().ToNative([][]float64{{0.1, 0.2, 0.3}})
	assert.Error(t, err)
}

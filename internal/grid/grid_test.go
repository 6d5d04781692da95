package grid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinspace(t *testing.T) {
	testCases := []struct {
		name     string
		lo, hi   float64
		n        int
		expected []float64
	}{
		{"zero", 0, 1, 0, nil},
		{"single", 0.5, 1, 1, []float64{0.5}},
		{"unit_quarters", 0, 1, 5, []float64{0, 0.25, 0.5, 0.75, 1}},
		{"descending", 1, 0, 3, []float64{1, 0.5, 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Linspace(tc.lo, tc.hi, tc.n)
			if diff := cmp.Diff(tc.expected, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("Linspace mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewMeshGrid_Ordering(t *testing.T) {
	g, err := NewMeshGrid(3, 2)
	require.NoError(t, err)
	require.Equal(t, 9, g.Len())
	assert.Equal(t, 2, g.Dims())

	// First coordinate varies slowest.
	want := [][]float64{
		{0, 0}, {0, 0.5}, {0, 1},
		{0.5, 0}, {0.5, 0.5}, {0.5, 1},
		{1, 0}, {1, 0.5}, {1, 1},
	}
	if diff := cmp.Diff(want, g.Points()); diff != "" {
		t.Errorf("mesh grid mismatch (-want +got):\n%s", diff)
	}
}

func TestNewMeshGrid_Errors(t *testing.T) {
	_, err := NewMeshGrid(0, 2)
	assert.ErrorIs(t, err, ErrEmptyGrid)

	_, err = NewMeshGrid(200, 2)
	assert.Error(t, err, "40000 points should exceed MaxPoints")
}

func TestGrid_PointIsCopy(t *testing.T) {
	g, err := NewMeshGrid(2, 2)
	require.NoError(t, err)

	p := g.Point(3)
	p[0] = 42
	assert.Equal(t, []float64{1, 1}, g.Point(3))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyGrid)

	_, err = New([][]float64{{0, 0}, {0.5}})
	assert.Error(t, err)

	_, err = New([][]float64{{1.5, 0}})
	assert.Error(t, err)

	g, err := New([][]float64{{0.2, 0.8}, {1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
}

func TestGrid_NearestAndAxis(t *testing.T) {
	g, err := NewMeshGrid(30, 2)
	require.NoError(t, err)

	for _, i := range []int{0, 17, 431, 899} {
		assert.Equal(t, i, g.Nearest(g.Point(i)))
	}
	assert.Equal(t, 31, g.Nearest([]float64{0.035, 0.03}))

	axis := g.Axis(1)
	require.Len(t, axis, 30)
	assert.Equal(t, 0.0, axis[0])
	assert.Equal(t, 1.0, axis[29])
}

package batch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/zombies.report/internal/grid"
)

func TestAllocate(t *testing.T) {
	got := Allocate([]int{4, 2, 4, 4, 7, 2})
	want := []Allocation{{Index: 4, Count: 3}, {Index: 2, Count: 2}, {Index: 7, Count: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Allocate mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, Allocate(nil))
}

func TestGenerateInputs(t *testing.T) {
	g, err := grid.NewMeshGrid(3, 2)
	require.NoError(t, err)
	b := grid.ZombieBounds()
	seeds := []int64{100, 101, 102, 103}
	counter := SeedCounter{}

	inputs, err := GenerateInputs(g, b, []Allocation{{Index: 4, Count: 2}, {Index: 0, Count: 1}}, counter, seeds)
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	assert.Equal(t, 4, inputs[0].Index)
	assert.Equal(t, int64(100), inputs[0].Seed)
	assert.Equal(t, int64(101), inputs[1].Seed)
	assert.Equal(t, []float64{0.5, 0.5}, inputs[0].Unit)
	assert.InDeltaSlice(t, []float64{0.55, 1.5}, inputs[0].Native, 1e-12)
	assert.Equal(t, 0, inputs[2].Index)
	assert.Equal(t, int64(100), inputs[2].Seed)

	// A second round continues from the counter instead of reusing seeds.
	inputs, err = GenerateInputs(g, b, []Allocation{{Index: 4, Count: 2}}, counter, seeds)
	require.NoError(t, err)
	assert.Equal(t, int64(102), inputs[0].Seed)
	assert.Equal(t, int64(103), inputs[1].Seed)
	assert.Equal(t, SeedCounter{4: 4, 0: 1}, counter)
}

func TestGenerateInputs_Errors(t *testing.T) {
	g, err := grid.NewMeshGrid(3, 2)
	require.NoError(t, err)
	b := grid.ZombieBounds()

	_, err = GenerateInputs(g, b, []Allocation{{Index: 9, Count: 1}}, SeedCounter{}, []int64{1})
	assert.Error(t, err, "index out of range")

	_, err = GenerateInputs(g, b, []Allocation{{Index: 1, Count: 3}}, SeedCounter{}, []int64{1, 2})
	assert.Error(t, err, "seed pool exhausted")

	_, err = GenerateInputs(g, grid.Bounds{Lower: []float64{0}, Upper: []float64{1}}, nil, SeedCounter{}, nil)
	assert.Error(t, err, "dimension mismatch")
}

package batch

import (
	"fmt"

	"github.com/banshee-data/zombies.report/internal/grid"
)

// Allocation is the number of replicates requested for one grid index.
type Allocation struct {
	Index int
	Count int
}

// Allocate collapses a selection into per-index replicate counts, ordered by
// first appearance in ids.
func Allocate(ids []int) []Allocation {
	pos := make(map[int]int, len(ids))
	var out []Allocation
	for _, ix := range ids {
		if p, ok := pos[ix]; ok {
			out[p].Count++
			continue
		}
		pos[ix] = len(out)
		out = append(out, Allocation{Index: ix, Count: 1})
	}
	return out
}

// SeedCounter records how many seeds from the shared seed pool each grid
// index has consumed, so replicates at a point never reuse a seed.
type SeedCounter map[int]int

// Input is one simulator evaluation: a grid point plus the seed to run it with.
type Input struct {
	Index  int
	Unit   []float64
	Native []float64
	Seed   int64
}

// GenerateInputs expands allocations into simulator inputs. For each
// allocation the next Count seeds for that index are taken from seeds and the
// counter advances. Returns an error if an index runs out of seeds.
func GenerateInputs(g *grid.Grid, b grid.Bounds, allocs []Allocation, counter SeedCounter, seeds []int64) ([]Input, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Dims() != g.Dims() {
		return nil, fmt.Errorf("bounds have %d dims, grid has %d", b.Dims(), g.Dims())
	}

	var out []Input
	for _, a := range allocs {
		if a.Index < 0 || a.Index >= g.Len() {
			return nil, fmt.Errorf("grid index %d out of range [0,%d)", a.Index, g.Len())
		}
		start := counter[a.Index]
		end := start + a.Count
		if end > len(seeds) {
			return nil, fmt.Errorf("grid index %d needs seeds [%d,%d) but only %d are available", a.Index, start, end, len(seeds))
		}
		counter[a.Index] = end

		unit := g.Point(a.Index)
		native := b.ToNativePoint(unit)
		for _, s := range seeds[start:end] {
			out = append(out, Input{
				Index:  a.Index,
				Unit:   unit,
				Native: native,
				Seed:   s,
			})
		}
	}
	return out, nil
}

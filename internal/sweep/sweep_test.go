package sweep

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/zombies.report/internal/grid"
	"github.com/banshee-data/zombies.report/internal/monitoring"
	"github.com/banshee-data/zombies.report/internal/sim"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func muteLogs(t *testing.T) {
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// survivors is a deterministic stand-in for the model.
func survivors(p sim.Params) int {
	return int(1000*p.HumanStepSize) + int(10*p.ZombieStepSize) + int(p.RandomSeed)
}

func TestRun_WritesSeedAndSummaryFiles(t *testing.T) {
	muteLogs(t)
	g, err := grid.NewMeshGrid(3, 2)
	require.NoError(t, err)
	out := t.TempDir()

	var mu sync.Mutex
	var calls []sim.Params
	runner := sim.RunnerFunc(func(_ context.Context, p sim.Params) (int, error) {
		mu.Lock()
		calls = append(calls, p)
		mu.Unlock()
		return survivors(p), nil
	})

	var lastDone, lastTotal int
	report, err := Run(context.Background(), runner, Config{
		Grid:    g,
		Bounds:  grid.Bounds{Lower: []float64{0, 0}, Upper: []float64{1, 2}},
		Seeds:   []int64{0, 2},
		Workers: 3,
		OutDir:  out,
		Base:    sim.DefaultParams(),
		Progress: func(done, total int) {
			mu.Lock()
			if done > lastDone {
				lastDone = done
			}
			lastTotal = total
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	assert.Len(t, calls, 18)
	assert.Equal(t, 18, lastDone)
	assert.Equal(t, 18, lastTotal)
	for _, p := range calls {
		assert.Equal(t, 4000, p.HumanCount)
	}

	require.Len(t, report.Results, 2)
	assert.Equal(t, filepath.Join(out, "human_survival_seed2.csv"), report.Results[1].Path)

	rows := readCSV(t, filepath.Join(out, "human_survival_seed0.csv"))
	require.Len(t, rows, 10)
	assert.Equal(t, []string{"zombie_step", "human_step", "surviving_humans"}, rows[0])
	// First coordinate (zombie step) varies slowest.
	assert.Equal(t, []string{"0", "0", "0"}, rows[1])
	assert.Equal(t, []string{"0", "1", "1000"}, rows[2])
	assert.Equal(t, []string{"0", "2", "2000"}, rows[3])
	assert.Equal(t, []string{"0.5", "0", "5"}, rows[4])
	assert.Equal(t, []string{"1", "2", "2010"}, rows[9])

	summary := readCSV(t, report.SummaryPath)
	require.Len(t, summary, 10)
	assert.Equal(t, []string{"zombie_step", "human_step", "mean", "stddev", "n"}, summary[0])
	// Seeds 0 and 2 add 0 and 2 survivors: mean +1, sample sd sqrt(2).
	assert.Equal(t, []string{"1", "2", "2011", "1.414214", "2"}, summary[9])
}

func TestRun_FailedRunsAreSkipped(t *testing.T) {
	muteLogs(t)
	g, err := grid.NewMeshGrid(2, 2)
	require.NoError(t, err)
	out := t.TempDir()

	runner := sim.RunnerFunc(func(_ context.Context, p sim.Params) (int, error) {
		if p.ZombieStepSize == 1 && p.HumanStepSize == 1 {
			return 0, errors.New("model crashed")
		}
		return 7, nil
	})
	report, err := Run(context.Background(), runner, Config{
		Grid: g, Bounds: grid.Bounds{Lower: []float64{0, 0}, Upper: []float64{1, 1}},
		Seeds: []int64{5}, OutDir: out, Base: sim.DefaultParams(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Results[0].Failed)
	assert.Equal(t, []int{7, 7, 7, -1}, report.Results[0].Counts)

	rows := readCSV(t, filepath.Join(out, "human_survival_seed5.csv"))
	assert.Equal(t, []string{"1", "1", ""}, rows[4])

	summary := readCSV(t, report.SummaryPath)
	assert.Equal(t, []string{"1", "1", "", "", "0"}, summary[4])
	assert.Equal(t, []string{"0", "0", "7", "0", "1"}, summary[1])
}

func TestRun_Cancellation(t *testing.T) {
	muteLogs(t)
	g, err := grid.NewMeshGrid(4, 2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runner := sim.RunnerFunc(func(ctx context.Context, p sim.Params) (int, error) {
		cancel()
		return 0, ctx.Err()
	})
	_, err = Run(ctx, runner, Config{
		Grid: g, Bounds: grid.ZombieBounds(), Seeds: []int64{0}, OutDir: t.TempDir(), Base: sim.DefaultParams(),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	g2, _ := grid.NewMeshGrid(2, 2)
	g3, _ := grid.NewMeshGrid(2, 3)
	valid := Config{Grid: g2, Bounds: grid.ZombieBounds(), Seeds: []int64{1}, OutDir: "x"}
	assert.NoError(t, valid.Validate())

	testCases := []struct {
		name string
		mod  func(*Config)
	}{
		{"no grid", func(c *Config) { c.Grid = nil }},
		{"three dims", func(c *Config) { c.Grid = g3 }},
		{"bad bounds", func(c *Config) { c.Bounds = grid.Bounds{Lower: []float64{1, 1}, Upper: []float64{0, 0}} }},
		{"no seeds", func(c *Config) { c.Seeds = nil }},
		{"no out dir", func(c *Config) { c.OutDir = "" }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mod(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestMeanStddev(t *testing.T) {
	testCases := []struct {
		name     string
		xs       []float64
		mean, sd float64
	}{
		{"empty", nil, 0, 0},
		{"single", []float64{4}, 4, 0},
		{"pair", []float64{1, 3}, 2, 1.4142135623730951},
		{"constant", []float64{5, 5, 5}, 5, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, sd := MeanStddev(tc.xs)
			assert.InDelta(t, tc.mean, m, 1e-12)
			assert.InDelta(t, tc.sd, sd, 1e-12)
		})
	}
}

func TestWriteSeedCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSeedCSV(&buf, [][]float64{{0.1, 0}, {1, 3}}, []int{4000, 12}))
	assert.Equal(t, "zombie_step,human_step,surviving_humans\n0.1,0,4000\n1,3,12\n", buf.String())
}

func TestPointStats(t *testing.T) {
	results := []Result{
		{Seed: 0, Counts: []int{10, -1, 7}},
		{Seed: 1, Counts: []int{20, -1, -1}},
	}
	stats := PointStats(results, 3)
	require.Len(t, stats, 3)

	assert.Equal(t, 2, stats[0].N)
	assert.InDelta(t, 15, stats[0].Mean, 1e-12)
	assert.InDelta(t, 7.0710678118654755, stats[0].Stddev, 1e-12)

	assert.Zero(t, stats[1].N)
	assert.True(t, math.IsNaN(stats[1].Mean))
	assert.True(t, math.IsNaN(stats[1].Stddev))

	assert.Equal(t, 1, stats[2].N)
	assert.Equal(t, 7.0, stats[2].Mean)
	assert.Zero(t, stats[2].Stddev)

	means := Means(stats)
	assert.Equal(t, 15.0, means[0])
	assert.True(t, math.IsNaN(means[1]))
}

package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

var (
	seedHeader    = []string{"zombie_step", "human_step", "surviving_humans"}
	summaryHeader = []string{"zombie_step", "human_step", "mean", "stddev", "n"}
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// MeanStddev returns the mean and sample standard deviation of xs.
// Returns (0, 0) for empty slices and a zero deviation for one value.
func MeanStddev(xs []float64) (mean float64, stddev float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	mean, stddev = stat.MeanStdDev(xs, nil)
	return mean, stddev
}

// WriteSeedCSV writes one seed's counts in grid order. Failed runs (-1) are
// written with an empty count.
func WriteSeedCSV(w io.Writer, native [][]float64, counts []int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(seedHeader); err != nil {
		return err
	}
	for i, x := range native {
		count := ""
		if counts[i] >= 0 {
			count = strconv.Itoa(counts[i])
		}
		if err := cw.Write([]string{formatFloat(x[0]), formatFloat(x[1]), count}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// PointStat summarises one grid point across seeds.
type PointStat struct {
	Mean   float64
	Stddev float64
	// N is the number of successful runs. Mean and Stddev are NaN when N is 0.
	N int
}

// PointStats returns per-point statistics across results, skipping failed
// runs. n is the number of grid points.
func PointStats(results []Result, n int) []PointStat {
	stats := make([]PointStat, n)
	vals := make([]float64, 0, len(results))
	for i := range stats {
		vals = vals[:0]
		for _, r := range results {
			if c := r.Counts[i]; c >= 0 {
				vals = append(vals, float64(c))
			}
		}
		if len(vals) == 0 {
			stats[i] = PointStat{Mean: math.NaN(), Stddev: math.NaN()}
			continue
		}
		mean, sd := MeanStddev(vals)
		stats[i] = PointStat{Mean: mean, Stddev: sd, N: len(vals)}
	}
	return stats
}

// Means returns the mean of each point, NaN where every run failed.
func Means(stats []PointStat) []float64 {
	out := make([]float64, len(stats))
	for i, s := range stats {
		out[i] = s.Mean
	}
	return out
}

// WriteSummaryCSV writes the per-point mean and standard deviation across
// seeds, skipping failed runs.
func WriteSummaryCSV(w io.Writer, native [][]float64, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for i, st := range PointStats(results, len(native)) {
		x := native[i]
		row := []string{formatFloat(x[0]), formatFloat(x[1]), "", "", strconv.Itoa(st.N)}
		if st.N > 0 {
			row[2] = formatFloat(round(st.Mean, 6))
			row[3] = formatFloat(round(st.Stddev, 6))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func writeSeedCSV(path string, native [][]float64, counts []int) error {
	return writeFile(path, func(w io.Writer) error { return WriteSeedCSV(w, native, counts) })
}

func writeSummaryCSV(path string, native [][]float64, results []Result) error {
	return writeFile(path, func(w io.Writer) error { return WriteSummaryCSV(w, native, results) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sweep: create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("sweep: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sweep: close %s: %w", path, err)
	}
	return nil
}

package heatmap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/zombies.report/internal/grid"
	"github.com/banshee-data/zombies.report/internal/surrogate"
)

// ReportFiles lists what Report wrote.
type ReportFiles struct {
	MeanPNG string
	SDPNG   string
	HTML    string
}

// Report writes the mean and standard-deviation heatmaps of a prediction
// over g for one optimisation round, in survivor units. observed holds the
// evaluated points in unit coordinates.
func Report(dir string, round int, g *grid.Grid, b grid.Bounds, pred *surrogate.Prediction, observed [][]float64) (ReportFiles, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ReportFiles{}, fmt.Errorf("heatmap: create report dir: %w", err)
	}
	mean, err := NewSurface("Mean Surface", g, b, pred.NativeMean())
	if err != nil {
		return ReportFiles{}, err
	}
	sdTitle := "Standard Deviation"
	if pred.Logged {
		sdTitle += " (log scale)"
	}
	sd, err := NewSurface(sdTitle, g, b, pred.NativeSD())
	if err != nil {
		return ReportFiles{}, err
	}

	var native [][]float64
	if len(observed) > 0 {
		if native, err = b.ToNative(observed); err != nil {
			return ReportFiles{}, fmt.Errorf("heatmap: observed points: %w", err)
		}
	}

	files := ReportFiles{
		MeanPNG: filepath.Join(dir, fmt.Sprintf("round%02d_mean.png", round)),
		SDPNG:   filepath.Join(dir, fmt.Sprintf("round%02d_sd.png", round)),
		HTML:    filepath.Join(dir, fmt.Sprintf("round%02d.html", round)),
	}
	if err := SavePNG(files.MeanPNG, mean, PNGOptions{Observed: native}); err != nil {
		return files, err
	}
	if err := SavePNG(files.SDPNG, sd, PNGOptions{Observed: native}); err != nil {
		return files, err
	}

	f, err := os.Create(files.HTML)
	if err != nil {
		return files, fmt.Errorf("heatmap: %w", err)
	}
	subtitle := fmt.Sprintf("round %d, %d evaluated points", round, len(observed))
	if err := RenderHTML(f, subtitle, mean, sd); err != nil {
		f.Close()
		return files, err
	}
	if err := f.Close(); err != nil {
		return files, fmt.Errorf("heatmap: %w", err)
	}
	return files, nil
}

package heatmap

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// PNGOptions controls SavePNG.
type PNGOptions struct {
	Width, Height vg.Length
	// Colors is the palette size. Zero means 12.
	Colors int
	// Observed are evaluated points in native units, drawn as hollow circles.
	Observed [][]float64
}

// SavePNG renders s to path. The image format follows the file extension.
func SavePNG(path string, s *Surface, o PNGOptions) error {
	if o.Width == 0 {
		o.Width = 6 * vg.Inch
	}
	if o.Height == 0 {
		o.Height = 5 * vg.Inch
	}
	if o.Colors <= 0 {
		o.Colors = 12
	}

	lo, hi := s.Range()
	if math.IsNaN(lo) {
		return fmt.Errorf("heatmap: %q has no values", s.Title)
	}

	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = s.XLabel
	p.Y.Label.Text = s.YLabel

	hm := plotter.NewHeatMap(s, palette.Heat(o.Colors, 1))
	hm.NaN = color.Transparent
	if lo == hi {
		hm.Min, hm.Max = lo-0.5, hi+0.5
	}
	p.Add(hm)

	if len(o.Observed) > 0 {
		pts := make(plotter.XYs, 0, len(o.Observed))
		for _, x := range o.Observed {
			if len(x) < 2 {
				continue
			}
			pts = append(pts, plotter.XY{X: x[0], Y: x[1]})
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("heatmap: observed points: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Color = color.Black
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
	}

	if err := p.Save(o.Width, o.Height, path); err != nil {
		return fmt.Errorf("heatmap: save %s: %w", path, err)
	}
	return nil
}

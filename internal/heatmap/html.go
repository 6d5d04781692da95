package heatmap

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

func axisLabels(vals []float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
	}
	return out
}

// Chart builds an echarts heatmap for s. Missing cells are omitted.
func Chart(s *Surface, subtitle string) *charts.HeatMap {
	lo, hi := s.Range()
	if math.IsNaN(lo) {
		lo, hi = 0, 1
	}

	data := make([]opts.HeatMapData, 0, len(s.Xs)*len(s.Ys))
	for c := range s.Xs {
		for r := range s.Ys {
			v := s.Values[c][r]
			if math.IsNaN(v) {
				continue
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c, r, math.Round(v*1000) / 1000}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: s.Title, Width: "640px", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: s.Title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: axisLabels(s.Xs), Name: s.XLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: axisLabels(s.Ys), Name: s.YLabel, NameLocation: "middle", NameGap: 40}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(axisLabels(s.Xs)).AddSeries(s.Title, data)
	return hm
}

// RenderHTML writes one page holding a heatmap per surface.
func RenderHTML(w io.Writer, subtitle string, surfaces ...*Surface) error {
	if len(surfaces) == 0 {
		return fmt.Errorf("heatmap: no surfaces to render")
	}
	page := components.NewPage()
	for _, s := range surfaces {
		page.AddCharts(Chart(s, subtitle))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("heatmap: render: %w", err)
	}
	return nil
}

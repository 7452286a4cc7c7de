package render

import (
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/KaramelBytes/airstat-cli/internal/resample"
)

// Chart dimensions in pixels.
const (
	ChartWidth  = 1024
	ChartHeight = 512
)

// BarPNG writes a bar chart of labelled values. NaN values are drawn as zero
// height bars so the labels stay aligned.
func BarPNG(w io.Writer, title string, labels []string, values []float64) error {
	if len(labels) != len(values) {
		return fmt.Errorf("bar chart: %d labels for %d values", len(labels), len(values))
	}
	if len(values) == 0 {
		return fmt.Errorf("bar chart: %s", NoData)
	}
	bars := make([]chart.Value, len(values))
	lo, hi := 0.0, 0.0
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
		bars[i] = chart.Value{Label: labels[i], Value: v}
	}
	if lo == hi {
		return fmt.Errorf("bar chart: every value is zero or missing")
	}
	slot := (ChartWidth - 120) / len(bars)
	barWidth := min(max(slot*3/4, 2), 60)
	bc := chart.BarChart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		Width:      ChartWidth,
		Height:     ChartHeight,
		BarWidth:   barWidth,
		BarSpacing: max(slot-barWidth, 1),
		YAxis:      chart.YAxis{Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		Bars:       bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

// HistogramPNG writes a histogram as a bar chart labelled by bin centers.
func HistogramPNG(w io.Writer, title string, h resample.Histogram) error {
	if len(h.Counts) == 0 {
		return fmt.Errorf("histogram: %s", NoData)
	}
	centers := h.Centers()
	labels := make([]string, len(centers))
	values := make([]float64, len(centers))
	for i, c := range centers {
		// Label every few bins so dense histograms stay readable.
		if len(centers) <= 12 || i%(len(centers)/10) == 0 {
			labels[i] = fmt.Sprintf("%.3g", c)
		}
		values[i] = float64(h.Counts[i])
	}
	return BarPNG(w, title, labels, values)
}

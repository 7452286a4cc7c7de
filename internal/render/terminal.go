package render

import (
	"fmt"
	"math"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/pterm/pterm"

	"github.com/KaramelBytes/airstat-cli/internal/resample"
)

// NoData is printed when a filter selects zero rows.
const NoData = "no data available for this selection"

// TerminalTable renders a header and rows as a boxed terminal table.
func TerminalTable(header []string, rows [][]string) (string, error) {
	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, header)
	data = append(data, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return "", fmt.Errorf("render table: %w", err)
	}
	return out, nil
}

// HistogramPlot draws bin counts as an ASCII line chart. Width and height are
// clamped to a readable minimum.
func HistogramPlot(h resample.Histogram, width, height int, caption string) string {
	if len(h.Counts) == 0 {
		return NoData
	}
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}
	data := make([]float64, len(h.Counts))
	for i, c := range h.Counts {
		data[i] = float64(c)
	}
	if len(data) == 1 {
		// asciigraph needs two points to draw a line
		data = append(data, data[0])
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// Num formats a statistic for tables; NaN prints as "NA".
func Num(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

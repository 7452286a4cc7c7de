// Package hypothesis tests association between two categorical features of
// the merged table, typically monitoring location and AQI category.
package hypothesis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

// SparseExpected is the expected count below which a cell is reported as sparse.
const SparseExpected = 5.0

// Contingency is an r×c table of observed counts.
type Contingency struct {
	Rows      []string    `json:"rows" yaml:"rows"`
	Cols      []string    `json:"cols" yaml:"cols"`
	Counts    [][]float64 `json:"counts" yaml:"counts"`
	RowTotals []float64   `json:"row_totals" yaml:"row_totals"`
	ColTotals []float64   `json:"col_totals" yaml:"col_totals"`
	Total     float64     `json:"total" yaml:"total"`
}

// NewContingency builds a table from counts and computes its margins. Counts
// must be rectangular, finite and non-negative.
func NewContingency(rows, cols []string, counts [][]float64) (*Contingency, error) {
	if len(counts) != len(rows) {
		return nil, errors.InvalidInputf("contingency: %d row labels for %d rows", len(rows), len(counts))
	}
	ct := &Contingency{
		Rows:      append([]string(nil), rows...),
		Cols:      append([]string(nil), cols...),
		Counts:    make([][]float64, len(counts)),
		RowTotals: make([]float64, len(rows)),
		ColTotals: make([]float64, len(cols)),
	}
	for i, row := range counts {
		if len(row) != len(cols) {
			return nil, errors.InvalidInputf("contingency: row %q has %d cells, want %d", rows[i], len(row), len(cols))
		}
		ct.Counts[i] = append([]float64(nil), row...)
		for j, v := range row {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.InvalidInputf("contingency: cell (%q, %q) = %v", rows[i], cols[j], v)
			}
			ct.RowTotals[i] += v
			ct.ColTotals[j] += v
			ct.Total += v
		}
	}
	return ct, nil
}

// Transpose swaps rows and columns.
func (ct *Contingency) Transpose() *Contingency {
	counts := make([][]float64, len(ct.Cols))
	for j := range ct.Cols {
		counts[j] = make([]float64, len(ct.Rows))
		for i := range ct.Rows {
			counts[j][i] = ct.Counts[i][j]
		}
	}
	return &Contingency{
		Rows:      append([]string(nil), ct.Cols...),
		Cols:      append([]string(nil), ct.Rows...),
		Counts:    counts,
		RowTotals: append([]float64(nil), ct.ColTotals...),
		ColTotals: append([]float64(nil), ct.RowTotals...),
		Total:     ct.Total,
	}
}

// CrossTab counts rows by (rowKey, categoryColumn). Rows with either cell null
// are dropped. Row labels are sorted. When order is given the columns follow
// it, restricted to categories that occur; otherwise they are sorted.
// Categories absent from order are appended in sorted order.
func CrossTab(t *table.Table, rowKey, categoryColumn string, order []string) (*Contingency, error) {
	for _, c := range []string{rowKey, categoryColumn} {
		if !t.Has(c) {
			return nil, errors.InvalidInputf("cross tabulation: unknown column %q", c)
		}
	}
	type pair struct{ r, c string }
	counts := map[pair]float64{}
	rowSet := map[string]struct{}{}
	colSet := map[string]struct{}{}
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		r, okR := row.Text(rowKey)
		c, okC := row.Text(categoryColumn)
		if !okR || !okC {
			continue
		}
		counts[pair{r, c}]++
		rowSet[r] = struct{}{}
		colSet[c] = struct{}{}
	}

	rows := sortedKeys(rowSet)
	var cols []string
	for _, c := range order {
		if _, ok := colSet[c]; ok {
			cols = append(cols, c)
			delete(colSet, c)
		}
	}
	cols = append(cols, sortedKeys(colSet)...)

	grid := make([][]float64, len(rows))
	for i, r := range rows {
		grid[i] = make([]float64, len(cols))
		for j, c := range cols {
			grid[i][j] = counts[pair{r, c}]
		}
	}
	return NewContingency(rows, cols, grid)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ChiSquareOptions configures ChiSquare.
type ChiSquareOptions struct {
	// Yates applies the continuity correction when the table has one degree
	// of freedom.
	Yates bool
	// Order fixes the category column order used by ChiSquareIndependence,
	// e.g. Scale.Labels() for severity order.
	Order []string
}

// SparseCell is a cell whose expected count is below SparseExpected.
type SparseCell struct {
	Row      string  `json:"row" yaml:"row"`
	Col      string  `json:"col" yaml:"col"`
	Expected float64 `json:"expected" yaml:"expected"`
}

// ChiSquareResult is the outcome of a test of independence.
type ChiSquareResult struct {
	Statistic   float64      `json:"statistic" yaml:"statistic"`
	DoF         int          `json:"dof" yaml:"dof"`
	PValue      float64      `json:"p_value" yaml:"p_value"`
	Yates       bool         `json:"yates" yaml:"yates"` // correction actually applied
	Expected    [][]float64  `json:"expected" yaml:"expected"`
	SparseCells []SparseCell `json:"sparse_cells,omitempty" yaml:"sparse_cells,omitempty"`
	Contingency *Contingency `json:"contingency" yaml:"contingency"`
}

// RejectIndependence reports whether p < alpha.
func (r *ChiSquareResult) RejectIndependence(alpha float64) bool {
	return r.PValue < alpha
}

// ChiSquare runs Pearson's test of independence on a contingency table.
func ChiSquare(ct *Contingency, opts ChiSquareOptions) (*ChiSquareResult, error) {
	if ct == nil || ct.Total == 0 {
		return nil, errors.WithHint(
			errors.Wrap(errors.ErrNumericalDegeneracy, "chi-square over an empty contingency table"),
			"no rows have both the location and the category present")
	}
	r, c := len(ct.Rows), len(ct.Cols)
	res := &ChiSquareResult{
		DoF:         (r - 1) * (c - 1),
		Expected:    make([][]float64, r),
		Contingency: ct,
	}
	for i := range ct.Rows {
		res.Expected[i] = make([]float64, c)
		for j := range ct.Cols {
			e := ct.RowTotals[i] * ct.ColTotals[j] / ct.Total
			res.Expected[i][j] = e
			if e < SparseExpected {
				res.SparseCells = append(res.SparseCells, SparseCell{Row: ct.Rows[i], Col: ct.Cols[j], Expected: e})
			}
		}
	}
	if res.DoF == 0 {
		res.PValue = 1
		return res, nil
	}

	res.Yates = opts.Yates && res.DoF == 1
	for i := range ct.Rows {
		for j := range ct.Cols {
			o, e := ct.Counts[i][j], res.Expected[i][j]
			if e == 0 {
				// empty margin; the observed count is zero too
				continue
			}
			if res.Yates {
				d := e - o
				o += math.Copysign(math.Min(0.5, math.Abs(d)), d)
			}
			res.Statistic += (o - e) * (o - e) / e
		}
	}
	res.PValue = distuv.ChiSquared{K: float64(res.DoF)}.Survival(res.Statistic)
	return res, nil
}

// ChiSquareIndependence cross-tabulates t and tests the result.
func ChiSquareIndependence(t *table.Table, rowKey, categoryColumn string, opts ChiSquareOptions) (*ChiSquareResult, error) {
	ct, err := CrossTab(t, rowKey, categoryColumn, opts.Order)
	if err != nil {
		return nil, err
	}
	return ChiSquare(ct, opts)
}

// WithCategory returns a copy of t with an AQI category column derived from
// aqiColumn. Missing AQI values give a null category.
func WithCategory(t *table.Table, aqiColumn, out string, scale airquality.Scale) (*table.Table, error) {
	if !t.Has(aqiColumn) {
		return nil, errors.InvalidInputf("derive category: unknown column %q", aqiColumn)
	}
	return t.WithColumn(out, func(r table.Row) table.Cell {
		v, ok := r.Float(aqiColumn)
		label, ok := scale.CategorizeNullable(v, ok)
		if !ok {
			return table.Null()
		}
		return table.Text(label)
	})
}

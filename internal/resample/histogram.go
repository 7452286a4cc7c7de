package resample

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram is an equal-width binning of a sample.
type Histogram struct {
	Edges  []float64 `json:"edges" yaml:"edges"` // len(Counts)+1 bin boundaries
	Counts []int     `json:"counts" yaml:"counts"`
}

// NewHistogram bins values into the given number of equal-width bins. NaN
// values are ignored. Constant data lands in a single bin.
func NewHistogram(values []float64, bins int) Histogram {
	if bins < 1 {
		bins = 1
	}
	x := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			x = append(x, v)
		}
	}
	if len(x) == 0 {
		return Histogram{}
	}
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		bins = 1
	}
	dividers := make([]float64, bins+1)
	if bins == 1 {
		dividers[0], dividers[1] = lo, hi
	} else {
		floats.Span(dividers, lo, hi)
	}
	// gonum wants the top divider strictly above the maximum.
	top := dividers[bins]
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	raw := stat.Histogram(nil, dividers, x, nil)
	h := Histogram{Edges: append([]float64(nil), dividers...), Counts: make([]int, bins)}
	h.Edges[bins] = top
	for i, c := range raw {
		h.Counts[i] = int(c)
	}
	return h
}

// Cumulative returns running totals of the bin counts.
func (h Histogram) Cumulative() []int {
	out := make([]int, len(h.Counts))
	total := 0
	for i, c := range h.Counts {
		total += c
		out[i] = total
	}
	return out
}

// Centers returns the midpoint of each bin.
func (h Histogram) Centers() []float64 {
	if len(h.Edges) < 2 {
		return nil
	}
	out := make([]float64, len(h.Counts))
	for i := range out {
		out[i] = (h.Edges[i] + h.Edges[i+1]) / 2
	}
	return out
}

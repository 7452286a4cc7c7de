// Package analysis computes descriptive statistics, missingness, grouped
// aggregates and covariance/correlation matrices over a merged table. Every
// function reads its input table and never modifies it.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/resample"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

// DefaultOutlierThreshold is the robust |z| above which a value counts as an outlier.
const DefaultOutlierThreshold = 3.5

// ColumnStats summarises the non-null values of one numeric column.
type ColumnStats struct {
	Name    string  `json:"name" yaml:"name"`
	Count   int     `json:"count" yaml:"count"`
	Missing int     `json:"missing" yaml:"missing"`
	Mean    float64 `json:"mean" yaml:"mean"`
	Std     float64 `json:"std" yaml:"std"`
	Min     float64 `json:"min" yaml:"min"`
	Q25     float64 `json:"q25" yaml:"q25"`
	Median  float64 `json:"median" yaml:"median"`
	Q75     float64 `json:"q75" yaml:"q75"`
	Max     float64 `json:"max" yaml:"max"`
	// Outliers via robust Z-score (MAD)
	Outliers         int     `json:"outliers" yaml:"outliers"`
	OutlierMaxAbsZ   float64 `json:"outlier_max_abs_z" yaml:"outlier_max_abs_z"`
	OutlierThreshold float64 `json:"outlier_threshold" yaml:"outlier_threshold"`
}

// Describe computes count, mean, sample std, min, quartiles and max for each
// column over its present values. A column with no values reports NaN
// statistics; a single value has NaN std.
func Describe(t *table.Table, columns []string) ([]ColumnStats, error) {
	if len(columns) == 0 {
		columns = NumericColumns(t)
	}
	out := make([]ColumnStats, 0, len(columns))
	for _, c := range columns {
		vals, err := t.NonNull(c)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "describe: %v", err)
		}
		out = append(out, describeValues(c, vals, t.Len()))
	}
	return out, nil
}

func describeValues(name string, vals []float64, rows int) ColumnStats {
	s := ColumnStats{Name: name, Count: len(vals), Missing: rows - len(vals), OutlierThreshold: DefaultOutlierThreshold}
	nan := math.NaN()
	if len(vals) == 0 {
		s.Mean, s.Std, s.Min, s.Q25, s.Median, s.Q75, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	s.Mean = stat.Mean(sorted, nil)
	s.Std = nan
	if len(sorted) > 1 {
		s.Std = stat.StdDev(sorted, nil)
	}
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Q25 = resample.Percentile(sorted, 25)
	s.Median = resample.Percentile(sorted, 50)
	s.Q75 = resample.Percentile(sorted, 75)

	if len(sorted) >= 8 {
		median, mad := medianMAD(sorted)
		if mad > 0 {
			for _, v := range sorted {
				az := math.Abs(0.6745 * (v - median) / mad)
				if az > s.OutlierThreshold {
					s.Outliers++
				}
				if az > s.OutlierMaxAbsZ {
					s.OutlierMaxAbsZ = az
				}
			}
		}
	}
	return s
}

// NumericColumns lists columns whose present cells all parse as numbers and
// that hold at least one value.
func NumericColumns(t *table.Table) []string {
	var out []string
	for _, c := range t.Columns() {
		cells, _ := t.Col(c)
		present, numeric := 0, true
		for _, cell := range cells {
			if cell.Null {
				continue
			}
			present++
			if _, ok := cell.Float64(); !ok {
				numeric = false
				break
			}
		}
		if numeric && present > 0 {
			out = append(out, c)
		}
	}
	return out
}

// medianMAD computes median and MAD (median absolute deviation) of sorted values.
func medianMAD(sorted []float64) (median, mad float64) {
	if len(sorted) == 0 {
		return 0, 0
	}
	median = resample.Percentile(sorted, 50)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = resample.Percentile(dev, 50)
	return
}

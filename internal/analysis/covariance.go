package analysis

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

// MatrixKind distinguishes covariance from correlation results.
type MatrixKind string

const (
	Covariance  MatrixKind = "covariance"
	Correlation MatrixKind = "correlation"
)

// Matrix is a symmetric pairwise-complete covariance or correlation matrix.
// Failed cells hold NaN.
type Matrix struct {
	Kind    MatrixKind
	Columns []string
	Values  *mat.SymDense
	Pairs   [][]int // rows where both columns are present
}

type matrixView struct {
	Kind    MatrixKind  `yaml:"kind"`
	Columns []string    `yaml:"columns"`
	Values  [][]float64 `yaml:"values"`
	Pairs   [][]int     `yaml:"pairs"`
}

// MarshalYAML encodes the dense values row-major.
func (m *Matrix) MarshalYAML() (interface{}, error) {
	return matrixView{Kind: m.Kind, Columns: m.Columns, Values: m.Rows(), Pairs: m.Pairs}, nil
}

// At returns cell (i, j).
func (m *Matrix) At(i, j int) float64 { return m.Values.At(i, j) }

// Lookup returns the cell for two column names.
func (m *Matrix) Lookup(a, b string) (float64, bool) {
	i, j := indexOf(m.Columns, a), indexOf(m.Columns, b)
	if i < 0 || j < 0 {
		return math.NaN(), false
	}
	v := m.Values.At(i, j)
	return v, !math.IsNaN(v)
}

// Rows returns the matrix as nested slices, row-major.
func (m *Matrix) Rows() [][]float64 {
	n := len(m.Columns)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = m.Values.At(i, j)
		}
	}
	return out
}

// String formats the matrix with gonum's formatter.
func (m *Matrix) String() string {
	return fmt.Sprintf("%s %v\n%.4g", m.Kind, m.Columns, mat.Formatted(m.Values, mat.Squeeze()))
}

// CellError is the failure of one matrix cell.
type CellError struct {
	Row, Col string
	N        int
	Err      error
}

func (e CellError) Error() string {
	return fmt.Sprintf("%s ~ %s (n=%d): %v", e.Row, e.Col, e.N, e.Err)
}

// MatrixError lists every cell that could not be computed. errors.Is matches
// it against any sentinel carried by one of its cells.
type MatrixError struct {
	Kind  MatrixKind
	Cells []CellError
}

func (e *MatrixError) Error() string {
	parts := make([]string, len(e.Cells))
	for i, c := range e.Cells {
		parts[i] = c.Error()
	}
	return fmt.Sprintf("%s matrix: %d failed cell(s): %s", e.Kind, len(e.Cells), strings.Join(parts, "; "))
}

// Is reports whether any cell failed with target.
func (e *MatrixError) Is(target error) bool {
	for _, c := range e.Cells {
		if errors.Is(c.Err, target) {
			return true
		}
	}
	return false
}

// CovarianceMatrix computes sample covariances (n-1) over pairwise-complete
// rows. Cells with fewer than two paired rows fail with ErrInvalidInput.
func CovarianceMatrix(t *table.Table, columns []string) (*Matrix, error) {
	return pairwise(t, columns, Covariance)
}

// CorrelationMatrix computes Pearson correlations over pairwise-complete rows,
// with standard deviations taken over the same paired subset. Values are
// clamped to [-1, 1] and the diagonal is exactly 1. A zero-variance pair fails
// with ErrNumericalDegeneracy.
func CorrelationMatrix(t *table.Table, columns []string) (*Matrix, error) {
	return pairwise(t, columns, Correlation)
}

func pairwise(t *table.Table, columns []string, kind MatrixKind) (*Matrix, error) {
	if len(columns) == 0 {
		return nil, errors.InvalidInputf("%s matrix needs at least one column", kind)
	}
	data := make([][]float64, len(columns))
	for i, c := range columns {
		vals, err := t.Floats(c)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "%s matrix: %v", kind, err)
		}
		data[i] = vals
	}

	n := len(columns)
	m := &Matrix{Kind: kind, Columns: columns, Values: mat.NewSymDense(n, nil), Pairs: make([][]int, n)}
	for i := range m.Pairs {
		m.Pairs[i] = make([]int, n)
	}
	var failed []CellError
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			xs, ys := paired(data[i], data[j])
			m.Pairs[i][j], m.Pairs[j][i] = len(xs), len(xs)
			v, err := pairValue(xs, ys, i == j, kind)
			if err != nil {
				failed = append(failed, CellError{Row: columns[i], Col: columns[j], N: len(xs), Err: err})
				v = math.NaN()
			}
			m.Values.SetSym(i, j, v)
		}
	}
	if len(failed) > 0 {
		return m, &MatrixError{Kind: kind, Cells: failed}
	}
	return m, nil
}

// paired keeps the rows where both series are present.
func paired(a, b []float64) (xs, ys []float64) {
	for k := range a {
		if math.IsNaN(a[k]) || math.IsNaN(b[k]) {
			continue
		}
		xs = append(xs, a[k])
		ys = append(ys, b[k])
	}
	return xs, ys
}

func pairValue(xs, ys []float64, diagonal bool, kind MatrixKind) (float64, error) {
	if len(xs) < 2 {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "%d paired row(s), need 2", len(xs))
	}
	cov := stat.Covariance(xs, ys, nil)
	if kind == Covariance {
		return cov, nil
	}
	sx, sy := stat.StdDev(xs, nil), stat.StdDev(ys, nil)
	if sx == 0 || sy == 0 {
		return 0, errors.Wrap(errors.ErrNumericalDegeneracy, "zero variance")
	}
	if diagonal {
		return 1, nil
	}
	r := cov / (sx * sy)
	return math.Max(-1, math.Min(1, r)), nil
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

package hypothesis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

func mustContingency(t *testing.T, rows, cols []string, counts [][]float64) *Contingency {
	t.Helper()
	ct, err := NewContingency(rows, cols, counts)
	require.NoError(t, err)
	return ct
}

func TestChiSquareKnownTwoByTwo(t *testing.T) {
	ct := mustContingency(t, []string{"a", "b"}, []string{"x", "y"}, [][]float64{{10, 20}, {30, 40}})

	res, err := ChiSquare(ct, ChiSquareOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DoF)
	assert.InDelta(t, 0.7936507936507936, res.Statistic, 1e-12)
	assert.InDelta(t, 0.37299848361348714, res.PValue, 1e-9)
	assert.False(t, res.Yates)
	assert.Equal(t, [][]float64{{12, 18}, {28, 42}}, res.Expected)
	assert.Empty(t, res.SparseCells)
	assert.False(t, res.RejectIndependence(0.05))
	assert.True(t, res.RejectIndependence(0.5))

	corrected, err := ChiSquare(ct, ChiSquareOptions{Yates: true})
	require.NoError(t, err)
	assert.True(t, corrected.Yates)
	assert.InDelta(t, 0.44642857142857145, corrected.Statistic, 1e-12)
	assert.InDelta(t, 0.5040358664525048, corrected.PValue, 1e-9)
}

func TestChiSquareYatesIgnoredAboveOneDoF(t *testing.T) {
	ct := mustContingency(t, []string{"s1", "s2"}, []string{"Good", "Moderate", "Unhealthy"}, [][]float64{{3, 1, 0}, {1, 2, 4}})
	plain, err := ChiSquare(ct, ChiSquareOptions{})
	require.NoError(t, err)
	yates, err := ChiSquare(ct, ChiSquareOptions{Yates: true})
	require.NoError(t, err)

	assert.Equal(t, 2, plain.DoF)
	assert.False(t, yates.Yates)
	assert.Equal(t, plain.Statistic, yates.Statistic)
	assert.InDelta(t, 4.877976190476191, plain.Statistic, 1e-12)
	assert.InDelta(t, math.Exp(-plain.Statistic/2), plain.PValue, 1e-9)
	// every expected count is below five
	assert.Len(t, plain.SparseCells, 6)
}

func TestChiSquareTransposeInvariant(t *testing.T) {
	ct := mustContingency(t, []string{"Fresno", "Oakland", "Reno"}, []string{"Good", "Moderate"},
		[][]float64{{12, 30}, {40, 9}, {22, 21}})
	a, err := ChiSquare(ct, ChiSquareOptions{})
	require.NoError(t, err)
	b, err := ChiSquare(ct.Transpose(), ChiSquareOptions{})
	require.NoError(t, err)

	assert.InDelta(t, a.Statistic, b.Statistic, 1e-9)
	assert.InDelta(t, a.PValue, b.PValue, 1e-12)
	assert.Equal(t, a.DoF, b.DoF)
}

func TestChiSquareDegenerate(t *testing.T) {
	empty := mustContingency(t, nil, nil, nil)
	_, err := ChiSquare(empty, ChiSquareOptions{})
	assert.True(t, errors.IsNumericalDegeneracy(err), "got %v", err)

	single := mustContingency(t, []string{"only"}, []string{"Good", "Moderate"}, [][]float64{{4, 6}})
	res, err := ChiSquare(single, ChiSquareOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.DoF)
	assert.Equal(t, 0.0, res.Statistic)
	assert.Equal(t, 1.0, res.PValue)
}

func TestNewContingencyRejectsBadCounts(t *testing.T) {
	_, err := NewContingency([]string{"a"}, []string{"x", "y"}, [][]float64{{1}})
	assert.True(t, errors.IsInvalidInput(err))
	_, err = NewContingency([]string{"a"}, []string{"x"}, [][]float64{{-1}})
	assert.True(t, errors.IsInvalidInput(err))
	_, err = NewContingency([]string{"a", "b"}, []string{"x"}, [][]float64{{1}})
	assert.True(t, errors.IsInvalidInput(err))
}

func aqiTable(t *testing.T) *table.Table {
	t.Helper()
	tb, err := table.FromRecords([][]string{
		{"Local Site Name", "Daily AQI Value"},
		{"Oakland", "12"},
		{"Oakland", "50"},
		{"Oakland", "51"},
		{"Fresno", "160"},
		{"Fresno", "99"},
		{"Fresno", ""},
		{"", "30"},
		{"Fresno", "301"},
	})
	require.NoError(t, err)
	return tb
}

func TestWithCategoryAndCrossTab(t *testing.T) {
	src := aqiTable(t)
	tb, err := WithCategory(src, "Daily AQI Value", "AQI Category", airquality.DefaultScale())
	require.NoError(t, err)
	assert.False(t, src.Has("AQI Category"), "input table must not change")

	cat, err := tb.Col("AQI Category")
	require.NoError(t, err)
	assert.Equal(t, "Good", cat[1].Text)
	assert.Equal(t, "Moderate", cat[2].Text)
	assert.True(t, cat[5].Null)
	assert.Equal(t, "Hazardous", cat[7].Text)

	ct, err := CrossTab(tb, "Local Site Name", "AQI Category", airquality.DefaultScale().Labels())
	require.NoError(t, err)
	assert.Equal(t, []string{"Fresno", "Oakland"}, ct.Rows)
	assert.Equal(t, []string{"Good", "Moderate", "Unhealthy", "Hazardous"}, ct.Cols)
	assert.Equal(t, [][]float64{{0, 1, 1, 1}, {2, 1, 0, 0}}, ct.Counts)
	assert.Equal(t, 6.0, ct.Total)

	sorted, err := CrossTab(tb, "Local Site Name", "AQI Category", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Good", "Hazardous", "Moderate", "Unhealthy"}, sorted.Cols)
}

func TestChiSquareIndependence(t *testing.T) {
	tb, err := WithCategory(aqiTable(t), "Daily AQI Value", "AQI Category", airquality.DefaultScale())
	require.NoError(t, err)
	res, err := ChiSquareIndependence(tb, "Local Site Name", "AQI Category", ChiSquareOptions{Order: airquality.DefaultScale().Labels()})
	require.NoError(t, err)
	assert.Equal(t, 3, res.DoF)
	assert.Equal(t, "Good", res.Contingency.Cols[0])
	assert.NotEmpty(t, res.SparseCells)

	_, err = ChiSquareIndependence(tb, "Local Site Name", "nope", ChiSquareOptions{})
	assert.True(t, errors.IsInvalidInput(err))

	none := tb.Equals("Local Site Name", "Nowhere")
	_, err = ChiSquareIndependence(none, "Local Site Name", "AQI Category", ChiSquareOptions{})
	assert.True(t, errors.IsNumericalDegeneracy(err))
}

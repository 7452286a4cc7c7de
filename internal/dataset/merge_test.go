package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

var catalog = airquality.MustCatalog(airquality.DefaultPollutants())

func pollutant(t *testing.T, tag string) airquality.Pollutant {
	t.Helper()
	p, ok := catalog.Lookup(tag)
	require.True(t, ok, tag)
	return p
}

func source(t *testing.T, tag string, rows ...[]string) Source {
	t.Helper()
	p := pollutant(t, tag)
	recs := append([][]string{{"Date", "Site ID", "Local Site Name", p.Column, "Units", "Daily AQI Value"}}, rows...)
	tb, err := table.FromRecords(recs)
	require.NoError(t, err)
	return Source{Pollutant: p, Table: tb}
}

func cell(t *testing.T, tb *table.Table, row int, col string) table.Cell {
	t.Helper()
	require.True(t, tb.Has(col), "missing column %q in %v", col, tb.Columns())
	return tb.Row(row).Get(col)
}

func TestMergeEndToEnd(t *testing.T) {
	pm := source(t, "PM2.5",
		[]string{"01/01/2023", "1", "Oakland", "8.5", "ug/m3 LC", "35"},
		[]string{"01/02/2023", "1", "Oakland", "12.1", "ug/m3 LC", "51"})
	oz := source(t, "Ozone",
		[]string{"01/01/2023", "1", "Oakland", "0.031", "ppm", "29"},
		[]string{"01/02/2023", "1", "Oakland", "0.035", "ppm", "32"})
	no2 := source(t, "NO2",
		[]string{"01/01/2023", "1", "Oakland", "20", "ppb", "19"},
		[]string{"01/02/2023", "1", "Oakland", "25", "ppb", "23"})
	co := source(t, "CO",
		[]string{"01/01/2023", "1", "Oakland", "0.3", "ppm", "3"})

	out, err := Merge(pm, []Source{oz, no2, co}, MergeOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	for _, c := range []string{
		"Daily Mean PM2.5 Concentration",
		"Daily Max 8-hour Ozone Concentration",
		"Daily Max 1-hour NO2 Concentration",
		"Daily Max 8-hour CO Concentration",
		"Units", "Units_ozone", "Units_no2", "Units_co",
		"Daily AQI Value", "Daily AQI Value_ozone",
		"Local Site Name", "Local Site Name_co",
	} {
		assert.True(t, out.Has(c), "expected column %q", c)
	}
	assert.False(t, out.Has("Units_pm2.5"), "base source is never suffixed")

	assert.Equal(t, "2023-01-01", cell(t, out, 0, "Date").Text)
	assert.Equal(t, "2023-01-02", cell(t, out, 1, "Date").Text)
	assert.Equal(t, "0.3", cell(t, out, 0, "Daily Max 8-hour CO Concentration").Text)
	assert.True(t, cell(t, out, 1, "Daily Max 8-hour CO Concentration").Null)
	assert.True(t, cell(t, out, 1, "Units_co").Null)
	assert.Equal(t, "0.035", cell(t, out, 1, "Daily Max 8-hour Ozone Concentration").Text)

	for _, p := range []airquality.Pollutant{pm.Pollutant, oz.Pollutant, no2.Pollutant, co.Pollutant} {
		assert.True(t, out.Has(MergedName(pm.Pollutant, p, airquality.ColDailyAQI)), p.Tag)
		assert.Equal(t, p.Column, MergedName(pm.Pollutant, p, p.Column))
	}
	assert.Equal(t, "Daily AQI Value_ozone", MergedName(pm.Pollutant, oz.Pollutant, airquality.ColDailyAQI))
}

func TestMergeRowCountMatchesBase(t *testing.T) {
	base := source(t, "PM2.5",
		[]string{"2023-01-01", "1", "A", "1", "u", "1"},
		[]string{"2023-01-01", "2", "B", "2", "u", "2"},
		[]string{"2023-01-02", "1", "A", "3", "u", "3"})
	other := source(t, "Ozone",
		[]string{"2023-01-01", "1", "A", "0.1", "ppm", "5"},
		[]string{"2023-01-05", "9", "Z", "0.2", "ppm", "6"})

	out, stats, err := MergeWithStats(base, []Source{other}, MergeOptions{Mode: ModeLeft})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, 1, stats.Unmatched["Ozone"])
	assert.Zero(t, stats.FanOut)
}

func TestMergeFanOut(t *testing.T) {
	base := source(t, "PM2.5",
		[]string{"2023-01-01", "1", "A", "1", "u", "1"},
		[]string{"2023-01-02", "1", "A", "2", "u", "2"})
	dup := source(t, "Ozone",
		[]string{"2023-01-01", "1", "A", "0.1", "ppm", "5"},
		[]string{"2023-01-01", "1", "A", "0.2", "ppm", "6"})

	out, stats, err := MergeWithStats(base, []Source{dup}, MergeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, 1, stats.FanOut)
	assert.Equal(t, "0.1", cell(t, out, 0, "Daily Max 8-hour Ozone Concentration").Text)
	assert.Equal(t, "0.2", cell(t, out, 1, "Daily Max 8-hour Ozone Concentration").Text)
	assert.Equal(t, "1", cell(t, out, 1, "Daily Mean PM2.5 Concentration").Text)
}

func TestMergeKeepsNullsNotZero(t *testing.T) {
	base := source(t, "PM2.5", []string{"2023-01-01", "1", "A", "4", "u", "1"})
	other := source(t, "Ozone", []string{"2023-01-02", "1", "A", "0.1", "ppm", "5"})

	out, err := Merge(base, []Source{other}, MergeOptions{})
	require.NoError(t, err)
	vals, err := out.Floats("Daily Max 8-hour Ozone Concentration")
	require.NoError(t, err)
	require.Len(t, vals, 1)
	assert.True(t, math.IsNaN(vals[0]))
}

func TestMergeOuterAppendsUnmatched(t *testing.T) {
	base := source(t, "PM2.5", []string{"2023-01-01", "1", "A", "4", "u", "1"})
	other := source(t, "Ozone",
		[]string{"2023-01-01", "1", "A", "0.1", "ppm", "5"},
		[]string{"01/03/2023", "7", "G", "0.3", "ppm", "9"})

	out, stats, err := MergeWithStats(base, []Source{other}, MergeOptions{Mode: ModeOuter})
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, 1, stats.OuterAdded)
	assert.Equal(t, "2023-01-03", cell(t, out, 1, "Date").Text)
	assert.Equal(t, "7", cell(t, out, 1, "Site ID").Text)
	assert.True(t, cell(t, out, 1, "Daily Mean PM2.5 Concentration").Null)
	assert.True(t, cell(t, out, 1, "Local Site Name").Null)
	assert.Equal(t, "G", cell(t, out, 1, "Local Site Name_ozone").Text)
}

func TestMergeMissingJoinKey(t *testing.T) {
	base := source(t, "PM2.5", []string{"2023-01-01", "1", "A", "4", "u", "1"})

	noSite, err := table.FromRecords([][]string{{"Date", "Daily Max 8-hour Ozone Concentration"}, {"2023-01-01", "0.1"}})
	require.NoError(t, err)
	_, err = Merge(base, []Source{{Pollutant: pollutant(t, "Ozone"), Table: noSite}}, MergeOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsMissingJoinKey(err))

	blank := source(t, "Ozone", []string{"", "1", "A", "0.1", "ppm", "5"})
	_, err = Merge(base, []Source{blank}, MergeOptions{})
	assert.True(t, errors.IsMissingJoinKey(err))

	garbled := source(t, "Ozone", []string{"yesterday", "1", "A", "0.1", "ppm", "5"})
	_, err = Merge(base, []Source{garbled}, MergeOptions{})
	assert.True(t, errors.IsMissingJoinKey(err))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeLeft, m)
	m, err = ParseMode("OUTER")
	require.NoError(t, err)
	assert.Equal(t, ModeOuter, m)
	_, err = ParseMode("inner")
	assert.True(t, errors.IsInvalidInput(err))
}

package analysis

import (
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

// mergedRows is a small merged-shaped table: two sites, a null site key, and gaps.
var mergedRows = [][]string{
	{"Date", "Site ID", "Local Site Name", "PM", "Ozone", "CO"},
	{"2023-01-01", "1", "Oakland", "10", "0.030", ""},
	{"2023-01-02", "1", "Oakland", "14", "", ""},
	{"2023-02-01", "1", "Oakland", "", "0.040", ""},
	{"2023-01-01", "2", "Fresno", "20", "0.050", "0.4"},
	{"2023-01-02", "2", "Fresno", "30", "0.052", ""},
	{"2023-01-03", "", "Nowhere", "99", "0.9", "9"},
}

func mergedTable(t *testing.T) *table.Table {
	t.Helper()
	tb, err := table.FromRecords(mergedRows)
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return tb
}

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestGroupAverageExcludesNulls(t *testing.T) {
	g, err := GroupAverage(mergedTable(t), []string{"Site ID"}, []string{"PM", "Ozone", "CO"})
	if err != nil {
		t.Fatalf("GroupAverage: %v", err)
	}
	if len(g.Groups) != 2 {
		t.Fatalf("expected 2 groups (null key excluded), got %d", len(g.Groups))
	}
	s1, ok := g.Lookup("1")
	if !ok {
		t.Fatalf("site 1 missing")
	}
	if s1.Size != 3 || s1.Values[0] != 12 || s1.Counts[0] != 2 {
		t.Fatalf("site 1 PM: %+v", s1)
	}
	if !almostEqual(s1.Values[1], 0.035, 1e-12) {
		t.Fatalf("site 1 ozone mean %v", s1.Values[1])
	}
	if !math.IsNaN(s1.Values[2]) || s1.Counts[2] != 0 {
		t.Fatalf("all-null CO should give a null mean, got %v", s1.Values[2])
	}
	s2, _ := g.Lookup("2")
	if s2.Values[2] != 0.4 {
		t.Fatalf("site 2 CO %v", s2.Values[2])
	}
}

func TestGroupAverageSortedCompositeKeys(t *testing.T) {
	tb, err := WithMonth(mergedTable(t), "Date", "Month")
	if err != nil {
		t.Fatalf("WithMonth: %v", err)
	}
	g, err := GroupAverage(tb, []string{"Site ID", "Month"}, []string{"PM"})
	if err != nil {
		t.Fatalf("GroupAverage: %v", err)
	}
	var keys []string
	for _, grp := range g.Groups {
		keys = append(keys, strings.Join(grp.Key, "/"))
	}
	want := []string{"1/2023-01", "1/2023-02", "2/2023-01"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("keys %v, want %v", keys, want)
	}
	if !sort.SliceIsSorted(g.Groups, func(i, j int) bool { return lessKey(g.Groups[i].Key, g.Groups[j].Key) }) {
		t.Fatalf("groups not sorted")
	}
	feb, _ := g.Lookup("1", "2023-02")
	if !math.IsNaN(feb.Values[0]) {
		t.Fatalf("site 1 February PM should be null, got %v", feb.Values[0])
	}
}

func TestGroupMaxAndLong(t *testing.T) {
	g, err := GroupMaxes(mergedTable(t), []string{"Local Site Name"}, []string{"PM", "CO"})
	if err != nil {
		t.Fatalf("GroupMaxes: %v", err)
	}
	fresno, _ := g.Lookup("Fresno")
	if fresno.Values[0] != 30 || fresno.Values[1] != 0.4 {
		t.Fatalf("fresno maxima %v", fresno.Values)
	}
	long := g.Long()
	// Fresno PM, Fresno CO, Nowhere PM, Nowhere CO, Oakland PM (Oakland CO is null)
	if len(long) != 5 {
		t.Fatalf("expected 5 melted rows, got %d: %+v", len(long), long)
	}
	single, err := GroupMax(mergedTable(t), []string{"Site ID"}, "Ozone")
	if err != nil {
		t.Fatalf("GroupMax: %v", err)
	}
	if s1, _ := single.Lookup("1"); s1.Values[0] != 0.04 {
		t.Fatalf("site 1 max ozone %v", s1.Values[0])
	}
	out, err := single.Table()
	if err != nil {
		t.Fatalf("Table: %v", err)
	}
	if out.Len() != 2 || !out.Has("Ozone") {
		t.Fatalf("group table %v", out.Records())
	}
}

func TestGroupTableRejectsRaggedGroup(t *testing.T) {
	g := &GroupTable{
		Agg:     Mean,
		Keys:    []string{"Site ID"},
		Columns: []string{"PM"},
		Groups:  []Group{{Key: []string{"1"}, Values: []float64{1, 2}}},
	}
	if _, err := g.Table(); err == nil {
		t.Fatalf("expected an error for a group with more values than columns")
	}
}

func TestGroupByErrors(t *testing.T) {
	if _, err := GroupAverage(mergedTable(t), []string{"nope"}, []string{"PM"}); !errors.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := GroupAverage(mergedTable(t), nil, []string{"PM"}); !errors.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	empty := mergedTable(t).Equals("Site ID", "404")
	g, err := GroupAverage(empty, []string{"Site ID"}, []string{"PM"})
	if err != nil || len(g.Groups) != 0 {
		t.Fatalf("empty selection should give no groups: %v %v", g, err)
	}
}

func TestDescribeInterpolatesQuartiles(t *testing.T) {
	tb, err := table.FromRecords([][]string{{"X"}, {"4"}, {"1"}, {"3"}, {"2"}})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	stats, err := Describe(tb, []string{"X"})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	x := stats[0]
	if x.Q25 != 1.75 || x.Median != 2.5 || x.Q75 != 3.25 {
		t.Fatalf("quartiles %v %v %v", x.Q25, x.Median, x.Q75)
	}
}

func TestDescribe(t *testing.T) {
	stats, err := Describe(mergedTable(t), []string{"PM", "CO"})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	pm := stats[0]
	// PM values: 10 14 20 30 99
	if pm.Count != 5 || pm.Missing != 1 || pm.Min != 10 || pm.Max != 99 || pm.Median != 20 {
		t.Fatalf("pm stats %+v", pm)
	}
	if pm.Q25 != 14 || pm.Q75 != 30 {
		t.Fatalf("quartiles %v %v", pm.Q25, pm.Q75)
	}
	if !almostEqual(pm.Mean, 34.6, 1e-9) {
		t.Fatalf("mean %v", pm.Mean)
	}
	// sample std of 10,14,20,30,99
	if !almostEqual(pm.Std, 36.78043, 1e-4) {
		t.Fatalf("std %v", pm.Std)
	}
	if co := stats[1]; co.Count != 2 || co.Missing != 4 {
		t.Fatalf("co stats %+v", co)
	}
	if _, err := Describe(mergedTable(t), []string{"missing"}); !errors.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestNumericColumns(t *testing.T) {
	got := NumericColumns(mergedTable(t))
	want := []string{"Site ID", "PM", "Ozone", "CO"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("numeric columns %v", got)
	}
}

func TestMissingness(t *testing.T) {
	tb := mergedTable(t)
	m, err := MissingnessReport(tb, []string{"PM", "CO"})
	if err != nil {
		t.Fatalf("MissingnessReport: %v", err)
	}
	if len(m.Mask) != tb.Len() || m.Mask[0][0] != true || m.Mask[0][1] != false {
		t.Fatalf("mask %v", m.Mask)
	}
	if m.Totals[1].Present != 2 || m.Totals[1].Total != 6 {
		t.Fatalf("co totals %+v", m.Totals[1])
	}
	if !strings.Contains(m.Markdown(), "CO: present 2/6") {
		t.Fatalf("markdown:\n%s", m.Markdown())
	}

	bySite, err := PresenceBy(tb, "Site ID", []string{"PM", "Ozone"})
	if err != nil {
		t.Fatalf("PresenceBy: %v", err)
	}
	if len(bySite) != 2 || bySite[0].Key != "1" || bySite[0].Present[0] != 2 || bySite[0].Present[1] != 2 {
		t.Fatalf("by site %+v", bySite)
	}
}

func TestCorrelationMatrixProperties(t *testing.T) {
	tb, err := table.FromRecords([][]string{
		{"a", "b", "c"},
		{"1", "2", "9"},
		{"2", "4", "7"},
		{"3", "7", ""},
		{"4", "8", "1"},
		{"", "10", "0"},
	})
	if err != nil {
		t.Fatal(err)
	}
	m, err := CorrelationMatrix(tb, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("CorrelationMatrix: %v", err)
	}
	for i := range m.Columns {
		if m.At(i, i) != 1 {
			t.Fatalf("diagonal %d = %v", i, m.At(i, i))
		}
		for j := range m.Columns {
			v := m.At(i, j)
			if v < -1 || v > 1 || v != m.At(j, i) {
				t.Fatalf("cell %d,%d = %v", i, j, v)
			}
		}
	}
	if m.Pairs[0][1] != 4 || m.Pairs[0][2] != 3 || m.Pairs[1][2] != 4 {
		t.Fatalf("pair counts %v", m.Pairs)
	}
	if r, _ := m.Lookup("a", "c"); r >= 0 {
		t.Fatalf("a~c should be negative, got %v", r)
	}
	if !strings.Contains(m.Markdown(), "[STRONGEST PAIRS]") {
		t.Fatalf("markdown:\n%s", m.Markdown())
	}
}

func TestCovarianceMatchesSampleFormula(t *testing.T) {
	tb, _ := table.FromRecords([][]string{{"x", "y"}, {"1", "2"}, {"2", "4"}, {"3", "6"}, {"", "100"}})
	m, err := CovarianceMatrix(tb, []string{"x", "y"})
	if err != nil {
		t.Fatalf("CovarianceMatrix: %v", err)
	}
	if m.At(0, 0) != 1 || m.At(0, 1) != 2 {
		t.Fatalf("cov %v", m.Rows())
	}
	// var(y) over all four present values, not the paired subset
	if !almostEqual(m.At(1, 1), 6920.0/3, 1e-9) {
		t.Fatalf("var(y) %v", m.At(1, 1))
	}
}

func TestMatrixFailedCellsAreSignalled(t *testing.T) {
	tb, _ := table.FromRecords([][]string{
		{"x", "flat", "sparse"},
		{"1", "5", ""},
		{"2", "5", "3"},
		{"3", "5", ""},
	})
	m, err := CorrelationMatrix(tb, []string{"x", "flat", "sparse"})
	if err == nil {
		t.Fatalf("expected a matrix error")
	}
	var me *MatrixError
	if !errors.As(err, &me) {
		t.Fatalf("expected *MatrixError, got %T", err)
	}
	if !errors.Is(err, errors.ErrNumericalDegeneracy) || !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("matrix error should match both sentinels: %v", err)
	}
	if m == nil || !math.IsNaN(m.At(0, 1)) || !math.IsNaN(m.At(0, 2)) {
		t.Fatalf("failed cells should be NaN: %v", m.Rows())
	}
	if m.At(0, 0) != 1 {
		t.Fatalf("x diagonal %v", m.At(0, 0))
	}

	if _, err := CovarianceMatrix(tb, nil); !errors.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

package analysis

import (
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

// Aggregation names the per-group reduction.
type Aggregation string

const (
	Mean Aggregation = "mean"
	Max  Aggregation = "max"
)

// Group is one key combination and its reduced values. Values[i] is NaN when
// column i has no present value in the group.
type Group struct {
	Key    []string  `json:"key" yaml:"key"`
	Size   int       `json:"size" yaml:"size"`
	Values []float64 `json:"values" yaml:"values"`
	Counts []int     `json:"counts" yaml:"counts"`
}

// GroupTable is the result of a grouped aggregation.
type GroupTable struct {
	Agg     Aggregation `json:"aggregation" yaml:"aggregation"`
	Keys    []string    `json:"keys" yaml:"keys"`
	Columns []string    `json:"columns" yaml:"columns"`
	Groups  []Group     `json:"groups" yaml:"groups"`
}

// GroupAverage computes the mean of each column per group, over that column's
// own present values within the group. Groups are sorted by key and rows with
// a null key cell are excluded.
func GroupAverage(t *table.Table, keys, columns []string) (*GroupTable, error) {
	return groupBy(t, keys, columns, Mean)
}

// GroupMax computes the per-group maximum of one column.
func GroupMax(t *table.Table, keys []string, column string) (*GroupTable, error) {
	return groupBy(t, keys, []string{column}, Max)
}

// GroupMaxes computes the per-group maximum of several columns at once.
func GroupMaxes(t *table.Table, keys, columns []string) (*GroupTable, error) {
	return groupBy(t, keys, columns, Max)
}

func groupBy(t *table.Table, keys, columns []string, agg Aggregation) (*GroupTable, error) {
	if len(keys) == 0 {
		return nil, errors.InvalidInputf("group by needs at least one key column")
	}
	if len(columns) == 0 {
		return nil, errors.InvalidInputf("group by needs at least one value column")
	}
	for _, c := range append(append([]string{}, keys...), columns...) {
		if !t.Has(c) {
			return nil, errors.InvalidInputf("unknown column %q", c)
		}
	}

	type acc struct {
		key  []string
		size int
		vals [][]float64
	}
	groups := map[string]*acc{}
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		key := make([]string, len(keys))
		skip := false
		for k, name := range keys {
			v, ok := r.Text(name)
			if !ok {
				skip = true
				break
			}
			key[k] = v
		}
		if skip {
			continue
		}
		id := strings.Join(key, "\x00")
		g := groups[id]
		if g == nil {
			g = &acc{key: key, vals: make([][]float64, len(columns))}
			groups[id] = g
		}
		g.size++
		for j, c := range columns {
			if v, ok := r.Float(c); ok {
				g.vals[j] = append(g.vals[j], v)
			}
		}
	}

	out := &GroupTable{Agg: agg, Keys: keys, Columns: columns, Groups: make([]Group, 0, len(groups))}
	for _, g := range groups {
		res := Group{Key: g.key, Size: g.size, Values: make([]float64, len(columns)), Counts: make([]int, len(columns))}
		for j, vals := range g.vals {
			res.Counts[j] = len(vals)
			if len(vals) == 0 {
				res.Values[j] = math.NaN()
				continue
			}
			switch agg {
			case Max:
				res.Values[j] = floats.Max(vals)
			default:
				res.Values[j] = stat.Mean(vals, nil)
			}
		}
		out.Groups = append(out.Groups, res)
	}
	sort.Slice(out.Groups, func(i, j int) bool { return lessKey(out.Groups[i].Key, out.Groups[j].Key) })
	return out, nil
}

func lessKey(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Lookup returns the group with the given key.
func (g *GroupTable) Lookup(key ...string) (Group, bool) {
	for _, grp := range g.Groups {
		if len(grp.Key) == len(key) && !lessKey(grp.Key, key) && !lessKey(key, grp.Key) {
			return grp, true
		}
	}
	return Group{}, false
}

// Table renders the groups as a table: key columns, then one column per
// aggregated value. Null means become null cells.
func (g *GroupTable) Table() (*table.Table, error) {
	cols := append(append([]string{}, g.Keys...), g.Columns...)
	out, err := table.New(cols)
	if err != nil {
		// Keys and value columns overlap; fall back to prefixed value names.
		cols = append([]string{}, g.Keys...)
		for _, c := range g.Columns {
			cols = append(cols, string(g.Agg)+" "+c)
		}
		out = table.MustNew(cols...)
	}
	for _, grp := range g.Groups {
		row := make([]table.Cell, 0, len(cols))
		for _, k := range grp.Key {
			row = append(row, table.Text(k))
		}
		for _, v := range grp.Values {
			row = append(row, table.Float(v))
		}
		if err := out.Append(row); err != nil {
			return nil, errors.Wrapf(err, "group %v", grp.Key)
		}
	}
	return out, nil
}

// LongRow is one (group, column) entry of a melted group table.
type LongRow struct {
	Key    []string `json:"key" yaml:"key"`
	Column string   `json:"column" yaml:"column"`
	Value  float64  `json:"value" yaml:"value"`
}

// Long melts the table into one row per group and column, skipping null
// values. Rows keep group order, then column order.
func (g *GroupTable) Long() []LongRow {
	var out []LongRow
	for _, grp := range g.Groups {
		for j, c := range g.Columns {
			if math.IsNaN(grp.Values[j]) {
				continue
			}
			out = append(out, LongRow{Key: grp.Key, Column: c, Value: grp.Values[j]})
		}
	}
	return out
}

// WithMonth returns a copy of t with a YYYY-MM column derived from dateColumn.
// Dates that do not parse give a null month.
func WithMonth(t *table.Table, dateColumn, out string) (*table.Table, error) {
	if !t.Has(dateColumn) {
		return nil, errors.InvalidInputf("unknown date column %q", dateColumn)
	}
	return t.WithColumn(out, func(r table.Row) table.Cell {
		s, ok := r.Text(dateColumn)
		if !ok {
			return table.Null()
		}
		for _, layout := range []string{"2006-01-02", "01/02/2006", time.RFC3339, "1/2/2006"} {
			if d, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return table.Text(d.Format("2006-01"))
			}
		}
		return table.Null()
	})
}

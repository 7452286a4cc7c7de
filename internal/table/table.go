// Package table holds the unified observation table: ordered rows of nullable
// text cells addressed by column name. A Table is read-only once built; every
// transformation returns a new Table.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Cell is one nullable value. Null cells carry no text.
type Cell struct {
	Text string
	Null bool
}

// Text returns a present cell.
func Text(s string) Cell { return Cell{Text: s} }

// Null returns a missing cell.
func Null() Cell { return Cell{Null: true} }

// Float returns a present cell holding f in its shortest representation.
func Float(f float64) Cell {
	if math.IsNaN(f) {
		return Null()
	}
	return Cell{Text: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Float64 parses the cell as a number. Null or unparseable cells report false.
func (c Cell) Float64() (float64, bool) {
	if c.Null {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(c.Text), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// String renders null cells as an empty string.
func (c Cell) String() string {
	if c.Null {
		return ""
	}
	return c.Text
}

// nullTokens are the textual spellings of a missing value in flat files.
var nullTokens = map[string]struct{}{"": {}, "NA": {}, "NaN": {}, "nan": {}, "<nil>": {}, "null": {}}

// Parse turns a raw file value into a Cell.
func Parse(s string) Cell {
	if _, ok := nullTokens[strings.TrimSpace(s)]; ok {
		return Null()
	}
	return Text(s)
}

// Table is an ordered set of rows sharing one column list.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Cell
}

// New returns an empty table with the given columns. Column names must be
// unique and non-empty.
func New(columns []string) (*Table, error) {
	t := &Table{columns: make([]string, len(columns)), index: make(map[string]int, len(columns))}
	copy(t.columns, columns)
	for i, c := range t.columns {
		if c == "" {
			return nil, fmt.Errorf("table: column %d has no name", i+1)
		}
		if _, dup := t.index[c]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", c)
		}
		t.index[c] = i
	}
	return t, nil
}

// MustNew is New for literal column lists.
func MustNew(columns ...string) *Table {
	t, err := New(columns)
	if err != nil {
		panic(err)
	}
	return t
}

// FromRecords builds a table from a header row followed by data rows. Short
// rows are padded with nulls.
func FromRecords(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("table: no header row")
	}
	t, err := New(records[0])
	if err != nil {
		return nil, err
	}
	for i, rec := range records[1:] {
		if len(rec) > len(t.columns) {
			return nil, fmt.Errorf("table: row %d has %d fields, header has %d", i+1, len(rec), len(t.columns))
		}
		row := make([]Cell, len(t.columns))
		for j := range row {
			if j < len(rec) {
				row[j] = Parse(rec[j])
			} else {
				row[j] = Null()
			}
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// Append adds a row while the table is being built. The row must have one
// cell per column.
func (t *Table) Append(cells []Cell) error {
	if len(cells) != len(t.columns) {
		return fmt.Errorf("table: row has %d cells, want %d", len(cells), len(t.columns))
	}
	row := make([]Cell, len(cells))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return nil
}

// Columns returns a copy of the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the column exists.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Row returns a read-only view of row i.
func (t *Table) Row(i int) Row { return Row{t: t, cells: t.rows[i]} }

// Col returns every cell of a column.
func (t *Table) Col(column string) ([]Cell, error) {
	j, ok := t.index[column]
	if !ok {
		return nil, fmt.Errorf("table: unknown column %q", column)
	}
	out := make([]Cell, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out, nil
}

// Floats returns the numeric view of a column with NaN for null or
// unparseable cells.
func (t *Table) Floats(column string) ([]float64, error) {
	cells, err := t.Col(column)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		if f, ok := c.Float64(); ok {
			out[i] = f
		} else {
			out[i] = math.NaN()
		}
	}
	return out, nil
}

// NonNull returns only the present numeric values of a column, in row order.
func (t *Table) NonNull(column string) ([]float64, error) {
	cells, err := t.Col(column)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(cells))
	for _, c := range cells {
		if f, ok := c.Float64(); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

// Distinct returns the distinct non-null values of a column in first-seen order.
func (t *Table) Distinct(column string) ([]string, error) {
	cells, err := t.Col(column)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, c := range cells {
		if c.Null {
			continue
		}
		if _, ok := seen[c.Text]; ok {
			continue
		}
		seen[c.Text] = struct{}{}
		out = append(out, c.Text)
	}
	return out, nil
}

// Filter returns the rows for which keep is true. Zero matching rows is a
// valid, empty table.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{columns: t.columns, index: t.index}
	for _, r := range t.rows {
		if keep(Row{t: t, cells: r}) {
			out.rows = append(out.rows, r)
		}
	}
	return out
}

// Equals keeps rows whose column holds exactly value. An unknown column
// matches nothing.
func (t *Table) Equals(column, value string) *Table {
	return t.Filter(func(r Row) bool {
		c := r.Get(column)
		return !c.Null && c.Text == value
	})
}

// WithColumn returns a copy of t with a column derived from each row. An
// existing column of the same name is replaced in place.
func (t *Table) WithColumn(name string, derive func(Row) Cell) (*Table, error) {
	if name == "" {
		return nil, fmt.Errorf("table: derived column needs a name")
	}
	cols := t.Columns()
	j, replace := t.index[name]
	if !replace {
		cols = append(cols, name)
		j = len(cols) - 1
	}
	out, err := New(cols)
	if err != nil {
		return nil, err
	}
	out.rows = make([][]Cell, len(t.rows))
	for i, r := range t.rows {
		row := make([]Cell, len(cols))
		copy(row, r)
		row[j] = derive(Row{t: t, cells: r})
		out.rows[i] = row
	}
	return out, nil
}

// Select returns a copy of t restricted to the given columns, in that order.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, ok := t.index[c]
		if !ok {
			return nil, fmt.Errorf("table: unknown column %q", c)
		}
		idx[i] = j
	}
	out, err := New(columns)
	if err != nil {
		return nil, err
	}
	out.rows = make([][]Cell, len(t.rows))
	for i, r := range t.rows {
		row := make([]Cell, len(idx))
		for k, j := range idx {
			row[k] = r[j]
		}
		out.rows[i] = row
	}
	return out, nil
}

// Records renders the header and rows as strings; null cells become "".
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.rows)+1)
	out = append(out, t.Columns())
	for _, r := range t.rows {
		rec := make([]string, len(r))
		for j, c := range r {
			rec[j] = c.String()
		}
		out = append(out, rec)
	}
	return out
}

// Row is a read-only view of one table row.
type Row struct {
	t     *Table
	cells []Cell
}

// Get returns the named cell; unknown columns read as null.
func (r Row) Get(column string) Cell {
	j, ok := r.t.index[column]
	if !ok {
		return Null()
	}
	return r.cells[j]
}

// Float returns the numeric value of the named cell.
func (r Row) Float(column string) (float64, bool) { return r.Get(column).Float64() }

// Text returns the text of the named cell and whether it is present.
func (r Row) Text(column string) (string, bool) {
	c := r.Get(column)
	return c.Text, !c.Null
}

package analysis

import (
	"sort"

	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

// Presence counts present cells of one column.
type Presence struct {
	Column  string `json:"column" yaml:"column"`
	Present int    `json:"present" yaml:"present"`
	Total   int    `json:"total" yaml:"total"`
}

// MissingFraction is the share of null cells; 0 for an empty column.
func (p Presence) MissingFraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Total-p.Present) / float64(p.Total)
}

// Missingness is the presence mask of a table over selected columns.
type Missingness struct {
	Columns []string   `json:"columns" yaml:"columns"`
	Mask    [][]bool   `json:"-" yaml:"-"` // Mask[row][col], true when present
	Totals  []Presence `json:"totals" yaml:"totals"`
}

// GroupPresence is the per-column presence within one group.
type GroupPresence struct {
	Key     string `json:"key" yaml:"key"`
	Total   int    `json:"total" yaml:"total"`
	Present []int  `json:"present" yaml:"present"` // aligned with the requested columns
}

// MissingnessReport builds the presence mask and per-column totals over the
// given columns, or every column when none are named.
func MissingnessReport(t *table.Table, columns []string) (*Missingness, error) {
	if len(columns) == 0 {
		columns = t.Columns()
	}
	cols, err := columnCells(t, columns)
	if err != nil {
		return nil, err
	}
	m := &Missingness{Columns: columns, Mask: make([][]bool, t.Len()), Totals: make([]Presence, len(columns))}
	for j, c := range columns {
		m.Totals[j] = Presence{Column: c, Total: t.Len()}
	}
	for i := 0; i < t.Len(); i++ {
		row := make([]bool, len(columns))
		for j := range columns {
			row[j] = !cols[j][i].Null
			if row[j] {
				m.Totals[j].Present++
			}
		}
		m.Mask[i] = row
	}
	return m, nil
}

// PresenceBy counts present cells per value of groupColumn (for example site
// or date). Groups are sorted by key; rows with a null key are skipped.
func PresenceBy(t *table.Table, groupColumn string, columns []string) ([]GroupPresence, error) {
	keys, err := t.Col(groupColumn)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "presence: %v", err)
	}
	cols, err := columnCells(t, columns)
	if err != nil {
		return nil, err
	}
	byKey := map[string]*GroupPresence{}
	for i, k := range keys {
		if k.Null {
			continue
		}
		g := byKey[k.Text]
		if g == nil {
			g = &GroupPresence{Key: k.Text, Present: make([]int, len(columns))}
			byKey[k.Text] = g
		}
		g.Total++
		for j := range columns {
			if !cols[j][i].Null {
				g.Present[j]++
			}
		}
	}
	out := make([]GroupPresence, 0, len(byKey))
	for _, g := range byKey {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func columnCells(t *table.Table, columns []string) ([][]table.Cell, error) {
	out := make([][]table.Cell, len(columns))
	for j, c := range columns {
		cells, err := t.Col(c)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "%v", err)
		}
		out[j] = cells
	}
	return out, nil
}

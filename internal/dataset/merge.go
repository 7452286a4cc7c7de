package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

// Mode selects how rows that exist only in a joined source are treated.
type Mode string

const (
	// ModeLeft keeps exactly the base source's keys.
	ModeLeft Mode = "left"
	// ModeOuter also appends keys found only in joined sources.
	ModeOuter Mode = "outer"
)

// ParseMode accepts "left" or "outer"; empty means left.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLeft:
		return ModeLeft, nil
	case ModeOuter:
		return ModeOuter, nil
	default:
		return "", errors.InvalidInputf("unknown merge mode %q (want left or outer)", s)
	}
}

// MergeOptions controls Merge.
type MergeOptions struct {
	Mode Mode
}

// MergeStats describes one merge for logging and the manifest.
type MergeStats struct {
	BaseRows     int
	Rows         int
	FanOut       int // rows added by duplicate keys in joined sources
	OuterAdded   int // rows appended in outer mode
	Unmatched    map[string]int
	SourceRows   map[string]int
	ColumnsAdded map[string][]string
}

type joinKey struct {
	date time.Time
	site string
}

func (k joinKey) String() string { return k.date.Format(canonicalDate) + "\x00" + k.site }

func keyOf(r table.Row, tag string, i int) (joinKey, error) {
	rawDate, okD := r.Text(airquality.ColDate)
	site, okS := r.Text(airquality.ColSiteID)
	site = strings.TrimSpace(site)
	if !okD || !okS || strings.TrimSpace(rawDate) == "" || site == "" {
		return joinKey{}, errors.WithHint(
			errors.Wrapf(errors.ErrMissingJoinKey, "%s row %d has a blank Date or Site ID", tag, i+1),
			"drop or repair rows without a date and site before merging")
	}
	d, ok := parseDate(rawDate)
	if !ok {
		return joinKey{}, errors.Wrapf(errors.ErrMissingJoinKey, "%s row %d: unparseable date %q", tag, i+1, rawDate)
	}
	return joinKey{date: d, site: site}, nil
}

// Merge left-joins every other source onto base by (Date, Site ID).
//
// Colliding non-key columns of a joined source get that source's suffix; the
// base source is never suffixed and a concentration column keeps its
// canonical name. A key absent from a joined source leaves nulls in every
// column that source contributes. Duplicate keys in a joined source multiply
// rows. In ModeOuter, keys present only in a joined source are appended after
// the existing rows with the key columns filled and every other column null.
func Merge(base Source, others []Source, opts MergeOptions) (*table.Table, error) {
	t, _, err := MergeWithStats(base, others, opts)
	return t, err
}

// MergeWithStats is Merge that also reports row accounting.
func MergeWithStats(base Source, others []Source, opts MergeOptions) (*table.Table, MergeStats, error) {
	stats := MergeStats{
		Unmatched:    map[string]int{},
		SourceRows:   map[string]int{},
		ColumnsAdded: map[string][]string{},
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeLeft
	}
	if mode != ModeLeft && mode != ModeOuter {
		return nil, stats, errors.InvalidInputf("unknown merge mode %q", mode)
	}
	if base.Table == nil {
		return nil, stats, errors.InvalidInputf("base source %s has no table", base.Pollutant.Tag)
	}
	if err := requireKeys(base.Table.Has, base.Pollutant.Tag); err != nil {
		return nil, stats, err
	}

	cols := base.Table.Columns()
	dateIdx, siteIdx := indexOf(cols, airquality.ColDate), indexOf(cols, airquality.ColSiteID)
	present := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		present[c] = struct{}{}
	}

	rows := make([][]table.Cell, 0, base.Table.Len())
	keys := make([]joinKey, 0, base.Table.Len())
	for i := 0; i < base.Table.Len(); i++ {
		r := base.Table.Row(i)
		k, err := keyOf(r, base.Pollutant.Tag, i)
		if err != nil {
			return nil, stats, err
		}
		row := make([]table.Cell, len(cols))
		for j, c := range cols {
			row[j] = r.Get(c)
		}
		row[dateIdx] = table.Text(k.date.Format(canonicalDate))
		row[siteIdx] = table.Text(k.site)
		rows = append(rows, row)
		keys = append(keys, k)
	}
	stats.BaseRows = len(rows)
	stats.SourceRows[base.Pollutant.Tag] = base.Table.Len()

	for _, src := range others {
		if src.Table == nil {
			return nil, stats, errors.InvalidInputf("source %s has no table", src.Pollutant.Tag)
		}
		if err := requireKeys(src.Table.Has, src.Pollutant.Tag); err != nil {
			return nil, stats, err
		}
		stats.SourceRows[src.Pollutant.Tag] = src.Table.Len()

		// Columns this source contributes and their merged names.
		var srcCols, outNames []string
		for _, c := range src.Table.Columns() {
			if c == airquality.ColDate || c == airquality.ColSiteID {
				continue
			}
			name := c
			if _, clash := present[c]; clash {
				if c == src.Pollutant.Column {
					return nil, stats, errors.InvalidInputf("concentration column %q appears in more than one source", c)
				}
				name = c + src.Pollutant.Suffix
				if _, clash := present[name]; clash {
					return nil, stats, errors.InvalidInputf("column %q from %s collides even after suffixing", name, src.Pollutant.Tag)
				}
			}
			present[name] = struct{}{}
			srcCols = append(srcCols, c)
			outNames = append(outNames, name)
		}
		stats.ColumnsAdded[src.Pollutant.Tag] = outNames

		index := map[string][]int{}
		var order []joinKey
		for i := 0; i < src.Table.Len(); i++ {
			k, err := keyOf(src.Table.Row(i), src.Pollutant.Tag, i)
			if err != nil {
				return nil, stats, err
			}
			ks := k.String()
			if _, seen := index[ks]; !seen {
				order = append(order, k)
			}
			index[ks] = append(index[ks], i)
		}

		width := len(cols) + len(srcCols)
		nextRows := make([][]table.Cell, 0, len(rows))
		nextKeys := make([]joinKey, 0, len(rows))
		matched := map[string]struct{}{}
		for ri, row := range rows {
			ks := keys[ri].String()
			hits := index[ks]
			if len(hits) == 0 {
				nextRows = append(nextRows, extend(row, width, nil, srcCols))
				nextKeys = append(nextKeys, keys[ri])
				continue
			}
			matched[ks] = struct{}{}
			for _, h := range hits {
				r := src.Table.Row(h)
				nextRows = append(nextRows, extend(row, width, &r, srcCols))
				nextKeys = append(nextKeys, keys[ri])
			}
			stats.FanOut += len(hits) - 1
		}

		for _, k := range order {
			ks := k.String()
			if _, ok := matched[ks]; ok {
				continue
			}
			hits := index[ks]
			stats.Unmatched[src.Pollutant.Tag] += len(hits)
			if mode != ModeOuter {
				continue
			}
			blank := make([]table.Cell, len(cols))
			for j := range blank {
				blank[j] = table.Null()
			}
			blank[dateIdx] = table.Text(k.date.Format(canonicalDate))
			blank[siteIdx] = table.Text(k.site)
			for _, h := range hits {
				r := src.Table.Row(h)
				nextRows = append(nextRows, extend(blank, width, &r, srcCols))
				nextKeys = append(nextKeys, k)
				stats.OuterAdded++
			}
		}

		rows, keys = nextRows, nextKeys
		cols = append(cols, outNames...)
	}

	out, err := table.New(cols)
	if err != nil {
		return nil, stats, fmt.Errorf("merged schema: %w", err)
	}
	for _, r := range rows {
		if err := out.Append(r); err != nil {
			return nil, stats, err
		}
	}
	stats.Rows = out.Len()
	return out, stats, nil
}

// MergedName is the name a source column of p takes in a table merged onto
// base, assuming every source carries the standard EPA columns. Join keys and
// concentration columns keep their names.
func MergedName(base, p airquality.Pollutant, column string) string {
	switch {
	case p.Tag == base.Tag, column == p.Column, column == airquality.ColDate, column == airquality.ColSiteID:
		return column
	}
	return column + p.Suffix
}

// extend copies row and appends the joined source's cells, or nulls when src is nil.
func extend(row []table.Cell, width int, src *table.Row, srcCols []string) []table.Cell {
	out := make([]table.Cell, len(row), width)
	copy(out, row)
	for _, c := range srcCols {
		if src == nil {
			out = append(out, table.Null())
		} else {
			out = append(out, src.Get(c))
		}
	}
	return out
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

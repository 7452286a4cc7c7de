package cmd

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/analysis"
	"github.com/KaramelBytes/airstat-cli/internal/dataset"
	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/logger"
	"github.com/KaramelBytes/airstat-cli/internal/render"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

// monthColumn is the derived YYYY-MM grouping column.
const monthColumn = "Month"

// newStage builds the merge stage from the loaded configuration.
func newStage() (*dataset.Stage, error) {
	cat, err := cfg.Catalog()
	if err != nil {
		return nil, errors.WithHint(err, "check the pollutants list in the config")
	}
	mode, err := dataset.ParseMode(cfg.MergeMode)
	if err != nil {
		return nil, err
	}
	return &dataset.Stage{
		Catalog:    cat,
		DataDir:    cfg.DataDir,
		Base:       cfg.BasePollutant,
		Mode:       mode,
		MergedPath: cfg.MergedPath,
		Metrics:    metrics,
		Log:        logger.Logger,
	}, nil
}

// merged is the loaded merged table with the stage that produced it.
type merged struct {
	stage *dataset.Stage
	base  airquality.Pollutant
	table *table.Table
}

// loadMerged reads the merged artifact. It never re-merges.
func loadMerged() (*merged, error) {
	st, err := newStage()
	if err != nil {
		return nil, err
	}
	base, err := st.BasePollutant()
	if err != nil {
		return nil, err
	}
	t, err := st.Load()
	if err != nil {
		return nil, err
	}
	return &merged{stage: st, base: base, table: t}, nil
}

// pollutant resolves a tag, defaulting to the base pollutant.
func (m *merged) pollutant(tag string) (airquality.Pollutant, error) {
	if tag == "" {
		return m.base, nil
	}
	p, ok := m.stage.Catalog.Lookup(tag)
	if !ok {
		return p, errors.WithHintf(
			errors.InvalidInputf("unknown pollutant %q", tag),
			"choose one of %s", strings.Join(m.stage.Catalog.Tags(), ", "))
	}
	if !m.table.Has(p.Column) {
		return p, errors.WithHint(
			errors.InvalidInputf("pollutant %s is not in the merged table", p.Tag),
			"add its source file and run `airstat merge --force`")
	}
	return p, nil
}

// concentrationColumns lists the catalog's concentration columns present in
// the table, in catalog order.
func (m *merged) concentrationColumns() []string {
	var out []string
	for _, c := range m.stage.Catalog.Columns() {
		if m.table.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// aqiColumn is the daily AQI column that belongs to p.
func (m *merged) aqiColumn(p airquality.Pollutant) string {
	return dataset.MergedName(m.base, p, airquality.ColDailyAQI)
}

// filter applies the --site and --month selections. Site matches either the
// site name or the site id.
func filter(t *table.Table, site, month string) (*table.Table, error) {
	if site != "" {
		t = t.Filter(func(r table.Row) bool {
			name, _ := r.Text(airquality.ColSiteName)
			id, _ := r.Text(airquality.ColSiteID)
			return strings.EqualFold(name, site) || id == site
		})
	}
	if month != "" {
		if _, err := time.Parse("2006-01", month); err != nil {
			return nil, errors.InvalidInputf("--month must be YYYY-MM, got %q", month)
		}
		withMonth, err := analysis.WithMonth(t, airquality.ColDate, monthColumn)
		if err != nil {
			return nil, err
		}
		t = withMonth.Equals(monthColumn, month)
	}
	return t, nil
}

// view is one command result in every output format.
type view struct {
	data     interface{}
	markdown string
	header   []string // terminal table; nil falls back to markdown
	rows     [][]string
}

func emit(cmd *cobra.Command, v view) error {
	out := cmd.OutOrStdout()
	switch {
	case format.Structured():
		return render.Encode(out, format, v.data)
	case format == render.Table && v.header != nil:
		s, err := render.TerminalTable(v.header, v.rows)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, s)
		return nil
	default:
		fmt.Fprintln(out, strings.TrimRight(v.markdown, "\n"))
		return nil
	}
}

// noData prints the empty-selection notice when t has no rows.
func noData(cmd *cobra.Command, t *table.Table) bool {
	if t.Len() > 0 {
		return false
	}
	fmt.Fprintln(cmd.OutOrStdout(), render.NoData)
	return true
}

// observe times one analysis and records its outcome.
func observe(kind string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.Observe(kind, start, err)
	logger.Logger.Debugw("analysis finished", "kind", kind, "duration", time.Since(start), "error", err)
	return err
}

// groupRows lays out a grouped result for the terminal table view. Null
// aggregates print as NA.
func groupRows(g *analysis.GroupTable) (header []string, rows [][]string, err error) {
	t, err := g.Table()
	if err != nil {
		return nil, nil, err
	}
	header = t.Columns()
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		row := make([]string, len(header))
		for j, c := range header {
			if j < len(g.Keys) {
				row[j] = r.Get(c).String()
				continue
			}
			v, ok := r.Float(c)
			if !ok {
				v = math.NaN()
			}
			row[j] = render.Num(v)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

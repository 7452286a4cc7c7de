package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/analysis"
	"github.com/KaramelBytes/airstat-cli/internal/render"
)

var (
	avgBy        string
	avgSite      string
	avgMonth     string
	avgPollutant string

	maxPollutant string
	maxChart     string
)

// columnsFor returns one pollutant's concentration column, or every
// concentration column for "" and "all".
func (m *merged) columnsFor(tag string) ([]string, error) {
	if tag == "" || strings.EqualFold(tag, "all") {
		return m.concentrationColumns(), nil
	}
	p, err := m.pollutant(tag)
	if err != nil {
		return nil, err
	}
	return []string{p.Column}, nil
}

var averagesCmd = &cobra.Command{
	Use:   "averages",
	Short: "Average concentrations per site, per site and month, or per site and day",
	Long: `Averages groups the merged table by site (or by site and month, or by site and date)
and reports each pollutant's mean over its own present values. Nulls are never treated
as zero. --by date with --site and --pollutant gives one location's daily series.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMerged()
		if err != nil {
			return err
		}
		cols, err := m.columnsFor(avgPollutant)
		if err != nil {
			return err
		}
		t, err := filter(m.table, avgSite, avgMonth)
		if err != nil {
			return err
		}
		if noData(cmd, t) {
			return nil
		}
		keys := []string{airquality.ColSiteName}
		switch strings.ToLower(avgBy) {
		case "site", "":
		case "site-month", "month":
			t, err = analysis.WithMonth(t, airquality.ColDate, monthColumn)
			if err != nil {
				return err
			}
			keys = append(keys, monthColumn)
		case "site-date", "date":
			keys = append(keys, airquality.ColDate)
		default:
			return fmt.Errorf("unsupported --by: %s (use site|site-month|site-date)", avgBy)
		}

		var g *analysis.GroupTable
		err = observe("averages", func() error {
			g, err = analysis.GroupAverage(t, keys, cols)
			return err
		})
		if err != nil {
			return err
		}
		header, rows, err := groupRows(g)
		if err != nil {
			return err
		}
		return emit(cmd, view{data: g, markdown: g.Markdown(), header: header, rows: rows})
	},
}

var maximaCmd = &cobra.Command{
	Use:   "maxima",
	Short: "Maximum concentration per site for one pollutant or all",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMerged()
		if err != nil {
			return err
		}
		cols, err := m.columnsFor(maxPollutant)
		if err != nil {
			return err
		}
		if noData(cmd, m.table) {
			return nil
		}
		keys := []string{airquality.ColSiteName}

		var g *analysis.GroupTable
		err = observe("maxima", func() error {
			g, err = analysis.GroupMaxes(m.table, keys, cols)
			return err
		})
		if err != nil {
			return err
		}
		if maxChart != "" {
			if len(cols) != 1 {
				return fmt.Errorf("--chart needs a single --pollutant")
			}
			if err := writeBarChart(maxChart, "Max "+cols[0], g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Chart written to %s\n", maxChart)
		}

		var md strings.Builder
		md.WriteString(g.Markdown())
		if len(cols) > 1 {
			md.WriteString("\n[MAX PER SITE AND POLLUTANT]\n")
			for _, r := range g.Long() {
				md.WriteString(fmt.Sprintf("- %s / %s: %s\n", strings.Join(r.Key, " / "), r.Column, render.Num(r.Value)))
			}
		}
		header, rows, err := groupRows(g)
		if err != nil {
			return err
		}
		return emit(cmd, view{data: g, markdown: md.String(), header: header, rows: rows})
	},
}

func writeBarChart(path, title string, g *analysis.GroupTable) error {
	labels := make([]string, len(g.Groups))
	values := make([]float64, len(g.Groups))
	for i, grp := range g.Groups {
		labels[i] = strings.Join(grp.Key, " / ")
		values[i] = grp.Values[0]
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := render.BarPNG(f, title, labels, values); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(averagesCmd)
	averagesCmd.Flags().StringVar(&avgBy, "by", "site", "grouping: site | site-month | site-date")
	averagesCmd.Flags().StringVar(&avgSite, "site", "", "restrict to one site (name or id)")
	averagesCmd.Flags().StringVar(&avgMonth, "month", "", "restrict to one month (YYYY-MM)")
	averagesCmd.Flags().StringVarP(&avgPollutant, "pollutant", "p", "all", "pollutant tag or 'all'")

	rootCmd.AddCommand(maximaCmd)
	maximaCmd.Flags().StringVarP(&maxPollutant, "pollutant", "p", "all", "pollutant tag or 'all'")
	maximaCmd.Flags().StringVar(&maxChart, "chart", "", "write a PNG bar chart of the per-site maxima (single pollutant)")
}

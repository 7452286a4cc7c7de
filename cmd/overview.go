package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/analysis"
	"github.com/KaramelBytes/airstat-cli/internal/render"
)

var (
	ovBy    string
	ovSite  string
	ovMonth string
)

type overviewResult struct {
	Rows        int                      `yaml:"rows"`
	Stats       []analysis.ColumnStats   `yaml:"stats"`
	Missingness *analysis.Missingness    `yaml:"missingness"`
	GroupedBy   string                   `yaml:"grouped_by"`
	Presence    []analysis.GroupPresence `yaml:"presence"`
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Describe the merged table and its missing values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		groupCol, err := overviewGroupColumn(ovBy)
		if err != nil {
			return err
		}
		m, err := loadMerged()
		if err != nil {
			return err
		}
		t, err := filter(m.table, ovSite, ovMonth)
		if err != nil {
			return err
		}
		if noData(cmd, t) {
			return nil
		}
		cols := m.concentrationColumns()

		var res overviewResult
		err = observe("overview", func() error {
			stats, err := analysis.Describe(t, cols)
			if err != nil {
				return err
			}
			miss, err := analysis.MissingnessReport(t, cols)
			if err != nil {
				return err
			}
			presence, err := analysis.PresenceBy(t, groupCol, cols)
			if err != nil {
				return err
			}
			res = overviewResult{Rows: t.Len(), Stats: stats, Missingness: miss, GroupedBy: groupCol, Presence: presence}
			return nil
		})
		if err != nil {
			return err
		}

		var md strings.Builder
		md.WriteString(analysis.DescribeMarkdown("merged dataset", res.Rows, res.Stats))
		md.WriteString("\n")
		md.WriteString(res.Missingness.Markdown())
		md.WriteString("\n")
		md.WriteString(analysis.PresenceMarkdown(groupCol, cols, res.Presence))

		header := []string{"Column", "Count", "Missing", "Mean", "Std", "Min", "25%", "50%", "75%", "Max"}
		var rows [][]string
		for _, s := range res.Stats {
			rows = append(rows, []string{
				s.Name, fmt.Sprint(s.Count), fmt.Sprint(s.Missing),
				render.Num(s.Mean), render.Num(s.Std), render.Num(s.Min),
				render.Num(s.Q25), render.Num(s.Median), render.Num(s.Q75), render.Num(s.Max),
			})
		}
		return emit(cmd, view{data: res, markdown: md.String(), header: header, rows: rows})
	},
}

func overviewGroupColumn(by string) (string, error) {
	switch strings.ToLower(by) {
	case "site", "":
		return airquality.ColSiteName, nil
	case "date":
		return airquality.ColDate, nil
	default:
		return "", fmt.Errorf("unsupported --by: %s (use site|date)", by)
	}
}

func init() {
	rootCmd.AddCommand(overviewCmd)
	overviewCmd.Flags().StringVar(&ovBy, "by", "site", "group the presence counts by: site | date")
	overviewCmd.Flags().StringVar(&ovSite, "site", "", "restrict to one site (name or id)")
	overviewCmd.Flags().StringVar(&ovMonth, "month", "", "restrict to one month (YYYY-MM)")
}

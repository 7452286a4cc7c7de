package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/hypothesis"
	"github.com/KaramelBytes/airstat-cli/internal/render"
)

// categoryColumn is the derived AQI category column.
const categoryColumn = "AQI Category"

var (
	chiPollutant string
	chiAlpha     float64
	chiYates     bool
	chiBy        string
	chiMonth     string
)

type chiSquareReport struct {
	Pollutant string  `yaml:"pollutant"`
	AQIColumn string  `yaml:"aqi_column"`
	By        string  `yaml:"by"`
	Alpha     float64 `yaml:"alpha"`
	Reject    bool    `yaml:"reject_independence"`

	hypothesis.ChiSquareResult `yaml:",inline"`
}

func (r chiSquareReport) markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Chi-square test: %s vs %s category\n\n", r.By, r.AQIColumn))
	ct := r.Contingency
	b.WriteString("| " + safeCell(r.By) + " | " + strings.Join(ct.Cols, " | ") + " | Total |\n")
	b.WriteString("|" + strings.Repeat("---|", len(ct.Cols)+2) + "\n")
	for i, row := range ct.Counts {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = render.Num(v)
		}
		b.WriteString("| " + safeCell(ct.Rows[i]) + " | " + strings.Join(cells, " | ") + " | " + render.Num(ct.RowTotals[i]) + " |\n")
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("- Statistic: %.6g\n- Degrees of freedom: %d\n- p-value: %.6g\n", r.Statistic, r.DoF, r.PValue))
	if r.Yates {
		b.WriteString("- Yates continuity correction applied\n")
	}
	if r.Reject {
		b.WriteString(fmt.Sprintf("- Decision: reject independence at alpha=%.4g\n", r.Alpha))
	} else {
		b.WriteString(fmt.Sprintf("- Decision: cannot reject independence at alpha=%.4g\n", r.Alpha))
	}
	if n := len(r.SparseCells); n > 0 {
		b.WriteString(fmt.Sprintf("\n⚠ %d cell(s) have an expected count below %.0f; the approximation may be poor.\n", n, hypothesis.SparseExpected))
	}
	return b.String()
}

func safeCell(s string) string { return strings.ReplaceAll(s, "|", "/") }

var chisquareCmd = &cobra.Command{
	Use:   "chisquare",
	Short: "Test whether AQI category is independent of the monitoring site",
	Long: `Chisquare maps a pollutant's daily AQI onto the configured categories, cross-tabulates
them against --by (the site name by default) and runs Pearson's chi-square test of
independence. Days without an AQI are left out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMerged()
		if err != nil {
			return err
		}
		p, err := m.pollutant(chiPollutant)
		if err != nil {
			return err
		}
		aqiCol := m.aqiColumn(p)
		scale, err := cfg.Scale()
		if err != nil {
			return err
		}
		alpha := pickFloat(cmd, "alpha", chiAlpha, cfg.SignificanceLevel)
		if !(alpha > 0 && alpha < 1) {
			return fmt.Errorf("--alpha must be in (0, 1), got %v", alpha)
		}
		t, err := filter(m.table, "", chiMonth)
		if err != nil {
			return err
		}
		if noData(cmd, t) {
			return nil
		}

		var report chiSquareReport
		err = observe("chisquare", func() error {
			withCat, err := hypothesis.WithCategory(t, aqiCol, categoryColumn, scale)
			if err != nil {
				return err
			}
			res, err := hypothesis.ChiSquareIndependence(withCat, chiBy, categoryColumn,
				hypothesis.ChiSquareOptions{Yates: chiYates, Order: scale.Labels()})
			if err != nil {
				return err
			}
			report = chiSquareReport{
				Pollutant:       p.Tag,
				AQIColumn:       aqiCol,
				By:              chiBy,
				Alpha:           alpha,
				Reject:          res.RejectIndependence(alpha),
				ChiSquareResult: *res,
			}
			return nil
		})
		if err != nil {
			return err
		}
		if n := len(report.SparseCells); n > 0 && format.Structured() {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %d cell(s) have an expected count below %.0f\n", n, hypothesis.SparseExpected)
		}

		ct := report.Contingency
		header := append(append([]string{chiBy}, ct.Cols...), "Total")
		var rows [][]string
		for i, row := range ct.Counts {
			r := []string{ct.Rows[i]}
			for _, v := range row {
				r = append(r, render.Num(v))
			}
			rows = append(rows, append(r, render.Num(ct.RowTotals[i])))
		}
		return emit(cmd, view{data: report, markdown: report.markdown(), header: header, rows: rows})
	},
}

func init() {
	rootCmd.AddCommand(chisquareCmd)
	chisquareCmd.Flags().StringVarP(&chiPollutant, "pollutant", "p", "", "pollutant whose daily AQI is categorized (default: base pollutant)")
	chisquareCmd.Flags().Float64Var(&chiAlpha, "alpha", 0.05, "significance level (default from config)")
	chisquareCmd.Flags().BoolVar(&chiYates, "yates", false, "apply Yates' continuity correction to 2x2 tables")
	chisquareCmd.Flags().StringVar(&chiBy, "by", airquality.ColSiteName, "row variable of the contingency table")
	chisquareCmd.Flags().StringVar(&chiMonth, "month", "", "restrict to one month (YYYY-MM)")
}

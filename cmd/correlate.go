package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/airstat-cli/internal/analysis"
	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/render"
)

var (
	corrColumns []string
	corrSite    string
	corrMonth   string
)

type correlationReport struct {
	Columns     []string         `yaml:"columns"`
	Covariance  *analysis.Matrix `yaml:"covariance"`
	Correlation *analysis.Matrix `yaml:"correlation"`
	Warnings    []string         `yaml:"warnings,omitempty"`
}

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Covariance and correlation matrices across pollutant concentrations",
	Long: `Correlate computes the pairwise-complete sample covariance and Pearson correlation
matrices of the selected columns (every pollutant concentration by default). Cells that
cannot be computed are reported and left as NA; the rest of the matrix is still shown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMerged()
		if err != nil {
			return err
		}
		cols := append([]string(nil), corrColumns...)
		if len(cols) == 0 {
			cols = m.concentrationColumns()
		}
		for i, c := range cols {
			if m.table.Has(c) {
				continue
			}
			// Accept pollutant tags as well as column names.
			p, err := m.pollutant(c)
			if err != nil {
				return errors.WithHint(errors.InvalidInputf("unknown column %q", c), "pass merged column names or pollutant tags")
			}
			cols[i] = p.Column
		}
		t, err := filter(m.table, corrSite, corrMonth)
		if err != nil {
			return err
		}
		if noData(cmd, t) {
			return nil
		}

		report := correlationReport{Columns: cols}
		err = observe("correlate", func() error {
			cov, covErr := analysis.CovarianceMatrix(t, cols)
			if cov == nil {
				return covErr
			}
			corr, corrErr := analysis.CorrelationMatrix(t, cols)
			if corr == nil {
				return corrErr
			}
			report.Covariance, report.Correlation = cov, corr
			for _, e := range []error{covErr, corrErr} {
				var me *analysis.MatrixError
				if errors.As(e, &me) {
					for _, c := range me.Cells {
						report.Warnings = append(report.Warnings, fmt.Sprintf("%s %s", me.Kind, c.Error()))
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, w := range report.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s\n", w)
		}

		var md strings.Builder
		md.WriteString(report.Covariance.Markdown())
		md.WriteString("\n")
		md.WriteString(report.Correlation.Markdown())

		header := append([]string{"r"}, cols...)
		var rows [][]string
		for i, vals := range report.Correlation.Rows() {
			r := []string{cols[i]}
			for _, v := range vals {
				r = append(r, render.Num(v))
			}
			rows = append(rows, r)
		}
		return emit(cmd, view{data: report, markdown: md.String(), header: header, rows: rows})
	},
}

func init() {
	rootCmd.AddCommand(correlateCmd)
	correlateCmd.Flags().StringSliceVar(&corrColumns, "columns", nil, "columns or pollutant tags to include (default: all concentrations)")
	correlateCmd.Flags().StringVar(&corrSite, "site", "", "restrict to one site (name or id)")
	correlateCmd.Flags().StringVar(&corrMonth, "month", "", "restrict to one month (YYYY-MM)")
}

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/analysis"
	"github.com/KaramelBytes/airstat-cli/internal/hypothesis"
	"github.com/KaramelBytes/airstat-cli/internal/render"
	"github.com/KaramelBytes/airstat-cli/internal/resample"
	"github.com/KaramelBytes/airstat-cli/internal/utils"
)

var (
	rpOut    string
	rpQuiet  bool
	rpEnsure bool
	rpSeed   uint64
)

// reportStep renders one section of the full report.
type reportStep struct {
	name string
	run  func(m *merged) (string, error)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run every analysis over the merged table and write one markdown report",
	Long: `Report runs the overview, grouped averages and maxima, bootstrap interval, Monte Carlo
projection, chi-square test and correlation matrix with the configured defaults and
writes them as one markdown document. A step that fails is reported in its section
and the remaining steps still run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rpEnsure {
			st, err := newStage()
			if err != nil {
				return err
			}
			if _, rebuilt, err := st.Ensure(cmd.Context()); err != nil {
				return err
			} else if rebuilt && !rpQuiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Rebuilt %s\n", st.MergedPath)
			}
		}
		m, err := loadMerged()
		if err != nil {
			return err
		}
		if noData(cmd, m.table) {
			return nil
		}
		var seed *uint64
		if cmd.Flags().Changed("seed") {
			s := rpSeed
			seed = &s
		}

		steps := reportSteps(cmd, seed)
		var b strings.Builder
		b.WriteString("# Air quality report\n\n")
		b.WriteString(fmt.Sprintf("Source: %s (%d rows), generated %s\n\n", m.stage.MergedPath, m.table.Len(), time.Now().Format(time.RFC3339)))
		failed := 0
		for i, step := range steps {
			if !rpQuiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] Running %s...\n", i+1, len(steps), step.name)
			}
			var section string
			err := observe(step.name, func() error {
				var err error
				section, err = step.run(m)
				return err
			})
			if err != nil {
				failed++
				section = fmt.Sprintf("# %s\n\n⚠ %v\n", step.name, err)
				if !rpQuiet {
					fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s failed: %v\n", step.name, err)
				}
			}
			b.WriteString(strings.TrimRight(section, "\n"))
			b.WriteString("\n\n")
		}

		if rpOut == "" {
			fmt.Fprint(cmd.OutOrStdout(), b.String())
		} else {
			if err := utils.SafeWriteFile(rpOut, []byte(b.String())); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if !rpQuiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "✓ Report written to %s\n", rpOut)
			}
		}
		if failed == len(steps) {
			return fmt.Errorf("every report step failed")
		}
		return nil
	},
}

func reportSteps(cmd *cobra.Command, seed *uint64) []reportStep {
	return []reportStep{
		{"overview", func(m *merged) (string, error) {
			cols := m.concentrationColumns()
			stats, err := analysis.Describe(m.table, cols)
			if err != nil {
				return "", err
			}
			miss, err := analysis.MissingnessReport(m.table, cols)
			if err != nil {
				return "", err
			}
			presence, err := analysis.PresenceBy(m.table, airquality.ColSiteName, cols)
			if err != nil {
				return "", err
			}
			return analysis.DescribeMarkdown("merged dataset", m.table.Len(), stats) + "\n" +
				miss.Markdown() + "\n" +
				analysis.PresenceMarkdown(airquality.ColSiteName, cols, presence), nil
		}},
		{"averages", func(m *merged) (string, error) {
			withMonth, err := analysis.WithMonth(m.table, airquality.ColDate, monthColumn)
			if err != nil {
				return "", err
			}
			g, err := analysis.GroupAverage(withMonth, []string{airquality.ColSiteName, monthColumn}, m.concentrationColumns())
			if err != nil {
				return "", err
			}
			return g.Markdown(), nil
		}},
		{"maxima", func(m *merged) (string, error) {
			g, err := analysis.GroupMaxes(m.table, []string{airquality.ColSiteName}, m.concentrationColumns())
			if err != nil {
				return "", err
			}
			return g.Markdown(), nil
		}},
		{"bootstrap", func(m *merged) (string, error) {
			data, err := m.table.NonNull(m.base.Column)
			if err != nil {
				return "", err
			}
			res, err := resample.BootstrapContext(cmd.Context(), data, resample.BootstrapOptions{
				Iterations:      cfg.BootstrapIterations,
				ConfidenceLevel: cfg.ConfidenceLevel,
				Workers:         cfg.Workers,
				Seed:            seed,
			})
			if err != nil {
				return "", err
			}
			if metrics != nil {
				metrics.BootstrapIterations.Add(float64(res.Iterations))
			}
			return bootstrapReport{Pollutant: m.base.Tag, Column: m.base.Column, Statistic: "mean", BootstrapResult: *res}.markdown(""), nil
		}},
		{"simulate", func(m *merged) (string, error) {
			data, err := m.table.NonNull(m.base.Column)
			if err != nil {
				return "", err
			}
			mu, sigma, err := resample.FitNormal(data)
			if err != nil {
				return "", err
			}
			opts := resample.SimulationOptions{Simulations: cfg.Simulations, Horizon: cfg.HorizonDays, Seed: seed}
			means, used, err := resample.Simulate(mu, sigma, opts)
			if err != nil {
				return "", err
			}
			sum, err := resample.Summarize(means, 0, cfg.HistogramBins)
			if err != nil {
				return "", err
			}
			sum.Mu, sum.Sigma, sum.Horizon = mu, sigma, opts.Horizon
			r := simulationReport{Pollutant: m.base.Tag, Column: m.base.Column, Seed: used, SimulationSummary: *sum}
			return r.markdown(render.HistogramPlot(sum.Histogram, 60, 10, "simulated means")), nil
		}},
		{"chisquare", func(m *merged) (string, error) {
			scale, err := cfg.Scale()
			if err != nil {
				return "", err
			}
			aqiCol := m.aqiColumn(m.base)
			withCat, err := hypothesis.WithCategory(m.table, aqiCol, categoryColumn, scale)
			if err != nil {
				return "", err
			}
			res, err := hypothesis.ChiSquareIndependence(withCat, airquality.ColSiteName, categoryColumn,
				hypothesis.ChiSquareOptions{Order: scale.Labels()})
			if err != nil {
				return "", err
			}
			return chiSquareReport{
				Pollutant:       m.base.Tag,
				AQIColumn:       aqiCol,
				By:              airquality.ColSiteName,
				Alpha:           cfg.SignificanceLevel,
				Reject:          res.RejectIndependence(cfg.SignificanceLevel),
				ChiSquareResult: *res,
			}.markdown(), nil
		}},
		{"correlate", func(m *merged) (string, error) {
			cols := m.concentrationColumns()
			corr, err := analysis.CorrelationMatrix(m.table, cols)
			if corr == nil {
				return "", err
			}
			md := corr.Markdown()
			if err != nil {
				md += fmt.Sprintf("\n⚠ %v\n", err)
			}
			return md, nil
		}},
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&rpOut, "out", "o", "", "write the report to this file instead of stdout")
	reportCmd.Flags().BoolVarP(&rpQuiet, "quiet", "q", false, "suppress progress output")
	reportCmd.Flags().BoolVar(&rpEnsure, "ensure", false, "rebuild the merged table first when its sources changed")
	reportCmd.Flags().Uint64Var(&rpSeed, "seed", 0, "random seed for the bootstrap and simulation steps")
}

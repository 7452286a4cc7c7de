package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/airstat-cli/internal/render"
	"github.com/KaramelBytes/airstat-cli/internal/resample"
)

var (
	bsPollutant  string
	bsSite       string
	bsConfidence float64
	bsIterations int
	bsSeed       uint64
	bsWorkers    int
	bsBins       int
	bsStatistic  string
	bsChart      string
	bsPlot       bool

	simPollutant   string
	simSite        string
	simThreshold   float64
	simSimulations int
	simHorizon     int
	simSeed        uint64
	simBins        int
	simChart       string
	simPlot        bool
)

type bootstrapReport struct {
	Pollutant string `yaml:"pollutant"`
	Column    string `yaml:"column"`
	Site      string `yaml:"site,omitempty"`
	Statistic string `yaml:"statistic"`

	resample.BootstrapResult `yaml:",inline"`
	Histogram                resample.Histogram `yaml:"histogram"`
}

func (r bootstrapReport) markdown(plot string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Bootstrap %s of %s\n\n", r.Statistic, r.Column))
	if r.Site != "" {
		b.WriteString(fmt.Sprintf("Site: %s\n\n", r.Site))
	}
	b.WriteString(fmt.Sprintf("- Observed: %s\n", render.Num(r.Observed)))
	b.WriteString(fmt.Sprintf("- %.4g%% CI: [%s, %s]\n", r.ConfidenceLevel, render.Num(r.Lower), render.Num(r.Upper)))
	b.WriteString(fmt.Sprintf("- Samples: %d\n- Iterations: %d\n- Workers: %d\n- Seed: %d\n", r.Samples, r.Iterations, r.Workers, r.Seed))
	if plot != "" {
		b.WriteString("\n```\n" + plot + "\n```\n")
	}
	return b.String()
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Bootstrap a confidence interval for a pollutant's mean",
	Long: `Bootstrap resamples the non-null concentrations of one pollutant with replacement
and reports the percentile confidence interval of the statistic. Pass --seed to make
the run reproducible; the seed used is always reported.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMerged()
		if err != nil {
			return err
		}
		p, err := m.pollutant(bsPollutant)
		if err != nil {
			return err
		}
		t, err := filter(m.table, bsSite, "")
		if err != nil {
			return err
		}
		data, err := t.NonNull(p.Column)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), render.NoData)
			return nil
		}
		opts := resample.BootstrapOptions{
			Iterations:      pickInt(cmd, "iterations", bsIterations, cfg.BootstrapIterations),
			ConfidenceLevel: pickFloat(cmd, "confidence", bsConfidence, cfg.ConfidenceLevel),
			Workers:         pickInt(cmd, "workers", bsWorkers, cfg.Workers),
		}
		statName := strings.ToLower(bsStatistic)
		switch statName {
		case "mean", "":
			statName = "mean"
		case "median":
			opts.Statistic = resample.MedianStatistic
		default:
			return fmt.Errorf("unsupported --statistic: %s (use mean|median)", bsStatistic)
		}
		if cmd.Flags().Changed("seed") {
			seed := bsSeed
			opts.Seed = &seed
		}

		var res *resample.BootstrapResult
		err = observe("bootstrap", func() error {
			res, err = resample.BootstrapContext(cmd.Context(), data, opts)
			return err
		})
		if err != nil {
			return err
		}
		if metrics != nil {
			metrics.BootstrapIterations.Add(float64(res.Iterations))
		}
		report := bootstrapReport{
			Pollutant:       p.Tag,
			Column:          p.Column,
			Site:            bsSite,
			Statistic:       statName,
			BootstrapResult: *res,
			Histogram:       resample.NewHistogram(res.Distribution, pickInt(cmd, "bins", bsBins, cfg.HistogramBins)),
		}
		if bsChart != "" {
			if err := writeHistogramChart(bsChart, "Bootstrap "+report.Statistic+" of "+p.Column, report.Histogram); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Chart written to %s\n", bsChart)
		}
		plot := ""
		if bsPlot {
			plot = render.HistogramPlot(report.Histogram, 60, 12, "bootstrap distribution")
		}
		header := []string{"Statistic", "Observed", "Lower", "Upper", "Confidence", "Iterations", "Seed"}
		rows := [][]string{{
			report.Statistic, render.Num(res.Observed), render.Num(res.Lower), render.Num(res.Upper),
			render.Num(res.ConfidenceLevel), fmt.Sprint(res.Iterations), fmt.Sprint(res.Seed),
		}}
		return emit(cmd, view{data: report, markdown: report.markdown(plot), header: header, rows: rows})
	},
}

type simulationReport struct {
	Pollutant string `yaml:"pollutant"`
	Column    string `yaml:"column"`
	Site      string `yaml:"site,omitempty"`
	Seed      uint64 `yaml:"seed"`

	resample.SimulationSummary `yaml:",inline"`
	Cumulative                 []int `yaml:"cumulative"`
}

func (r simulationReport) markdown(plot string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Monte Carlo projection of %s\n\n", r.Column))
	if r.Site != "" {
		b.WriteString(fmt.Sprintf("Site: %s\n\n", r.Site))
	}
	b.WriteString(fmt.Sprintf("- Fitted N(mu=%s, sigma=%s)\n", render.Num(r.Mu), render.Num(r.Sigma)))
	b.WriteString(fmt.Sprintf("- Simulations: %d of %d days\n", r.Simulations, r.Horizon))
	b.WriteString(fmt.Sprintf("- Mean of simulated means: %s (std %s)\n", render.Num(r.Mean), render.Num(r.Std)))
	b.WriteString(fmt.Sprintf("- P(mean > %s): %.4f\n", render.Num(r.Threshold), r.Exceedance))
	b.WriteString(fmt.Sprintf("- Seed: %d\n", r.Seed))
	if plot != "" {
		b.WriteString("\n```\n" + plot + "\n```\n")
	}
	return b.String()
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Project a pollutant's long-run mean with a Monte Carlo simulation",
	Long: `Simulate fits a normal distribution to one pollutant's non-null concentrations and
averages --horizon daily draws per simulation. It reports the distribution of those
means and the probability that the mean exceeds --threshold. Pass --seed to make the
run reproducible; the seed used is always reported.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMerged()
		if err != nil {
			return err
		}
		p, err := m.pollutant(simPollutant)
		if err != nil {
			return err
		}
		t, err := filter(m.table, simSite, "")
		if err != nil {
			return err
		}
		data, err := t.NonNull(p.Column)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), render.NoData)
			return nil
		}
		opts := resample.SimulationOptions{
			Simulations: pickInt(cmd, "simulations", simSimulations, cfg.Simulations),
			Horizon:     pickInt(cmd, "horizon", simHorizon, cfg.HorizonDays),
		}
		report := simulationReport{Pollutant: p.Tag, Column: p.Column, Site: simSite}
		if cmd.Flags().Changed("seed") {
			seed := simSeed
			opts.Seed = &seed
		}

		err = observe("simulate", func() error {
			mu, sigma, err := resample.FitNormal(data)
			if err != nil {
				return err
			}
			means, used, err := resample.Simulate(mu, sigma, opts)
			if err != nil {
				return err
			}
			report.Seed = used
			sum, err := resample.Summarize(means, simThreshold, pickInt(cmd, "bins", simBins, cfg.HistogramBins))
			if err != nil {
				return err
			}
			sum.Mu, sum.Sigma, sum.Horizon = mu, sigma, opts.Horizon
			report.SimulationSummary = *sum
			report.Cumulative = sum.Histogram.Cumulative()
			return nil
		})
		if err != nil {
			return err
		}
		if simChart != "" {
			if err := writeHistogramChart(simChart, "Simulated mean "+p.Column, report.Histogram); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Chart written to %s\n", simChart)
		}
		plot := ""
		if simPlot {
			plot = render.HistogramPlot(report.Histogram, 60, 12, "simulated means")
		}
		header := []string{"Mu", "Sigma", "Simulations", "Horizon", "Mean", "Std", "Threshold", "Exceedance", "Seed"}
		rows := [][]string{{
			render.Num(report.Mu), render.Num(report.Sigma), fmt.Sprint(report.Simulations), fmt.Sprint(report.Horizon),
			render.Num(report.Mean), render.Num(report.Std), render.Num(report.Threshold), render.Num(report.Exceedance),
			fmt.Sprint(report.Seed),
		}}
		return emit(cmd, view{data: report, markdown: report.markdown(plot), header: header, rows: rows})
	},
}

func writeHistogramChart(path, title string, h resample.Histogram) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	if err := render.HistogramPNG(f, title, h); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// pickInt prefers an explicitly set flag over the configured value.
func pickInt(cmd *cobra.Command, name string, flag, configured int) int {
	if cmd.Flags().Changed(name) {
		return flag
	}
	return configured
}

func pickFloat(cmd *cobra.Command, name string, flag, configured float64) float64 {
	if cmd.Flags().Changed(name) {
		return flag
	}
	return configured
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
	f := bootstrapCmd.Flags()
	f.StringVarP(&bsPollutant, "pollutant", "p", "", "pollutant tag (default: base pollutant)")
	f.StringVar(&bsSite, "site", "", "restrict to one site (name or id)")
	f.Float64Var(&bsConfidence, "confidence", 95, "confidence level in percent (default from config)")
	f.IntVar(&bsIterations, "iterations", 1000, "bootstrap iterations (default from config)")
	f.Uint64Var(&bsSeed, "seed", 0, "random seed for a reproducible run")
	f.IntVar(&bsWorkers, "workers", 1, "goroutines sharing the iterations (default from config)")
	f.IntVar(&bsBins, "bins", 50, "histogram bins (default from config)")
	f.StringVar(&bsStatistic, "statistic", "mean", "statistic: mean | median")
	f.StringVar(&bsChart, "chart", "", "write a PNG histogram of the bootstrap distribution")
	f.BoolVar(&bsPlot, "plot", false, "print an ASCII plot of the bootstrap distribution")

	rootCmd.AddCommand(simulateCmd)
	s := simulateCmd.Flags()
	s.StringVarP(&simPollutant, "pollutant", "p", "", "pollutant tag (default: base pollutant)")
	s.StringVar(&simSite, "site", "", "restrict to one site (name or id)")
	s.Float64Var(&simThreshold, "threshold", 0, "exceedance threshold for the simulated mean")
	s.IntVar(&simSimulations, "simulations", 1000, "number of simulations (default from config)")
	s.IntVar(&simHorizon, "horizon", 365, "days averaged per simulation (default from config)")
	s.Uint64Var(&simSeed, "seed", 0, "random seed for a reproducible run")
	s.IntVar(&simBins, "bins", 50, "histogram bins (default from config)")
	s.StringVar(&simChart, "chart", "", "write a PNG histogram of the simulated means")
	s.BoolVar(&simPlot, "plot", false, "print an ASCII plot of the simulated means")
}

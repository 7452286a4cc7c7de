package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/airstat-cli/internal/config"
	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/logger"
	"github.com/KaramelBytes/airstat-cli/internal/observability"
	"github.com/KaramelBytes/airstat-cli/internal/render"
)

var (
	// Global flags
	cfgFile     string
	debug       bool
	outFormat   string
	metricsFile string

	// Loaded configuration
	cfg *cfgpkg.Global
	// Per-invocation metrics; written to --metrics-file after a successful run
	metrics *observability.Metrics
	format  render.Format
)

var rootCmd = &cobra.Command{
	Use:   "airstat",
	Short: "airstat: merge EPA daily air-quality files and analyse them",
	Long: `airstat merges the per-pollutant EPA daily files into one observation table and
runs descriptive statistics, grouped aggregates, bootstrap confidence intervals,
Monte Carlo projections, a chi-square independence test and covariance/correlation
matrices over it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = setup
	rootCmd.PersistentPostRunE = flushMetrics

	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.airstat/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "md", "output format: md | json | yaml | table")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run (overrides config)")
}

// setup loads .env and configuration, then initializes logging and metrics.
func setup(cmd *cobra.Command, args []string) error {
	if _, err := cfgpkg.LoadDotEnv(""); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %v\n", err)
	}
	if err := loadConfig(); err != nil {
		return err
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	if err := logger.Initialize(cfg.LogJSON, level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	f, err := render.ParseFormat(outFormat)
	if err != nil {
		return err
	}
	format = f
	metrics = observability.NewMetrics()
	logger.Logger.Debugw("configuration loaded", "config", cfgFile, "data_dir", cfg.DataDir, "merged_path", cfg.MergedPath, "format", format)
	return nil
}

func loadConfig() error {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return errors.WithHint(err, "fix the file or point --config at another one")
	}
	cfg = c
	if rootCmd.PersistentFlags().Changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}
	return nil
}

func flushMetrics(cmd *cobra.Command, args []string) error {
	if cfg == nil || cfg.MetricsFile == "" || metrics == nil {
		return nil
	}
	if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	logger.Logger.Debugw("metrics written", "path", cfg.MetricsFile)
	return nil
}

// printError writes the error and any user hints attached to it.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "✗ Error:", err)
	for _, h := range errors.GetAllHints(err) {
		fmt.Fprintln(w, "  hint:", h)
	}
}

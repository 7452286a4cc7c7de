package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/airstat-cli/internal/config"
	"github.com/KaramelBytes/airstat-cli/internal/dataset"
	"github.com/KaramelBytes/airstat-cli/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set airstat configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		if format.Structured() {
			return render.Encode(out, format, cfg)
		}
		fmt.Fprintf(out, "data_dir: %s\n", cfg.DataDir)
		fmt.Fprintf(out, "merged_path: %s\n", cfg.MergedPath)
		fmt.Fprintf(out, "base_pollutant: %s\n", cfg.BasePollutant)
		fmt.Fprintf(out, "merge_mode: %s\n", cfg.MergeMode)
		tags := make([]string, len(cfg.Pollutants))
		for i, p := range cfg.Pollutants {
			tags[i] = p.Tag
		}
		fmt.Fprintf(out, "pollutants: %s\n", strings.Join(tags, ", "))
		if scale, err := cfg.Scale(); err == nil {
			fmt.Fprintf(out, "aqi_categories: %s\n", strings.Join(scale.Labels(), ", "))
		}
		fmt.Fprintf(out, "bootstrap_iterations: %d\n", cfg.BootstrapIterations)
		fmt.Fprintf(out, "confidence_level: %.3f\n", cfg.ConfidenceLevel)
		fmt.Fprintf(out, "workers: %d\n", cfg.Workers)
		fmt.Fprintf(out, "simulations: %d\n", cfg.Simulations)
		fmt.Fprintf(out, "horizon_days: %d\n", cfg.HorizonDays)
		fmt.Fprintf(out, "histogram_bins: %d\n", cfg.HistogramBins)
		fmt.Fprintf(out, "significance_level: %.3f\n", cfg.SignificanceLevel)
		fmt.Fprintf(out, "log_json: %t\n", cfg.LogJSON)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		if cfg.MetricsFile != "" {
			fmt.Fprintf(out, "metrics_file: %s\n", cfg.MetricsFile)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "data_dir":
			cfg.DataDir = val
		case "merged_path":
			cfg.MergedPath = val
		case "base_pollutant":
			cat, err := cfg.Catalog()
			if err != nil {
				return err
			}
			p, ok := cat.Lookup(val)
			if !ok {
				return fmt.Errorf("invalid base_pollutant: %s (use one of %s)", val, strings.Join(cat.Tags(), ", "))
			}
			cfg.BasePollutant = p.Tag
		case "merge_mode":
			mode, err := dataset.ParseMode(val)
			if err != nil {
				return err
			}
			cfg.MergeMode = string(mode)
		case "aqi_overflow":
			cfg.AQIOverflow = val
		case "bootstrap_iterations", "workers", "simulations", "horizon_days", "histogram_bins":
			i, err := strconv.Atoi(val)
			if err != nil || i < 1 {
				return fmt.Errorf("invalid positive int for %s: %v", key, val)
			}
			switch key {
			case "bootstrap_iterations":
				cfg.BootstrapIterations = i
			case "workers":
				cfg.Workers = i
			case "simulations":
				cfg.Simulations = i
			case "horizon_days":
				cfg.HorizonDays = i
			case "histogram_bins":
				cfg.HistogramBins = i
			}
		case "confidence_level":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || !(f > 0 && f < 100) {
				return fmt.Errorf("invalid confidence_level: %v (use a percentage in (0, 100))", val)
			}
			cfg.ConfidenceLevel = f
		case "significance_level":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil || !(f > 0 && f < 1) {
				return fmt.Errorf("invalid significance_level: %v (use a value in (0, 1))", val)
			}
			cfg.SignificanceLevel = f
		case "log_json":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for log_json: %w", err)
			}
			cfg.LogJSON = b
		case "log_level":
			switch strings.ToLower(val) {
			case "debug", "info", "warn", "error":
				cfg.LogLevel = strings.ToLower(val)
			default:
				return fmt.Errorf("invalid log_level: %s (use debug|info|warn|error)", val)
			}
		case "metrics_file":
			cfg.MetricsFile = val
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/utils"
)

// DirName is the per-user configuration directory under $HOME.
const DirName = ".airstat"

// Global configuration structure.
type Global struct {
	DataDir       string `mapstructure:"data_dir" yaml:"data_dir"`
	MergedPath    string `mapstructure:"merged_path" yaml:"merged_path"`
	BasePollutant string `mapstructure:"base_pollutant" yaml:"base_pollutant"`
	MergeMode     string `mapstructure:"merge_mode" yaml:"merge_mode"`

	Pollutants     []airquality.Pollutant  `mapstructure:"pollutants" yaml:"pollutants"`
	AQIBreakpoints []airquality.Breakpoint `mapstructure:"aqi_breakpoints" yaml:"aqi_breakpoints"`
	AQIOverflow    string                  `mapstructure:"aqi_overflow" yaml:"aqi_overflow"`

	// Resampling
	BootstrapIterations int     `mapstructure:"bootstrap_iterations" yaml:"bootstrap_iterations"`
	ConfidenceLevel     float64 `mapstructure:"confidence_level" yaml:"confidence_level"`
	Workers             int     `mapstructure:"workers" yaml:"workers"`
	Simulations         int     `mapstructure:"simulations" yaml:"simulations"`
	HorizonDays         int     `mapstructure:"horizon_days" yaml:"horizon_days"`
	HistogramBins       int     `mapstructure:"histogram_bins" yaml:"histogram_bins"`

	SignificanceLevel float64 `mapstructure:"significance_level" yaml:"significance_level"`

	LogJSON     bool   `mapstructure:"log_json" yaml:"log_json"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`
}

// Catalog builds the validated pollutant catalog.
func (c *Global) Catalog() (airquality.Catalog, error) {
	cat, err := airquality.NewCatalog(c.Pollutants)
	if err != nil {
		return airquality.Catalog{}, fmt.Errorf("config pollutants: %w", err)
	}
	return cat, nil
}

// Scale builds the validated AQI scale.
func (c *Global) Scale() (airquality.Scale, error) {
	overflow := c.AQIOverflow
	if overflow == "" {
		overflow = airquality.DefaultOverflow
	}
	s, err := airquality.NewScale(c.AQIBreakpoints, overflow)
	if err != nil {
		return airquality.Scale{}, fmt.Errorf("config aqi_breakpoints: %w", err)
	}
	return s, nil
}

// Validate checks the numeric settings that every analysis depends on.
func (c *Global) Validate() error {
	if c.BootstrapIterations < 1 {
		return fmt.Errorf("bootstrap_iterations must be at least 1, got %d", c.BootstrapIterations)
	}
	if !(c.ConfidenceLevel > 0 && c.ConfidenceLevel < 100) {
		return fmt.Errorf("confidence_level must be in (0, 100), got %v", c.ConfidenceLevel)
	}
	if !(c.SignificanceLevel > 0 && c.SignificanceLevel < 1) {
		return fmt.Errorf("significance_level must be in (0, 1), got %v", c.SignificanceLevel)
	}
	if c.Simulations < 1 || c.HorizonDays < 1 {
		return fmt.Errorf("simulations and horizon_days must be at least 1")
	}
	if _, err := c.Catalog(); err != nil {
		return err
	}
	_, err := c.Scale()
	return err
}

// DefaultPath is ~/.airstat/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.airstat/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads the nearest .env file above start into the process
// environment. Variables that are already set win. A missing file is not an
// error.
func LoadDotEnv(start string) (string, error) {
	path, err := utils.FindUp(start, ".env")
	if err != nil {
		return "", nil
	}
	if err := godotenv.Load(path); err != nil {
		return path, fmt.Errorf("load %s: %w", path, err)
	}
	return path, nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("AIRSTAT")
	v.AutomaticEnv()

	v.SetDefault("data_dir", "data")
	v.SetDefault("merged_path", "")
	v.SetDefault("base_pollutant", "PM2.5")
	v.SetDefault("merge_mode", "left")
	v.SetDefault("pollutants", airquality.DefaultPollutants())
	v.SetDefault("aqi_breakpoints", airquality.DefaultBreakpoints())
	v.SetDefault("aqi_overflow", airquality.DefaultOverflow)
	v.SetDefault("bootstrap_iterations", 1000)
	v.SetDefault("confidence_level", 95.0)
	v.SetDefault("workers", 1)
	v.SetDefault("simulations", 1000)
	v.SetDefault("horizon_days", 365)
	v.SetDefault("histogram_bins", 50)
	v.SetDefault("significance_level", 0.05)
	v.SetDefault("log_json", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_file", "")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		v.AddConfigPath(filepath.Join(home, DirName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a file that exists but does not parse is an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve merged_path default: <data_dir>/pollution_data_2023.csv
	if c.MergedPath == "" {
		c.MergedPath = filepath.Join(c.DataDir, "pollution_data_2023.csv")
	}
	return &c, nil
}

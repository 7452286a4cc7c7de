package resample

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/KaramelBytes/airstat-cli/internal/errors"
)

// SimulationOptions configures Simulate.
type SimulationOptions struct {
	Simulations int
	Horizon     int     // days averaged per simulation
	Seed        *uint64 // nil draws a random seed
}

// Simulate runs Simulations independent projections, each the mean of
// Horizon draws from N(mu, sigma). sigma == 0 yields exactly mu every time.
// The returned seed reproduces the run when passed back as opts.Seed.
func Simulate(mu, sigma float64, opts SimulationOptions) ([]float64, uint64, error) {
	if math.IsNaN(mu) || math.IsInf(mu, 0) || math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		return nil, 0, errors.InvalidInputf("simulation parameters must be finite (mu=%v, sigma=%v)", mu, sigma)
	}
	if sigma < 0 {
		return nil, 0, errors.InvalidInputf("sigma must be non-negative, got %v", sigma)
	}
	if opts.Simulations < 1 || opts.Horizon < 1 {
		return nil, 0, errors.InvalidInputf("simulations and horizon must be at least 1 (got %d, %d)", opts.Simulations, opts.Horizon)
	}

	seed := rand.Uint64()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	means := make([]float64, opts.Simulations)
	if sigma == 0 {
		for i := range means {
			means[i] = mu
		}
		return means, seed, nil
	}
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: rand.NewPCG(seed, 0)}
	for i := range means {
		sum := 0.0
		for d := 0; d < opts.Horizon; d++ {
			sum += dist.Rand()
		}
		means[i] = sum / float64(opts.Horizon)
	}
	return means, seed, nil
}

// ExceedanceProbability is the fraction of values strictly above threshold.
func ExceedanceProbability(values []float64, threshold float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.Wrap(errors.ErrInvalidInput, "exceedance probability over no values")
	}
	above := 0
	for _, v := range values {
		if v > threshold {
			above++
		}
	}
	return float64(above) / float64(len(values)), nil
}

// FitNormal returns the sample mean and sample standard deviation (n-1) used
// to parameterise a projection. It needs at least two finite values.
func FitNormal(data []float64) (mu, sigma float64, err error) {
	if len(data) < 2 {
		return 0, 0, errors.InvalidInputf("fitting a normal needs at least 2 values, got %d", len(data))
	}
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, errors.InvalidInputf("data[%d] is not finite", i)
		}
	}
	mu, sigma = stat.MeanStdDev(data, nil)
	return mu, sigma, nil
}

// SimulationSummary describes a set of simulated means.
type SimulationSummary struct {
	Mu          float64   `json:"mu" yaml:"mu"`
	Sigma       float64   `json:"sigma" yaml:"sigma"`
	Simulations int       `json:"simulations" yaml:"simulations"`
	Horizon     int       `json:"horizon" yaml:"horizon"`
	Mean        float64   `json:"mean" yaml:"mean"`
	Std         float64   `json:"std" yaml:"std"` // population std of the simulated means
	Threshold   float64   `json:"threshold" yaml:"threshold"`
	Exceedance  float64   `json:"exceedance" yaml:"exceedance"`
	Histogram   Histogram `json:"histogram" yaml:"histogram"`
}

// Summarize reduces simulated means to their mean, population std,
// exceedance probability and a histogram.
func Summarize(means []float64, threshold float64, bins int) (*SimulationSummary, error) {
	p, err := ExceedanceProbability(means, threshold)
	if err != nil {
		return nil, err
	}
	m, s := stat.PopMeanStdDev(means, nil)
	return &SimulationSummary{
		Simulations: len(means),
		Mean:        m,
		Std:         s,
		Threshold:   threshold,
		Exceedance:  p,
		Histogram:   NewHistogram(means, bins),
	}, nil
}

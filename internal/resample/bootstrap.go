// Package resample implements bootstrap confidence intervals and Monte Carlo
// forward simulation. Both are pure functions of their inputs and options.
package resample

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/airstat-cli/internal/errors"
)

// Statistic reduces a resample to one number. The slice it receives is
// reused between calls and must not be retained.
type Statistic func([]float64) float64

// MeanStatistic is the arithmetic mean.
func MeanStatistic(x []float64) float64 { return stat.Mean(x, nil) }

// MedianStatistic is the linearly interpolated median.
func MedianStatistic(x []float64) float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	return Percentile(s, 50)
}

// BootstrapOptions configures Bootstrap.
type BootstrapOptions struct {
	Iterations      int
	ConfidenceLevel float64 // percent, strictly between 0 and 100
	// Seed makes the distribution reproducible for a given Workers count.
	// When nil a random seed is drawn and reported in the result.
	Seed      *uint64
	Workers   int       // goroutines sharing the iterations; <1 means 1
	Statistic Statistic // nil means MeanStatistic
}

// BootstrapResult is the sampling distribution and its percentile interval.
type BootstrapResult struct {
	Distribution    []float64 `json:"-" yaml:"-"`
	Observed        float64   `json:"observed" yaml:"observed"` // statistic of the original data
	Lower           float64   `json:"lower" yaml:"lower"`
	Upper           float64   `json:"upper" yaml:"upper"`
	ConfidenceLevel float64   `json:"confidence_level" yaml:"confidence_level"`
	Iterations      int       `json:"iterations" yaml:"iterations"`
	Samples         int       `json:"samples" yaml:"samples"`
	Seed            uint64    `json:"seed" yaml:"seed"`
	Workers         int       `json:"workers" yaml:"workers"`
}

// Bootstrap resamples data with replacement Iterations times, applies the
// statistic to each resample and returns the (100-cl)/2 and 100-(100-cl)/2
// percentiles of the resulting distribution.
func Bootstrap(data []float64, opts BootstrapOptions) (*BootstrapResult, error) {
	return BootstrapContext(context.Background(), data, opts)
}

// BootstrapContext is Bootstrap with cancellation between iterations.
func BootstrapContext(ctx context.Context, data []float64, opts BootstrapOptions) (*BootstrapResult, error) {
	if len(data) == 0 {
		return nil, errors.WithHint(
			errors.Wrap(errors.ErrInvalidInput, "bootstrap over empty data"),
			"the selection has no non-null values")
	}
	for i, v := range data {
		if math.IsNaN(v) {
			return nil, errors.InvalidInputf("bootstrap data[%d] is NaN; drop nulls first", i)
		}
	}
	if opts.Iterations < 1 {
		return nil, errors.InvalidInputf("iterations must be at least 1, got %d", opts.Iterations)
	}
	cl := opts.ConfidenceLevel
	if !(cl > 0 && cl < 100) {
		return nil, errors.InvalidInputf("confidence level must be in (0, 100), got %v", cl)
	}
	statistic := opts.Statistic
	if statistic == nil {
		statistic = MeanStatistic
	}
	seed := rand.Uint64()
	if opts.Seed != nil {
		seed = *opts.Seed
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > opts.Iterations {
		workers = opts.Iterations
	}

	dist := make([]float64, opts.Iterations)
	per := (opts.Iterations + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for shard := 0; shard < workers; shard++ {
		lo := shard * per
		hi := min(lo+per, opts.Iterations)
		if lo >= hi {
			break
		}
		rng := rand.New(rand.NewPCG(seed, uint64(shard)))
		g.Go(func() error {
			buf := make([]float64, len(data))
			for i := lo; i < hi; i++ {
				if (i-lo)&1023 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				for j := range buf {
					buf[j] = data[rng.IntN(len(data))]
				}
				dist[i] = statistic(buf)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "bootstrap")
	}

	sorted := append([]float64(nil), dist...)
	sort.Float64s(sorted)
	alpha := (100 - cl) / 2
	return &BootstrapResult{
		Distribution:    dist,
		Observed:        statistic(append([]float64(nil), data...)),
		Lower:           Percentile(sorted, alpha),
		Upper:           Percentile(sorted, 100-alpha),
		ConfidenceLevel: cl,
		Iterations:      opts.Iterations,
		Samples:         len(data),
		Seed:            seed,
		Workers:         workers,
	}, nil
}

// Percentile returns the p-th percentile (0..100) of sorted values using
// linear interpolation between the closest ranks. Empty input gives NaN.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*w
}

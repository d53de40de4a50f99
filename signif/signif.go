// Package signif converts an observed linear-dependence measure into a
// p-value, either through the asymptotic likelihood-ratio approximation or
// through the exact finite-sample null distribution built from the
// autocorrelation-corrected partial-correlation variances.
package signif

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/lnsongxf/exact-linear-dependence/core"
	"github.com/lnsongxf/exact-linear-dependence/pcd"
)

// DefaultSamples is the Monte-Carlo sample count used when Options.Samples
// is not set.
const DefaultSamples = 5000

// Method selects the hypothesis test.
type Method int

const (
	// LR is the asymptotic likelihood-ratio test against a chi-squared
	// reference with DF degrees of freedom.
	LR Method = iota
	// Exact tests against the weighted chi-squared-sum null assembled from
	// the corrected partial-correlation variances.
	Exact
)

var methodNames = map[Method]string{LR: "lr", Exact: "exact"}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps a configuration string onto a Method, erroring on
// unrecognized names.
func ParseMethod(s string) (Method, error) {
	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}
	return LR, core.NewConfigurationError("test method", s)
}

// Options configures the significance computation. The zero value selects
// the likelihood-ratio test.
type Options struct {
	Method Method
	// Samples overrides the Monte-Carlo draw count for the exact test;
	// <= 0 selects DefaultSamples.
	Samples int
	// Seed is the master RNG seed for Monte-Carlo draws; 0 selects a
	// time-based seed.
	Seed int64
	// Analytic evaluates the exact null by numeric inversion of its
	// characteristic function instead of Monte Carlo.
	Analytic bool
	// Logger receives numeric sanity warnings. Nil selects slog.Default.
	Logger *slog.Logger
}

// Null describes the null distribution of the aggregate measure.
type Null struct {
	// DF is the chi-squared degrees of freedom of the likelihood-ratio
	// reference: one free parameter per partial correlation.
	DF float64
	// N is the sample size the measure was estimated from.
	N int
	// Weights are the corrected variances, one scaled-chi-squared(1)
	// component per independent partial correlation.
	Weights []float64
	// CondSizes carries the conditioning-set sizes for diagnostics.
	CondSizes []int
}

// NewNull builds the null descriptor from a decomposition.
func NewNull(dec *pcd.Decomposition) Null {
	weights := make([]float64, len(dec.Variances))
	copy(weights, dec.Variances)
	sizes := make([]int, len(dec.CondSizes))
	copy(sizes, dec.CondSizes)
	return Null{
		DF:        float64(len(dec.Corrs)),
		N:         dec.N,
		Weights:   weights,
		CondSizes: sizes,
	}
}

// PValue maps an observed dependence measure (in nats, i.e.
// -1/2 sum log(1-r^2)) onto a p-value under the given null.
//
// The likelihood-ratio path compares 2*N*stat against chi-squared(DF). The
// exact path compares 2*stat against the weighted sum of chi-squared(1)
// variables with the descriptor's weights, evaluated by seeded Monte Carlo
// or, with Options.Analytic, by characteristic-function inversion.
//
// The result is always in [0, 1]; p-values of exactly 0 or 1 are valid at
// the distribution extremes. NaN intermediates are clamped to the nearest
// boundary and reported as warnings, never propagated.
func PValue(stat float64, null Null, opts Options) (float64, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if math.IsNaN(stat) || math.IsInf(stat, 0) {
		core.WarnOverflow(logger, "non-finite statistic, returning boundary p-value",
			"statistic", stat)
		return 1, nil
	}

	switch opts.Method {
	case LR:
		if null.DF <= 0 {
			return 0, core.NewConfigurationError("degrees of freedom", null.DF)
		}
		if null.N <= 0 {
			return 0, core.NewConfigurationError("sample size", null.N)
		}
		dist := distuv.ChiSquared{K: null.DF}
		return clampP(1-dist.CDF(2*float64(null.N)*stat), logger), nil

	case Exact:
		if len(null.Weights) == 0 {
			return 0, core.NewConfigurationError("exact-test weights", "empty")
		}
		for _, w := range null.Weights {
			if w <= 0 {
				return 0, core.NewConfigurationError("exact-test weight", w)
			}
		}
		if opts.Analytic {
			return clampP(imhof(2*stat, null.Weights), logger), nil
		}
		samples := opts.Samples
		if samples <= 0 {
			samples = DefaultSamples
		}
		draws := sampleNull(null.Weights, samples, opts.Seed)
		count := 0
		for _, d := range draws {
			if d >= 2*stat {
				count++
			}
		}
		// Small-sample correction, matching the bootstrap convention.
		return float64(count+1) / float64(samples+1), nil
	}
	return 0, core.NewConfigurationError("test method", int(opts.Method))
}

// clampP keeps p in [0, 1]. Tiny excursions from CDF roundoff are clamped
// silently; NaN is reported and mapped to the conservative boundary.
func clampP(p float64, logger *slog.Logger) float64 {
	if math.IsNaN(p) {
		core.WarnOverflow(logger, "NaN p-value, returning boundary", "p", p)
		return 1
	}
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

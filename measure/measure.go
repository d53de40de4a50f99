// Package measure exposes the linear-Gaussian dependence measures built on
// the partial correlation decomposition: mutual information, conditional
// mutual information, and Granger causality. Every measure is reported in
// nats together with a p-value from an autocorrelation-aware test.
package measure

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lnsongxf/exact-linear-dependence/core"
	"github.com/lnsongxf/exact-linear-dependence/embed"
	"github.com/lnsongxf/exact-linear-dependence/pcd"
	"github.com/lnsongxf/exact-linear-dependence/signif"
	"github.com/lnsongxf/exact-linear-dependence/taper"
)

// Options configures a measure computation. The zero value selects no
// taper, the likelihood-ratio test, and information-criterion order
// selection for the Granger measures.
type Options struct {
	// Taper is the lag window for the Bartlett variance correction.
	Taper taper.Method
	// Test selects the significance method.
	Test signif.Method
	// Samples overrides the Monte-Carlo draw count for the exact test.
	Samples int
	// Seed is the master RNG seed for the exact test; 0 is time-based.
	Seed int64
	// Analytic evaluates the exact null by characteristic-function
	// inversion instead of Monte Carlo.
	Analytic bool
	// Multivariate attaches Roy's joint covariance to the decomposition.
	Multivariate bool
	// Bandwidth caps the autocovariance lag; <= 0 selects floor(sqrt(T)).
	Bandwidth int
	// Lags fixes the embedding order for the Granger measures; <= 0
	// selects it by information criterion on the target series.
	Lags int
	// MaxLag bounds the order search; <= 0 selects floor(sqrt(T)).
	MaxLag int
	// Criterion is the information criterion for order selection.
	Criterion embed.Criterion
	// Logger receives numeric sanity warnings. Nil selects slog.Default.
	Logger *slog.Logger
}

func (o Options) pcdOptions() pcd.Options {
	return pcd.Options{
		Taper:        o.Taper,
		Multivariate: o.Multivariate,
		Bandwidth:    o.Bandwidth,
		Logger:       o.Logger,
	}
}

func (o Options) signifOptions() signif.Options {
	return signif.Options{
		Method:   o.Test,
		Samples:  o.Samples,
		Seed:     o.Seed,
		Analytic: o.Analytic,
		Logger:   o.Logger,
	}
}

// Result is a dependence measure with its significance.
type Result struct {
	// Value is the measure in nats. For Granger causality this is twice
	// the underlying conditional mutual information, matching the
	// log-likelihood-ratio convention.
	Value float64
	// PValue is the probability of a measure at least this large under
	// the null of no dependence.
	PValue float64
	// Pairs is the number of partial correlations the measure aggregates.
	Pairs int
	// Lags is the embedding order used by the Granger measures, 0 for the
	// mutual information measures.
	Lags int
}

// Significant reports whether the measure rejects the null at level alpha.
func (r *Result) Significant(alpha float64) bool {
	return r.PValue < alpha
}

// MutualInfo measures the linear-Gaussian mutual information between the
// columns of x and y.
func MutualInfo(x, y *mat.Dense, opts Options) (*Result, error) {
	return CondMutualInfo(x, y, nil, opts)
}

// CondMutualInfo measures the linear-Gaussian mutual information between
// the columns of x and y conditioned on the columns of w. w may be nil.
func CondMutualInfo(x, y, w *mat.Dense, opts Options) (*Result, error) {
	dec, err := pcd.Decompose(x, y, w, opts.pcdOptions())
	if err != nil {
		return nil, err
	}
	mi, err := statistic(dec.Corrs)
	if err != nil {
		return nil, err
	}
	p, err := signif.PValue(mi, signif.NewNull(dec), opts.signifOptions())
	if err != nil {
		return nil, err
	}
	return &Result{Value: mi, PValue: p, Pairs: len(dec.Corrs)}, nil
}

// GrangerCausality measures how much the past of source improves the
// linear prediction of target beyond target's own past. Both series are
// embedded with the same order, fixed by Options.Lags or selected on the
// target series by information criterion.
func GrangerCausality(source, target []float64, opts Options) (*Result, error) {
	if len(source) != len(target) {
		return nil, fmt.Errorf("%w: source has %d observations, target has %d",
			core.ErrConfiguration, len(source), len(target))
	}

	order := opts.Lags
	if order <= 0 {
		var err error
		order, err = embed.Order(target, embed.OrderOptions{
			MaxLag:    opts.MaxLag,
			Criterion: opts.Criterion,
		})
		if err != nil {
			return nil, err
		}
	}

	targetPast, targetPresent, err := embed.Delay(target, order)
	if err != nil {
		return nil, err
	}
	sourcePast, _, err := embed.Delay(source, order)
	if err != nil {
		return nil, err
	}

	present := mat.NewDense(len(targetPresent), 1, targetPresent)
	dec, err := pcd.Decompose(present, sourcePast, targetPast, opts.pcdOptions())
	if err != nil {
		return nil, err
	}
	mi, err := statistic(dec.Corrs)
	if err != nil {
		return nil, err
	}
	p, err := signif.PValue(mi, signif.NewNull(dec), opts.signifOptions())
	if err != nil {
		return nil, err
	}
	return &Result{Value: 2 * mi, PValue: p, Pairs: len(dec.Corrs), Lags: order}, nil
}

// statistic aggregates partial correlations into nats.
func statistic(corrs []float64) (float64, error) {
	s := 0.0
	for _, r := range corrs {
		q := 1 - r*r
		if q <= 0 {
			return 0, core.NewDegenerateInputError(
				fmt.Sprintf("partial correlation %v leaves no residual variance", r))
		}
		s -= 0.5 * math.Log(q)
	}
	return s, nil
}

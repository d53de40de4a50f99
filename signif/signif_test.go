package signif

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/lnsongxf/exact-linear-dependence/core"
)

func TestLRPValue(t *testing.T) {
	null := Null{DF: 1, N: 100}

	// Zero dependence is maximally consistent with the null.
	p, err := PValue(0, null, Options{Method: LR})
	require.NoError(t, err)
	require.Equal(t, 1.0, p)

	// p is decreasing in the statistic.
	prev := 1.0
	for _, stat := range []float64{0.001, 0.01, 0.05, 0.2} {
		p, err := PValue(stat, null, Options{Method: LR})
		require.NoError(t, err)
		require.Less(t, p, prev, "stat %v", stat)
		require.GreaterOrEqual(t, p, 0.0)
		prev = p
	}

	// Against the chi-squared reference directly.
	p, err = PValue(0.02, null, Options{Method: LR})
	require.NoError(t, err)
	want := 1 - distuv.ChiSquared{K: 1}.CDF(2 * 100 * 0.02)
	require.InDelta(t, want, p, 1e-12)
}

func TestLRValidation(t *testing.T) {
	_, err := PValue(0.1, Null{DF: 0, N: 100}, Options{Method: LR})
	require.True(t, errors.Is(err, core.ErrConfiguration))

	_, err = PValue(0.1, Null{DF: 2, N: 0}, Options{Method: LR})
	require.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestNonFiniteStatisticIsBoundary(t *testing.T) {
	null := Null{DF: 1, N: 100, Weights: []float64{0.01}}
	for _, stat := range []float64{math.NaN(), math.Inf(1)} {
		p, err := PValue(stat, null, Options{Method: LR})
		require.NoError(t, err)
		require.Equal(t, 1.0, p)
	}
}

// With every weight equal to 1/N the exact null is chi-squared(P)/(2N), so
// the analytic exact test and the likelihood-ratio test must agree exactly.
func TestExactMatchesLRForEqualWeights(t *testing.T) {
	const n = 250
	weights := []float64{1.0 / n, 1.0 / n, 1.0 / n}
	null := Null{DF: 3, N: n, Weights: weights}

	for _, stat := range []float64{0.005, 0.02, 0.05} {
		lr, err := PValue(stat, null, Options{Method: LR})
		require.NoError(t, err)
		exact, err := PValue(stat, null, Options{Method: Exact, Analytic: true})
		require.NoError(t, err)
		require.InDelta(t, lr, exact, 1e-10, "stat %v", stat)
	}
}

// Unit weights make the null an ordinary chi-squared, which pins down the
// Monte-Carlo path against a closed form: P(chi2(2) >= 2) = exp(-1).
func TestMonteCarloAgainstClosedForm(t *testing.T) {
	null := Null{DF: 2, N: 100, Weights: []float64{1, 1}}

	p, err := PValue(1, null, Options{Method: Exact, Samples: 20000, Seed: 42})
	require.NoError(t, err)
	require.InDelta(t, math.Exp(-1), p, 0.02)

	analytic, err := PValue(1, null, Options{Method: Exact, Analytic: true})
	require.NoError(t, err)
	require.InDelta(t, math.Exp(-1), analytic, 1e-9)
}

// Nearly equal weights take the general characteristic-function path; the
// result must stay continuous with the closed-form equal-weight limit.
func TestImhofContinuity(t *testing.T) {
	const w = 0.01
	weights := []float64{w, w * (1 + 1e-6), w * (1 - 1e-6)}
	null := Null{DF: 3, N: 100, Weights: weights}

	for _, x := range []float64{0.005, 0.02, 0.06} {
		p, err := PValue(x/2, null, Options{Method: Exact, Analytic: true})
		require.NoError(t, err)
		want := 1 - distuv.ChiSquared{K: 3}.CDF(x/w)
		require.InDelta(t, want, p, 1e-3, "x %v", x)
	}
}

// Heterogeneous weights: characteristic-function inversion and Monte Carlo
// must agree on the same null.
func TestImhofAgainstMonteCarlo(t *testing.T) {
	weights := []float64{0.002, 0.004, 0.008}
	null := Null{DF: 3, N: 500, Weights: weights}

	for _, stat := range []float64{0.004, 0.007, 0.012} {
		analytic, err := PValue(stat, null, Options{Method: Exact, Analytic: true})
		require.NoError(t, err)
		mc, err := PValue(stat, null, Options{Method: Exact, Samples: 50000, Seed: 7})
		require.NoError(t, err)
		require.InDelta(t, analytic, mc, 0.02, "stat %v", stat)
		require.GreaterOrEqual(t, analytic, 0.0)
		require.LessOrEqual(t, analytic, 1.0)
	}
}

func TestExactValidation(t *testing.T) {
	_, err := PValue(0.1, Null{Weights: nil}, Options{Method: Exact})
	require.True(t, errors.Is(err, core.ErrConfiguration))

	_, err = PValue(0.1, Null{Weights: []float64{0.01, -0.02}}, Options{Method: Exact})
	require.True(t, errors.Is(err, core.ErrConfiguration))
}

func TestUnknownMethodRejected(t *testing.T) {
	_, err := PValue(0.1, Null{DF: 1, N: 10, Weights: []float64{0.1}}, Options{Method: Method(99)})
	require.True(t, errors.Is(err, core.ErrConfiguration))

	_, err = ParseMethod("bootstrap")
	require.True(t, errors.Is(err, core.ErrConfiguration))

	m, err := ParseMethod("exact")
	require.NoError(t, err)
	require.Equal(t, Exact, m)
}

func TestSampleNullReproducible(t *testing.T) {
	null := Null{Weights: []float64{0.01, 0.02}}

	a, err := SampleNull(null, 1000, 123)
	require.NoError(t, err)
	b, err := SampleNull(null, 1000, 123)
	require.NoError(t, err)
	require.Equal(t, a, b)

	c, err := SampleNull(null, 1000, 456)
	require.NoError(t, err)
	require.NotEqual(t, a, c)

	for _, d := range a {
		require.GreaterOrEqual(t, d, 0.0)
	}
}

func TestSummarize(t *testing.T) {
	draws := []float64{1, 2, 3, 4, 5}
	s, err := Summarize(draws)
	require.NoError(t, err)
	require.InDelta(t, 3.0, s.Mean, 1e-12)
	require.InDelta(t, 3.0, s.Median, 1e-12)
	require.LessOrEqual(t, s.Q05, s.Median)
	require.LessOrEqual(t, s.Median, s.Q95)

	_, err = Summarize(nil)
	require.True(t, errors.Is(err, core.ErrConfiguration))
}

// The small-sample correction keeps Monte-Carlo p-values strictly inside
// (0, 1].
func TestMonteCarloPValueBounds(t *testing.T) {
	null := Null{Weights: []float64{0.001}}

	p, err := PValue(1000, null, Options{Method: Exact, Samples: 500, Seed: 1})
	require.NoError(t, err)
	require.Greater(t, p, 0.0)

	p, err = PValue(0, null, Options{Method: Exact, Samples: 500, Seed: 1})
	require.NoError(t, err)
	require.LessOrEqual(t, p, 1.0)
}

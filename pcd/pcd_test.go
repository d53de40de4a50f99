package pcd

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/lnsongxf/exact-linear-dependence/core"
	"github.com/lnsongxf/exact-linear-dependence/taper"
)

func randDense(rng *rand.Rand, t, c int) *mat.Dense {
	m := mat.NewDense(t, c, nil)
	for i := 0; i < t; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, rng.NormFloat64())
		}
	}
	return m
}

func TestDecomposeShapesAndOrdering(t *testing.T) {
	const (
		n = 300
		k = 2
		l = 3
	)
	rng := rand.New(rand.NewSource(1))
	x := randDense(rng, n, k)
	y := randDense(rng, n, l)

	// Tie Y column 0 to X column 0 so the pair lands at a known index.
	for i := 0; i < n; i++ {
		y.Set(i, 0, x.At(i, 0)+0.1*rng.NormFloat64())
	}

	dec, err := Decompose(x, y, nil, Options{})
	require.NoError(t, err)
	require.Len(t, dec.Corrs, k*l)
	require.Len(t, dec.Variances, k*l)
	require.Len(t, dec.CondSizes, k*l)
	require.Equal(t, n, dec.N)
	require.Nil(t, dec.Cov)

	// Linear index ij = j*L + i, X-outer, Y-inner; conditioning grows with
	// the column positions.
	for j := 0; j < k; j++ {
		for i := 0; i < l; i++ {
			require.Equal(t, i+j, dec.CondSizes[j*l+i])
		}
	}

	// The coupled pair is (j=0, i=0) at index 0.
	require.Greater(t, dec.Corrs[0], 0.9)
	for idx, r := range dec.Corrs {
		require.GreaterOrEqual(t, r, -1.0, "index %d", idx)
		require.LessOrEqual(t, r, 1.0, "index %d", idx)
		require.Greater(t, dec.Variances[idx], 0.0, "index %d", idx)
	}
}

func TestDecomposeConditioningCounts(t *testing.T) {
	const (
		n = 200
		c = 2
	)
	rng := rand.New(rand.NewSource(2))
	x := randDense(rng, n, 2)
	y := randDense(rng, n, 2)
	w := randDense(rng, n, c)

	dec, err := Decompose(x, y, w, Options{})
	require.NoError(t, err)
	for j := 0; j < 2; j++ {
		for i := 0; i < 2; i++ {
			require.Equal(t, c+i+j, dec.CondSizes[j*2+i])
		}
	}
}

func TestDecomposeConditioningRemovesCommonDriver(t *testing.T) {
	const n = 500
	rng := rand.New(rand.NewSource(3))
	w := randDense(rng, n, 1)
	x := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		z := w.At(i, 0)
		x.Set(i, 0, z+0.3*rng.NormFloat64())
		y.Set(i, 0, z+0.3*rng.NormFloat64())
	}

	raw, err := Decompose(x, y, nil, Options{})
	require.NoError(t, err)
	cond, err := Decompose(x, y, w, Options{})
	require.NoError(t, err)

	require.Greater(t, math.Abs(raw.Corrs[0]), 0.7)
	require.Less(t, math.Abs(cond.Corrs[0]), 0.2)
}

func TestDecomposeInsufficientData(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	// T must exceed 1 + C + K + L; here it equals it.
	x := randDense(rng, 6, 2)
	y := randDense(rng, 6, 2)
	w := randDense(rng, 6, 1)

	_, err := Decompose(x, y, w, Options{})
	require.Error(t, err)
	require.True(t, errors.Is(err, core.ErrInsufficientData))

	// One more row is enough to pass the precondition.
	x = randDense(rng, 7, 2)
	y = randDense(rng, 7, 2)
	w = randDense(rng, 7, 1)
	_, err = Decompose(x, y, w, Options{})
	require.NoError(t, err)
}

func TestDecomposeDegenerateColumn(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	x := mat.NewDense(100, 1, nil)
	for i := 0; i < 100; i++ {
		x.Set(i, 0, 5) // constant
	}
	y := randDense(rng, 100, 1)

	_, err := Decompose(x, y, nil, Options{})
	require.Error(t, err)
	require.True(t, errors.Is(err, core.ErrDegenerateInput))
}

func TestDecomposeShapeMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	x := randDense(rng, 50, 1)
	y := randDense(rng, 60, 1)
	_, err := Decompose(x, y, nil, Options{})
	require.True(t, errors.Is(err, core.ErrConfiguration))

	w := randDense(rng, 40, 1)
	y = randDense(rng, 50, 1)
	_, err = Decompose(x, y, w, Options{})
	require.True(t, errors.Is(err, core.ErrConfiguration))

	_, err = Decompose(nil, y, nil, Options{})
	require.True(t, errors.Is(err, core.ErrConfiguration))
}

// A rank-deficient conditioning set is resolved by the SVD fallback rather
// than failing.
func TestDecomposeCollinearConditioning(t *testing.T) {
	const n = 200
	rng := rand.New(rand.NewSource(7))
	x := randDense(rng, n, 1)
	y := randDense(rng, n, 1)
	w := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		v := rng.NormFloat64()
		w.Set(i, 0, v)
		w.Set(i, 1, 2*v) // exact collinearity
	}

	dec, err := Decompose(x, y, w, Options{})
	require.NoError(t, err)
	require.False(t, math.IsNaN(dec.Corrs[0]))
	require.Greater(t, dec.Variances[0], 0.0)
}

func TestDecomposeMultivariateCovariance(t *testing.T) {
	const n = 300
	rng := rand.New(rand.NewSource(8))
	x := randDense(rng, n, 2)
	y := randDense(rng, n, 2)

	dec, err := Decompose(x, y, nil, Options{
		Taper:        taper.Tukey,
		Multivariate: true,
	})
	require.NoError(t, err)
	require.NotNil(t, dec.Cov)
	rows, _ := dec.Cov.Dims()
	require.Equal(t, 4, rows)
	for j := 0; j < 4; j++ {
		require.Equal(t, dec.Cov.At(j, j), dec.Variances[j])
	}
}

// Confidence intervals built from the corrected variances must cover the
// true zero correlation at close to the nominal rate for independent AR(1)
// processes. Uncorrected intervals undercover here.
func TestCoverageUnderAutocorrelation(t *testing.T) {
	if testing.Short() {
		t.Skip("calibration loop")
	}
	const (
		trials = 1000
		n      = 500
		phi    = 0.5
	)
	rng := rand.New(rand.NewSource(9))

	covered := 0
	for trial := 0; trial < trials; trial++ {
		x := mat.NewDense(n, 1, nil)
		y := mat.NewDense(n, 1, nil)
		var xv, yv float64
		for i := 0; i < n; i++ {
			xv = phi*xv + rng.NormFloat64()
			yv = phi*yv + rng.NormFloat64()
			x.Set(i, 0, xv)
			y.Set(i, 0, yv)
		}

		dec, err := Decompose(x, y, nil, Options{Taper: taper.None})
		require.NoError(t, err)

		half := 1.96 * math.Sqrt(dec.Variances[0])
		if math.Abs(dec.Corrs[0]) <= half {
			covered++
		}
	}

	coverage := float64(covered) / trials
	require.GreaterOrEqual(t, coverage, 0.9,
		"nominal 95%% intervals covered only %.1f%%", 100*coverage)
}

// Under the null the nested conditioning makes the KL partial correlations
// mutually independent: across repeated trials any two index positions must
// be uncorrelated.
func TestPartialCorrelationsIndependentUnderNull(t *testing.T) {
	if testing.Short() {
		t.Skip("calibration loop")
	}
	const (
		trials = 300
		n      = 150
	)
	rng := rand.New(rand.NewSource(10))

	samples := make([][]float64, 4)
	for idx := range samples {
		samples[idx] = make([]float64, trials)
	}
	for trial := 0; trial < trials; trial++ {
		x := randDense(rng, n, 2)
		y := randDense(rng, n, 2)
		dec, err := Decompose(x, y, nil, Options{})
		require.NoError(t, err)
		for idx := 0; idx < 4; idx++ {
			samples[idx][trial] = dec.Corrs[idx]
		}
	}

	for a := 0; a < 4; a++ {
		for b := a + 1; b < 4; b++ {
			c := stat.Correlation(samples[a], samples[b], nil)
			require.Less(t, math.Abs(c), 0.2,
				"indices %d and %d correlated across trials", a, b)
		}
	}
}

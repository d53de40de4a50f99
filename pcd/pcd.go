// Package pcd implements the partial correlation decomposition of a
// multivariate linear-Gaussian dependence measure.
//
// The decomposition orthogonalizes each column pair (j, i) of two
// multivariate series X and Y against a nested conditioning set: the
// external conditionals W, the first i columns of Y, and the first j
// columns of X. This nesting makes the resulting K*L partial correlations
// mutually independent under the null of no dependence, which is what the
// exact significance test relies on.
package pcd

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/lnsongxf/exact-linear-dependence/bartlett"
	"github.com/lnsongxf/exact-linear-dependence/core"
	"github.com/lnsongxf/exact-linear-dependence/taper"
)

// Options configures a decomposition. The zero value selects no taper, the
// univariate Bartlett formula, and the default bandwidth.
type Options struct {
	// Taper is the lag window for the variance correction.
	Taper taper.Method
	// Multivariate selects Roy's joint variance formula; the resulting
	// covariance matrix is attached to the Decomposition.
	Multivariate bool
	// Bandwidth caps the autocovariance lag; <= 0 selects floor(sqrt(T)).
	Bandwidth int
	// Logger receives numeric sanity warnings. Nil selects slog.Default.
	Logger *slog.Logger
}

// Decomposition is the output of Decompose. The three vectors share the
// linear index ij = j*L + i for X column j and Y column i (X-outer,
// Y-inner), regardless of how the pairs were computed.
type Decomposition struct {
	// Corrs are the partial correlations, each in [-1, 1].
	Corrs []float64
	// Variances are the Bartlett-corrected variances, strictly positive.
	Variances []float64
	// CondSizes counts the conditioning columns of each pair (the intercept
	// is not counted).
	CondSizes []int
	// N is the number of rows the decomposition was computed from.
	N int
	// Cov is Roy's covariance matrix of the correlation estimates; set only
	// in multivariate mode and not consumed by the significance path.
	Cov *mat.SymDense
}

// Decompose orthogonalizes each pair of X and Y columns against the nested
// conditioning set built from w and the previously processed columns, and
// returns the partial correlations with their corrected variances and
// conditioning sizes. w may be nil for an unconditioned decomposition.
func Decompose(x, y, w *mat.Dense, opts Options) (*Decomposition, error) {
	if x == nil || y == nil {
		return nil, core.NewConfigurationError("decomposition input", "nil matrix")
	}
	t, k := x.Dims()
	ty, l := y.Dims()
	if ty != t {
		return nil, fmt.Errorf("%w: X has %d rows, Y has %d", core.ErrConfiguration, t, ty)
	}
	c := 0
	if w != nil {
		tw, cw := w.Dims()
		if tw != t {
			return nil, fmt.Errorf("%w: X has %d rows, W has %d", core.ErrConfiguration, t, tw)
		}
		c = cw
	}
	if t <= 1+c+k+l {
		return nil, core.NewInsufficientDataError(t, 1+c+k+l)
	}

	pairs := k * l
	corrs := make([]float64, pairs)
	sizes := make([]int, pairs)
	resU := mat.NewDense(t, pairs, nil)
	resV := mat.NewDense(t, pairs, nil)

	for j := 0; j < k; j++ {
		for i := 0; i < l; i++ {
			idx := j*l + i
			z := condMatrix(t, w, c, y, i, x, j)

			ru, err := residuals(z, mat.Col(nil, j, x))
			if err != nil {
				return nil, fmt.Errorf("pair (%d,%d): %w", j, i, err)
			}
			rv, err := residuals(z, mat.Col(nil, i, y))
			if err != nil {
				return nil, fmt.Errorf("pair (%d,%d): %w", j, i, err)
			}

			r := stat.Correlation(ru, rv, nil)
			if math.IsNaN(r) {
				return nil, core.NewDegenerateInputError(
					fmt.Sprintf("zero-variance residuals for pair (%d,%d)", j, i))
			}
			corrs[idx] = clampCorr(r)
			sizes[idx] = c + i + j
			resU.SetCol(idx, ru)
			resV.SetCol(idx, rv)
		}
	}

	// One batched variance call so the multivariate formula sees all pairs.
	variances, cov, err := bartlett.Estimate(
		bartlett.Pairs{U: resU, V: resV},
		corrs,
		bartlett.Config{
			Taper:        opts.Taper,
			Bandwidth:    opts.Bandwidth,
			Multivariate: opts.Multivariate,
			Logger:       opts.Logger,
		},
	)
	if err != nil {
		return nil, err
	}

	return &Decomposition{
		Corrs:     corrs,
		Variances: variances,
		CondSizes: sizes,
		N:         t,
		Cov:       cov,
	}, nil
}

// condMatrix builds [1 | W | Y(:,0:i) | X(:,0:j)]. The intercept column
// centers the regression without being counted as a conditioning variable.
func condMatrix(t int, w *mat.Dense, c int, y *mat.Dense, i int, x *mat.Dense, j int) *mat.Dense {
	cols := 1 + c + i + j
	z := mat.NewDense(t, cols, nil)
	for row := 0; row < t; row++ {
		z.Set(row, 0, 1)
	}
	col := 1
	for q := 0; q < c; q++ {
		for row := 0; row < t; row++ {
			z.Set(row, col, w.At(row, q))
		}
		col++
	}
	for q := 0; q < i; q++ {
		for row := 0; row < t; row++ {
			z.Set(row, col, y.At(row, q))
		}
		col++
	}
	for q := 0; q < j; q++ {
		for row := 0; row < t; row++ {
			z.Set(row, col, x.At(row, q))
		}
		col++
	}
	return z
}

// residuals regresses target on z by ordinary least squares and returns the
// residual vector. Normal equations are tried first; singular or badly
// conditioned designs fall back to an SVD least-squares solve with a rank
// tolerance, giving minimum-norm (pseudo-inverse) coefficients rather than
// a hard failure on near-collinear conditioning sets.
func residuals(z *mat.Dense, target []float64) ([]float64, error) {
	t, m := z.Dims()
	yv := mat.NewVecDense(t, target)

	var beta mat.Dense

	var ztz mat.Dense
	ztz.Mul(z.T(), z)

	var inv mat.Dense
	if invErr := inv.Inverse(&ztz); invErr == nil {
		var zty mat.Dense
		zty.Mul(z.T(), yv)
		beta.Mul(&inv, &zty)
	} else {
		var svd mat.SVD
		if ok := svd.Factorize(z, mat.SVDFullU|mat.SVDFullV); !ok {
			return nil, fmt.Errorf("conditioning regression failed: normal equations singular and SVD factorization failed: %v", invErr)
		}
		rank := svd.Rank(1e-12)
		if rank == 0 {
			// Numerically all-zero design: the minimum-norm solution is zero.
			beta = *mat.NewDense(m, 1, nil)
		} else {
			svd.SolveTo(&beta, yv, rank)
		}
	}

	var fit mat.VecDense
	fit.MulVec(z, beta.ColView(0))

	res := make([]float64, t)
	for row := 0; row < t; row++ {
		res[row] = target[row] - fit.AtVec(row)
	}
	return res, nil
}

func clampCorr(r float64) float64 {
	if r > 1 {
		return 1
	}
	if r < -1 {
		return -1
	}
	return r
}

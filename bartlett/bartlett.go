// Package bartlett estimates the autocorrelation-corrected asymptotic
// variance of sample correlation coefficients.
//
// The default univariate mode applies Bartlett's classical variance
// inflation independently per residual pair. The multivariate mode uses
// Roy's formula on the joint auto- and cross-correlation structure of all
// pairs, yielding the full covariance matrix of the correlation estimates.
package bartlett

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lnsongxf/exact-linear-dependence/core"
	"github.com/lnsongxf/exact-linear-dependence/taper"
)

// maxVariance is the sanity bound for a correlation variance estimate.
// Values above it are clamped and reported, not propagated.
const maxVariance = 1.0

// Pairs holds the residual series of every partial-correlation pair.
// Column p of U and V is the X-side and Y-side residual of pair p.
type Pairs struct {
	U *mat.Dense
	V *mat.Dense
}

// Config selects the variance formula.
type Config struct {
	// Taper is the lag window applied to the autocovariance sums.
	Taper taper.Method
	// Bandwidth is the maximum autocovariance lag; values <= 0 select the
	// data-driven default floor(sqrt(T)).
	Bandwidth int
	// Multivariate switches to Roy's joint formula. The returned covariance
	// matrix accounts for cross-pair dependence; it is informational and is
	// not consumed by the exact significance test, which requires the
	// independence decomposition.
	Multivariate bool
	// Logger receives numeric sanity warnings. Nil selects slog.Default.
	Logger *slog.Logger
}

// Estimate returns the corrected variance of each sample correlation in
// corrs, where corrs[p] is the correlation of pair p in Pairs. In
// multivariate mode the full covariance matrix of the estimates is also
// returned; otherwise it is nil.
//
// With taper None and serially independent residuals the univariate
// estimate reduces to the textbook (1-r^2)^2/T.
func Estimate(p Pairs, corrs []float64, cfg Config) ([]float64, *mat.SymDense, error) {
	if p.U == nil || p.V == nil {
		return nil, nil, core.NewConfigurationError("residual pairs", "nil matrix")
	}
	t, n := p.U.Dims()
	tv, nv := p.V.Dims()
	if t != tv || n != nv {
		return nil, nil, core.NewConfigurationError("residual pairs",
			"U and V dimensions differ")
	}
	if n != len(corrs) {
		return nil, nil, core.NewConfigurationError("residual pairs",
			"correlation count does not match pair count")
	}
	if t < 2 {
		return nil, nil, core.NewInsufficientDataError(t, 1)
	}

	bandwidth := cfg.Bandwidth
	if bandwidth <= 0 {
		bandwidth = int(math.Floor(math.Sqrt(float64(t))))
	}
	if bandwidth >= t {
		bandwidth = t - 1
	}
	weights, err := taper.Weights(cfg.Taper, bandwidth)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Multivariate {
		cov, err := royCovariance(p, weights, t, bandwidth)
		if err != nil {
			return nil, nil, err
		}
		variances := make([]float64, n)
		for j := 0; j < n; j++ {
			variances[j] = floorVariance(cov.At(j, j), cfg.Logger)
			cov.SetSym(j, j, variances[j])
		}
		return variances, cov, nil
	}

	variances, err := univariate(p, corrs, weights, t, bandwidth, cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return variances, nil, nil
}

// univariate applies Bartlett's per-pair formula
// (1-r^2)^2/T * sum_k w(|k|) rho_u(k) rho_v(k).
func univariate(p Pairs, corrs, weights []float64, t, bandwidth int, logger *slog.Logger) ([]float64, error) {
	variances := make([]float64, len(corrs))
	for j := range corrs {
		au, err := autocorr(mat.Col(nil, j, p.U), bandwidth)
		if err != nil {
			return nil, err
		}
		av, err := autocorr(mat.Col(nil, j, p.V), bandwidth)
		if err != nil {
			return nil, err
		}

		// Two-sided sum over k = -bandwidth..bandwidth; autocorrelations
		// are even in k, so fold the negative lags into the positive ones.
		sum := 1.0
		for k := 1; k <= bandwidth; k++ {
			sum += 2 * weights[k] * au[k] * av[k]
		}

		q := 1 - corrs[j]*corrs[j]
		variances[j] = floorVariance(q*q*sum/float64(t), logger)
	}
	return variances, nil
}

// royCovariance evaluates Roy's formula for the covariance of the sample
// correlations of all pairs under the null of no cross dependence:
//
//	cov(r_p, r_q) = 1/T * sum_k w(|k|) * (rho_{u_p u_q}(k) rho_{v_p v_q}(k)
//	                                      + rho_{u_p v_q}(k) rho_{v_p u_q}(k))
func royCovariance(p Pairs, weights []float64, t, bandwidth int) (*mat.SymDense, error) {
	_, n := p.U.Dims()

	// Stack the residuals as one 2n-variate process: series 0..n-1 are the
	// U columns, series n..2n-1 are the V columns.
	series := make([][]float64, 2*n)
	for j := 0; j < n; j++ {
		series[j] = mat.Col(nil, j, p.U)
		series[n+j] = mat.Col(nil, j, p.V)
	}

	ccf := make([][][]float64, 2*n)
	for a := range ccf {
		ccf[a] = make([][]float64, 2*n)
		for b := range ccf[a] {
			c, err := crosscorr(series[a], series[b], bandwidth)
			if err != nil {
				return nil, err
			}
			ccf[a][b] = c
		}
	}

	at := func(a, b, k int) float64 { return ccf[a][b][k+bandwidth] }

	cov := mat.NewSymDense(n, nil)
	for pi := 0; pi < n; pi++ {
		for q := pi; q < n; q++ {
			sum := 0.0
			for k := -bandwidth; k <= bandwidth; k++ {
				w := weights[abs(k)]
				sum += w * (at(pi, q, k)*at(n+pi, n+q, k) + at(pi, n+q, k)*at(n+pi, q, k))
			}
			cov.SetSym(pi, q, sum/float64(t))
		}
	}
	return cov, nil
}

// floorVariance keeps variance estimates strictly positive and below the
// sanity bound, reporting clamps as warnings.
func floorVariance(v float64, logger *slog.Logger) float64 {
	if math.IsNaN(v) || v > maxVariance {
		core.WarnOverflow(logger, "correlation variance outside sanity bound, clamping",
			"variance", v)
		return maxVariance
	}
	if v < minVariance {
		return minVariance
	}
	return v
}

func abs(k int) int {
	if k < 0 {
		return -k
	}
	return k
}

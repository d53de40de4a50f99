package bartlett

import (
	"math"

	"github.com/lnsongxf/exact-linear-dependence/core"
)

// minVariance is the smallest admissible variance of a residual series.
// Anything below it means the series is numerically constant.
const minVariance = 1e-12

// demean returns the centered copy of s and its biased (1/T) variance.
func demean(s []float64) ([]float64, float64) {
	n := float64(len(s))
	mean := 0.0
	for _, v := range s {
		mean += v
	}
	mean /= n

	out := make([]float64, len(s))
	variance := 0.0
	for i, v := range s {
		d := v - mean
		out[i] = d
		variance += d * d
	}
	return out, variance / n
}

// autocorr returns the autocorrelation of s at lags 0..maxLag with the
// biased 1/T covariance normalization, so acf[0] == 1.
func autocorr(s []float64, maxLag int) ([]float64, error) {
	u, v := demean(s)
	if v < minVariance {
		return nil, core.NewDegenerateInputError("zero-variance residual series")
	}

	n := len(u)
	denom := v * float64(n)
	acf := make([]float64, maxLag+1)
	acf[0] = 1
	for k := 1; k <= maxLag; k++ {
		if k >= n {
			break
		}
		sum := 0.0
		for t := 0; t < n-k; t++ {
			sum += u[t] * u[t+k]
		}
		acf[k] = sum / denom
	}
	return acf, nil
}

// crosscorr returns cross-correlations of a and b at lags -maxLag..maxLag,
// indexed lag+maxLag, where the lag-k entry is corr(a_t, b_{t+k}).
func crosscorr(a, b []float64, maxLag int) ([]float64, error) {
	ua, va := demean(a)
	ub, vb := demean(b)
	if va < minVariance || vb < minVariance {
		return nil, core.NewDegenerateInputError("zero-variance residual series")
	}

	n := len(ua)
	denom := math.Sqrt(va*vb) * float64(n)
	ccf := make([]float64, 2*maxLag+1)
	for k := -maxLag; k <= maxLag; k++ {
		if k >= n || -k >= n {
			continue
		}
		sum := 0.0
		if k >= 0 {
			for t := 0; t < n-k; t++ {
				sum += ua[t] * ub[t+k]
			}
		} else {
			for t := 0; t < n+k; t++ {
				sum += ua[t-k] * ub[t]
			}
		}
		ccf[k+maxLag] = sum / denom
	}
	return ccf, nil
}

// Package embed builds lagged design matrices for time-series regressions
// and selects autoregressive model orders by information criterion.
package embed

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lnsongxf/exact-linear-dependence/core"
)

// Criterion selects the penalty used for order selection.
type Criterion int

const (
	// BIC penalizes each parameter by ln(n).
	BIC Criterion = iota
	// AIC penalizes each parameter by 2.
	AIC
)

var criterionNames = map[Criterion]string{BIC: "bic", AIC: "aic"}

func (c Criterion) String() string {
	if s, ok := criterionNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Criterion(%d)", int(c))
}

// ParseCriterion maps a configuration string onto a Criterion, erroring on
// unrecognized names.
func ParseCriterion(s string) (Criterion, error) {
	for c, name := range criterionNames {
		if name == s {
			return c, nil
		}
	}
	return BIC, core.NewConfigurationError("order criterion", s)
}

// OrderOptions configures Order. The zero value selects BIC with a maximum
// lag of floor(sqrt(T)), capped at 20.
type OrderOptions struct {
	// MaxLag bounds the search; <= 0 selects floor(sqrt(T)), capped at 20.
	MaxLag int
	// Criterion is the information criterion to minimize.
	Criterion Criterion
}

// Order selects an autoregressive order for series by fitting AR(p) for
// p = 1..MaxLag and minimizing the chosen information criterion. All
// candidate models are scored on the common sample rows MaxLag..T-1 so
// their criteria are comparable.
func Order(series []float64, opts OrderOptions) (int, error) {
	t := len(series)
	maxLag := opts.MaxLag
	if maxLag <= 0 {
		maxLag = int(math.Sqrt(float64(t)))
		if maxLag > 20 {
			maxLag = 20
		}
	}
	if t < 2*maxLag+2 {
		return 0, core.NewInsufficientDataError(t, 2*maxLag+2)
	}

	var penalty func(n int) float64
	switch opts.Criterion {
	case BIC:
		penalty = func(n int) float64 { return math.Log(float64(n)) }
	case AIC:
		penalty = func(n int) float64 { return 2 }
	default:
		return 0, core.NewConfigurationError("order criterion", int(opts.Criterion))
	}

	n := t - maxLag
	target := series[maxLag:]

	best := 1
	bestIC := math.Inf(1)
	for p := 1; p <= maxLag; p++ {
		z := mat.NewDense(n, 1+p, nil)
		for row := 0; row < n; row++ {
			z.Set(row, 0, 1)
			for lag := 1; lag <= p; lag++ {
				z.Set(row, lag, series[maxLag+row-lag])
			}
		}
		rss, err := olsRSS(z, target)
		if err != nil {
			return 0, fmt.Errorf("order %d: %w", p, err)
		}
		ic := math.Inf(-1)
		if rss > 0 {
			ic = float64(n)*math.Log(rss/float64(n)) + penalty(n)*float64(p+1)
		}
		if ic < bestIC {
			bestIC = ic
			best = p
		}
	}
	return best, nil
}

// Delay embeds series with order p: row r of the past matrix holds the p
// values preceding observation p+r, most recent lag first, and present[r]
// is observation p+r itself. Both outputs have len(series)-p rows.
func Delay(series []float64, p int) (*mat.Dense, []float64, error) {
	if p < 1 {
		return nil, nil, core.NewConfigurationError("embedding order", p)
	}
	t := len(series)
	if t < p+2 {
		return nil, nil, core.NewInsufficientDataError(t, p+2)
	}

	n := t - p
	past := mat.NewDense(n, p, nil)
	present := make([]float64, n)
	for r := 0; r < n; r++ {
		present[r] = series[p+r]
		for lag := 1; lag <= p; lag++ {
			past.Set(r, lag-1, series[p+r-lag])
		}
	}
	return past, present, nil
}

// olsRSS fits target on z by least squares and returns the residual sum of
// squares. Normal equations are tried first, with an SVD fallback for
// singular designs, matching the conditioning regressions elsewhere.
func olsRSS(z *mat.Dense, target []float64) (float64, error) {
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
			return 0, fmt.Errorf("order regression failed: normal equations singular and SVD factorization failed: %v", invErr)
		}
		rank := svd.Rank(1e-12)
		if rank == 0 {
			beta = *mat.NewDense(m, 1, nil)
		} else {
			svd.SolveTo(&beta, yv, rank)
		}
	}

	var fit mat.VecDense
	fit.MulVec(z, beta.ColView(0))

	rss := 0.0
	for row := 0; row < t; row++ {
		d := target[row] - fit.AtVec(row)
		rss += d * d
	}
	return rss, nil
}

package signif

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat/distuv"
)

// imhof evaluates P(sum_k w_k*chi2(1) >= x) by numeric inversion of the
// characteristic function (Imhof's method):
//
//	p = 1/2 + (1/pi) * Int_0^inf sin(theta(u)) / (u*rho(u)) du
//	theta(u) = 1/2 sum_k atan(w_k*u) - x*u/2
//	rho(u)   = prod_k (1 + w_k^2*u^2)^(1/4)
//
// The oscillatory integral is evaluated piecewise with fixed-order
// Gauss-Legendre quadrature, truncated where the envelope 1/(u*rho(u))
// drops below tolerance.
func imhof(x float64, weights []float64) float64 {
	if x <= 0 {
		return 1
	}

	wmin, wmax := weights[0], weights[0]
	for _, w := range weights[1:] {
		if w < wmin {
			wmin = w
		}
		if w > wmax {
			wmax = w
		}
	}
	// Equal weights collapse to a single scaled chi-squared; this also
	// covers the one-pair case exactly.
	if wmax-wmin <= 1e-9*wmax {
		dist := distuv.ChiSquared{K: float64(len(weights))}
		return 1 - dist.CDF(x/wmax)
	}

	// The integral is invariant under joint rescaling of x and the weights;
	// normalizing by the largest weight keeps the quadrature grid O(1).
	lam := make([]float64, len(weights))
	sumLam := 0.0
	for i, w := range weights {
		lam[i] = w / wmax
		sumLam += lam[i]
	}
	xs := x / wmax

	logRho := func(u float64) float64 {
		v := 0.0
		for _, l := range lam {
			v += 0.25 * math.Log1p(l * l * u * u)
		}
		return v
	}
	integrand := func(u float64) float64 {
		if u == 0 {
			// Continuous limit; Gauss nodes never land here.
			return 0.5 * (sumLam - xs)
		}
		theta := -0.5 * xs * u
		for _, l := range lam {
			theta += 0.5 * math.Atan(l*u)
		}
		return math.Sin(theta) * math.Exp(-logRho(u)) / u
	}

	// Truncation point: the envelope decays like u^(-(1+P/2)).
	const tol = 1e-7
	upper := 1.0
	for upper < 1e9 && math.Exp(-logRho(upper))/upper > tol {
		upper *= 2
	}

	// Segment width tracks the fastest oscillation |theta'| <= (xs+sumLam)/2.
	h := math.Pi / (xs + sumLam + 1)
	segments := int(upper/h) + 1
	if segments > 200000 {
		segments = 200000
	}
	h = upper / float64(segments)

	total := 0.0
	for s := 0; s < segments; s++ {
		a := float64(s) * h
		total += quad.Fixed(integrand, a, a+h, 10, nil, 0)
	}
	return 0.5 + total/math.Pi
}

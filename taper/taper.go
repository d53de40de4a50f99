// Package taper provides lag-window kernels that down-weight higher-lag
// autocovariance estimates in the Bartlett variance correction.
package taper

import (
	"fmt"
	"math"

	"github.com/lnsongxf/exact-linear-dependence/core"
)

// Method identifies a taper kernel.
type Method int

const (
	None Method = iota
	Tukey
	Parzen
	Bartlett
)

var methodNames = map[Method]string{
	None:     "none",
	Tukey:    "tukey",
	Parzen:   "parzen",
	Bartlett: "bartlett",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps a configuration string onto a Method. Unrecognized names
// are a configuration error, never a silent default.
func ParseMethod(s string) (Method, error) {
	for m, name := range methodNames {
		if name == s {
			return m, nil
		}
	}
	return None, core.NewConfigurationError("taper method", s)
}

// Weight returns the kernel weight for a single autocovariance lag.
// It is a pure function of (m, lag, maxLag). Weights lie in [0, 1] and the
// lag-0 weight is 1 for every method.
func Weight(m Method, lag, maxLag int) (float64, error) {
	if _, ok := methodNames[m]; !ok {
		return 0, core.NewConfigurationError("taper method", int(m))
	}
	if maxLag < 0 || lag < 0 || lag > maxLag {
		return 0, core.NewConfigurationError("taper lag",
			fmt.Sprintf("lag %d with max lag %d", lag, maxLag))
	}
	if lag == 0 {
		return 1, nil
	}

	u := float64(lag) / float64(maxLag)
	switch m {
	case None:
		return 1, nil
	case Tukey:
		return 0.5 * (1 + math.Cos(math.Pi*u)), nil
	case Parzen:
		if u <= 0.5 {
			return 1 - 6*u*u + 6*u*u*u, nil
		}
		d := 1 - u
		return 2 * d * d * d, nil
	case Bartlett:
		return 1 - u, nil
	}
	return 0, core.NewConfigurationError("taper method", int(m))
}

// Weights evaluates the kernel at lags 0..maxLag.
func Weights(m Method, maxLag int) ([]float64, error) {
	if maxLag < 0 {
		return nil, core.NewConfigurationError("taper max lag", maxLag)
	}
	w := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		v, err := Weight(m, k, maxLag)
		if err != nil {
			return nil, err
		}
		w[k] = v
	}
	return w, nil
}

// Package core holds the error taxonomy shared by the statistical engine.
package core

import (
	"errors"
	"fmt"
	"log/slog"
)

// Sentinel errors. Callers discriminate with errors.Is.
var (
	// ErrConfiguration marks an unrecognized or out-of-range setting
	// (taper method, test method, malformed call shapes). These fail fast
	// rather than falling back to a silent default.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrInsufficientData marks a sample too short for the requested
	// conditioning structure.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDegenerateInput marks zero-variance or perfectly collinear input
	// beyond the pseudo-inverse tolerance.
	ErrDegenerateInput = errors.New("degenerate input")
)

// NewConfigurationError reports an unrecognized setting value.
func NewConfigurationError(setting string, value any) error {
	return fmt.Errorf("%w: %s %v", ErrConfiguration, setting, value)
}

// NewInsufficientDataError reports a sample of rows observations where more
// than needed are required.
func NewInsufficientDataError(rows, needed int) error {
	return fmt.Errorf("%w: %d observations, need more than %d", ErrInsufficientData, rows, needed)
}

// NewDegenerateInputError reports zero-variance or collinear input.
func NewDegenerateInputError(what string) error {
	return fmt.Errorf("%w: %s", ErrDegenerateInput, what)
}

// WarnOverflow reports a numeric sanity-bound violation. Overflows are
// logged and clamped, never propagated as NaN or returned as errors.
func WarnOverflow(logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn(msg, args...)
}

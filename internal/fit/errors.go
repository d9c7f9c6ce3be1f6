package fit

import (
	"errors"
	"fmt"
)

// ErrNoConvergence marks a solve that produced no usable model.
var ErrNoConvergence = errors.New("fit: no convergence")

// FitError is returned by Fitter.Fit when not a single model converged.
type FitError struct {
	Components int
	Err        error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("fit: no convergent model (first attempt with %d components): %v", e.Components, e.Err)
}

func (e *FitError) Unwrap() error {
	return e.Err
}

// StopReason records why the search ended.
type StopReason int

const (
	// StopNone: the search has not stopped.
	StopNone StopReason = iota
	// StopWorse: the last added component did not lower the reduced chi-square.
	StopWorse
	// StopFailed: the last candidate did not converge.
	StopFailed
	// StopMaxComponents: the configured component limit was reached.
	StopMaxComponents
	// StopTarget: the best reduced chi-square reached the configured target.
	StopTarget
)

func (r StopReason) String() string {
	switch r {
	case StopWorse:
		return "reduced chi-square increased"
	case StopFailed:
		return "candidate did not converge"
	case StopMaxComponents:
		return "maximum number of components reached"
	case StopTarget:
		return "target reduced chi-square reached"
	case StopNone:
		return "not stopped"
	default:
		return "unknown"
	}
}

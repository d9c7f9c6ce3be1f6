// Package spectrum reads one-dimensional spectra (intensity vs. position)
// from plain-text column files.
package spectrum

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Spectrum is an ordered sequence of (position, intensity) samples sorted by
// position. The slices are shared, not copied, and must not be modified.
type Spectrum struct {
	Position  []float64
	Intensity []float64
	// Sigma holds the 1σ uncertainty of each intensity. It is nil when the
	// source carried none.
	Sigma []float64
}

// New builds a Spectrum from two equal-length slices.
func New(position, intensity []float64) (*Spectrum, error) {
	if len(position) != len(intensity) {
		return nil, &FormatError{Msg: "position and intensity lengths differ"}
	}
	if len(position) == 0 {
		return nil, &FormatError{Msg: "no samples"}
	}
	if i := unordered(position); i >= 0 {
		return nil, &FormatError{Line: i + 1, Msg: "positions must be non-decreasing"}
	}
	return &Spectrum{Position: position, Intensity: intensity}, nil
}

// WithSigma returns a copy of s carrying per-point uncertainties.
func (s *Spectrum) WithSigma(sigma []float64) (*Spectrum, error) {
	if len(sigma) != len(s.Position) {
		return nil, &FormatError{Msg: "sigma and position lengths differ"}
	}
	for i, v := range sigma {
		if v <= 0 {
			return nil, &FormatError{Line: i + 1, Msg: "uncertainty must be positive"}
		}
	}
	return &Spectrum{Position: s.Position, Intensity: s.Intensity, Sigma: sigma}, nil
}

// SigmaAt is the uncertainty of sample i: its own sigma when the spectrum
// has one, else noise when positive, else 1.
func (s *Spectrum) SigmaAt(i int, noise float64) float64 {
	switch {
	case s.Sigma != nil:
		return s.Sigma[i]
	case noise > 0:
		return noise
	default:
		return 1
	}
}

// unordered returns the index of the first finite position lower than the
// last finite one before it, or -1. Non-finite positions are skipped since
// Finite drops them.
func unordered(position []float64) int {
	last := math.Inf(-1)
	for i, x := range position {
		if !finite(x) {
			continue
		}
		if x < last {
			return i
		}
		last = x
	}
	return -1
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (s *Spectrum) Len() int {
	return len(s.Position)
}

// Range returns the first and last position.
func (s *Spectrum) Range() (lo, hi float64) {
	return s.Position[0], s.Position[len(s.Position)-1]
}

// MaxIntensity returns the largest intensity and its index.
func (s *Spectrum) MaxIntensity() (float64, int) {
	i := floats.MaxIdx(s.Intensity)
	return s.Intensity[i], i
}

// MinSpacing is the smallest positive gap between neighbouring positions.
func (s *Spectrum) MinSpacing() float64 {
	min := math.Inf(1)
	for i := 1; i < len(s.Position); i++ {
		if d := s.Position[i] - s.Position[i-1]; d > 0 && d < min {
			min = d
		}
	}
	return min
}

// Finite returns a copy holding only the rows where every column is finite
// and, when present, the uncertainty is positive.
func (s *Spectrum) Finite() *Spectrum {
	out := &Spectrum{
		Position:  make([]float64, 0, len(s.Position)),
		Intensity: make([]float64, 0, len(s.Intensity)),
	}
	if s.Sigma != nil {
		out.Sigma = make([]float64, 0, len(s.Sigma))
	}
	for i, x := range s.Position {
		y := s.Intensity[i]
		if !finite(x) || !finite(y) {
			continue
		}
		if s.Sigma != nil {
			if e := s.Sigma[i]; !finite(e) || e <= 0 {
				continue
			}
			out.Sigma = append(out.Sigma, s.Sigma[i])
		}
		out.Position = append(out.Position, x)
		out.Intensity = append(out.Intensity, y)
	}
	return out
}

// RMS estimates the noise level as the standard deviation of the intensities
// lying outside the emission window [lo, hi]. It returns NaN if the spectrum
// is identically zero or nothing lies outside the window.
func RMS(s *Spectrum, lo, hi float64) float64 {
	if floats.Sum(s.Intensity) == 0 {
		return math.NaN()
	}

	var off []float64
	for i, x := range s.Position {
		if x < lo || x > hi {
			off = append(off, s.Intensity[i])
		}
	}
	if len(off) < 2 {
		return math.NaN()
	}

	// Population deviation, not the sample one.
	_, std := stat.PopMeanStdDev(off, nil)
	return std
}

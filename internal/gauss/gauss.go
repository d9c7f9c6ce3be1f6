// Package gauss models spectra as sums of Gaussian peaks.
package gauss

import (
	"fmt"
	"math"
)

// ParamsPer is the number of free parameters of one Component.
const ParamsPer = 3

// fwhmFactor converts a Gaussian sigma into its full width at half maximum.
var fwhmFactor = 2 * math.Sqrt(2*math.Ln2)

// Component is a single peak A·exp(-(x-μ)²/(2σ²)).
type Component struct {
	Amplitude float64 `yaml:"amplitude"`
	Center    float64 `yaml:"center"`
	Width     float64 `yaml:"width"`
}

func (c Component) Eval(x float64) float64 {
	d := x - c.Center
	return c.Amplitude * math.Exp(-d*d/(2*c.Width*c.Width))
}

func (c Component) FWHM() float64 {
	return fwhmFactor * math.Abs(c.Width)
}

// Area is the integral of the peak over the real line.
func (c Component) Area() float64 {
	return c.Amplitude * math.Abs(c.Width) * math.Sqrt(2*math.Pi)
}

func (c Component) String() string {
	return fmt.Sprintf("A=%.6g mu=%.6g sigma=%.6g", c.Amplitude, c.Center, c.Width)
}

// WidthFromFWHM is the inverse of Component.FWHM.
func WidthFromFWHM(fwhm float64) float64 {
	return fwhm / fwhmFactor
}

// Model is an ordered sum of components.
type Model []Component

func (m Model) Len() int {
	return len(m)
}

func (m Model) Eval(x float64) float64 {
	y := 0.
	for _, c := range m {
		y += c.Eval(x)
	}
	return y
}

// EvalAll evaluates the model at every x.
func (m Model) EvalAll(xs []float64) []float64 {
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = m.Eval(x)
	}
	return ys
}

// Params flattens the model into [A1, μ1, σ1, A2, μ2, σ2, ...].
func (m Model) Params() []float64 {
	p := make([]float64, 0, ParamsPer*len(m))
	for _, c := range m {
		p = append(p, c.Amplitude, c.Center, c.Width)
	}
	return p
}

// FromParams is the inverse of Model.Params.
func FromParams(p []float64) (Model, error) {
	if len(p)%ParamsPer != 0 {
		return nil, fmt.Errorf("gauss: %d parameters is not a multiple of %d", len(p), ParamsPer)
	}
	m := make(Model, len(p)/ParamsPer)
	for i := range m {
		m[i] = Component{
			Amplitude: p[ParamsPer*i],
			Center:    p[ParamsPer*i+1],
			Width:     p[ParamsPer*i+2],
		}
	}
	return m, nil
}

// Clone returns a copy with its own backing array.
func (m Model) Clone() Model {
	return append(Model(nil), m...)
}

// With returns a copy of m with c appended.
func (m Model) With(c Component) Model {
	return append(m.Clone(), c)
}

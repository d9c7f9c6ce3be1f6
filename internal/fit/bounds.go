package fit

import "math"

// Bounds constrains the parameters of every component. A zero Max field
// means "derive from the spectrum"; see Options.
type Bounds struct {
	AmplitudeMin float64 `yaml:"amplitude_min"`
	AmplitudeMax float64 `yaml:"amplitude_max"`
	CenterMin    float64 `yaml:"center_min"`
	CenterMax    float64 `yaml:"center_max"`
	WidthMin     float64 `yaml:"width_min"`
	WidthMax     float64 `yaml:"width_max"`
}

// bound maps a box-constrained parameter onto an unconstrained internal one,
// so the unconstrained Levenberg-Marquardt solver can be used. Two-sided
// bounds use a sine map, one-sided bounds a square-root map.
type bound struct {
	min, max float64
}

func (b bound) lower() bool { return !math.IsInf(b.min, -1) }
func (b bound) upper() bool { return !math.IsInf(b.max, 1) }

// clamp moves v inside the bounds. Two-sided values are kept a hair away
// from the edges, where the sine map has a zero derivative.
func (b bound) clamp(v float64) float64 {
	if b.lower() && b.upper() {
		eps := 1e-6 * (b.max - b.min)
		return math.Min(math.Max(v, b.min+eps), b.max-eps)
	}
	if b.lower() && v < b.min {
		return b.min
	}
	if b.upper() && v > b.max {
		return b.max
	}
	return v
}

func (b bound) internal(v float64) float64 {
	v = b.clamp(v)
	switch {
	case b.lower() && b.upper():
		return math.Asin(2*(v-b.min)/(b.max-b.min) - 1)
	case b.lower():
		d := v - b.min + 1
		return math.Sqrt(d*d - 1)
	case b.upper():
		d := b.max - v + 1
		return math.Sqrt(d*d - 1)
	default:
		return v
	}
}

func (b bound) external(p float64) float64 {
	switch {
	case b.lower() && b.upper():
		return b.min + (math.Sin(p)+1)*(b.max-b.min)/2
	case b.lower():
		return b.min - 1 + math.Sqrt(p*p+1)
	case b.upper():
		return b.max + 1 - math.Sqrt(p*p+1)
	default:
		return p
	}
}

// perComponent expands b into one bound per flattened model parameter.
func (b Bounds) perComponent(n int) []bound {
	out := make([]bound, 0, 3*n)
	for i := 0; i < n; i++ {
		out = append(out,
			bound{min: b.AmplitudeMin, max: b.AmplitudeMax},
			bound{min: b.CenterMin, max: b.CenterMax},
			bound{min: b.WidthMin, max: b.WidthMax},
		)
	}
	return out
}

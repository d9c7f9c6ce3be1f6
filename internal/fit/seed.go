package fit

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/HamletTheHamster/gaussfit/internal/gauss"
)

// Seeder proposes the starting parameters of the next component from the
// current residual (data minus model) sampled at x.
type Seeder interface {
	Seed(x, residual []float64, b Bounds) gauss.Component
}

// HalfMaxSeeder places the new peak on the largest positive residual, with
// that residual as height and a width read off the half-maximum crossings
// on either side.
type HalfMaxSeeder struct{}

func (HalfMaxSeeder) Seed(x, residual []float64, b Bounds) gauss.Component {
	i, amp := peak(residual)

	half := amp / 2
	left := x[0]
	for j := i; j > 0; j-- {
		if residual[j-1] < half {
			left = crossing(x[j-1], residual[j-1], x[j], residual[j], half)
			break
		}
	}
	right := x[len(x)-1]
	for j := i; j < len(x)-1; j++ {
		if residual[j+1] < half {
			right = crossing(x[j], residual[j], x[j+1], residual[j+1], half)
			break
		}
	}

	width := gauss.WidthFromFWHM(right - left)
	return gauss.Component{
		Amplitude: amp,
		Center:    x[i],
		Width:     clampWidth(width, b),
	}
}

// FixedWidthSeeder places the new peak like HalfMaxSeeder but always starts
// it at the same width.
type FixedWidthSeeder struct {
	Width float64
}

func (s FixedWidthSeeder) Seed(x, residual []float64, b Bounds) gauss.Component {
	i, amp := peak(residual)
	return gauss.Component{
		Amplitude: amp,
		Center:    x[i],
		Width:     clampWidth(s.Width, b),
	}
}

// peak returns the index of the largest residual and a strictly positive
// starting height for it.
func peak(residual []float64) (int, float64) {
	i := floats.MaxIdx(residual)
	amp := residual[i]
	if amp <= 0 {
		// Nothing left above the model; start small rather than at zero.
		amp = math.Max(math.Abs(amp), 1e-3*floats.Norm(residual, math.Inf(1)))
		if amp == 0 {
			amp = 1
		}
	}
	return i, amp
}

// crossing linearly interpolates the x where the segment reaches level.
func crossing(x0, y0, x1, y1, level float64) float64 {
	if y1 == y0 {
		return (x0 + x1) / 2
	}
	return x0 + (level-y0)*(x1-x0)/(y1-y0)
}

func clampWidth(w float64, b Bounds) float64 {
	if w < b.WidthMin {
		w = b.WidthMin
	}
	if b.WidthMax > 0 && w > b.WidthMax {
		w = b.WidthMax
	}
	return w
}

package plotting

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/HamletTheHamster/gaussfit/internal/gauss"
	"github.com/HamletTheHamster/gaussfit/internal/spectrum"
)

// ResidualBins is the bin count of the residual histogram.
const ResidualBins = 20

// Residuals histograms the normalized residuals (y - model)/sigma against
// the unit normal they should follow for a good fit. Sigma is the sample's
// own uncertainty when s carries one, else noise. A non-positive noise
// leaves the residuals of an unweighted spectrum unscaled.
func Residuals(
	s *spectrum.Spectrum,
	m gauss.Model,
	noise float64,
	slide bool,
) (
	*plot.Plot, error,
) {

	if s.Len() < 2 {
		return nil, errors.New("plotting: too few samples for a residual histogram")
	}
	values := make(plotter.Values, s.Len())
	for i, x := range s.Position {
		values[i] = (s.Intensity[i] - m.Eval(x)) / s.SigmaAt(i, noise)
	}

	hist, err := plotter.NewHist(values, ResidualBins)
	if err != nil {
		return nil, err
	}
	hist.Normalize(1)
	hist.FillColor = palette(2, false)
	hist.LineStyle.Width = vg.Points(1)

	edge := math.Max(math.Abs(floats.Min(values)), math.Abs(floats.Max(values)))
	edge = math.Max(edge, 3)

	normal := plotter.NewFunction(func(x float64) float64 {
		return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
	})
	normal.LineStyle = dashed(modelColor, vg.Points(3))

	ymax := 1 / math.Sqrt(2*math.Pi)
	for _, b := range hist.Bins {
		ymax = math.Max(ymax, b.Weight)
	}

	p, t, r, err := prepPlot(
		"Normalized Residuals", "(Data - Model) / Noise", "Density",
		[]float64{-edge, edge}, []float64{0, ymax * 1.25},
		slide,
	)
	if err != nil {
		return nil, err
	}

	p.Add(hist, normal, t, r)
	p.Legend.Add("Residuals", hist)
	p.Legend.Add("Unit Normal", normal)

	return p, nil
}

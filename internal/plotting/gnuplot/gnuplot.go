//go:build gnuplot

// Package gnuplot opens fits in an interactive gnuplot window.
//
// glot looks gnuplot up on PATH when it is initialized and panics when it is
// missing, so this package is only built with the gnuplot tag:
//
//	go build -tags gnuplot ./cmd/gaussfit
package gnuplot

import (
	"fmt"

	"github.com/Arafatk/glot"
	"gonum.org/v1/plot/plotter"

	"github.com/HamletTheHamster/gaussfit/internal/gauss"
	"github.com/HamletTheHamster/gaussfit/internal/plotting"
	"github.com/HamletTheHamster/gaussfit/internal/spectrum"
)

// Show opens a persistent gnuplot window with the spectrum as points and the
// model as a line. It needs gnuplot on PATH.
func Show(
	s *spectrum.Spectrum,
	m gauss.Model,
	opts plotting.FigureOptions,
) (
	error,
) {

	dimensions := 2
	persist := true
	debug := false
	plot, err := glot.NewPlot(dimensions, persist, debug)
	if err != nil {
		return fmt.Errorf("gnuplot: %w", err)
	}

	plot.SetTitle(opts.Title)
	plot.SetXLabel(opts.XLabel)
	plot.SetYLabel(opts.YLabel)

	if err := plot.AddPointGroup("data", "points", [][]float64{s.Position, s.Intensity}); err != nil {
		return err
	}

	lo, hi := s.Range()
	if len(opts.XRange) == 2 {
		lo, hi = opts.XRange[0], opts.XRange[1]
	}

	if opts.Components {
		for i, c := range m {
			name := fmt.Sprintf("Gaussian %d", i+1)
			if err := plot.AddPointGroup(name, "lines", columns(plotting.Curve(gauss.Model{c}, lo, hi, plotting.CurvePoints))); err != nil {
				return err
			}
		}
	}

	return plot.AddPointGroup("fit", "lines", columns(plotting.Curve(m, lo, hi, plotting.CurvePoints)))
}

func columns(
	xy plotter.XYer,
) (
	[][]float64,
) {

	x := make([]float64, xy.Len())
	y := make([]float64, xy.Len())
	for i := range x {
		x[i], y[i] = xy.XY(i)
	}
	return [][]float64{x, y}
}

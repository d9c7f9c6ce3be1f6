//go:build gnuplot

package main

import (
	"github.com/HamletTheHamster/gaussfit/internal/gauss"
	"github.com/HamletTheHamster/gaussfit/internal/plotting"
	"github.com/HamletTheHamster/gaussfit/internal/plotting/gnuplot"
	"github.com/HamletTheHamster/gaussfit/internal/spectrum"
)

func show(s *spectrum.Spectrum, m gauss.Model, opts plotting.FigureOptions) error {
	return gnuplot.Show(s, m, opts)
}

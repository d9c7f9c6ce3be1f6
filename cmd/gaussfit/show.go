//go:build !gnuplot

package main

import (
	"errors"

	"github.com/HamletTheHamster/gaussfit/internal/gauss"
	"github.com/HamletTheHamster/gaussfit/internal/plotting"
	"github.com/HamletTheHamster/gaussfit/internal/spectrum"
)

var errNoGnuplot = errors.New("gaussfit: built without gnuplot support, rebuild with -tags gnuplot")

func show(*spectrum.Spectrum, gauss.Model, plotting.FigureOptions) error {
	return errNoGnuplot
}

// Package config holds the user parameters of a fitting run. They can be
// read from a YAML file and overridden from the command line.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/HamletTheHamster/gaussfit/internal/fit"
	"github.com/HamletTheHamster/gaussfit/internal/gauss"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid parameters")

// Window is an emission range [Lo, Hi] in position units.
type Window struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

func (w *Window) Valid() bool {
	return w != nil && w.Hi > w.Lo
}

// Plot controls figure rendering.
type Plot struct {
	Title      string    `yaml:"title"`
	XLabel     string    `yaml:"xlabel"`
	YLabel     string    `yaml:"ylabel"`
	Components bool      `yaml:"components"`
	Slide      bool      `yaml:"slide"`
	Formats    []string  `yaml:"formats"`
	XRange     []float64 `yaml:"xrange"`
}

type Config struct {
	MaxComponents int `yaml:"max_components"`
	// Noise is the per-point sigma. When zero and Window is set, the noise
	// is estimated as the rms outside the window.
	Noise  float64 `yaml:"noise"`
	Window *Window `yaml:"window"`
	// SNR and TargetRedChi fall back to the fitter defaults when zero and
	// the noise is known. Negative values turn them off.
	SNR          float64            `yaml:"snr"`
	SeedWidth    float64            `yaml:"seed_width"`
	TargetRedChi float64            `yaml:"target_redchi"`
	Initial      []gauss.Component  `yaml:"initial"`
	Bounds       fit.Bounds         `yaml:"bounds"`
	Solver       fit.SolverSettings `yaml:"solver"`
	Plot         Plot               `yaml:"plot"`
	// OutDir is the root of the dated run folders.
	OutDir string `yaml:"out"`
	Note   string `yaml:"note"`
}

// Default returns the parameters used when nothing else is given.
func Default() Config {
	return Config{
		MaxComponents: fit.DefaultMaxComponents,
		Solver:        fit.DefaultSolverSettings(),
		OutDir:        "plots",
		Plot: Plot{
			XLabel:     "Position",
			YLabel:     "Intensity",
			Components: true,
			Formats:    []string{"png", "svg", "pdf"},
		},
	}
}

// Load reads path over the defaults. Fields absent from the file keep their
// default value.
func Load(
	path string,
) (
	Config, error,
) {

	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports the first inconsistent parameter.
func (c Config) Validate() error {
	switch {
	case c.MaxComponents < 1:
		return fmt.Errorf("%w: max_components must be at least 1, got %d", ErrInvalid, c.MaxComponents)
	case c.Noise < 0:
		return fmt.Errorf("%w: noise must not be negative", ErrInvalid)
	case c.Window != nil && !c.Window.Valid():
		return fmt.Errorf("%w: window hi (%g) must exceed lo (%g)", ErrInvalid, c.Window.Hi, c.Window.Lo)
	case c.SeedWidth < 0:
		return fmt.Errorf("%w: seed_width must not be negative", ErrInvalid)
	case len(c.Initial) > c.MaxComponents:
		return fmt.Errorf("%w: %d initial components exceed max_components %d", ErrInvalid, len(c.Initial), c.MaxComponents)
	case len(c.Plot.XRange) != 0 && (len(c.Plot.XRange) != 2 || c.Plot.XRange[1] <= c.Plot.XRange[0]):
		return fmt.Errorf("%w: plot xrange must be [lo, hi] with hi > lo", ErrInvalid)
	}
	for i, g := range c.Initial {
		if g.Width <= 0 {
			return fmt.Errorf("%w: initial component %d has non-positive width %g", ErrInvalid, i+1, g.Width)
		}
	}
	return nil
}

// FitOptions converts the parameters into fitter options. noise is the
// resolved per-point sigma, which may come from an rms estimate.
func (c Config) FitOptions(noise float64) fit.Options {
	opts := fit.Options{
		MaxComponents: c.MaxComponents,
		Noise:         noise,
		SNR:           c.SNR,
		Initial:       c.Initial,
		Bounds:        c.Bounds,
		Solver:        c.Solver,
		TargetRedChi:  c.TargetRedChi,
	}
	if c.SeedWidth > 0 {
		opts.Seeder = fit.FixedWidthSeeder{Width: c.SeedWidth}
	}
	return opts
}

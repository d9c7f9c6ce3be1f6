// Command gaussfit decomposes a spectrum into a sum of Gaussians, writes the
// fitted parameters and saves a figure of the fit.
//
//	gaussfit [flags] <spectrum-file>
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/HamletTheHamster/gaussfit/internal/config"
	"github.com/HamletTheHamster/gaussfit/internal/fit"
	"github.com/HamletTheHamster/gaussfit/internal/gauss"
	"github.com/HamletTheHamster/gaussfit/internal/logging"
	"github.com/HamletTheHamster/gaussfit/internal/plotting"
	"github.com/HamletTheHamster/gaussfit/internal/report"
	"github.com/HamletTheHamster/gaussfit/internal/spectrum"
)

type cli struct {
	configPath string
	replot     string
	show       bool
	verbose    bool
	file       string

	// Values of the flags that override the parameter file.
	max        int
	noise      float64
	window     string
	guess      string
	seedWidth  float64
	snr        float64
	target     float64
	out        string
	note       string
	title      string
	xlabel     string
	ylabel     string
	slide      bool
	components bool

	set map[string]bool
}

func main() {

	c, err := flags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger := logging.Must(c.verbose)

	if err := run(c, logger); err != nil {
		logger.Error("gaussfit failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func flags(
	args []string,
	output io.Writer,
) (
	*cli, error,
) {

	c := &cli{set: map[string]bool{}}

	fs := flag.NewFlagSet("gaussfit", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&c.configPath, "config", "", "YAML parameter file")
	fs.StringVar(&c.replot, "replot", "", "plot a previously written gaussians.txt instead of fitting")
	fs.BoolVar(&c.show, "show", false, "open the fit in a gnuplot window")
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
	fs.IntVar(&c.max, "max", fit.DefaultMaxComponents, "maximum number of Gaussians")
	fs.Float64Var(&c.noise, "noise", 0, "per-point noise sigma")
	fs.StringVar(&c.window, "window", "", "emission window lo,hi; noise is the rms outside it")
	fs.StringVar(&c.guess, "guess", "", "initial Gaussians A,mu,sigma;A,mu,sigma")
	fs.Float64Var(&c.seedWidth, "seed-width", 0, "constant starting width for new Gaussians")
	fs.Float64Var(&c.snr, "snr", 0, "amplitude floor in units of the noise (0 selects 3, negative disables)")
	fs.Float64Var(&c.target, "target", 0, "stop once the reduced chi-square reaches this (0 selects 1 when the noise is known, negative disables)")
	fs.StringVar(&c.out, "out", "", "root folder for dated run folders (default plots)")
	fs.StringVar(&c.note, "note", "", "note to append folder name")
	fs.StringVar(&c.title, "title", "", "figure title")
	fs.StringVar(&c.xlabel, "xlabel", "", "x axis label")
	fs.StringVar(&c.ylabel, "ylabel", "", "y axis label")
	fs.BoolVar(&c.slide, "slide", false, "format figures for slide presentation")
	fs.BoolVar(&c.components, "components", true, "draw each Gaussian, not only the sum")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: gaussfit [flags] <spectrum-file>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		c.set[f.Name] = true
	})

	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("gaussfit: expected exactly one spectrum file")
	}
	c.file = fs.Arg(0)

	return c, nil
}

// apply layers the flags the user actually set over cfg.
func (c *cli) apply(cfg *config.Config) error {
	if c.set["max"] {
		cfg.MaxComponents = c.max
	}
	if c.set["noise"] {
		cfg.Noise = c.noise
	}
	if c.set["window"] {
		w, err := parseWindow(c.window)
		if err != nil {
			return err
		}
		cfg.Window = w
	}
	if c.set["guess"] {
		g, err := parseGuesses(c.guess)
		if err != nil {
			return err
		}
		cfg.Initial = g
	}
	if c.set["seed-width"] {
		cfg.SeedWidth = c.seedWidth
	}
	if c.set["snr"] {
		cfg.SNR = c.snr
	}
	if c.set["target"] {
		cfg.TargetRedChi = c.target
	}
	if c.set["out"] {
		cfg.OutDir = c.out
	}
	if c.set["note"] {
		cfg.Note = c.note
	}
	if c.set["title"] {
		cfg.Plot.Title = c.title
	}
	if c.set["xlabel"] {
		cfg.Plot.XLabel = c.xlabel
	}
	if c.set["ylabel"] {
		cfg.Plot.YLabel = c.ylabel
	}
	if c.set["slide"] {
		cfg.Plot.Slide = c.slide
	}
	if c.set["components"] {
		cfg.Plot.Components = c.components
	}
	return cfg.Validate()
}

func run(c *cli, logger *zap.Logger) error {

	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return err
		}
	}
	if err := c.apply(&cfg); err != nil {
		return err
	}

	raw, err := spectrum.Load(c.file)
	if err != nil {
		return err
	}
	s := raw.Finite()
	if s.Len() == 0 {
		return fmt.Errorf("gaussfit: %s has no finite samples", c.file)
	}
	if dropped := raw.Len() - s.Len(); dropped > 0 {
		logger.Debug("dropped non-finite rows", zap.Int("rows", dropped))
	}

	var runlog report.Log
	runlog.Printf("Spectrum: %s", c.file)
	runlog.Printf("Samples: %d", s.Len())

	noise := resolveNoise(cfg, s, logger)
	if s.Sigma != nil {
		logger.Debug("weighting by per-point uncertainties", zap.Int("samples", s.Len()))
		runlog.Printf("Noise: per-point uncertainties from column 3")
	} else {
		runlog.Printf("Noise: %g", noise)
	}

	if cfg.Plot.Title == "" {
		base := filepath.Base(c.file)
		cfg.Plot.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	dir := report.Dir(cfg.OutDir, cfg.Note, time.Now())

	var (
		model gauss.Model
		name  = "fit"
	)
	if c.replot != "" {
		if model, err = report.LoadTable(c.replot); err != nil {
			return err
		}
		redchi, chi2, dof := fit.ReducedChiSquare(s, model, noise)
		logger.Info("replotting",
			zap.String("table", c.replot),
			zap.Int("components", model.Len()),
			zap.Float64("redchi", redchi),
		)
		runlog.Printf("Replot: %s", c.replot)
		runlog.Printf("Reduced chi-square: %g (chi-square %g, dof %d)", redchi, chi2, dof)
		name = "replot"
	} else {
		res, err := fit.New(cfg.FitOptions(noise), logger).Fit(s)
		if err != nil {
			return err
		}
		model = res.Model

		for i, g := range res.Model {
			logger.Info("gaussian",
				zap.Int("n", i+1),
				zap.Float64("A", g.Amplitude),
				zap.Float64("mu", g.Center),
				zap.Float64("sigma", g.Width),
				zap.Float64("fwhm", g.FWHM()),
				zap.Float64("dA", res.Errors[i].Amplitude),
				zap.Float64("dmu", res.Errors[i].Center),
				zap.Float64("dsigma", res.Errors[i].Width),
			)
		}
		logger.Info("fit done",
			zap.Int("components", res.Model.Len()),
			zap.Float64("redchi", res.RedChi),
			zap.Int("iterations", res.Iterations()),
			zap.Stringer("stop", res.Stop),
		)

		for _, st := range res.History {
			switch {
			case st.Err != nil:
				runlog.Printf("Iteration %d Gaussians: %v", st.Components, st.Err)
			case st.Accepted:
				runlog.Printf("Iteration %d Gaussians: reduced chi-square %g (accepted)", st.Components, st.RedChi)
			default:
				runlog.Printf("Iteration %d Gaussians: reduced chi-square %g (discarded)", st.Components, st.RedChi)
			}
		}
		runlog.Printf("Stop: %s", res.Stop)
		runlog.Printf("Gaussians: %d", res.Model.Len())
		runlog.Printf("Reduced chi-square: %g", res.RedChi)

		path, err := report.SaveTable(dir, res)
		if err != nil {
			return err
		}
		logger.Info("wrote table", zap.String("path", path))
	}

	opts := plotting.FigureOptions{
		Title:      cfg.Plot.Title,
		XLabel:     cfg.Plot.XLabel,
		YLabel:     cfg.Plot.YLabel,
		Components: cfg.Plot.Components,
		Slide:      cfg.Plot.Slide,
		XRange:     cfg.Plot.XRange,
	}
	p, err := plotting.Figure(s, model, opts)
	if err != nil {
		return err
	}
	paths, err := plotting.Save(p, dir, name, cfg.Plot.Formats...)
	if err != nil {
		return err
	}
	hp, err := plotting.Residuals(s, model, noise, cfg.Plot.Slide)
	if err != nil {
		return err
	}
	hpaths, err := plotting.Save(hp, dir, "residuals", cfg.Plot.Formats...)
	if err != nil {
		return err
	}
	paths = append(paths, hpaths...)

	for _, path := range paths {
		runlog.Printf("Figure: %s", path)
	}
	logger.Info("saved figures", zap.Strings("paths", paths))

	if err := runlog.Save(dir); err != nil {
		return err
	}

	if c.show {
		if err := show(s, model, opts); err != nil {
			logger.Warn("gnuplot unavailable", zap.Error(err))
		}
	}
	return nil
}

// resolveNoise returns the configured noise, or the rms outside the emission
// window. Zero means unweighted.
func resolveNoise(cfg config.Config, s *spectrum.Spectrum, logger *zap.Logger) float64 {
	if cfg.Noise > 0 {
		return cfg.Noise
	}
	if !cfg.Window.Valid() {
		return 0
	}
	rms := spectrum.RMS(s, cfg.Window.Lo, cfg.Window.Hi)
	if math.IsNaN(rms) || rms <= 0 {
		logger.Warn("cannot estimate noise outside window, fitting unweighted",
			zap.Float64("lo", cfg.Window.Lo),
			zap.Float64("hi", cfg.Window.Hi),
		)
		return 0
	}
	logger.Debug("estimated noise", zap.Float64("rms", rms))
	return rms
}

func parseWindow(s string) (*config.Window, error) {
	v, err := parseFloats(s, ",")
	if err != nil {
		return nil, fmt.Errorf("%w: window: %v", config.ErrInvalid, err)
	}
	if len(v) != 2 {
		return nil, fmt.Errorf("%w: window wants lo,hi, got %q", config.ErrInvalid, s)
	}
	return &config.Window{Lo: v[0], Hi: v[1]}, nil
}

// parseGuesses reads "A,mu,sigma;A,mu,sigma".
func parseGuesses(s string) ([]gauss.Component, error) {
	var out []gauss.Component
	for _, group := range strings.Split(s, ";") {
		if strings.TrimSpace(group) == "" {
			continue
		}
		v, err := parseFloats(group, ",")
		if err != nil {
			return nil, fmt.Errorf("%w: guess: %v", config.ErrInvalid, err)
		}
		if len(v) != gauss.ParamsPer {
			return nil, fmt.Errorf("%w: guess %q wants A,mu,sigma", config.ErrInvalid, group)
		}
		out = append(out, gauss.Component{Amplitude: v[0], Center: v[1], Width: v[2]})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty guess", config.ErrInvalid)
	}
	return out, nil
}

func parseFloats(s, sep string) ([]float64, error) {
	parts := strings.Split(s, sep)
	v := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		v[i] = f
	}
	return v, nil
}

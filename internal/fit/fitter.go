// Package fit searches for a parsimonious sum-of-Gaussians model of a
// spectrum.
//
// The search starts from one component (or from caller-supplied guesses),
// fits all parameters jointly with Levenberg-Marquardt and then adds one
// component at a time, seeded on the largest residual. A new model is kept
// only while it lowers the reduced chi-square; the first model that does not
// is discarded and the previous best is returned.
package fit

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/HamletTheHamster/gaussfit/internal/gauss"
	"github.com/HamletTheHamster/gaussfit/internal/spectrum"
)

const (
	// DefaultMaxComponents caps the search when Options.MaxComponents is zero.
	DefaultMaxComponents = 10
	// DefaultSNR is the amplitude floor, in units of the noise, applied when
	// Options.SNR is zero and the noise is known.
	DefaultSNR = 3
	// DefaultTargetRedChi ends the search when Options.TargetRedChi is zero
	// and the noise is known: a model already within the noise is not
	// extended.
	DefaultTargetRedChi = 1
)

// Options configures a Fitter. The zero value is usable.
type Options struct {
	MaxComponents int
	// Noise is the per-point standard deviation. A spectrum's own Sigma
	// takes precedence. Residuals are weighted uniformly by 1 when neither is
	// known.
	Noise float64
	// SNR raises the amplitude lower bound to SNR·noise when the noise is
	// known. Zero selects DefaultSNR and a negative value disables the floor.
	SNR float64
	// Initial guesses. One component is seeded from the data when empty.
	Initial []gauss.Component
	Seeder  Seeder
	Bounds  Bounds
	Solver  SolverSettings
	// TargetRedChi stops the search once the best model reaches it. Zero
	// selects DefaultTargetRedChi when the noise is known and a negative
	// value disables the test.
	TargetRedChi float64
}

// Step is one iteration of the search.
type Step struct {
	Components int
	RedChi     float64
	Accepted   bool
	Err        error
}

// Result is the best model found.
type Result struct {
	Model gauss.Model
	// Errors holds the 1σ uncertainties, laid out like Model.
	Errors gauss.Model
	Chi2   float64
	RedChi float64
	DoF    int
	// Noise is the scalar noise level of the fit, zero when unweighted.
	Noise   float64
	History []Step
	Stop    StopReason
}

// Iterations is the number of candidate models tried.
func (r *Result) Iterations() int {
	return len(r.History)
}

type Fitter struct {
	opts   Options
	logger *zap.Logger
}

// New returns a Fitter. A nil logger discards output.
func New(opts Options, logger *zap.Logger) *Fitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxComponents <= 0 {
		opts.MaxComponents = DefaultMaxComponents
	}
	if opts.Seeder == nil {
		opts.Seeder = HalfMaxSeeder{}
	}
	def := DefaultSolverSettings()
	if opts.Solver.Iterations <= 0 {
		opts.Solver.Iterations = def.Iterations
	}
	if opts.Solver.ObjectiveTol <= 0 {
		opts.Solver.ObjectiveTol = def.ObjectiveTol
	}
	if opts.Solver.Tau <= 0 {
		opts.Solver.Tau = def.Tau
	}
	if opts.Solver.Eps1 <= 0 {
		opts.Solver.Eps1 = def.Eps1
	}
	if opts.Solver.Eps2 <= 0 {
		opts.Solver.Eps2 = def.Eps2
	}
	return &Fitter{opts: opts, logger: logger}
}

// Fit runs the search on s. It fails with *FitError only when no candidate
// converged at all.
func (f *Fitter) Fit(
	s *spectrum.Spectrum,
) (
	*Result, error,
) {

	p := f.prepare(s)
	log := f.logger.With(zap.Int("samples", s.Len()), zap.Float64("noise", p.level))

	var model gauss.Model
	if len(f.opts.Initial) > 0 {
		model = gauss.Model(f.opts.Initial).Clone()
	} else {
		model = gauss.Model{f.opts.Seeder.Seed(s.Position, s.Intensity, p.bounds)}
	}

	target := f.opts.TargetRedChi
	if target == 0 && p.level > 0 {
		target = DefaultTargetRedChi
	}

	var best *candidate
	var history []Step
	stop := StopNone

	for {
		cand, err := p.solve(model)
		step := Step{Components: model.Len()}

		if err != nil {
			step.Err = err
			step.RedChi = math.NaN()
			history = append(history, step)
			log.Info("candidate discarded", zap.Int("components", step.Components), zap.Error(err))
			stop = StopFailed
			break
		}

		step.RedChi = cand.redchi
		if best != nil && cand.redchi >= best.redchi {
			history = append(history, step)
			log.Info("candidate discarded",
				zap.Int("components", step.Components),
				zap.Float64("redchi", cand.redchi),
				zap.Float64("best", best.redchi),
			)
			stop = StopWorse
			break
		}

		step.Accepted = true
		history = append(history, step)
		best = cand
		log.Info("candidate accepted", zap.Int("components", step.Components), zap.Float64("redchi", cand.redchi))

		if best.model.Len() >= f.opts.MaxComponents {
			stop = StopMaxComponents
			break
		}
		if target > 0 && best.redchi <= target {
			stop = StopTarget
			break
		}

		next := f.opts.Seeder.Seed(s.Position, Residual(s, best.model), p.bounds)
		log.Debug("seeding component", zap.Stringer("seed", next))
		model = best.model.With(next)
	}

	if best == nil {
		return nil, &FitError{Components: model.Len(), Err: history[len(history)-1].Err}
	}

	log.Info("search finished",
		zap.Int("components", best.model.Len()),
		zap.Float64("redchi", best.redchi),
		zap.Stringer("stop", stop),
	)

	return &Result{
		Model:   best.model,
		Errors:  best.errors,
		Chi2:    best.chi2,
		RedChi:  best.redchi,
		DoF:     best.dof,
		Noise:   p.level,
		History: history,
		Stop:    stop,
	}, nil
}

// prepare resolves the noise level and the parameter bounds for s.
func (f *Fitter) prepare(s *spectrum.Spectrum) *problem {
	level := f.opts.Noise
	if level <= 0 && s.Sigma != nil {
		level = stat.Mean(s.Sigma, nil)
	}
	if !(level > 0) || math.IsInf(level, 1) {
		level = 0
	}
	sigma := make([]float64, s.Len())
	for i := range sigma {
		sigma[i] = s.SigmaAt(i, level)
	}

	b := f.opts.Bounds
	lo, hi := s.Range()
	if b.CenterMin == 0 && b.CenterMax == 0 {
		b.CenterMin, b.CenterMax = lo, hi
	}
	if b.WidthMin <= 0 {
		b.WidthMin = s.MinSpacing()
		if math.IsInf(b.WidthMin, 1) {
			b.WidthMin = 1e-9
		}
	}
	if b.WidthMax <= 0 {
		b.WidthMax = hi - lo
	}
	if b.WidthMax <= b.WidthMin {
		b.WidthMax = 2 * b.WidthMin
	}
	snr := f.opts.SNR
	if snr == 0 {
		snr = DefaultSNR
	}
	if b.AmplitudeMin == 0 && snr > 0 && level > 0 {
		b.AmplitudeMin = snr * level
	}
	if b.AmplitudeMax == 0 {
		ymax, _ := s.MaxIntensity()
		b.AmplitudeMax = 1.5 * math.Abs(ymax)
	}
	if b.AmplitudeMax <= b.AmplitudeMin {
		b.AmplitudeMax = b.AmplitudeMin + 1
	}
	if b.CenterMax <= b.CenterMin {
		b.CenterMax = b.CenterMin + b.WidthMin
	}

	return &problem{
		x:      s.Position,
		y:      s.Intensity,
		sigma:  sigma,
		level:  level,
		bounds: b,
		solver: f.opts.Solver,
	}
}

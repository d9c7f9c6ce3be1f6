package fit

import (
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/HamletTheHamster/gaussfit/internal/gauss"
	"github.com/HamletTheHamster/gaussfit/internal/spectrum"
)

// SolverSettings are passed through to the Levenberg-Marquardt solver.
type SolverSettings struct {
	Iterations   int     `yaml:"iterations"`
	ObjectiveTol float64 `yaml:"objective_tol"`
	Tau          float64 `yaml:"tau"`
	Eps1         float64 `yaml:"eps1"`
	Eps2         float64 `yaml:"eps2"`
}

// DefaultSolverSettings returns the solver configuration used when none is
// given.
func DefaultSolverSettings() SolverSettings {
	return SolverSettings{
		Iterations:   1000,
		ObjectiveTol: 1e-16,
		Tau:          1e-6,
		Eps1:         1e-8,
		Eps2:         1e-8,
	}
}

// problem is one spectrum prepared for repeated solves.
type problem struct {
	x, y  []float64
	sigma []float64
	// level is the scalar noise behind sigma, zero when unweighted.
	level  float64
	bounds Bounds
	solver SolverSettings
}

// candidate is the outcome of one converged solve.
type candidate struct {
	model  gauss.Model
	errors gauss.Model
	chi2   float64
	redchi float64
	dof    int
}

// residuals writes the weighted residual (y - model)/σ for the flattened
// parameters params into dst.
func (p *problem) residuals(
	dst, params []float64,
) {

	n := len(params) / gauss.ParamsPer
	for i, x := range p.x {
		m := 0.
		for k := 0; k < n; k++ {
			a, mu, w := params[3*k], params[3*k+1], params[3*k+2]
			d := x - mu
			m += a * math.Exp(-d*d/(2*w*w))
		}
		dst[i] = (p.y[i] - m) / p.sigma[i]
	}
}

// solve fits every parameter of start jointly.
func (p *problem) solve(
	start gauss.Model,
) (
	*candidate, error,
) {

	dim := gauss.ParamsPer * start.Len()
	dof := len(p.x) - dim
	if dof <= 0 {
		return nil, fmt.Errorf("%w: %d samples leave no degrees of freedom for %d parameters", ErrNoConvergence, len(p.x), dim)
	}

	bs := p.bounds.perComponent(start.Len())
	init := make([]float64, dim)
	for i, v := range start.Params() {
		init[i] = bs[i].internal(v)
	}

	external := make([]float64, dim)
	resFunc := func(dst, q []float64) {
		for i := range q {
			external[i] = bs[i].external(q[i])
		}
		p.residuals(dst, external)
	}

	nj := &lm.NumJac{Func: resFunc}

	toBeSolved := lm.LMProblem{
		Dim:        dim,
		Size:       len(p.x),
		Func:       resFunc,
		Jac:        nj.Jac,
		InitParams: init,
		Tau:        p.solver.Tau,
		Eps1:       p.solver.Eps1,
		Eps2:       p.solver.Eps2,
	}

	settings := &lm.Settings{Iterations: p.solver.Iterations, ObjectiveTol: p.solver.ObjectiveTol}

	result, err := lm.LM(toBeSolved, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoConvergence, err)
	}
	if len(result.X) != dim {
		return nil, fmt.Errorf("%w: solver returned no parameters", ErrNoConvergence)
	}

	params := make([]float64, dim)
	for i, q := range result.X {
		params[i] = bs[i].external(q)
		if math.IsNaN(params[i]) || math.IsInf(params[i], 0) {
			return nil, fmt.Errorf("%w: parameter %d is %v", ErrNoConvergence, i, params[i])
		}
	}

	model, err := gauss.FromParams(params)
	if err != nil {
		return nil, err
	}

	r := make([]float64, len(p.x))
	p.residuals(r, params)
	chi2 := 0.
	for _, v := range r {
		chi2 += v * v
	}
	if math.IsNaN(chi2) || math.IsInf(chi2, 0) {
		return nil, fmt.Errorf("%w: chi-square is %v", ErrNoConvergence, chi2)
	}
	redchi := chi2 / float64(dof)

	uncertainties, err := gauss.FromParams(p.stderr(params, redchi))
	if err != nil {
		return nil, err
	}

	return &candidate{
		model:  model,
		errors: uncertainties,
		chi2:   chi2,
		redchi: redchi,
		dof:    dof,
	}, nil
}

// stderr estimates 1σ parameter uncertainties from the covariance
// (JᵀJ)⁻¹·χ²ᵣ, with J the Jacobian of the weighted residual. A singular
// JᵀJ yields NaN.
func (p *problem) stderr(
	params []float64,
	redchi float64,
) (
	[]float64,
) {

	dim := len(params)
	out := make([]float64, dim)

	jac := mat.NewDense(len(p.x), dim, nil)
	fd.Jacobian(jac, p.residuals, params, &fd.JacobianSettings{Formula: fd.Central})

	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)

	var cov mat.Dense
	if err := cov.Inverse(&jtj); err != nil {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	for i := range out {
		v := cov.At(i, i) * redchi
		if v < 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Sqrt(v)
	}
	return out
}

// ReducedChiSquare evaluates m against s. Each residual is divided by the
// sample's own uncertainty when s carries one, else by noise, else by 1. It
// returns the reduced and plain chi-square and the degrees of freedom.
func ReducedChiSquare(
	s *spectrum.Spectrum,
	m gauss.Model,
	noise float64,
) (
	float64, float64, int,
) {

	chi2 := 0.
	for i, x := range s.Position {
		r := (s.Intensity[i] - m.Eval(x)) / s.SigmaAt(i, noise)
		chi2 += r * r
	}
	dof := s.Len() - gauss.ParamsPer*m.Len()
	if dof <= 0 {
		return math.NaN(), chi2, dof
	}
	return chi2 / float64(dof), chi2, dof
}

// Residual returns data minus model at every sample of s.
func Residual(s *spectrum.Spectrum, m gauss.Model) []float64 {
	r := make([]float64, s.Len())
	for i, x := range s.Position {
		r[i] = s.Intensity[i] - m.Eval(x)
	}
	return r
}

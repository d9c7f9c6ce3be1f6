package fit

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/HamletTheHamster/gaussfit/internal/gauss"
	"github.com/HamletTheHamster/gaussfit/internal/spectrum"
)

// synthetic samples truth on x = 0..n-1 and adds seeded Gaussian noise.
func synthetic(t *testing.T, truth gauss.Model, n int, noise float64, seed int64) *spectrum.Spectrum {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
		y[i] = truth.Eval(x[i]) + noise*rng.NormFloat64()
	}
	s, err := spectrum.New(x, y)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

var twoPeaks = gauss.Model{
	{Amplitude: 10, Center: 60, Width: 4},
	{Amplitude: 6, Center: 130, Width: 6},
}

func nearest(m gauss.Model, center float64) gauss.Component {
	best := m[0]
	for _, c := range m[1:] {
		if math.Abs(c.Center-center) < math.Abs(best.Center-center) {
			best = c
		}
	}
	return best
}

func TestFitRecoversSyntheticPeaks(t *testing.T) {
	const noise = 0.05
	s := synthetic(t, twoPeaks, 200, noise, 1)

	res, err := New(Options{MaxComponents: 5, Noise: noise}, nil).Fit(s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	n := res.Model.Len()
	if n < 2 || n > 3 {
		t.Fatalf("components = %d, want 2 (±1 for noise)", n)
	}

	for _, want := range twoPeaks {
		got := nearest(res.Model, want.Center)
		if math.Abs(got.Center-want.Center) > 0.2 {
			t.Errorf("center = %v, want %v", got.Center, want.Center)
		}
		if math.Abs(got.Amplitude-want.Amplitude)/want.Amplitude > 0.05 {
			t.Errorf("amplitude = %v, want %v", got.Amplitude, want.Amplitude)
		}
		if math.Abs(got.Width-want.Width)/want.Width > 0.05 {
			t.Errorf("width = %v, want %v", got.Width, want.Width)
		}
	}

	if math.Abs(res.RedChi-1) > 0.3 {
		t.Errorf("RedChi = %v, want close to 1", res.RedChi)
	}
	if res.DoF != s.Len()-3*n {
		t.Errorf("DoF = %d, want %d", res.DoF, s.Len()-3*n)
	}
}

func TestFitUncertainties(t *testing.T) {
	const noise = 0.05
	s := synthetic(t, twoPeaks, 200, noise, 1)

	res, err := New(Options{MaxComponents: 2, Noise: noise}, nil).Fit(s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Errors.Len() != res.Model.Len() {
		t.Fatalf("Errors has %d entries, Model %d", res.Errors.Len(), res.Model.Len())
	}
	for i, e := range res.Errors.Params() {
		if math.IsNaN(e) || e <= 0 {
			t.Errorf("uncertainty %d = %v, want positive", i, e)
		}
	}
	// The tallest peak is seeded first and is the best constrained.
	if e := res.Errors[0].Center; e > 0.1 {
		t.Errorf("center uncertainty = %v, want small", e)
	}
	if e := res.Errors[0].Amplitude; e > 0.1 {
		t.Errorf("amplitude uncertainty = %v, want small", e)
	}
}

func TestFitAcceptedRedChiNonIncreasing(t *testing.T) {
	truth := gauss.Model{
		{Amplitude: 8, Center: 40, Width: 3},
		{Amplitude: 5, Center: 90, Width: 5},
		{Amplitude: 3, Center: 150, Width: 4},
	}
	s := synthetic(t, truth, 200, 0.1, 7)

	res, err := New(Options{MaxComponents: 6, Noise: 0.1}, nil).Fit(s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	prev := math.Inf(1)
	accepted := 0
	for i, step := range res.History {
		if i > 0 && step.Components <= res.History[i-1].Components {
			t.Errorf("step %d has %d components, previous had %d", i, step.Components, res.History[i-1].Components)
		}
		if !step.Accepted {
			continue
		}
		accepted++
		if step.RedChi > prev {
			t.Errorf("step %d: accepted RedChi %v above previous %v", i, step.RedChi, prev)
		}
		prev = step.RedChi
	}
	if accepted == 0 {
		t.Fatal("no accepted step")
	}
	if prev != res.RedChi {
		t.Errorf("last accepted RedChi %v != result %v", prev, res.RedChi)
	}

	last := res.History[len(res.History)-1]
	if res.Stop == StopWorse && last.Components != res.Model.Len()+1 {
		t.Errorf("discarded candidate had %d components, want %d", last.Components, res.Model.Len()+1)
	}
}

func TestFitPureNoiseStopsEarly(t *testing.T) {
	const (
		noise = 0.1
		runs  = 20
	)

	overfit := 0
	for seed := int64(1); seed <= runs; seed++ {
		s := synthetic(t, nil, 200, noise, seed)

		res, err := New(Options{MaxComponents: 5, Noise: noise}, nil).Fit(s)
		if err != nil {
			t.Fatalf("seed %d: Fit: %v", seed, err)
		}
		if !res.History[0].Accepted {
			t.Errorf("seed %d: first candidate discarded: %+v", seed, res.History[0])
		}
		if res.Model.Len() > 1 {
			overfit++
			continue
		}
		switch res.Stop {
		case StopTarget:
			if len(res.History) != 1 {
				t.Errorf("seed %d: target reached after %d iterations", seed, len(res.History))
			}
		case StopWorse, StopFailed:
			if len(res.History) != 2 {
				t.Errorf("seed %d: %d iterations, want 2", seed, len(res.History))
			}
		default:
			t.Errorf("seed %d: Stop = %v", seed, res.Stop)
		}
		// The amplitude floor keeps the lone component at three sigma.
		if a := res.Model[0].Amplitude; a < DefaultSNR*noise-1e-9 {
			t.Errorf("seed %d: amplitude %v below floor", seed, a)
		}
	}
	// A late stop is rare but not impossible on noise alone.
	if overfit > runs/4 {
		t.Errorf("%d of %d noise spectra fitted with more than one component", overfit, runs)
	}
}

func TestFitNegativeTargetDisablesStop(t *testing.T) {
	s := synthetic(t, twoPeaks, 200, 0.05, 11)

	res, err := New(Options{MaxComponents: 2, Noise: 0.05, TargetRedChi: -1}, nil).Fit(s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Stop == StopTarget {
		t.Errorf("Stop = %v with the target disabled", res.Stop)
	}
}

func TestFitPerPointSigma(t *testing.T) {
	const noise = 0.05
	base := synthetic(t, twoPeaks, 200, noise, 13)

	// A burst at 175..185 that only the uncertainties explain.
	y := append([]float64(nil), base.Intensity...)
	sigma := make([]float64, len(y))
	for i := range sigma {
		sigma[i] = noise
		if i >= 175 && i <= 185 {
			y[i] += 3
			sigma[i] = 100
		}
	}
	raw, err := spectrum.New(base.Position, y)
	if err != nil {
		t.Fatal(err)
	}
	s, err := raw.WithSigma(sigma)
	if err != nil {
		t.Fatal(err)
	}

	res, err := New(Options{MaxComponents: 5, Noise: noise}, nil).Fit(s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	for _, c := range res.Model {
		if c.Center > 170 && c.Amplitude > 1 {
			t.Errorf("component %v fits the down-weighted burst", c)
		}
	}
	if got := nearest(res.Model, 60); math.Abs(got.Center-60) > 0.3 {
		t.Errorf("center = %v, want 60", got.Center)
	}
	if math.Abs(res.RedChi-1) > 0.3 {
		t.Errorf("RedChi = %v, want close to 1", res.RedChi)
	}

	redchi, _, _ := ReducedChiSquare(s, res.Model, res.Noise)
	if math.Abs(redchi-res.RedChi) > 1e-9*res.RedChi {
		t.Errorf("recomputed RedChi = %v, stored %v", redchi, res.RedChi)
	}

	// Uniform weights make the burst the largest residual.
	res, err = New(Options{MaxComponents: 5, Noise: noise}, nil).Fit(raw)
	if err != nil {
		t.Fatalf("unweighted Fit: %v", err)
	}
	if got := nearest(res.Model, 180); math.Abs(got.Center-180) > 5 {
		t.Errorf("unweighted model %v misses the burst", res.Model)
	}
}

func TestReducedChiSquareUsesSigma(t *testing.T) {
	x := make([]float64, 10)
	y := make([]float64, 10)
	for i := range x {
		x[i] = float64(i)
		y[i] = 1
	}
	s, err := spectrum.New(x, y)
	if err != nil {
		t.Fatal(err)
	}

	redchi, chi2, dof := ReducedChiSquare(s, nil, 0)
	if chi2 != 10 || dof != 10 || redchi != 1 {
		t.Errorf("unweighted = %v, %v, %d", redchi, chi2, dof)
	}
	if _, chi2, _ := ReducedChiSquare(s, nil, 0.5); chi2 != 40 {
		t.Errorf("noise 0.5 chi2 = %v, want 40", chi2)
	}

	sigma := make([]float64, 10)
	for i := range sigma {
		sigma[i] = 2
	}
	w, err := s.WithSigma(sigma)
	if err != nil {
		t.Fatal(err)
	}
	// Per-point sigma wins over the scalar noise.
	if _, chi2, _ := ReducedChiSquare(w, nil, 0.5); chi2 != 2.5 {
		t.Errorf("weighted chi2 = %v, want 2.5", chi2)
	}
}

func TestStopReasonZeroValue(t *testing.T) {
	var r StopReason
	if r != StopNone {
		t.Errorf("zero StopReason = %v, want StopNone", r)
	}
	if r.String() != "not stopped" {
		t.Errorf("String() = %q", r.String())
	}
	if (&Result{}).Stop != StopNone {
		t.Error("empty Result reports a stop reason")
	}
}

func TestFitRoundTripRedChi(t *testing.T) {
	const noise = 0.05
	s := synthetic(t, twoPeaks, 200, noise, 3)

	res, err := New(Options{Noise: noise}, nil).Fit(s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}

	redchi, chi2, dof := ReducedChiSquare(s, res.Model, res.Noise)
	if math.Abs(redchi-res.RedChi) > 1e-9*res.RedChi {
		t.Errorf("recomputed RedChi = %v, stored %v", redchi, res.RedChi)
	}
	if math.Abs(chi2-res.Chi2) > 1e-9*res.Chi2 {
		t.Errorf("recomputed Chi2 = %v, stored %v", chi2, res.Chi2)
	}
	if dof != res.DoF {
		t.Errorf("recomputed DoF = %d, stored %d", dof, res.DoF)
	}
}

func TestFitMaxComponents(t *testing.T) {
	s := synthetic(t, twoPeaks, 200, 0.05, 5)

	res, err := New(Options{MaxComponents: 1, Noise: 0.05}, nil).Fit(s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Model.Len() != 1 {
		t.Fatalf("components = %d, want 1", res.Model.Len())
	}
	if res.Stop != StopMaxComponents {
		t.Errorf("Stop = %v, want %v", res.Stop, StopMaxComponents)
	}
	if res.Iterations() != 1 {
		t.Errorf("Iterations = %d, want 1", res.Iterations())
	}
	// The tallest peak is seeded first.
	if math.Abs(res.Model[0].Center-60) > 1 {
		t.Errorf("center = %v, want about 60", res.Model[0].Center)
	}
}

func TestFitInitialGuesses(t *testing.T) {
	s := synthetic(t, twoPeaks, 200, 0.05, 9)

	opts := Options{
		MaxComponents: 2,
		Noise:         0.05,
		Initial: []gauss.Component{
			{Amplitude: 8, Center: 58, Width: 5},
			{Amplitude: 5, Center: 128, Width: 5},
		},
	}
	res, err := New(opts, nil).Fit(s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Model.Len() != 2 || res.Stop != StopMaxComponents {
		t.Fatalf("components = %d stop = %v", res.Model.Len(), res.Stop)
	}
	if got := nearest(res.Model, 130); math.Abs(got.Center-130) > 0.2 {
		t.Errorf("center = %v, want 130", got.Center)
	}
	// The caller's slice is not modified.
	if opts.Initial[0].Center != 58 {
		t.Errorf("Initial mutated: %v", opts.Initial)
	}
}

func TestFitTargetRedChi(t *testing.T) {
	s := synthetic(t, twoPeaks, 200, 0.05, 11)

	res, err := New(Options{Noise: 0.05, TargetRedChi: 2}, nil).Fit(s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if res.Stop != StopTarget {
		t.Fatalf("Stop = %v, want %v", res.Stop, StopTarget)
	}
	if res.Model.Len() != 2 {
		t.Errorf("components = %d, want 2", res.Model.Len())
	}
}

func TestFitNoConvergence(t *testing.T) {
	s, err := spectrum.New([]float64{0, 1}, []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}

	_, err = New(Options{}, nil).Fit(s)
	var fe *FitError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FitError", err)
	}
	if !errors.Is(err, ErrNoConvergence) {
		t.Errorf("err = %v, want wrapping ErrNoConvergence", err)
	}
	if fe.Components != 1 {
		t.Errorf("Components = %d, want 1", fe.Components)
	}
}

func TestFitKeepsBestWhenLaterCandidateFails(t *testing.T) {
	// Seven samples: one component leaves 4 degrees of freedom, two leave 1,
	// three leave none and cannot be solved.
	x := []float64{0, 1, 2, 3, 4, 5, 6}
	truth := gauss.Model{{Amplitude: 5, Center: 3, Width: 1}}
	y := truth.EvalAll(x)
	y[0] += 0.3
	y[6] -= 0.2
	s, err := spectrum.New(x, y)
	if err != nil {
		t.Fatal(err)
	}

	res, err := New(Options{MaxComponents: 5, Noise: 0.1}, nil).Fit(s)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	last := res.History[len(res.History)-1]
	if res.Stop == StopFailed {
		if last.Err == nil || !errors.Is(last.Err, ErrNoConvergence) {
			t.Errorf("last step error = %v", last.Err)
		}
	}
	if res.Model.Len() > 2 {
		t.Errorf("components = %d, want at most 2", res.Model.Len())
	}
	if res.DoF <= 0 {
		t.Errorf("DoF = %d", res.DoF)
	}
}

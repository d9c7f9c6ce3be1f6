package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/HamletTheHamster/gaussfit/internal/fit"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "params.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
max_components: 4
window: {lo: -17.9, hi: -3.9}
snr: 3
seed_width: 10
initial:
  - {amplitude: 12.5, center: -10.9, width: 0.2}
bounds:
  width_min: 1
  width_max: 30
solver:
  iterations: 200
plot:
  title: G9.621 - Methanol
  xrange: [-15.9, -5.9]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxComponents != 4 {
		t.Errorf("MaxComponents = %d, want 4", cfg.MaxComponents)
	}
	if !cfg.Window.Valid() || cfg.Window.Lo != -17.9 {
		t.Errorf("Window = %+v", cfg.Window)
	}
	if len(cfg.Initial) != 1 || cfg.Initial[0].Amplitude != 12.5 || cfg.Initial[0].Width != 0.2 {
		t.Errorf("Initial = %+v", cfg.Initial)
	}
	if cfg.Bounds.WidthMax != 30 {
		t.Errorf("Bounds = %+v", cfg.Bounds)
	}
	if cfg.Solver.Iterations != 200 {
		t.Errorf("Solver.Iterations = %d, want 200", cfg.Solver.Iterations)
	}
	// Untouched keys keep their defaults.
	if cfg.Solver.Eps1 != fit.DefaultSolverSettings().Eps1 {
		t.Errorf("Solver.Eps1 = %v, want default", cfg.Solver.Eps1)
	}
	if cfg.Plot.YLabel != "Intensity" || len(cfg.Plot.Formats) != 3 {
		t.Errorf("Plot = %+v", cfg.Plot)
	}
	if cfg.Plot.Title != "G9.621 - Methanol" {
		t.Errorf("Plot.Title = %q", cfg.Plot.Title)
	}

	opts := cfg.FitOptions(0.2)
	if opts.Noise != 0.2 || opts.MaxComponents != 4 || opts.SNR != 3 {
		t.Errorf("FitOptions = %+v", opts)
	}
	if s, ok := opts.Seeder.(fit.FixedWidthSeeder); !ok || s.Width != 10 {
		t.Errorf("Seeder = %#v, want FixedWidthSeeder{10}", opts.Seeder)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero components", "max_components: 0\n"},
		{"negative noise", "noise: -1\n"},
		{"empty window", "window: {lo: 2, hi: 1}\n"},
		{"bad initial width", "initial:\n  - {amplitude: 1, center: 2, width: 0}\n"},
		{"bad xrange", "plot: {xrange: [3]}\n"},
		{"too many initial", "max_components: 1\ninitial:\n  - {amplitude: 1, center: 2, width: 1}\n  - {amplitude: 1, center: 4, width: 1}\n"},
		{"not yaml", "max_components: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadNegativeDisablesDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, "noise: 0.2\nsnr: -1\ntarget_redchi: -1\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	opts := cfg.FitOptions(cfg.Noise)
	if opts.SNR != -1 || opts.TargetRedChi != -1 {
		t.Errorf("SNR = %v TargetRedChi = %v, want both -1", opts.SNR, opts.TargetRedChi)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestFitOptionsDefaultSeeder(t *testing.T) {
	opts := Default().FitOptions(0)
	if opts.Seeder != nil {
		t.Errorf("Seeder = %#v, want nil so the fitter picks its default", opts.Seeder)
	}
}

// Package report writes the outcome of a fitting run next to its plots: the
// Gaussian parameter table and a plain-text run log.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/HamletTheHamster/gaussfit/internal/fit"
	"github.com/HamletTheHamster/gaussfit/internal/gauss"
)

const (
	TableFile = "gaussians.txt"
	LogFile   = "log.txt"
)

// Dir returns the output folder for a run started at now:
// root/<date>/<time>[ note].
func Dir(
	root, note string,
	now time.Time,
) (
	string,
) {

	name := now.Format("15.04.05")
	if note != "" {
		name += " " + note
	}
	return filepath.Join(root, now.Format("2006-Jan-02"), name)
}

// Log collects human-readable lines for log.txt.
type Log struct {
	lines []string
}

func (l *Log) Printf(format string, a ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, a...))
}

func (l *Log) Lines() []string {
	return l.lines
}

func (l *Log) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, line := range l.lines {
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		m, err := bw.WriteString(line)
		n += int64(m)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Save writes the log to dir/log.txt, creating dir if needed.
func (l *Log) Save(dir string) error {
	return create(dir, LogFile, func(w io.Writer) error {
		_, err := l.WriteTo(w)
		return err
	})
}

// WriteTable writes one row per component of res, preceded by '#' header
// lines with the fit statistics.
func WriteTable(w io.Writer, res *fit.Result) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# reduced chi-square: %.6g   chi-square: %.6g   dof: %d   noise: %.6g\n", res.RedChi, res.Chi2, res.DoF, res.Noise)
	fmt.Fprintf(bw, "# components: %d   iterations: %d   stop: %s\n", res.Model.Len(), res.Iterations(), res.Stop)
	fmt.Fprintf(bw, "# %8s %14s %14s %14s %14s %14s %14s %14s %14s\n",
		"Gaussian", "A", "mu", "sigma", "FWHM", "area", "dA", "dmu", "dsigma")

	for i, c := range res.Model {
		var e gauss.Component
		if i < res.Errors.Len() {
			e = res.Errors[i]
		}
		fmt.Fprintf(bw, "  %8d %14.6g %14.6g %14.6g %14.6g %14.6g %14.6g %14.6g %14.6g\n",
			i+1, c.Amplitude, c.Center, c.Width, c.FWHM(), c.Area(), e.Amplitude, e.Center, e.Width)
	}

	return bw.Flush()
}

// SaveTable writes the table to dir/gaussians.txt and returns its path.
func SaveTable(dir string, res *fit.Result) (string, error) {
	err := create(dir, TableFile, func(w io.Writer) error {
		return WriteTable(w, res)
	})
	return filepath.Join(dir, TableFile), err
}

// ReadTable parses the A, mu and sigma columns of a table written by
// WriteTable back into a model.
func ReadTable(r io.Reader) (gauss.Model, error) {
	var m gauss.Model

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 4 {
			return nil, fmt.Errorf("report: line %d: want at least 4 columns, got %d", line, len(fields))
		}

		var v [3]float64
		for i := range v {
			f, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("report: line %d: %w", line, err)
			}
			v[i] = f
		}
		m = append(m, gauss.Component{Amplitude: v[0], Center: v[1], Width: v[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if m.Len() == 0 {
		return nil, fmt.Errorf("report: no components")
	}
	return m, nil
}

// LoadTable reads a table file from disk.
func LoadTable(path string) (gauss.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}

func create(dir, name string, write func(io.Writer) error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package spectrum

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// FormatError reports a malformed spectrum file.
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString("spectrum: ")
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	b.WriteString(e.Msg)
	return b.String()
}

// Load reads the spectrum stored at path. The file is closed before Load
// returns.
func Load(
	path string,
) (
	*Spectrum, error,
) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Read(f)
	if fe, ok := err.(*FormatError); ok {
		fe.Path = path
	}
	return s, err
}

// Read parses whitespace- or comma-separated numeric columns. The first two
// columns are position and intensity. A third column, when present, is the
// 1σ uncertainty of the intensity. Further columns are ignored but every row
// must carry the same number of them. Blank lines and lines starting with
// '#' are skipped.
func Read(
	r io.Reader,
) (
	*Spectrum, error,
) {

	var position, intensity, sigma []float64
	last := math.Inf(-1)
	columns := 0
	line := 0

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := splitFields(text)
		if len(fields) < 2 {
			return nil, &FormatError{Line: line, Msg: fmt.Sprintf("want at least 2 columns, got %d", len(fields))}
		}
		if columns == 0 {
			columns = len(fields)
		} else if len(fields) != columns {
			return nil, &FormatError{Line: line, Msg: fmt.Sprintf("column count %d differs from first row (%d)", len(fields), columns)}
		}

		x, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, &FormatError{Line: line, Msg: fmt.Sprintf("position %q is not a number", fields[0])}
		}
		y, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, &FormatError{Line: line, Msg: fmt.Sprintf("intensity %q is not a number", fields[1])}
		}
		// A non-finite position is dropped later and must not hide disorder.
		if finite(x) {
			if x < last {
				return nil, &FormatError{Line: line, Msg: "positions must be non-decreasing"}
			}
			last = x
		}

		if columns >= 3 {
			e, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, &FormatError{Line: line, Msg: fmt.Sprintf("uncertainty %q is not a number", fields[2])}
			}
			if e <= 0 {
				return nil, &FormatError{Line: line, Msg: fmt.Sprintf("uncertainty %g must be positive", e)}
			}
			sigma = append(sigma, e)
		}

		position = append(position, x)
		intensity = append(intensity, y)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(position) == 0 {
		return nil, &FormatError{Msg: "no data rows"}
	}

	return &Spectrum{Position: position, Intensity: intensity, Sigma: sigma}, nil
}

func splitFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
}

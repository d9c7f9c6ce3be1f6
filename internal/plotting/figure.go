// Package plotting renders a spectrum together with its fitted Gaussian
// model, either to image files with gonum/plot or live through gnuplot.
package plotting

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/HamletTheHamster/gaussfit/internal/gauss"
	"github.com/HamletTheHamster/gaussfit/internal/spectrum"
)

// CurvePoints is the default sampling density of model curves.
const CurvePoints = 1000

// FigureOptions controls Figure.
type FigureOptions struct {
	Title  string
	XLabel string
	YLabel string
	// Components draws every Gaussian on its own, not just the sum.
	Components bool
	// Slide enlarges fonts for presentation figures.
	Slide bool
	// XRange zooms the x axis to [lo, hi]. The full spectrum is shown when
	// empty.
	XRange []float64
}

var (
	spectrumColor = color.RGBA{R: 255, G: 102, B: 102, A: 255}
	modelColor    = color.RGBA{A: 255}
)

// Figure draws s as a step line, the model sum as a dashed black line and,
// optionally, each component dashed in its own colour.
func Figure(
	s *spectrum.Spectrum,
	m gauss.Model,
	opts FigureOptions,
) (
	*plot.Plot, error,
) {

	lo, hi := s.Range()
	if len(opts.XRange) == 2 {
		lo, hi = opts.XRange[0], opts.XRange[1]
	}
	if hi <= lo {
		hi = lo + 1
	}

	fit := Curve(m, lo, hi, CurvePoints)
	var parts []plotter.XYs
	if opts.Components {
		for _, c := range m {
			parts = append(parts, Curve(gauss.Model{c}, lo, hi, CurvePoints))
		}
	}

	// Auto y axes over whatever is visible.
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for i, x := range s.Position {
		if x < lo || x > hi {
			continue
		}
		ymin = math.Min(ymin, s.Intensity[i])
		ymax = math.Max(ymax, s.Intensity[i])
	}
	for _, pts := range append(parts, fit) {
		for _, pt := range pts {
			ymin = math.Min(ymin, pt.Y)
			ymax = math.Max(ymax, pt.Y)
		}
	}
	if math.IsInf(ymin, 0) || math.IsInf(ymax, 0) {
		ymin, ymax = 0, 1
	}
	if ymax <= ymin {
		ymax = ymin + 1
	}
	span := ymax - ymin
	ymax += span / 4
	ymin -= span / 32

	p, t, r, err := prepPlot(
		opts.Title, opts.XLabel, opts.YLabel,
		[]float64{lo, hi}, []float64{ymin, ymax},
		opts.Slide,
	)
	if err != nil {
		return nil, err
	}

	// Spectrum
	data, err := plotter.NewLine(buildData(s.Position, s.Intensity))
	if err != nil {
		return nil, err
	}
	data.StepStyle = plotter.MidStep
	data.LineStyle.Color = spectrumColor
	data.LineStyle.Width = vg.Points(2)
	p.Add(data)
	p.Legend.Add("Spectrum", data)

	// Components
	for i, pts := range parts {
		l, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		l.LineStyle = dashed(palette(i, true), vg.Points(2))
		p.Add(l)
		p.Legend.Add(fmt.Sprintf("Gaussian %d", i+1), l)
	}

	// Model
	model, err := plotter.NewLine(fit)
	if err != nil {
		return nil, err
	}
	model.LineStyle = dashed(modelColor, vg.Points(3))
	p.Add(model, t, r)
	p.Legend.Add("Model", model)

	return p, nil
}

// Curve samples m at n evenly spaced positions over [lo, hi].
func Curve(
	m gauss.Model,
	lo, hi float64,
	n int,
) (
	plotter.XYs,
) {

	if n < 2 {
		n = 2
	}
	dx := (hi - lo) / float64(n-1)

	xy := make(plotter.XYs, n)
	for i := range xy {
		x := lo + dx*float64(i)
		xy[i].X = x
		xy[i].Y = m.Eval(x)
	}
	xy[n-1].X = hi
	xy[n-1].Y = m.Eval(hi)
	return xy
}

// Save writes p to dir/name.<format> for each format (png, svg and pdf when
// none are given) and returns the written paths.
func Save(
	p *plot.Plot,
	dir, name string,
	formats ...string,
) (
	[]string, error,
) {

	if len(formats) == 0 {
		formats = []string{"png", "svg", "pdf"}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for _, ext := range formats {
		path := filepath.Join(dir, name+"."+ext)
		if err := p.Save(15*vg.Inch, 15*vg.Inch, path); err != nil {
			return paths, fmt.Errorf("plotting: save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func dashed(c color.Color, w vg.Length) draw.LineStyle {
	return draw.LineStyle{
		Color:  c,
		Width:  w,
		Dashes: []vg.Length{5 * w, 2 * w},
	}
}

func buildData(
	x, y []float64,
) (
	plotter.XYs,
) {

	xy := make(plotter.XYs, len(x))
	for i := range xy {
		xy[i].X = x[i]
		xy[i].Y = y[i]
	}
	return xy
}

func prepPlot(
	title, xlabel, ylabel string,
	xrange, yrange []float64,
	slide bool,
) (
	*plot.Plot,
	*plotter.Line, *plotter.Line,
	error,
) {

	p := plot.New()
	p.BackgroundColor = color.RGBA{A: 0}
	p.Title.Text = title
	p.Title.TextStyle.Font.Typeface = "liberation"
	p.Title.TextStyle.Font.Variant = "Sans"

	p.X.Label.Text = xlabel
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.LineStyle.Width = vg.Points(1.5)
	p.X.Min = xrange[0]
	p.X.Max = xrange[1]
	p.X.Tick.LineStyle.Width = vg.Points(1.5)
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Padding = vg.Points(-8)

	p.Y.Label.Text = ylabel
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.LineStyle.Width = vg.Points(1.5)
	p.Y.Min = yrange[0]
	p.Y.Max = yrange[1]
	p.Y.Tick.LineStyle.Width = vg.Points(1.5)
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Padding = vg.Points(-6)

	p.Legend.TextStyle.Font.Variant = "Sans"
	p.Legend.Top = true
	p.Legend.XOffs = vg.Points(-25)
	p.Legend.YOffs = vg.Points(25)
	p.Legend.Padding = vg.Points(10)
	p.Legend.ThumbnailWidth = vg.Points(50)

	if slide {
		p.Title.TextStyle.Font.Size = 80
		p.Title.Padding = font.Length(80)
		p.X.Label.TextStyle.Font.Size = 56
		p.X.Label.Padding = font.Length(40)
		p.X.Tick.Label.Font.Size = 56
		p.Y.Label.TextStyle.Font.Size = 56
		p.Y.Label.Padding = font.Length(40)
		p.Y.Tick.Label.Font.Size = 56
		p.Legend.TextStyle.Font.Size = 56
	} else {
		p.Title.TextStyle.Font.Size = 50
		p.Title.Padding = font.Length(50)
		p.X.Label.TextStyle.Font.Size = 36
		p.X.Label.Padding = font.Length(20)
		p.X.Tick.Label.Font.Size = 36
		p.Y.Label.TextStyle.Font.Size = 36
		p.Y.Label.Padding = font.Length(20)
		p.Y.Tick.Label.Font.Size = 36
		p.Legend.TextStyle.Font.Size = 28
	}

	// Enclose plot
	t := plotter.XYs{{X: xrange[0], Y: yrange[1]}, {X: xrange[1], Y: yrange[1]}}
	r := plotter.XYs{{X: xrange[1], Y: yrange[0]}, {X: xrange[1], Y: yrange[1]}}

	tAxis, err := plotter.NewLine(t)
	if err != nil {
		return nil, nil, nil, err
	}
	tAxis.LineStyle.Width = vg.Points(1.5)

	rAxis, err := plotter.NewLine(r)
	if err != nil {
		return nil, nil, nil, err
	}
	rAxis.LineStyle.Width = vg.Points(1.5)

	return p, tAxis, rAxis, nil
}

func palette(
	brush int,
	dark bool,
) (
	color.RGBA,
) {

	if dark {
		darkColor := []color.RGBA{
			{R: 27, G: 170, B: 139, A: 255},
			{R: 201, G: 104, B: 146, A: 255},
			{R: 99, G: 124, B: 198, A: 255},
			{R: 91, G: 22, B: 22, A: 255},
			{R: 188, G: 117, B: 255, A: 255},
			{R: 234, G: 156, B: 172, A: 255},
			{R: 1, G: 56, B: 84, A: 255},
			{R: 46, G: 140, B: 60, A: 255},
			{R: 140, G: 46, B: 49, A: 255},
			{R: 122, G: 41, B: 104, A: 255},
			{R: 41, G: 122, B: 100, A: 255},
			{R: 122, G: 90, B: 41, A: 255},
			{R: 183, G: 139, B: 89, A: 255},
			{R: 22, G: 44, B: 91, A: 255},
			{R: 59, G: 17, B: 66, A: 255},
			{R: 18, G: 102, B: 99, A: 255},
		}
		return darkColor[brush%len(darkColor)]
	}

	col := []color.RGBA{
		{R: 31, G: 211, B: 172, A: 255},
		{R: 255, G: 122, B: 180, A: 255},
		{R: 122, G: 156, B: 255, A: 255},
		{R: 91, G: 22, B: 22, A: 255},
		{R: 188, G: 117, B: 255, A: 255},
		{R: 234, G: 156, B: 172, A: 255},
		{R: 1, G: 56, B: 84, A: 255},
		{R: 46, G: 140, B: 60, A: 255},
		{R: 140, G: 46, B: 49, A: 255},
		{R: 122, G: 41, B: 104, A: 255},
		{R: 41, G: 122, B: 100, A: 255},
		{R: 122, G: 90, B: 41, A: 255},
		{R: 255, G: 193, B: 122, A: 255},
		{R: 22, G: 44, B: 91, A: 255},
		{R: 59, G: 17, B: 66, A: 255},
		{R: 27, G: 150, B: 146, A: 255},
	}
	return col[brush%len(col)]
}

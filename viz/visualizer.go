package viz

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/trainedml/analysis"
	"github.com/YuminosukeSato/trainedml/dataset"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
)

// DefaultBins is the histogram bin count when none is given.
const DefaultBins = 10

// Visualizer builds figures from one frame.
type Visualizer struct {
	frame    *dataset.Frame
	analyzer *analysis.Analyzer
	logger   log.Logger
}

// Option configures a Visualizer.
type Option func(*Visualizer)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option { return func(v *Visualizer) { v.logger = l } }

// New creates a Visualizer for f.
func New(f *dataset.Frame, opts ...Option) *Visualizer {
	v := &Visualizer{frame: f, analyzer: analysis.New(f), logger: log.GetLogger()}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With(log.ComponentKey, "viz")
	return v
}

// Features returns the numeric column names.
func (v *Visualizer) Features() []string { return v.frame.NumericColumns() }

func (v *Visualizer) done(kind string, fig *Figure) *Figure {
	v.logger.Debug("Figure built", log.OperationKey, log.OperationPlot, "plot", kind, "panels", len(fig.plots))
	return fig
}

// numericValues returns the present values of the named numeric columns, or
// all numeric columns. Empty columns are rejected.
func (v *Visualizer) numericValues(names []string) ([]string, [][]float64, error) {
	if len(names) == 0 {
		names = v.Features()
	}
	if len(names) == 0 {
		return nil, nil, errors.WithHint(
			errors.NewValueError("viz", "no numeric columns to plot"),
			"check the separator; a wrong one yields a single text column",
		)
	}
	values := make([][]float64, len(names))
	for i, n := range names {
		c, err := v.frame.Column(n)
		if err != nil {
			return nil, nil, err
		}
		if _, err := c.Float64s(); err != nil {
			return nil, nil, err
		}
		values[i] = c.Present()
		if len(values[i]) == 0 {
			return nil, nil, errors.NewValueError("viz", fmt.Sprintf("column %q has no values", n))
		}
	}
	return names, values, nil
}

func checkBins(bins int) (int, error) {
	if bins == 0 {
		return DefaultBins, nil
	}
	if bins < 1 {
		return 0, errors.NewValidationError("bins", "must be at least 1", bins)
	}
	return bins, nil
}

// corrGrid adapts a correlation matrix to plotter.GridXYZ. Row 0 of the
// grid is the last feature so that the first feature is drawn on top.
type corrGrid struct {
	m    *analysis.CorrMatrix
	mask bool
}

func (g corrGrid) Dims() (c, r int) {
	n := len(g.m.Names)
	return n, n
}

func (g corrGrid) Z(c, r int) float64 {
	i := len(g.m.Names) - 1 - r
	if g.mask && c >= i {
		return math.NaN()
	}
	return g.m.At(i, c)
}

func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }
func (g corrGrid) Min() float64    { return -1 }
func (g corrGrid) Max() float64    { return 1 }

// Heatmap draws the annotated correlation matrix of the features with a
// blue-red palette. mask hides the upper triangle and the diagonal.
func (v *Visualizer) Heatmap(features []string, method string, mask bool) (*Figure, error) {
	if method == "" {
		method = analysis.Pearson
	}
	p, err := v.corrPlot(features, method, mask)
	if err != nil {
		return nil, err
	}
	p.Title.Text = fmt.Sprintf("Correlation heatmap (%s)", method)
	fig := NewFigure(p)
	fig.Height = 6 * vg.Inch
	return v.done("heatmap", fig), nil
}

// Correlation draws the correlation matrix like Heatmap with the matrix
// title.
func (v *Visualizer) Correlation(features []string, method string, mask bool) (*Figure, error) {
	if method == "" {
		method = analysis.Pearson
	}
	p, err := v.corrPlot(features, method, mask)
	if err != nil {
		return nil, err
	}
	p.Title.Text = "Correlation matrix"
	fig := NewFigure(p)
	fig.Height = 6 * vg.Inch
	return v.done("correlation", fig), nil
}

func (v *Visualizer) corrPlot(features []string, method string, mask bool) (*plot.Plot, error) {
	m, err := v.analyzer.Correlation(features, method)
	if err != nil {
		return nil, err
	}
	n := len(m.Names)
	if n < 2 {
		return nil, errors.NewValidationError("features", "a correlation heatmap needs at least two numeric columns", m.Names)
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)
	grid := corrGrid{m: m, mask: mask}
	hm := plotter.NewHeatMap(grid, cm.Palette(255))
	hm.Min, hm.Max = -1, 1
	hm.NaN = color.Transparent

	p := plot.New()
	p.Add(hm)

	var pts plotter.XYs
	var labels []string
	for c := 0; c < n; c++ {
		for r := 0; r < n; r++ {
			z := grid.Z(c, r)
			if math.IsNaN(z) {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(c) - 0.2, Y: float64(r) - 0.1})
			labels = append(labels, fmt.Sprintf("%.2f", z))
		}
	}
	if len(pts) > 0 {
		annot, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
		if err != nil {
			return nil, errors.Wrap(err, "annotate heatmap")
		}
		p.Add(annot)
	}

	reversed := make([]string, n)
	for i, name := range m.Names {
		reversed[n-1-i] = name
	}
	p.NominalX(m.Names...)
	p.NominalY(reversed...)
	return p, nil
}

// Histogram overlays one histogram per column. legend adds a legend entry
// per column.
func (v *Visualizer) Histogram(columns []string, legend bool, bins int) (*Figure, error) {
	bins, err := checkBins(bins)
	if err != nil {
		return nil, err
	}
	names, values, err := v.numericValues(columns)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.Title.Text = "Histogram"
	p.Y.Label.Text = "count"
	if len(names) == 1 {
		p.X.Label.Text = names[0]
	}
	for i, vals := range values {
		h, err := plotter.NewHist(plotter.Values(vals), bins)
		if err != nil {
			return nil, errors.Wrapf(err, "histogram of %s", names[i])
		}
		h.FillColor = withAlpha(plotutil.Color(i), 0x99)
		p.Add(h)
		if legend {
			p.Legend.Add(names[i], h)
		}
	}
	p.Legend.Top = true
	return v.done("histogram", NewFigure(p)), nil
}

func withAlpha(c color.Color, a uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: a}
}

// Line draws y against x, joining the complete rows in order of x.
func (v *Visualizer) Line(x, y string) (*Figure, error) {
	pts, err := v.xy(x, y)
	if err != nil {
		return nil, err
	}
	sortXY(pts)
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, errors.Wrap(err, "line plot")
	}
	l.LineStyle.Width = vg.Points(1.5)
	l.LineStyle.Color = plotutil.Color(0)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", y, x)
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Add(l)
	return v.done("line", NewFigure(p)), nil
}

// Bivariate draws a scatter plot of y against x.
func (v *Visualizer) Bivariate(x, y string) (*Figure, error) {
	pts, err := v.xy(x, y)
	if err != nil {
		return nil, err
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "scatter plot")
	}
	s.GlyphStyle.Color = withAlpha(plotutil.Color(0), 0xb3)
	s.GlyphStyle.Radius = vg.Points(2.5)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Scatter plot: %s vs %s", x, y)
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Add(s)
	return v.done("bivariate", NewFigure(p)), nil
}

func (v *Visualizer) xy(x, y string) (plotter.XYs, error) {
	xc, err := v.frame.Column(x)
	if err != nil {
		return nil, err
	}
	yc, err := v.frame.Column(y)
	if err != nil {
		return nil, err
	}
	xs, err := xc.Float64s()
	if err != nil {
		return nil, err
	}
	ys, err := yc.Float64s()
	if err != nil {
		return nil, err
	}
	var pts plotter.XYs
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[i], Y: ys[i]})
	}
	if len(pts) == 0 {
		return nil, errors.NewValueError("viz", fmt.Sprintf("no complete rows for %s and %s", x, y))
	}
	return pts, nil
}

func sortXY(pts plotter.XYs) {
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
}

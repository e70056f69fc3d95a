package viz

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/trainedml/analysis"
	"github.com/YuminosukeSato/trainedml/dataset"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

var boxWidth = vg.Points(20)

// Boxplot draws one box per column. With by set, it draws one plot per
// column with a box per group of the by column.
func (v *Visualizer) Boxplot(columns []string, by string) (*Figure, error) {
	names, values, err := v.numericValues(columns)
	if err != nil {
		return nil, err
	}
	if by == "" {
		p := plot.New()
		p.Title.Text = "Boxplot"
		for i, vals := range values {
			b, err := plotter.NewBoxPlot(boxWidth, float64(i), plotter.Values(vals))
			if err != nil {
				return nil, errors.Wrapf(err, "boxplot of %s", names[i])
			}
			b.FillColor = withAlpha(plotutil.Color(i), 0x99)
			p.Add(b)
		}
		p.NominalX(names...)
		return v.done("boxplot", NewFigure(p)), nil
	}

	group, err := v.frame.Column(by)
	if err != nil {
		return nil, err
	}
	labels := group.Unique()
	if len(labels) == 0 {
		return nil, errors.NewValueError("Boxplot", fmt.Sprintf("column %q has no values", by))
	}
	var plots []*plot.Plot
	for _, name := range names {
		col, _ := v.frame.Column(name)
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s by %s", name, by)
		p.X.Label.Text = by
		p.Y.Label.Text = name
		for k, label := range labels {
			var vals plotter.Values
			for i := 0; i < col.Len(); i++ {
				if !col.IsMissing(i) && !group.IsMissing(i) && group.Value(i) == label {
					vals = append(vals, col.Floats[i])
				}
			}
			if len(vals) == 0 {
				continue
			}
			b, err := plotter.NewBoxPlot(boxWidth, float64(k), vals)
			if err != nil {
				return nil, errors.Wrapf(err, "boxplot of %s for %s", name, label)
			}
			b.FillColor = withAlpha(plotutil.Color(k), 0x99)
			p.Add(b)
		}
		p.NominalX(labels...)
		plots = append(plots, p)
	}
	return v.done("boxplot", NewFigure(plots...)), nil
}

// Distribution draws a density histogram per column with the fitted normal
// curve on top.
func (v *Visualizer) Distribution(columns []string, bins int) (*Figure, error) {
	bins, err := checkBins(bins)
	if err != nil {
		return nil, err
	}
	names, values, err := v.numericValues(columns)
	if err != nil {
		return nil, err
	}
	plots := make([]*plot.Plot, len(names))
	for i, vals := range values {
		h, err := plotter.NewHist(plotter.Values(vals), bins)
		if err != nil {
			return nil, errors.Wrapf(err, "distribution of %s", names[i])
		}
		h.Normalize(1)
		h.FillColor = withAlpha(plotutil.Color(0), 0x80)

		p := plot.New()
		p.Title.Text = fmt.Sprintf("Distribution of %s", names[i])
		p.Y.Label.Text = "density"
		p.Add(h)

		if len(vals) > 1 {
			mean, std := stat.MeanStdDev(vals, nil)
			if std > 0 {
				norm := distuv.Normal{Mu: mean, Sigma: std}
				curve := plotter.NewFunction(norm.Prob)
				curve.Color = plotutil.Color(1)
				curve.Width = vg.Points(1.5)
				p.Add(curve)
				p.Legend.Add("normal fit", curve)
				p.Legend.Top = true
			}
		}
		plots[i] = p
	}
	return v.done("distribution", NewFigure(plots...)), nil
}

// Target draws the class counts of a classification target as bars, or the
// histogram of a numeric target.
func (v *Visualizer) Target(column string) (*Figure, error) {
	ts, err := v.analyzer.Target(column)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Target distribution: %s", column)

	if ts.Classification {
		counts := make(plotter.Values, len(ts.Classes))
		labels := make([]string, len(ts.Classes))
		for i, c := range ts.Classes {
			counts[i] = float64(c.Count)
			labels[i] = c.Label
		}
		bars, err := plotter.NewBarChart(counts, boxWidth)
		if err != nil {
			return nil, errors.Wrap(err, "target bars")
		}
		bars.Color = plotutil.Color(4)
		p.Add(bars)
		p.NominalX(labels...)
		p.Y.Label.Text = "count"
		return v.done("target", NewFigure(p)), nil
	}

	col, _ := v.frame.Column(column)
	vals := col.Present()
	if len(vals) == 0 {
		return nil, errors.NewValueError("Target", fmt.Sprintf("column %q has no values", column))
	}
	h, err := plotter.NewHist(plotter.Values(vals), 20)
	if err != nil {
		return nil, errors.Wrap(err, "target histogram")
	}
	h.FillColor = plotutil.Color(4)
	p.Add(h)
	p.X.Label.Text = column
	p.Y.Label.Text = "count"
	return v.done("target", NewFigure(p)), nil
}

// Missing draws the percentage of missing values of every incomplete
// column, or a note when the frame is complete.
func (v *Visualizer) Missing() (*Figure, error) {
	var pct plotter.Values
	var names []string
	for _, m := range v.analyzer.Missing() {
		if m.Count > 0 {
			pct = append(pct, m.Percent)
			names = append(names, m.Column)
		}
	}
	if len(pct) == 0 {
		p, err := textPlot("Missing values", []string{"No missing values"})
		if err != nil {
			return nil, err
		}
		fig := NewFigure(p)
		fig.Text = "No missing values"
		return v.done("missing", fig), nil
	}

	bars, err := plotter.NewBarChart(pct, boxWidth)
	if err != nil {
		return nil, errors.Wrap(err, "missing bars")
	}
	bars.Color = plotutil.Color(2)
	p := plot.New()
	p.Title.Text = "Missing values per column"
	p.Y.Label.Text = "% missing"
	p.Add(bars)
	p.NominalX(names...)
	return v.done("missing", NewFigure(p)), nil
}

// Outliers draws a horizontal boxplot per numeric column.
func (v *Visualizer) Outliers() (*Figure, error) {
	names, values, err := v.numericValues(nil)
	if err != nil {
		return nil, err
	}
	plots := make([]*plot.Plot, len(names))
	for i, vals := range values {
		b, err := plotter.NewBoxPlot(boxWidth, 0, plotter.Values(vals))
		if err != nil {
			return nil, errors.Wrapf(err, "boxplot of %s", names[i])
		}
		b.FillColor = withAlpha(plotutil.Color(i), 0x99)
		b.Horizontal = true
		p := plot.New()
		p.Title.Text = fmt.Sprintf("Boxplot of %s", names[i])
		p.Add(b)
		p.HideY()
		plots[i] = p
	}
	return v.done("outliers", NewFigure(plots...)), nil
}

// Normality draws a normal QQ plot with its least-squares line per column.
func (v *Visualizer) Normality(columns ...string) (*Figure, error) {
	names, _, err := v.numericValues(columns)
	if err != nil {
		return nil, err
	}
	plots := make([]*plot.Plot, len(names))
	for i, name := range names {
		qq, err := v.analyzer.QQ(name)
		if err != nil {
			return nil, err
		}
		pts := make(plotter.XYs, len(qq.Ordered))
		for k := range pts {
			pts[k] = plotter.XY{X: qq.Theoretical[k], Y: qq.Ordered[k]}
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "QQ plot of %s", name)
		}
		s.GlyphStyle.Color = plotutil.Color(0)
		fit := plotter.NewFunction(func(x float64) float64 { return qq.Intercept + qq.Slope*x })
		fit.Color = plotutil.Color(1)
		fit.Width = vg.Points(1.5)

		p := plot.New()
		p.Title.Text = fmt.Sprintf("QQ plot of %s", name)
		p.X.Label.Text = "theoretical quantiles"
		p.Y.Label.Text = "ordered values"
		p.Add(s, fit)
		plots[i] = p
	}
	return v.done("normality", NewFigure(plots...)), nil
}

// Multicollinearity draws the VIF of every numeric column. Infinite values
// are clipped to twice the largest finite one.
func (v *Visualizer) Multicollinearity() (*Figure, error) {
	vifs, err := v.analyzer.Multicollinearity()
	if err != nil {
		return nil, err
	}
	maxFinite := 10.0
	for _, f := range vifs {
		if !math.IsInf(f.VIF, 0) && f.VIF > maxFinite {
			maxFinite = f.VIF
		}
	}
	vals := make(plotter.Values, len(vifs))
	names := make([]string, len(vifs))
	for i, f := range vifs {
		vals[i] = f.VIF
		if math.IsInf(f.VIF, 0) {
			vals[i] = 2 * maxFinite
		}
		names[i] = f.Column
	}
	bars, err := plotter.NewBarChart(vals, boxWidth)
	if err != nil {
		return nil, errors.Wrap(err, "VIF bars")
	}
	bars.Color = plotutil.Color(0)

	p := plot.New()
	p.Title.Text = "Variance Inflation Factor (VIF)"
	p.Y.Label.Text = "VIF"
	p.Add(bars)
	p.NominalX(names...)
	return v.done("multicollinearity", NewFigure(p)), nil
}

// Profiling renders the per-column report as text. The same report is in
// the figure's Text.
func (v *Visualizer) Profiling() (*Figure, error) {
	lines := ProfileLines(v.analyzer.Profile())
	p, err := textPlot("Data profile", lines)
	if err != nil {
		return nil, err
	}
	fig := NewFigure(p)
	fig.Height = vg.Length(len(lines)+3) * vg.Points(16)
	if fig.Height < PlotHeight {
		fig.Height = PlotHeight
	}
	fig.Text = strings.Join(lines, "\n")
	return v.done("profiling", fig), nil
}

// ProfileLines formats profiles one column per line.
func ProfileLines(profiles []analysis.ColumnProfile) []string {
	lines := make([]string, 0, len(profiles))
	for _, p := range profiles {
		line := fmt.Sprintf("%-20s %-11s count=%d missing=%d unique=%d", p.Column, p.Kind, p.Count, p.Missing, p.Unique)
		if p.Kind == dataset.Numeric.String() && p.Summary != nil {
			s := p.Summary
			line += fmt.Sprintf(" mean=%.4g std=%.4g min=%.4g median=%.4g max=%.4g", s.Mean, s.Std, s.Min, s.Q50, s.Max)
		} else {
			line += fmt.Sprintf(" top=%s freq=%d", p.Top, p.Freq)
		}
		lines = append(lines, line)
	}
	return lines
}

// textPlot lays lines out top to bottom on a plot without axes.
func textPlot(title string, lines []string) (*plot.Plot, error) {
	n := len(lines)
	pts := make(plotter.XYs, n)
	for i := range lines {
		pts[i] = plotter.XY{X: 0, Y: float64(n - i)}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: lines})
	if err != nil {
		return nil, errors.Wrap(err, "text plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.Add(labels)
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, float64(n+1)
	p.HideAxes()
	return p, nil
}

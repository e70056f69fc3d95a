// Package analysis computes the exploratory statistics behind the
// visualisations: summaries, correlations, missing values, outliers,
// normality tests and variance inflation factors.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/trainedml/dataset"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// Analyzer runs statistics over one frame.
type Analyzer struct {
	frame *dataset.Frame
}

// New creates an Analyzer for f.
func New(f *dataset.Frame) *Analyzer {
	return &Analyzer{frame: f}
}

// Frame returns the analysed frame.
func (a *Analyzer) Frame() *dataset.Frame { return a.frame }

// Summary describes the present values of a numeric column.
type Summary struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"25%"`
	Q50    float64 `json:"50%"`
	Q75    float64 `json:"75%"`
	Max    float64 `json:"max"`
}

// numeric returns the named columns, or every numeric column when names is
// empty. Categorical columns yield a TypeConversionError.
func (a *Analyzer) numeric(op string, names []string) ([]*dataset.Column, error) {
	if len(names) == 0 {
		names = a.frame.NumericColumns()
		if len(names) == 0 {
			return nil, errors.WithHint(
				errors.NewValueError(op, "no numeric columns"),
				"check the separator; a wrong one yields a single text column",
			)
		}
	}
	cols := make([]*dataset.Column, len(names))
	for i, n := range names {
		c, err := a.frame.Column(n)
		if err != nil {
			return nil, err
		}
		if _, err := c.Float64s(); err != nil {
			return nil, err
		}
		cols[i] = c
	}
	return cols, nil
}

// Describe summarises the named numeric columns, or all of them.
func (a *Analyzer) Describe(columns ...string) ([]Summary, error) {
	cols, err := a.numeric("Describe", columns)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(cols))
	for i, c := range cols {
		out[i] = summarize(c.Name, c.Present())
	}
	return out, nil
}

func summarize(name string, x []float64) Summary {
	s := Summary{Column: name, Count: len(x)}
	if len(x) == 0 {
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.Q25, s.Q50, s.Q75, s.Max = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	sorted := sortedCopy(x)
	s.Mean = stat.Mean(x, nil)
	s.Std = sampleStd(x)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Q25 = quantile(sorted, 0.25)
	s.Q50 = quantile(sorted, 0.5)
	s.Q75 = quantile(sorted, 0.75)
	return s
}

// sampleStd is the ddof 1 standard deviation, NaN below two values.
func sampleStd(x []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.StdDev(x, nil)
}

func sortedCopy(x []float64) []float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	return s
}

// quantile interpolates linearly between the closest ranks of sorted data,
// position p·(n−1). gonum's stat.Quantile only offers the empirical and
// a different interpolation rule.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// MissingStat counts the missing cells of one column.
type MissingStat struct {
	Column  string  `json:"column"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Missing reports every column's missing cells in frame order.
func (a *Analyzer) Missing() []MissingStat {
	rows := a.frame.Rows()
	out := make([]MissingStat, 0, a.frame.Cols())
	for _, c := range a.frame.Columns() {
		m := c.Missing()
		out = append(out, MissingStat{
			Column:  c.Name,
			Count:   m,
			Percent: 100 * errors.SafeDivide(float64(m), float64(rows)),
		})
	}
	return out
}

// TotalMissing sums Missing over every column.
func (a *Analyzer) TotalMissing() int {
	total := 0
	for _, m := range a.Missing() {
		total += m.Count
	}
	return total
}

// ClassCount is the frequency of one class label.
type ClassCount struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// TargetSummary describes a target column. Classification targets carry
// class counts and the imbalance ratio (largest class over smallest);
// regression targets carry a numeric summary.
type TargetSummary struct {
	Column         string       `json:"column"`
	Classification bool         `json:"classification"`
	Classes        []ClassCount `json:"classes,omitempty"`
	ImbalanceRatio float64      `json:"imbalance_ratio,omitempty"`
	Summary        *Summary     `json:"summary,omitempty"`
}

// Target describes the named target column.
func (a *Analyzer) Target(column string) (*TargetSummary, error) {
	c, err := a.frame.Column(column)
	if err != nil {
		return nil, err
	}
	ts := &TargetSummary{Column: column, Classification: dataset.IsClassificationTarget(c)}
	if !ts.Classification {
		s := summarize(column, c.Present())
		ts.Summary = &s
		return ts, nil
	}

	counts := c.Counts()
	total := 0
	for _, n := range counts {
		total += n
	}
	for _, label := range c.Unique() {
		n := counts[label]
		ts.Classes = append(ts.Classes, ClassCount{
			Label:   label,
			Count:   n,
			Percent: 100 * errors.SafeDivide(float64(n), float64(total)),
		})
	}
	// Most frequent first, ties in label order.
	sort.SliceStable(ts.Classes, func(i, j int) bool { return ts.Classes[i].Count > ts.Classes[j].Count })
	if len(ts.Classes) > 0 {
		ts.ImbalanceRatio = float64(ts.Classes[0].Count) / float64(ts.Classes[len(ts.Classes)-1].Count)
	}
	return ts, nil
}

// ColumnProfile is one column of the profiling report.
type ColumnProfile struct {
	Column  string   `json:"column"`
	Kind    string   `json:"kind"`
	Count   int      `json:"count"`
	Missing int      `json:"missing"`
	Unique  int      `json:"unique"`
	Top     string   `json:"top,omitempty"`
	Freq    int      `json:"freq,omitempty"`
	Summary *Summary `json:"summary,omitempty"`
	Zeros   int      `json:"zeros,omitempty"`
}

// Profile reports every column. Numeric columns get a summary and their
// zero count; categorical ones the most frequent value.
func (a *Analyzer) Profile() []ColumnProfile {
	out := make([]ColumnProfile, 0, a.frame.Cols())
	for _, c := range a.frame.Columns() {
		p := ColumnProfile{
			Column:  c.Name,
			Kind:    c.Kind.String(),
			Missing: c.Missing(),
			Unique:  len(c.Unique()),
		}
		p.Count = c.Len() - p.Missing
		if c.IsNumeric() {
			x := c.Present()
			s := summarize(c.Name, x)
			p.Summary = &s
			for _, v := range x {
				if v == 0 {
					p.Zeros++
				}
			}
		} else {
			p.Top, p.Freq = mode(c)
		}
		out = append(out, p)
	}
	return out
}

func mode(c *dataset.Column) (string, int) {
	counts := c.Counts()
	var top string
	freq := 0
	for _, v := range c.Unique() {
		if counts[v] > freq {
			top, freq = v, counts[v]
		}
	}
	return top, freq
}

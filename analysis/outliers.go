package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// Outlier detection methods.
const (
	IQR    = "iqr"
	ZScore = "zscore"
)

// Default thresholds: the IQR multiplier k and the |z| cut-off.
const (
	DefaultIQRFactor = 1.5
	DefaultZScore    = 3.0
)

// OutlierStat lists the outliers of one column. Rows are frame row indices.
type OutlierStat struct {
	Column  string  `json:"column"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
	Lower   float64 `json:"lower"`
	Upper   float64 `json:"upper"`
	Rows    []int   `json:"rows"`
}

// Outliers flags values outside [Q1 − k·IQR, Q3 + k·IQR] (iqr) or with
// |z| > threshold (zscore). A threshold of 0 selects the method's default.
// Missing cells are never outliers.
func (a *Analyzer) Outliers(method string, threshold float64, columns ...string) ([]OutlierStat, error) {
	if method == "" {
		method = IQR
	}
	if threshold < 0 {
		return nil, errors.NewValidationError("threshold", "must be non-negative", threshold)
	}
	var bounds func(x []float64) (lower, upper float64)
	switch method {
	case IQR:
		if threshold == 0 {
			threshold = DefaultIQRFactor
		}
		bounds = func(x []float64) (float64, float64) {
			s := sortedCopy(x)
			q1, q3 := quantile(s, 0.25), quantile(s, 0.75)
			iqr := q3 - q1
			return q1 - threshold*iqr, q3 + threshold*iqr
		}
	case ZScore:
		if threshold == 0 {
			threshold = DefaultZScore
		}
		bounds = func(x []float64) (float64, float64) {
			if len(x) < 2 {
				return math.Inf(-1), math.Inf(1)
			}
			mean, std := stat.MeanStdDev(x, nil)
			if std == 0 {
				return math.Inf(-1), math.Inf(1)
			}
			return mean - threshold*std, mean + threshold*std
		}
	default:
		return nil, errors.WithHint(
			errors.NewValidationError("method", "unknown outlier method", method),
			"use iqr or zscore",
		)
	}

	cols, err := a.numeric("Outliers", columns)
	if err != nil {
		return nil, err
	}
	rows := a.frame.Rows()
	out := make([]OutlierStat, 0, len(cols))
	for _, c := range cols {
		o := OutlierStat{Column: c.Name, Rows: []int{}}
		present := c.Present()
		if len(present) == 0 {
			o.Lower, o.Upper = math.NaN(), math.NaN()
			out = append(out, o)
			continue
		}
		o.Lower, o.Upper = bounds(present)
		for i, v := range c.Floats {
			if math.IsNaN(v) {
				continue
			}
			if v < o.Lower || v > o.Upper {
				o.Rows = append(o.Rows, i)
			}
		}
		o.Count = len(o.Rows)
		o.Percent = 100 * errors.SafeDivide(float64(o.Count), float64(rows))
		out = append(out, o)
	}
	return out, nil
}

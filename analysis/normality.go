package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// MinNormalitySamples is the smallest sample the skewness test accepts.
const MinNormalitySamples = 8

// NormalityResult holds the shape statistics and normality tests of one
// column. Skewness and Kurtosis are the bias-corrected sample estimates;
// Kurtosis is excess kurtosis. K2 is D'Agostino and Pearson's omnibus test
// and JB the Jarque-Bera test, both chi-squared with two degrees of freedom.
type NormalityResult struct {
	Column   string  `json:"column"`
	N        int     `json:"n"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
	K2       float64 `json:"k2"`
	K2PValue float64 `json:"k2_pvalue"`
	JB       float64 `json:"jb"`
	JBPValue float64 `json:"jb_pvalue"`
}

// Normal reports whether both tests fail to reject normality at level alpha.
func (r NormalityResult) Normal(alpha float64) bool {
	return r.K2PValue > alpha && r.JBPValue > alpha
}

// Normality tests the named numeric columns, or all of them, for normality.
// Columns with fewer than MinNormalitySamples present values are rejected.
func (a *Analyzer) Normality(columns ...string) ([]NormalityResult, error) {
	cols, err := a.numeric("Normality", columns)
	if err != nil {
		return nil, err
	}
	out := make([]NormalityResult, 0, len(cols))
	for _, c := range cols {
		x := c.Present()
		if len(x) < MinNormalitySamples {
			return nil, errors.NewValidationError(c.Name, "normality tests need at least 8 values", len(x))
		}
		r := NormalityResult{Column: c.Name, N: len(x)}
		r.Skewness = stat.Skew(x, nil)
		r.Kurtosis = stat.ExKurtosis(x, nil)

		g1, b2 := moments(x)
		zs := skewZ(g1, len(x))
		zk := kurtosisZ(b2, len(x))
		chi2 := distuv.ChiSquared{K: 2}
		r.K2 = zs*zs + zk*zk
		r.K2PValue = chi2.Survival(r.K2)

		n := float64(len(x))
		r.JB = n / 6 * (g1*g1 + (b2-3)*(b2-3)/4)
		r.JBPValue = chi2.Survival(r.JB)
		out = append(out, r)
	}
	return out, nil
}

// moments returns the biased sample skewness g1 and Pearson kurtosis b2.
func moments(x []float64) (g1, b2 float64) {
	mean := stat.Mean(x, nil)
	var m2, m3, m4 float64
	for _, v := range x {
		d := v - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	n := float64(len(x))
	m2, m3, m4 = m2/n, m3/n, m4/n
	if m2 == 0 {
		return 0, 3
	}
	return m3 / math.Pow(m2, 1.5), m4 / (m2 * m2)
}

// skewZ transforms the sample skewness to an approximately standard normal
// statistic (D'Agostino 1970).
func skewZ(g1 float64, size int) float64 {
	n := float64(size)
	y := g1 * math.Sqrt((n+1)*(n+3)/(6*(n-2)))
	beta2 := 3 * (n*n + 27*n - 70) * (n + 1) * (n + 3) /
		((n - 2) * (n + 5) * (n + 7) * (n + 9))
	w2 := -1 + math.Sqrt(2*(beta2-1))
	delta := 1 / math.Sqrt(0.5*math.Log(w2))
	alpha := math.Sqrt(2 / (w2 - 1))
	if y == 0 {
		y = 1
	}
	return delta * math.Log(y/alpha+math.Sqrt((y/alpha)*(y/alpha)+1))
}

// kurtosisZ transforms the sample kurtosis to an approximately standard
// normal statistic (Anscombe and Glynn 1983).
func kurtosisZ(b2 float64, size int) float64 {
	n := float64(size)
	e := 3 * (n - 1) / (n + 1)
	varb2 := 24 * n * (n - 2) * (n - 3) / ((n + 1) * (n + 1) * (n + 3) * (n + 5))
	x := (b2 - e) / math.Sqrt(varb2)
	sqrtBeta1 := 6 * (n*n - 5*n + 2) / ((n + 7) * (n + 9)) *
		math.Sqrt(6*(n+3)*(n+5)/(n*(n-2)*(n-3)))
	a := 6 + 8/sqrtBeta1*(2/sqrtBeta1+math.Sqrt(1+4/(sqrtBeta1*sqrtBeta1)))
	term1 := 1 - 2/(9*a)
	denom := 1 + x*math.Sqrt(2/(a-4))
	if denom == 0 {
		return math.NaN()
	}
	term2 := math.Copysign(math.Cbrt((1-2/a)/math.Abs(denom)), denom)
	return (term1 - term2) / math.Sqrt(2/(9*a))
}

// QQPlot holds normal probability plot coordinates and the least-squares
// line through them.
type QQPlot struct {
	Column      string
	Theoretical []float64
	Ordered     []float64
	Slope       float64
	Intercept   float64
}

// QQ computes the normal probability plot of a numeric column against
// Filliben's order statistic medians.
func (a *Analyzer) QQ(column string) (*QQPlot, error) {
	cols, err := a.numeric("QQ", []string{column})
	if err != nil {
		return nil, err
	}
	x := sortedCopy(cols[0].Present())
	n := len(x)
	if n < 2 {
		return nil, errors.NewValidationError(column, "QQ plot needs at least 2 values", n)
	}

	m := make([]float64, n)
	m[n-1] = math.Pow(0.5, 1/float64(n))
	m[0] = 1 - m[n-1]
	for i := 1; i < n-1; i++ {
		m[i] = (float64(i+1) - 0.3175) / (float64(n) + 0.365)
	}
	theo := make([]float64, n)
	for i, p := range m {
		theo[i] = distuv.UnitNormal.Quantile(p)
	}
	intercept, slope := stat.LinearRegression(theo, x, nil, false)
	return &QQPlot{Column: column, Theoretical: theo, Ordered: x, Slope: slope, Intercept: intercept}, nil
}

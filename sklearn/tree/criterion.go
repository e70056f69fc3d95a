package tree

import "math"

// classCriterion measures gini or entropy impurity over class codes.
type classCriterion struct {
	codes    []int
	nClasses int
	entropy  bool

	total []float64
	left  []float64
	n     int
	nLeft int
}

func newClassCriterion(codes []int, nClasses int, entropy bool) *classCriterion {
	return &classCriterion{
		codes:    codes,
		nClasses: nClasses,
		entropy:  entropy,
		total:    make([]float64, nClasses),
		left:     make([]float64, nClasses),
	}
}

func (c *classCriterion) reset(idx []int) {
	clear(c.total)
	clear(c.left)
	for _, i := range idx {
		c.total[c.codes[i]]++
	}
	c.n, c.nLeft = len(idx), 0
}

func (c *classCriterion) moveLeft(i int) {
	c.left[c.codes[i]]++
	c.nLeft++
}

func (c *classCriterion) impurity() float64 { return c.measure(c.total, c.n, nil) }

func (c *classCriterion) children() (float64, float64) {
	return c.measure(c.left, c.nLeft, nil), c.measure(c.total, c.n-c.nLeft, c.left)
}

// measure computes the impurity of counts minus the optional sub counts.
func (c *classCriterion) measure(counts []float64, n int, sub []float64) float64 {
	if n == 0 {
		return 0
	}
	var acc float64
	for k, v := range counts {
		if sub != nil {
			v -= sub[k]
		}
		if v == 0 {
			continue
		}
		p := v / float64(n)
		if c.entropy {
			acc -= p * math.Log2(p)
		} else {
			acc += p * p
		}
	}
	if c.entropy {
		return acc
	}
	return 1 - acc
}

func (c *classCriterion) value() []float64 {
	out := make([]float64, c.nClasses)
	for k, v := range c.total {
		out[k] = v / float64(c.n)
	}
	return out
}

// mseCriterion measures the variance of the target.
type mseCriterion struct {
	y []float64

	sum, sumSq         float64
	leftSum, leftSumSq float64
	n, nLeft           int
}

func (m *mseCriterion) reset(idx []int) {
	m.sum, m.sumSq, m.leftSum, m.leftSumSq = 0, 0, 0, 0
	for _, i := range idx {
		m.sum += m.y[i]
		m.sumSq += m.y[i] * m.y[i]
	}
	m.n, m.nLeft = len(idx), 0
}

func (m *mseCriterion) moveLeft(i int) {
	m.leftSum += m.y[i]
	m.leftSumSq += m.y[i] * m.y[i]
	m.nLeft++
}

func variance(sum, sumSq float64, n int) float64 {
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return math.Max(0, sumSq/float64(n)-mean*mean)
}

func (m *mseCriterion) impurity() float64 { return variance(m.sum, m.sumSq, m.n) }

func (m *mseCriterion) children() (float64, float64) {
	return variance(m.leftSum, m.leftSumSq, m.nLeft),
		variance(m.sum-m.leftSum, m.sumSq-m.leftSumSq, m.n-m.nLeft)
}

func (m *mseCriterion) value() []float64 {
	if m.n == 0 {
		return []float64{0}
	}
	return []float64{m.sum / float64(m.n)}
}

package dataset

import (
	"math"
	"sort"
	"strconv"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// Kind distinguishes numeric from categorical columns.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// Column is a named vector of values. Numeric columns store NaN for missing
// cells; categorical columns store "".
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string

	// Integer is set on numeric columns whose present values are all integral.
	Integer bool
}

// NewNumericColumn builds a numeric column and derives the Integer flag.
func NewNumericColumn(name string, values []float64) *Column {
	integer := true
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsInf(v, 0) || v != math.Trunc(v) {
			integer = false
			break
		}
	}
	return &Column{Name: name, Kind: Numeric, Floats: values, Integer: integer}
}

// NewCategoricalColumn builds a categorical column.
func NewCategoricalColumn(name string, values []string) *Column {
	return &Column{Name: name, Kind: Categorical, Strings: values}
}

// Len returns the number of cells.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// IsNumeric reports whether the column holds floats.
func (c *Column) IsNumeric() bool { return c.Kind == Numeric }

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Floats[i])
	}
	return c.Strings[i] == ""
}

// Missing counts missing cells.
func (c *Column) Missing() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

// Value formats cell i. Integral floats are printed without a fraction so
// that class labels read "3" rather than "3.000000".
func (c *Column) Value(i int) string {
	if c.Kind == Categorical {
		return c.Strings[i]
	}
	v := c.Floats[i]
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Unique returns the distinct present values in sorted order. Numeric values
// sort numerically.
func (c *Column) Unique() []string {
	if c.Kind == Numeric {
		seen := make(map[float64]struct{})
		var vals []float64
		for _, v := range c.Floats {
			if math.IsNaN(v) {
				continue
			}
			if _, ok := seen[v]; !ok {
				seen[v] = struct{}{}
				vals = append(vals, v)
			}
		}
		sort.Float64s(vals)
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		return out
	}

	seen := make(map[string]struct{})
	var out []string
	for _, s := range c.Strings {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Counts returns the number of occurrences of each present value.
func (c *Column) Counts() map[string]int {
	counts := make(map[string]int)
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			continue
		}
		counts[c.Value(i)]++
	}
	return counts
}

// Float64s returns the numeric values. Categorical columns yield a
// TypeConversionError naming the first offending cell.
func (c *Column) Float64s() ([]float64, error) {
	if c.Kind == Numeric {
		return c.Floats, nil
	}
	for i, s := range c.Strings {
		if s != "" {
			return nil, errors.NewTypeConversionError(c.Name, s, i)
		}
	}
	return nil, errors.NewTypeConversionError(c.Name, "", 0)
}

// Present returns the numeric values with missing cells removed.
func (c *Column) Present() []float64 {
	out := make([]float64, 0, len(c.Floats))
	for _, v := range c.Floats {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Take returns a new column holding the cells at idx.
func (c *Column) Take(idx []int) *Column {
	if c.Kind == Numeric {
		vals := make([]float64, len(idx))
		for k, i := range idx {
			vals[k] = c.Floats[i]
		}
		col := NewNumericColumn(c.Name, vals)
		col.Integer = col.Integer && c.Integer
		return col
	}
	vals := make([]string, len(idx))
	for k, i := range idx {
		vals[k] = c.Strings[i]
	}
	return NewCategoricalColumn(c.Name, vals)
}

// IsClassificationTarget reports whether y looks like class labels:
// categorical columns always do, numeric ones when every value is integral
// and there are at most MaxClassificationLabels distinct values.
func IsClassificationTarget(y *Column) bool {
	if y.Kind == Categorical {
		return true
	}
	if !y.Integer || y.Missing() > 0 {
		return false
	}
	return len(y.Unique()) <= MaxClassificationLabels
}

// MaxClassificationLabels bounds the distinct values of an integer target
// still treated as classes.
const MaxClassificationLabels = 20

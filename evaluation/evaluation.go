// Package evaluation computes the standard score sets reported for a fitted
// model: accuracy, precision, recall and f1 for classification, and r2, mse,
// rmse and mae for regression.
package evaluation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/metrics"
	"github.com/YuminosukeSato/trainedml/models"
)

// Score is one named metric value.
type Score struct {
	Name  string
	Value float64
}

// Scores is an ordered list of metrics. It encodes as a JSON object whose
// keys keep that order.
type Scores []Score

// Get returns the value of the named metric.
func (s Scores) Get(name string) (float64, bool) {
	for _, sc := range s {
		if sc.Name == name {
			return sc.Value, true
		}
	}
	return 0, false
}

// Names returns the metric names in order.
func (s Scores) Names() []string {
	out := make([]string, len(s))
	for i, sc := range s {
		out[i] = sc.Name
	}
	return out
}

// Map returns the scores keyed by name.
func (s Scores) Map() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, sc := range s {
		out[sc.Name] = sc.Value
	}
	return out
}

func (s Scores) String() string {
	parts := make([]string, len(s))
	for i, sc := range s {
		parts[i] = fmt.Sprintf("%s=%.4f", sc.Name, sc.Value)
	}
	return strings.Join(parts, " ")
}

func (s Scores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sc := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sc.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(sc.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object written by MarshalJSON and keeps the key order.
func (s *Scores) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("scores: expected object, got %v", tok)
	}
	out := Scores{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("scores: expected key, got %v", tok)
		}
		var v float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("scores: %s: %w", name, err)
		}
		out = append(out, Score{Name: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

func (s Scores) MarshalZerologObject(e *zerolog.Event) {
	for _, sc := range s {
		e.Float64(sc.Name, sc.Value)
	}
}

// EvaluateAll scores a classification. Precision, recall and f1 are
// support-weighted averages with zero_division = 0.
func EvaluateAll(yTrue, yPred []float64) (Scores, error) {
	acc, err := metrics.AccuracyScore(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	p, r, f1, err := metrics.PrecisionRecallFScore(yTrue, yPred, metrics.Weighted, 0)
	if err != nil {
		return nil, err
	}
	return Scores{
		{"accuracy", acc},
		{"precision", p},
		{"recall", r},
		{"f1", f1},
	}, nil
}

// EvaluateRegression scores a regression.
func EvaluateRegression(yTrue, yPred []float64) (Scores, error) {
	t, p := vec(yTrue), vec(yPred)
	r2, err := metrics.R2Score(t, p)
	if err != nil {
		return nil, err
	}
	mse, err := metrics.MSE(t, p)
	if err != nil {
		return nil, err
	}
	rmse, err := metrics.RMSE(t, p)
	if err != nil {
		return nil, err
	}
	mae, err := metrics.MAE(t, p)
	if err != nil {
		return nil, err
	}
	return Scores{
		{"r2", r2},
		{"mse", mse},
		{"rmse", rmse},
		{"mae", mae},
	}, nil
}

func vec(v []float64) *mat.VecDense {
	if len(v) == 0 {
		return &mat.VecDense{}
	}
	return mat.NewVecDense(len(v), v)
}

// Evaluate dispatches on the task.
func Evaluate(task models.Task, yTrue, yPred []float64) (Scores, error) {
	if task == models.Regression {
		return EvaluateRegression(yTrue, yPred)
	}
	return EvaluateAll(yTrue, yPred)
}

// PrimaryMetric is the score used to rank models of a task.
func PrimaryMetric(task models.Task) string {
	if task == models.Regression {
		return "r2"
	}
	return "accuracy"
}

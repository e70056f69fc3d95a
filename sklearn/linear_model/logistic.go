package linear_model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/trainedml/core/model"
	"github.com/YuminosukeSato/trainedml/core/parallel"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// LogisticRegression implements L2-regularised logistic regression.
//
// Two classes give a single sigmoid model. More classes are handled either
// with one softmax model ("multinomial", the default) or one sigmoid model
// per class ("ovr"). The loss is minimised with L-BFGS ("lbfgs") or plain
// gradient descent with a decaying step ("gd").
type LogisticRegression struct {
	state *model.StateManager

	penalty      string  // "l2" or "none"
	C            float64 // Inverse regularization strength
	fitIntercept bool
	solver       string // "lbfgs" or "gd"
	maxIter      int
	multiClass   string // "auto", "ovr" or "multinomial"
	tol          float64

	// Model parameters: one row per class, or a single row for binary problems
	coef_      [][]float64
	intercept_ []float64
	classes_   []float64
	nIter_     []int
	softmax_   bool
}

var _ model.Classifier = (*LogisticRegression)(nil)

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager("LogisticRegression"),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		solver:       "lbfgs",
		maxIter:      100,
		multiClass:   "auto",
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.C = c }
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRSolver sets the optimization solver
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.solver = solver }
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRMultiClass sets the multi-class strategy
func WithLRMultiClass(mode string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.multiClass = mode }
}

func (lr *LogisticRegression) validate() error {
	switch {
	case lr.penalty != "l2" && lr.penalty != "none":
		return errors.NewValidationError("penalty", "must be l2 or none", lr.penalty)
	case lr.C <= 0:
		return errors.NewValidationError("C", "must be positive", lr.C)
	case lr.solver != "lbfgs" && lr.solver != "gd":
		return errors.NewValidationError("solver", "must be lbfgs or gd", lr.solver)
	case lr.maxIter < 1:
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	case lr.multiClass != "auto" && lr.multiClass != "ovr" && lr.multiClass != "multinomial":
		return errors.NewValidationError("multi_class", "must be auto, ovr or multinomial", lr.multiClass)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.ValidateFit("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}

	lr.classes_ = uniqueSorted(model.Column(y, 0))
	nClasses := len(lr.classes_)
	if nClasses < 2 {
		return errors.WithHint(
			errors.NewValueError("LogisticRegression.Fit", "needs samples of at least 2 classes"),
			"check the target column or the split",
		)
	}

	codes := make([]int, nSamples)
	for i := range codes {
		codes[i] = sort.SearchFloat64s(lr.classes_, y.At(i, 0))
	}
	Xd := mat.DenseCopyOf(X)

	switch {
	case nClasses == 2:
		lr.softmax_ = false
		targets := make([]float64, nSamples)
		for i, c := range codes {
			targets[i] = float64(c)
		}
		w, it := lr.minimize(binaryObjective(Xd, targets, lr.lambda(nSamples)), nFeatures+1)
		lr.setRows([][]float64{w}, nFeatures)
		lr.nIter_ = []int{it}

	case lr.multiClass == "ovr":
		lr.softmax_ = false
		rows := make([][]float64, nClasses)
		lr.nIter_ = make([]int, nClasses)
		parallel.ParallelizeN(nClasses, nClasses, func(start, end int) {
			for k := start; k < end; k++ {
				targets := make([]float64, nSamples)
				for i, c := range codes {
					if c == k {
						targets[i] = 1
					}
				}
				rows[k], lr.nIter_[k] = lr.minimize(binaryObjective(Xd, targets, lr.lambda(nSamples)), nFeatures+1)
			}
		})
		lr.setRows(rows, nFeatures)

	default:
		lr.softmax_ = true
		w, it := lr.minimize(multinomialObjective(Xd, codes, nClasses, lr.lambda(nSamples)), nClasses*(nFeatures+1))
		rows := make([][]float64, nClasses)
		for k := range rows {
			rows[k] = w[k*(nFeatures+1) : (k+1)*(nFeatures+1)]
		}
		lr.setRows(rows, nFeatures)
		lr.nIter_ = []int{it}
	}

	lr.state.SetFitted(nFeatures, nSamples)
	return nil
}

// lambda is the per-sample L2 weight: the objective is the mean log loss
// plus ||w||²/(2·C·n), which has the same minimiser as C·Σloss + ||w||²/2.
func (lr *LogisticRegression) lambda(nSamples int) float64 {
	if lr.penalty == "none" {
		return 0
	}
	return 1.0 / (lr.C * float64(nSamples))
}

// setRows splits packed parameter rows into coefficients and intercepts.
func (lr *LogisticRegression) setRows(rows [][]float64, nFeatures int) {
	lr.coef_ = make([][]float64, len(rows))
	lr.intercept_ = make([]float64, len(rows))
	for k, r := range rows {
		lr.coef_[k] = append([]float64(nil), r[:nFeatures]...)
		if lr.fitIntercept {
			lr.intercept_[k] = r[nFeatures]
		}
	}
}

// objective is a differentiable loss over packed parameters.
type objective struct {
	fn   func(x []float64) float64
	grad func(grad, x []float64)
	// stride is the packed row length; the last entry of each row is an intercept
	stride int
}

func (lr *LogisticRegression) minimize(obj objective, dim int) ([]float64, int) {
	grad := obj.grad
	if !lr.fitIntercept {
		grad = func(g, x []float64) {
			obj.grad(g, x)
			for i := obj.stride - 1; i < len(g); i += obj.stride {
				g[i] = 0
			}
		}
	}

	x0 := make([]float64, dim)
	if lr.solver == "gd" {
		return lr.gradientDescent(obj.fn, grad, x0)
	}

	problem := optimize.Problem{Func: obj.fn, Grad: grad}
	settings := &optimize.Settings{
		MajorIterations:   lr.maxIter,
		GradientThreshold: lr.tol,
	}
	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if result == nil {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter, fmt.Sprintf("lbfgs failed: %v", err)))
		return x0, 0
	}
	if result.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter, ""))
	}
	return result.X, result.Stats.MajorIterations
}

// gradientDescent uses a step of 1/(1+0.1·t) and stops when the largest
// gradient component falls below tol.
func (lr *LogisticRegression) gradientDescent(fn func([]float64) float64, grad func(g, x []float64), x []float64) ([]float64, int) {
	g := make([]float64, len(x))
	for iter := 0; iter < lr.maxIter; iter++ {
		grad(g, x)
		if floats.Norm(g, math.Inf(1)) < lr.tol {
			return x, iter
		}
		step := 1.0 / (1.0 + 0.1*float64(iter))
		floats.AddScaled(x, -step, g)
		if f := fn(x); math.IsNaN(f) || math.IsInf(f, 0) {
			errors.Warn(errors.NewNumericalInstabilityError("LogisticRegression.gd", []float64{f}, iter))
			return x, iter
		}
	}
	errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter, ""))
	return x, lr.maxIter
}

// binaryObjective is the mean sigmoid log loss plus (lambda/2)·||w||².
func binaryObjective(X *mat.Dense, y []float64, lambda float64) objective {
	n, d := X.Dims()
	z := make([]float64, n)
	scores := func(x []float64) {
		for i := 0; i < n; i++ {
			z[i] = floats.Dot(X.RawRowView(i), x[:d]) + x[d]
		}
	}
	return objective{
		stride: d + 1,
		fn: func(x []float64) float64 {
			scores(x)
			var loss float64
			for i := 0; i < n; i++ {
				loss += log1pExp(z[i]) - y[i]*z[i]
			}
			w := x[:d]
			return loss/float64(n) + 0.5*lambda*floats.Dot(w, w)
		},
		grad: func(g, x []float64) {
			scores(x)
			for j := range g {
				g[j] = 0
			}
			for i := 0; i < n; i++ {
				r := (sigmoid(z[i]) - y[i]) / float64(n)
				floats.AddScaled(g[:d], r, X.RawRowView(i))
				g[d] += r
			}
			floats.AddScaled(g[:d], lambda, x[:d])
		},
	}
}

// multinomialObjective is the mean softmax cross-entropy plus
// (lambda/2)·||W||². Parameters are packed class by class.
func multinomialObjective(X *mat.Dense, codes []int, k int, lambda float64) objective {
	n, d := X.Dims()
	stride := d + 1
	logits := make([]float64, k)
	forward := func(x []float64, i int) float64 {
		row := X.RawRowView(i)
		for c := 0; c < k; c++ {
			w := x[c*stride : (c+1)*stride]
			logits[c] = floats.Dot(row, w[:d]) + w[d]
		}
		return errors.LogSumExp(logits)
	}
	penalty := func(x []float64) float64 {
		var s float64
		for c := 0; c < k; c++ {
			w := x[c*stride : c*stride+d]
			s += floats.Dot(w, w)
		}
		return 0.5 * lambda * s
	}
	return objective{
		stride: stride,
		fn: func(x []float64) float64 {
			var loss float64
			for i := 0; i < n; i++ {
				lse := forward(x, i)
				loss += lse - logits[codes[i]]
			}
			return loss/float64(n) + penalty(x)
		},
		grad: func(g, x []float64) {
			for j := range g {
				g[j] = 0
			}
			for i := 0; i < n; i++ {
				lse := forward(x, i)
				row := X.RawRowView(i)
				for c := 0; c < k; c++ {
					r := math.Exp(logits[c] - lse)
					if c == codes[i] {
						r -= 1
					}
					r /= float64(n)
					gc := g[c*stride : (c+1)*stride]
					floats.AddScaled(gc[:d], r, row)
					gc[d] += r
				}
			}
			for c := 0; c < k; c++ {
				floats.AddScaled(g[c*stride:c*stride+d], lambda, x[c*stride:c*stride+d])
			}
		},
	}
}

// decision returns the raw linear scores, one column per parameter row.
func (lr *LogisticRegression) decision(X mat.Matrix) *mat.Dense {
	n, d := X.Dims()
	out := mat.NewDense(n, len(lr.coef_), nil)
	for i := 0; i < n; i++ {
		for k, w := range lr.coef_ {
			s := lr.intercept_[k]
			for j := 0; j < d; j++ {
				s += X.At(i, j) * w[j]
			}
			out.Set(i, k, s)
		}
	}
	return out
}

// PredictProba returns class probabilities (n × n_classes)
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.CheckPredict("PredictProba", X); err != nil {
		return nil, err
	}
	scores := lr.decision(X)
	n, _ := X.Dims()
	k := len(lr.classes_)
	proba := mat.NewDense(n, k, nil)

	for i := 0; i < n; i++ {
		switch {
		case len(lr.coef_) == 1:
			p := sigmoid(scores.At(i, 0))
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
		case lr.softmax_:
			row := scores.RawRowView(i)
			lse := errors.LogSumExp(row)
			for c := 0; c < k; c++ {
				proba.Set(i, c, math.Exp(row[c]-lse))
			}
		default:
			// one-vs-rest: normalise the independent sigmoids
			var sum float64
			for c := 0; c < k; c++ {
				p := sigmoid(scores.At(i, c))
				proba.Set(i, c, p)
				sum += p
			}
			for c := 0; c < k; c++ {
				proba.Set(i, c, errors.SafeDivide(proba.At(i, c), sum))
			}
		}
	}
	return proba, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return argmaxClasses(proba, lr.classes_), nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	correct := 0
	for i := 0; i < rows; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(rows), nil
}

// Classes returns the class labels in sorted order
func (lr *LogisticRegression) Classes() []float64 { return copyFloats(lr.classes_) }

// Coef returns the coefficients, one row per model
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for k := range lr.coef_ {
		out[k] = copyFloats(lr.coef_[k])
	}
	return out
}

// Intercept returns the intercepts, one per model
func (lr *LogisticRegression) Intercept() []float64 { return copyFloats(lr.intercept_) }

// NIter returns the iterations used per fitted model
func (lr *LogisticRegression) NIter() []int { return append([]int(nil), lr.nIter_...) }

// IsFitted returns whether the model has been fitted
func (lr *LogisticRegression) IsFitted() bool { return lr.state.IsFitted() }

// GetParams returns the model parameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"multi_class":   lr.multiClass,
		"tol":           lr.tol,
	}
}

func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(C=%g, solver=%s, max_iter=%d, multi_class=%s)",
		lr.C, lr.solver, lr.maxIter, lr.multiClass)
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

// log1pExp computes log(1 + e^z) without overflow.
func log1pExp(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

// uniqueSorted returns the distinct values of v in ascending order.
func uniqueSorted(v []float64) []float64 {
	seen := make(map[float64]bool, len(v))
	var out []float64
	for _, x := range v {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	sort.Float64s(out)
	return out
}

// argmaxClasses picks, per row, the class with the highest probability.
// Ties go to the earlier (smaller) class.
func argmaxClasses(proba mat.Matrix, classes []float64) *mat.Dense {
	n, k := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		out.Set(i, 0, classes[best])
	}
	return out
}

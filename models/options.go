package models

// Options holds the hyperparameters the dispatch table can set. Each model
// reads only the fields it uses.
type Options struct {
	RandomState int64
	Neighbors   int
	Estimators  int
	Alpha       float64
	MaxIter     int // zero keeps each model's own default
	NJobs       int
}

// Option sets a field of Options.
type Option func(*Options)

func newOptions(opts []Option) Options {
	o := Options{
		RandomState: 42,
		Neighbors:   5,
		Estimators:  100,
		Alpha:       1.0,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRandomState seeds models that use randomness.
func WithRandomState(seed int64) Option { return func(o *Options) { o.RandomState = seed } }

// WithNeighbors sets k for the neighbours models.
func WithNeighbors(k int) Option { return func(o *Options) { o.Neighbors = k } }

// WithEstimators sets the number of trees in the forests.
func WithEstimators(n int) Option { return func(o *Options) { o.Estimators = n } }

// WithAlpha sets the penalty of ridge and lasso.
func WithAlpha(a float64) Option { return func(o *Options) { o.Alpha = a } }

// WithMaxIter bounds the iterations of logistic regression and lasso.
func WithMaxIter(n int) Option { return func(o *Options) { o.MaxIter = n } }

// WithNJobs bounds the goroutines a forest uses while fitting.
func WithNJobs(n int) Option { return func(o *Options) { o.NJobs = n } }

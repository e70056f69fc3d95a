// Package benchmark trains several models on the same data over one or more
// seeded splits and compares their scores and timings.
package benchmark

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/core/parallel"
	"github.com/YuminosukeSato/trainedml/dataset"
	"github.com/YuminosukeSato/trainedml/evaluation"
	"github.com/YuminosukeSato/trainedml/models"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
	"github.com/YuminosukeSato/trainedml/preprocessing"
)

// RunConfig controls one benchmark run.
type RunConfig struct {
	// Seeds are the split seeds. Every model is trained once per seed.
	Seeds    []int64
	TestSize float64
	// Parallel trains (model, seed) pairs concurrently, at most NJobs at a
	// time. NJobs below 1 means one per CPU.
	Parallel bool
	NJobs    int
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
}

// Result is the outcome of one model on one split.
type Result struct {
	Model       string
	Task        models.Task
	Seed        int64
	Scores      evaluation.Scores
	FitTime     time.Duration
	PredictTime time.Duration
	// Err is set when the model failed to fit or predict. Scores are then empty.
	Err error
}

// Benchmark compares a fixed list of models.
type Benchmark struct {
	names     []string
	modelOpts []models.Option
	logger    log.Logger

	mu      sync.Mutex
	runID   string
	results []Result
}

// Option configures a Benchmark.
type Option func(*Benchmark)

// WithLogger sets the logger used for per-model progress.
func WithLogger(l log.Logger) Option { return func(b *Benchmark) { b.logger = l } }

// WithModelOptions passes hyperparameters to every model. The split seed is
// appended as the random state.
func WithModelOptions(opts ...models.Option) Option {
	return func(b *Benchmark) { b.modelOpts = append(b.modelOpts, opts...) }
}

// New creates a benchmark over the named models. Aliases are resolved and
// unknown names are rejected.
func New(names []string, opts ...Option) (*Benchmark, error) {
	if len(names) == 0 {
		return nil, errors.NewValidationError("models", "at least one model is required", names)
	}
	b := &Benchmark{logger: log.GetLogger()}
	for _, n := range names {
		if _, err := models.Get(n); err != nil {
			return nil, err
		}
		b.names = append(b.names, models.Resolve(n))
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(log.ComponentKey, "benchmark")
	return b, nil
}

// Models returns the benchmarked model names.
func (b *Benchmark) Models() []string { return append([]string(nil), b.names...) }

// RunID identifies the last run. It is empty before Run.
func (b *Benchmark) RunID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runID
}

// Results returns the results of the last run ordered by model, then seed.
func (b *Benchmark) Results() []Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Result(nil), b.results...)
}

// Err combines the errors of every failed result.
func (b *Benchmark) Err() error {
	var err error
	for _, r := range b.Results() {
		if r.Err != nil {
			err = multierr.Append(err, errors.Wrapf(r.Err, "%s (seed %d)", r.Model, r.Seed))
		}
	}
	return err
}

type job struct {
	model string
	seed  int64
	slot  int
}

// prepared holds the encoded target and the splits for every seed.
type prepared struct {
	splits map[int64]*matrices
}

type matrices struct {
	XTrain, XTest *mat.Dense
	yTrain, yTest *mat.Dense
}

// Run trains every model on every seed's split. A model that fails or
// panics is recorded on its Result and the others carry on. Run returns an
// error only for invalid input or a cancelled context.
func (b *Benchmark) Run(ctx context.Context, X *dataset.Frame, y *dataset.Column, cfg RunConfig) ([]Result, error) {
	if len(cfg.Seeds) == 0 {
		cfg.Seeds = []int64{42}
	}
	if cfg.TestSize == 0 {
		cfg.TestSize = 0.2
	}

	data, err := b.prepare(X, y, cfg)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	logger := b.logger.With(log.RunIDKey, runID)
	logger.Info("Benchmark started",
		log.OperationKey, log.OperationBench,
		"models", len(b.names),
		"seeds", len(cfg.Seeds),
	)

	var jobs []job
	for _, name := range b.names {
		for _, seed := range cfg.Seeds {
			jobs = append(jobs, job{model: name, seed: seed, slot: len(jobs)})
		}
	}
	results := make([]Result, len(jobs))

	var bar *pb.ProgressBar
	if cfg.Progress != nil {
		bar = pb.ProgressBarTemplate(`{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{etime . }}`).
			New(len(jobs)).
			SetWriter(cfg.Progress).
			Set("prefix", "benchmark ").
			Start()
		defer bar.Finish()
	}

	runJob := func(j job) {
		results[j.slot] = b.runOne(logger, j, data.splits[j.seed])
		if bar != nil {
			bar.Increment()
		}
	}

	if cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallel.Workers(cfg.NJobs))
		for _, j := range jobs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				runJob(j)
				return nil
			})
		}
		err = g.Wait()
	} else {
		for _, j := range jobs {
			if err = ctx.Err(); err != nil {
				break
			}
			runJob(j)
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "benchmark cancelled")
	}

	b.mu.Lock()
	b.runID = runID
	b.results = results
	b.mu.Unlock()

	if failed := b.Err(); failed != nil {
		logger.Warn("Benchmark finished with failures", "failures", len(multierr.Errors(failed)))
	} else {
		logger.Info("Benchmark finished")
	}
	return append([]Result(nil), results...), nil
}

// prepare encodes the target once so that every split shares the same label
// codes, then builds the split for every seed.
func (b *Benchmark) prepare(X *dataset.Frame, y *dataset.Column, cfg RunConfig) (*prepared, error) {
	task, _ := models.TaskOf(b.names[0])
	for _, n := range b.names[1:] {
		if t, _ := models.TaskOf(n); t != task {
			return nil, errors.WithHint(
				errors.NewValidationError("models", "mixes classification and regression models", b.names),
				"benchmark classifiers and regressors separately",
			)
		}
	}

	var codes []float64
	var err error
	if task == models.Classification {
		codes, err = preprocessing.NewLabelEncoder().FitTransform(y)
	} else {
		codes, err = y.Float64s()
	}
	if err != nil {
		return nil, err
	}
	target := dataset.NewNumericColumn(y.Name, codes)

	p := &prepared{splits: make(map[int64]*matrices, len(cfg.Seeds))}
	for _, seed := range cfg.Seeds {
		if _, ok := p.splits[seed]; ok {
			continue
		}
		s, err := dataset.TrainTestSplit(X, target, cfg.TestSize, seed)
		if err != nil {
			return nil, err
		}
		m, err := toMatrices(s)
		if err != nil {
			return nil, err
		}
		p.splits[seed] = m
	}
	return p, nil
}

func toMatrices(s *dataset.Split) (*matrices, error) {
	XTrain, err := s.XTrain.Matrix()
	if err != nil {
		return nil, err
	}
	XTest, err := s.XTest.Matrix()
	if err != nil {
		return nil, err
	}
	return &matrices{
		XTrain: XTrain,
		XTest:  XTest,
		yTrain: mat.NewDense(s.YTrain.Len(), 1, s.YTrain.Floats),
		yTest:  mat.NewDense(s.YTest.Len(), 1, s.YTest.Floats),
	}, nil
}

func (b *Benchmark) runOne(logger log.Logger, j job, m *matrices) (res Result) {
	res = Result{Model: j.model, Seed: j.seed}
	logger = logger.With(log.ModelNameKey, j.model, log.RandomSeedKey, j.seed)

	res.Err = errors.SafeExecute("benchmark."+j.model, func() error {
		opts := append(append([]models.Option(nil), b.modelOpts...), models.WithRandomState(j.seed))
		mdl, err := models.Get(j.model, opts...)
		if err != nil {
			return err
		}
		res.Task = mdl.Task()

		start := time.Now()
		if err := mdl.Fit(m.XTrain, m.yTrain); err != nil {
			return err
		}
		res.FitTime = time.Since(start)

		start = time.Now()
		pred, err := mdl.Predict(m.XTest)
		if err != nil {
			return err
		}
		res.PredictTime = time.Since(start)

		rows, _ := pred.Dims()
		yPred := make([]float64, rows)
		for i := range yPred {
			yPred[i] = pred.At(i, 0)
		}
		res.Scores, err = evaluation.Evaluate(res.Task, m.yTest.RawMatrix().Data, yPred)
		return err
	})

	if res.Err != nil {
		res.Scores = nil
		logger.Error("Model failed", res.Err)
		return res
	}
	logger.Info("Model evaluated",
		log.DurationMsKey, res.FitTime.Milliseconds(),
		"scores", res.Scores.Map(),
	)
	return res
}

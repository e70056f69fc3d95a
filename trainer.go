package trainedml

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/trainedml/dataset"
	"github.com/YuminosukeSato/trainedml/datasets"
	"github.com/YuminosukeSato/trainedml/evaluation"
	"github.com/YuminosukeSato/trainedml/models"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
	"github.com/YuminosukeSato/trainedml/preprocessing"
)

// Defaults for New.
const (
	DefaultModel    = "random_forest"
	DefaultTestSize = 0.2
	DefaultSeed     = 42
)

// Trainer loads one dataset, fits one model on a seeded split and scores
// it on the held-out rows. It is safe for concurrent Predict calls once
// fitted.
type Trainer struct {
	datasetName string
	url         string
	target      string
	sep         string
	knownHash   string
	modelName   string
	testSize    float64
	seed        int64
	modelOpts   []models.Option
	loader      *datasets.Loader
	logger      log.Logger

	mu       sync.RWMutex
	task     models.Task
	split    *dataset.Split
	encoder  *preprocessing.LabelEncoder
	features []string
	model    models.Model
	dropped  int
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithDataset selects a registered dataset ("iris", "wine").
func WithDataset(name string) Option { return func(t *Trainer) { t.datasetName = name } }

// WithURL loads the CSV at url (http, https, file or a local path).
func WithURL(url string) Option { return func(t *Trainer) { t.url = url } }

// WithTarget names the target column. Registered datasets have a default.
func WithTarget(column string) Option { return func(t *Trainer) { t.target = column } }

// WithSeparator overrides separator detection.
func WithSeparator(sep string) Option { return func(t *Trainer) { t.sep = sep } }

// WithKnownHash verifies the downloaded file, see datasets.LoadOptions.
func WithKnownHash(h string) Option { return func(t *Trainer) { t.knownHash = h } }

// WithModel selects the model by name or alias.
func WithModel(name string) Option { return func(t *Trainer) { t.modelName = name } }

// WithTestSize sets the held-out fraction.
func WithTestSize(f float64) Option { return func(t *Trainer) { t.testSize = f } }

// WithSeed seeds the split and the model.
func WithSeed(seed int64) Option { return func(t *Trainer) { t.seed = seed } }

// WithModelOptions passes hyperparameters to the model.
func WithModelOptions(opts ...models.Option) Option {
	return func(t *Trainer) { t.modelOpts = append(t.modelOpts, opts...) }
}

// WithLoader shares a dataset loader, and with it its caches.
func WithLoader(l *datasets.Loader) Option { return func(t *Trainer) { t.loader = l } }

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option { return func(t *Trainer) { t.logger = l } }

// New creates a Trainer. It fails on an unknown model, a test size outside
// (0, 1) or a missing data source.
func New(opts ...Option) (*Trainer, error) {
	t := &Trainer{
		modelName: DefaultModel,
		testSize:  DefaultTestSize,
		seed:      DefaultSeed,
		logger:    log.GetLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}

	if _, err := models.Get(t.modelName); err != nil {
		return nil, err
	}
	t.modelName = models.Resolve(t.modelName)
	t.task, _ = models.TaskOf(t.modelName)

	if t.testSize <= 0 || t.testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", t.testSize)
	}
	if t.datasetName == "" && t.url == "" {
		return nil, errors.WithHint(
			errors.NewValidationError("dataset", "no data source", ""),
			"set a dataset name or a url and target",
		)
	}
	if t.loader == nil {
		loader, err := datasets.NewLoader(datasets.WithLogger(t.logger))
		if err != nil {
			return nil, err
		}
		t.loader = loader
	}
	t.logger = t.logger.With(log.ComponentKey, "trainer", log.ModelNameKey, t.modelName)
	return t, nil
}

// LoadData loads the dataset, drops incomplete rows, encodes the target and
// splits it. Fit calls it when needed.
func (t *Trainer) LoadData(ctx context.Context) (*dataset.Split, error) {
	X, y, err := t.loader.LoadDataset(ctx, datasets.Request{
		Name:      t.datasetName,
		URL:       t.url,
		Target:    t.target,
		Sep:       t.sep,
		KnownHash: t.knownHash,
	})
	if err != nil {
		return nil, err
	}

	all, err := X.Concat(y)
	if err != nil {
		return nil, err
	}
	clean, dropped := all.DropMissing()
	if dropped > 0 {
		errors.Warn(errors.NewDataConversionWarning("rows with missing values", "complete rows",
			fmt.Sprintf("%d incomplete rows dropped", dropped)))
		t.logger.Warn("Incomplete rows dropped", log.DroppedRowsKey, dropped)
	}
	if y, err = clean.Column(y.Name); err != nil {
		return nil, err
	}
	if X, err = clean.Drop(y.Name); err != nil {
		return nil, err
	}
	if _, err := X.Matrix(); err != nil {
		return nil, errors.WithHint(err, "every feature must be numeric; check the separator or drop text columns")
	}

	var encoder *preprocessing.LabelEncoder
	var codes []float64
	if t.task == models.Classification {
		if !dataset.IsClassificationTarget(y) {
			return nil, errors.WithHint(
				errors.NewValidationError("target", "is continuous but the model is a classifier", y.Name),
				"choose a regression model: "+fmt.Sprint(models.RegressorNames),
			)
		}
		encoder = preprocessing.NewLabelEncoder()
		codes, err = encoder.FitTransform(y)
	} else {
		codes, err = y.Float64s()
		if err != nil {
			err = errors.WithHint(err, "choose a classification model: "+fmt.Sprint(models.ClassifierNames))
		}
	}
	if err != nil {
		return nil, err
	}

	split, err := dataset.TrainTestSplit(X, dataset.NewNumericColumn(y.Name, codes), t.testSize, t.seed)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.split = split
	t.encoder = encoder
	t.features = X.Names()
	t.dropped = dropped
	t.model = nil
	t.mu.Unlock()

	train, test, features := split.Shapes()
	t.logger.Info("Data split",
		log.OperationKey, log.OperationLoad,
		"train", train, "test", test,
		log.FeaturesKey, features,
		log.RandomSeedKey, t.seed,
		log.TestSizeKey, t.testSize,
	)
	return split, nil
}

// Fit trains the model on the training rows, loading the data first when
// LoadData has not run.
func (t *Trainer) Fit(ctx context.Context) error {
	t.mu.RLock()
	split := t.split
	t.mu.RUnlock()
	if split == nil {
		var err error
		if split, err = t.LoadData(ctx); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	XTrain, err := split.XTrain.Matrix()
	if err != nil {
		return err
	}
	yTrain := mat.NewDense(split.YTrain.Len(), 1, split.YTrain.Floats)

	opts := append(append([]models.Option(nil), t.modelOpts...), models.WithRandomState(t.seed))
	m, err := models.Get(t.modelName, opts...)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := m.Fit(XTrain, yTrain); err != nil {
		return errors.Wrapf(err, "fit %s", t.modelName)
	}

	t.mu.Lock()
	t.model = m
	t.mu.Unlock()

	rows, cols := XTrain.Dims()
	t.logger.Info("Model fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (t *Trainer) fitted(method string) (models.Model, *dataset.Split, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.model == nil {
		return nil, nil, errors.NewNotFittedError("Trainer", method)
	}
	return t.model, t.split, nil
}

// Evaluate scores the model on the test rows: accuracy, precision, recall
// and f1 for classifiers, r2, mse, rmse and mae for regressors.
func (t *Trainer) Evaluate() (evaluation.Scores, error) {
	m, split, err := t.fitted("Evaluate")
	if err != nil {
		return nil, err
	}
	XTest, err := split.XTest.Matrix()
	if err != nil {
		return nil, err
	}
	pred, err := m.Predict(XTest)
	if err != nil {
		return nil, err
	}
	scores, err := evaluation.Evaluate(t.task, split.YTest.Floats, mat.Col(nil, 0, pred))
	if err != nil {
		return nil, err
	}
	t.logger.Info("Model evaluated", log.OperationKey, log.OperationEvaluate, "scores", scores)
	return scores, nil
}

// Predict returns the model output for each row: class codes (indices into
// Classes) for classifiers, values for regressors. Every row needs one value
// per feature, in Features order.
func (t *Trainer) Predict(rows [][]float64) ([]float64, error) {
	m, _, err := t.fitted("Predict")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	nFeatures := len(t.Features())
	X := mat.NewDense(len(rows), nFeatures, nil)
	for i, r := range rows {
		if len(r) != nFeatures {
			return nil, errors.WithHint(
				errors.NewDimensionError("Trainer.Predict", nFeatures, len(r), 1),
				fmt.Sprintf("features: %v", t.Features()),
			)
		}
		X.SetRow(i, r)
	}
	pred, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	return mat.Col(nil, 0, pred), nil
}

// PredictLabels is Predict with classifier output decoded to the original
// labels. Regressor output is formatted as numbers.
func (t *Trainer) PredictLabels(rows [][]float64) ([]string, error) {
	pred, err := t.Predict(rows)
	if err != nil {
		return nil, err
	}
	t.mu.RLock()
	encoder := t.encoder
	t.mu.RUnlock()
	if encoder != nil {
		return encoder.InverseTransform(pred)
	}
	out := make([]string, len(pred))
	for i, v := range pred {
		out[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out, nil
}

// Task returns the model's task.
func (t *Trainer) Task() models.Task { return t.task }

// ModelName returns the resolved model name.
func (t *Trainer) ModelName() string { return t.modelName }

// Seed returns the split and model seed.
func (t *Trainer) Seed() int64 { return t.seed }

// Split returns the current split, nil before LoadData.
func (t *Trainer) Split() *dataset.Split {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.split
}

// Features returns the feature names in model input order.
func (t *Trainer) Features() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.features...)
}

// Classes returns the class labels of a classification target, nil for
// regression or before LoadData.
func (t *Trainer) Classes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.encoder == nil {
		return nil
	}
	return t.encoder.Classes()
}

// Dropped returns the number of rows LoadData removed for missing values.
func (t *Trainer) Dropped() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dropped
}

// Model returns the fitted model, nil before Fit.
func (t *Trainer) Model() models.Model {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.model
}

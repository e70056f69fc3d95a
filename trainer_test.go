package trainedml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/trainedml/datasets"
	"github.com/YuminosukeSato/trainedml/models"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// animalsCSV has two well separated classes and one incomplete row.
func animalsCSV(t *testing.T) string {
	var sb strings.Builder
	sb.WriteString("weight,height,animal\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "%d,%d.5,cat\n", 3+i%4, 20+i%5)
		fmt.Fprintf(&sb, "%d,%d.5,dog\n", 30+i%6, 60+i%7)
	}
	sb.WriteString("NA,25,cat\n")
	return writeCSV(t, "animals.csv", sb.String())
}

func lineCSV(t *testing.T) string {
	var sb strings.Builder
	sb.WriteString("x,noise,y\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "%d,%d,%d\n", i, (i*7)%5, 3*i+2)
	}
	return writeCSV(t, "line.csv", sb.String())
}

func newLoader(t *testing.T) *datasets.Loader {
	t.Helper()
	l, err := datasets.NewLoader(datasets.WithLogger(quiet()))
	require.NoError(t, err)
	return l
}

func quiet() log.Logger {
	l, _ := log.NewTestLogger(log.LevelError)
	return l
}

func TestTrainerClassification(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)
	tr, err := New(
		WithURL(animalsCSV(t)),
		WithTarget("animal"),
		WithModel("k-nn"),
		WithTestSize(0.25),
		WithSeed(7),
		WithLoader(newLoader(t)),
		WithLogger(logger),
	)
	require.NoError(t, err)
	assert.Equal(t, "knn", tr.ModelName())
	assert.Equal(t, models.Classification, tr.Task())
	assert.Nil(t, tr.Split())

	_, err = tr.Evaluate()
	var notFitted *errors.NotFittedError
	require.True(t, errors.As(err, &notFitted))

	require.NoError(t, tr.Fit(context.Background()))
	assert.Equal(t, 1, tr.Dropped())
	assert.Equal(t, []string{"cat", "dog"}, tr.Classes())
	assert.Equal(t, []string{"weight", "height"}, tr.Features())

	train, test, features := tr.Split().Shapes()
	assert.Equal(t, 29, train)
	assert.Equal(t, 10, test)
	assert.Equal(t, 2, features)

	scores, err := tr.Evaluate()
	require.NoError(t, err)
	acc, ok := scores.Get("accuracy")
	require.True(t, ok)
	assert.Equal(t, 1.0, acc)
	assert.Equal(t, []string{"accuracy", "precision", "recall", "f1"}, scores.Names())

	pred, err := tr.Predict([][]float64{{4, 21}, {33, 62}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, pred)

	labels, err := tr.PredictLabels([][]float64{{33, 62}, {4, 21}})
	require.NoError(t, err)
	assert.Equal(t, []string{"dog", "cat"}, labels)

	_, err = tr.Predict([][]float64{{1, 2, 3}})
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
	_, err = tr.Predict(nil)
	assert.Error(t, err)

	assert.True(t, logger.ContainsMessage("Model fitted"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "knn"))
}

func TestTrainerWarnsAboutDroppedRows(t *testing.T) {
	var warnings []error
	errors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
	defer errors.SetZerologWarnFunc(nil)

	logger, _ := log.NewTestLogger(log.LevelWarn)
	tr, err := New(
		WithURL(animalsCSV(t)),
		WithTarget("animal"),
		WithLoader(newLoader(t)),
		WithLogger(logger),
	)
	require.NoError(t, err)
	require.NoError(t, tr.Fit(context.Background()))

	require.Len(t, warnings, 1)
	var conversion *errors.DataConversionWarning
	require.True(t, errors.As(warnings[0], &conversion))
	assert.Equal(t, "data converted from rows with missing values to complete rows. Reason: 1 incomplete rows dropped",
		warnings[0].Error())
	assert.True(t, logger.ContainsMessage("Incomplete rows dropped"))
	assert.True(t, logger.ContainsField(log.DroppedRowsKey, 1.0))

	warnings = nil
	clean, err := New(WithURL(lineCSV(t)), WithTarget("y"), WithModel("linear"), WithLoader(newLoader(t)), WithLogger(quiet()))
	require.NoError(t, err)
	require.NoError(t, clean.Fit(context.Background()))
	assert.Empty(t, warnings)
}

func TestTrainerRegression(t *testing.T) {
	tr, err := New(
		WithURL(lineCSV(t)),
		WithTarget("y"),
		WithModel("linear regression"),
		WithLoader(newLoader(t)),
		WithLogger(quiet()),
	)
	require.NoError(t, err)
	assert.Equal(t, models.Regression, tr.Task())

	split, err := tr.LoadData(context.Background())
	require.NoError(t, err)
	_, test, _ := split.Shapes()
	assert.Equal(t, 6, test)

	require.NoError(t, tr.Fit(context.Background()))
	assert.Nil(t, tr.Classes())

	scores, err := tr.Evaluate()
	require.NoError(t, err)
	r2, _ := scores.Get("r2")
	assert.InDelta(t, 1.0, r2, 1e-9)
	mse, _ := scores.Get("mse")
	assert.InDelta(t, 0.0, mse, 1e-9)

	pred, err := tr.Predict([][]float64{{100, 0}})
	require.NoError(t, err)
	assert.InDelta(t, 302, pred[0], 1e-6)

	labels, err := tr.PredictLabels([][]float64{{1, 1}, {2, 2}})
	require.NoError(t, err)
	assert.Len(t, labels, 2)
}

func TestTrainerSeedIsReproducible(t *testing.T) {
	path := animalsCSV(t)
	loader := newLoader(t)
	run := func() []float64 {
		tr, err := New(WithURL(path), WithTarget("animal"), WithModel("random_forest"),
			WithSeed(3), WithLoader(loader), WithLogger(quiet()),
			WithModelOptions(models.WithEstimators(10)))
		require.NoError(t, err)
		require.NoError(t, tr.Fit(context.Background()))
		return tr.Split().YTest.Floats
	}
	assert.Equal(t, run(), run())
}

func TestTrainerErrors(t *testing.T) {
	animals := animalsCSV(t)
	loader := newLoader(t)
	ctx := context.Background()

	_, err := New(WithURL(animals), WithTarget("animal"), WithModel("svm"))
	var unknown *errors.UnknownModelError
	require.True(t, errors.As(err, &unknown))
	assert.Contains(t, unknown.Available, "random_forest")

	var invalid *errors.ValidationError
	_, err = New(WithURL(animals), WithTarget("animal"), WithTestSize(1.5))
	assert.True(t, errors.As(err, &invalid))
	_, err = New(WithModel("knn"))
	assert.True(t, errors.As(err, &invalid))

	tr, err := New(WithURL(animals), WithTarget("species"), WithLoader(loader), WithLogger(quiet()))
	require.NoError(t, err)
	var notFound *errors.ColumnNotFoundError
	assert.True(t, errors.As(tr.Fit(ctx), &notFound))

	tr, err = New(WithURL(lineCSV(t)), WithTarget("y"), WithModel("knn"), WithLoader(loader), WithLogger(quiet()))
	require.NoError(t, err)
	err = tr.Fit(ctx)
	assert.True(t, errors.As(err, &invalid))
	assert.NotEmpty(t, errors.Hints(err))

	// a regressor on a text target, and text among the features
	var conversion *errors.TypeConversionError
	tr, err = New(WithURL(animals), WithTarget("animal"), WithModel("ridge"), WithLoader(loader), WithLogger(quiet()))
	require.NoError(t, err)
	assert.True(t, errors.As(tr.Fit(ctx), &conversion))

	tr, err = New(WithURL(animals), WithTarget("weight"), WithModel("linear"), WithLoader(loader), WithLogger(quiet()))
	require.NoError(t, err)
	err = tr.Fit(ctx)
	assert.True(t, errors.As(err, &conversion))
	assert.NotEmpty(t, errors.Hints(err))

	tr, err = New(WithURL(filepath.Join(t.TempDir(), "absent.csv")), WithTarget("y"), WithLoader(loader), WithLogger(quiet()))
	require.NoError(t, err)
	assert.Error(t, tr.Fit(ctx))
}

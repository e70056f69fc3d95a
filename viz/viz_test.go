package viz

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/trainedml/dataset"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
)

func testFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	n := 30
	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	species := make([]string, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		a[i] = x
		b[i] = math.Sin(x/3) + x/10
		c[i] = float64((i*7)%11) - 5
		species[i] = []string{"setosa", "versicolor", "virginica"}[i%3]
	}
	b[4] = math.NaN()
	f, err := dataset.NewFrame(
		dataset.NewNumericColumn("a", a),
		dataset.NewNumericColumn("b", b),
		dataset.NewNumericColumn("c", c),
		dataset.NewCategoricalColumn("species", species),
	)
	require.NoError(t, err)
	return f
}

func render(t *testing.T, fig *Figure) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fig.Render(&buf, "png"))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")), "expected a PNG")
}

func TestVisualizerFigures(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	v := New(testFrame(t), WithLogger(logger))
	assert.Equal(t, []string{"a", "b", "c"}, v.Features())

	tests := []struct {
		name   string
		build  func() (*Figure, error)
		panels int
		title  string
	}{
		{"heatmap", func() (*Figure, error) { return v.Heatmap(nil, "", true) }, 1, "Correlation heatmap (pearson)"},
		{"heatmap unmasked", func() (*Figure, error) { return v.Heatmap([]string{"a", "c"}, "kendall", false) }, 1, "Correlation heatmap (kendall)"},
		{"correlation", func() (*Figure, error) { return v.Correlation(nil, "spearman", true) }, 1, "Correlation matrix"},
		{"histogram", func() (*Figure, error) { return v.Histogram(nil, true, 5) }, 1, "Histogram"},
		{"line", func() (*Figure, error) { return v.Line("a", "b") }, 1, "b vs a"},
		{"boxplot", func() (*Figure, error) { return v.Boxplot(nil, "") }, 1, "Boxplot"},
		{"boxplot by", func() (*Figure, error) { return v.Boxplot([]string{"a", "b"}, "species") }, 2, "a by species"},
		{"distribution", func() (*Figure, error) { return v.Distribution([]string{"a", "c"}, 0) }, 2, "Distribution of a"},
		{"target classes", func() (*Figure, error) { return v.Target("species") }, 1, "Target distribution: species"},
		{"target numeric", func() (*Figure, error) { return v.Target("b") }, 1, "Target distribution: b"},
		{"bivariate", func() (*Figure, error) { return v.Bivariate("a", "c") }, 1, "Scatter plot: a vs c"},
		{"missing", v.Missing, 1, "Missing values per column"},
		{"outliers", v.Outliers, 3, "Boxplot of a"},
		{"normality", func() (*Figure, error) { return v.Normality("a", "c") }, 2, "QQ plot of a"},
		{"multicollinearity", v.Multicollinearity, 1, "Variance Inflation Factor (VIF)"},
		{"profiling", v.Profiling, 1, "Data profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fig, err := tt.build()
			require.NoError(t, err)
			assert.Len(t, fig.Plots(), tt.panels)
			assert.Equal(t, tt.title, fig.Title())
			render(t, fig)
		})
	}
	assert.True(t, logger.ContainsField(log.OperationKey, log.OperationPlot))
}

func TestMissingWithoutGaps(t *testing.T) {
	f, err := dataset.NewFrame(dataset.NewNumericColumn("a", []float64{1, 2, 3}))
	require.NoError(t, err)
	fig, err := New(f).Missing()
	require.NoError(t, err)
	assert.Equal(t, "No missing values", fig.Text)
	render(t, fig)
}

func TestProfilingText(t *testing.T) {
	fig, err := New(testFrame(t)).Profiling()
	require.NoError(t, err)
	lines := strings.Split(fig.Text, "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "missing=1")
	assert.Contains(t, lines[3], "top=setosa freq=10")
}

func TestVisualizerErrors(t *testing.T) {
	v := New(testFrame(t))

	var notFound *errors.ColumnNotFoundError
	_, err := v.Histogram([]string{"nope"}, false, 10)
	assert.True(t, errors.As(err, &notFound))
	_, err = v.Line("a", "nope")
	assert.True(t, errors.As(err, &notFound))
	_, err = v.Boxplot(nil, "nope")
	assert.True(t, errors.As(err, &notFound))

	var invalid *errors.ValidationError
	_, err = v.Histogram(nil, false, -1)
	assert.True(t, errors.As(err, &invalid))
	_, err = v.Heatmap(nil, "cosine", true)
	assert.True(t, errors.As(err, &invalid))
	_, err = v.Heatmap([]string{"a"}, "pearson", true)
	assert.True(t, errors.As(err, &invalid))

	_, err = v.Histogram([]string{"species"}, false, 10)
	assert.Error(t, err)
}

func TestFigureSave(t *testing.T) {
	fig, err := New(testFrame(t)).Histogram([]string{"a"}, false, 4)
	require.NoError(t, err)
	dir := t.TempDir()

	for _, name := range []string{"hist.png", "hist.svg", "hist.pdf", "nested/deeper/hist.jpg"} {
		path, err := fig.Save(filepath.Join(dir, name))
		require.NoError(t, err, name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}

	path, err := fig.Save(filepath.Join(dir, "noext"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "noext.png"), path)

	_, err = fig.Save(filepath.Join(dir, "hist.bmp"))
	var invalid *errors.ValidationError
	assert.True(t, errors.As(err, &invalid))
	_, statErr := os.Stat(filepath.Join(dir, "hist.bmp"))
	assert.True(t, os.IsNotExist(statErr))

	var buf bytes.Buffer
	require.NoError(t, fig.Render(&buf, "SVG"))
	assert.Contains(t, buf.String(), "<svg")
}

func TestShow(t *testing.T) {
	previous := openCommand
	defer func() { openCommand = previous }()

	var opened string
	openCommand = func(path string) (string, []string) {
		opened = path
		return "true", nil
	}

	fig, err := New(testFrame(t)).Bivariate("a", "b")
	require.NoError(t, err)
	path, err := fig.Save(filepath.Join(t.TempDir(), "scatter.png"))
	require.NoError(t, err)

	require.NoError(t, Show(path))
	assert.Equal(t, path, opened)
	assert.Error(t, Show(filepath.Join(t.TempDir(), "missing.png")))
}

func TestLaunchReapsViewer(t *testing.T) {
	previous := openCommand
	defer func() { openCommand = previous }()

	for _, tt := range []struct {
		name    string
		wantErr bool
	}{
		{"true", false},
		{"false", true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			openCommand = func(string) (string, []string) { return tt.name, nil }
			done, err := launch("figure.png")
			require.NoError(t, err)
			select {
			case err := <-done:
				if tt.wantErr {
					assert.Error(t, err)
				} else {
					assert.NoError(t, err)
				}
			case <-time.After(10 * time.Second):
				t.Fatal("viewer was not waited for")
			}
		})
	}

	openCommand = func(string) (string, []string) { return "trainedml-no-such-viewer", nil }
	_, err := launch("figure.png")
	assert.Error(t, err)
}

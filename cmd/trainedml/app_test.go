package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func animals(t *testing.T) string {
	var sb strings.Builder
	sb.WriteString("weight,height,animal\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "%d,%d.5,cat\n", 3+i%4, 20+i%5)
		fmt.Fprintf(&sb, "%d,%d.5,dog\n", 30+i%6, 60+i%7)
	}
	return writeCSV(t, "animals.csv", sb.String())
}

func prices(t *testing.T) string {
	var sb strings.Builder
	sb.WriteString("area,rooms,price\n")
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "%d,%d,%.1f\n", 50+i, 1+i%4, 1000.5+12*float64(i)+30*float64(i%4))
	}
	return writeCSV(t, "prices.csv", sb.String())
}

func cli(t *testing.T, argv ...string) (int, string, string) {
	t.Helper()
	t.Setenv("TRAINEDML_CACHE_DIR", t.TempDir())
	t.Setenv("TRAINEDML_PROGRESS", "false")
	t.Setenv("TRAINEDML_LOG_LEVEL", "error")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), argv, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func stubOpener(t *testing.T) *[]string {
	t.Helper()
	previous := opener
	t.Cleanup(func() { opener = previous })
	var opened []string
	opener = func(path string) error {
		opened = append(opened, path)
		return nil
	}
	return &opened
}

func TestHelp(t *testing.T) {
	code, stdout, _ := cli(t, "--help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "--benchmark")
	assert.Contains(t, stdout, "--test-size")
}

func TestSingleModel(t *testing.T) {
	code, stdout, stderr := cli(t, "--url", animals(t), "--target", "animal", "--model", "knn", "--seed", "1")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "Train: (28, 2), Test: (12, 2) (seed=1)")
	assert.Contains(t, stdout, "Detected task: classification")
	assert.Contains(t, stdout, "Training knn ...")
	assert.Contains(t, stdout, "accuracy: 1.000")
	assert.Contains(t, stdout, "f1: 1.000")
	assert.Contains(t, stdout, "Use --show to render the heatmap.")
}

func TestDefaultModelFollowsTask(t *testing.T) {
	code, stdout, stderr := cli(t, "--url", prices(t), "--target", "price", "--test-size", "0.25")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Detected task: regression")
	assert.Contains(t, stdout, "Training random_forest_regressor ...")
	assert.Contains(t, stdout, "r2: ")
	assert.Contains(t, stdout, "rmse: ")
}

func TestBenchmark(t *testing.T) {
	code, stdout, stderr := cli(t, "--url", animals(t), "--target", "animal", "--benchmark", "--seeds", "1", "2", "42", "--parallel")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "--- BENCHMARK ---")
	assert.Contains(t, stdout, "Models (classification): knn, logistic, random_forest")
	for _, name := range []string{"knn", "logistic", "random_forest"} {
		for _, seed := range []string{"42", "1", "2"} {
			assert.Contains(t, stdout, fmt.Sprintf("Model: %s (seed %s)", name, seed))
		}
	}
	assert.Equal(t, 3, strings.Count(stdout, "Model: knn (seed"))
	assert.Contains(t, stdout, "BENCHMARK SUMMARY")
	assert.Contains(t, stdout, "BEST MODEL: ")
}

func TestRegressionBenchmark(t *testing.T) {
	code, stdout, stderr := cli(t, "--url", prices(t), "--target", "price", "--benchmark")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Models (regression): knn_regressor, linear, ridge, lasso, random_forest_regressor")
	assert.Contains(t, stdout, "BEST MODEL: ")
	assert.Contains(t, stdout, "(r2: ")
}

func TestShowSavesFigures(t *testing.T) {
	opened := stubOpener(t)
	out := t.TempDir()
	path := animals(t)

	tests := []struct {
		name string
		args []string
		file string
	}{
		{"heatmap", nil, "heatmap.png"},
		{"histogram", []string{"--histogram"}, "histogram.png"},
		{"line", []string{"--line", "weight", "height"}, "line.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			argv := append([]string{"--url", path, "--target", "animal", "--model", "logistic", "--show", "--out-dir", out}, tt.args...)
			code, stdout, stderr := cli(t, argv...)
			require.Equal(t, 0, code, stderr)

			want := filepath.Join(out, tt.file)
			assert.Contains(t, stdout, "Saved "+want)
			assert.FileExists(t, want)
			assert.Equal(t, want, (*opened)[len(*opened)-1])
		})
	}
}

func TestErrors(t *testing.T) {
	path := animals(t)

	tests := []struct {
		name   string
		args   []string
		code   int
		stderr []string
	}{
		{"missing target column", []string{"--url", path, "--target", "species"}, 1, []string{"Error:", "hint:"}},
		{"unknown model", []string{"--url", path, "--target", "animal", "--model", "svm"}, 1, []string{"svm"}},
		{"regressor on labels", []string{"--url", path, "--target", "animal", "--model", "ridge"}, 1, []string{"Error:", "hint:"}},
		{"url without target", []string{"--url", path}, 1, []string{"Error:"}},
		{"bad test size", []string{"--url", path, "--target", "animal", "--test-size", "2"}, 1, []string{"test_size"}},
		{"unknown line column", []string{"--url", path, "--target", "animal", "--model", "knn", "--line", "weight", "nope"}, 1, []string{"nope"}},
		{"line needs two columns", []string{"--line", "weight"}, 2, []string{"--line takes exactly two columns"}},
		{"unknown flag", []string{"--bogus"}, 2, []string{"error:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := cli(t, tt.args...)
			assert.Equal(t, tt.code, code)
			for _, s := range tt.stderr {
				assert.Contains(t, stderr, s)
			}
		})
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	arg "github.com/alexflint/go-arg"

	"github.com/YuminosukeSato/trainedml"
	"github.com/YuminosukeSato/trainedml/benchmark"
	"github.com/YuminosukeSato/trainedml/config"
	"github.com/YuminosukeSato/trainedml/dataset"
	"github.com/YuminosukeSato/trainedml/datasets"
	"github.com/YuminosukeSato/trainedml/models"
	"github.com/YuminosukeSato/trainedml/pkg/errors"
	"github.com/YuminosukeSato/trainedml/pkg/log"
	"github.com/YuminosukeSato/trainedml/viz"
)

type args struct {
	Model      string   `arg:"-m,--model" help:"model name: knn, logistic, random_forest, knn_regressor, linear, ridge, lasso, random_forest_regressor (default: random forest for the detected task)"`
	Dataset    string   `arg:"-d,--dataset" help:"registered dataset: iris or wine (default: iris)"`
	URL        string   `arg:"--url" help:"CSV url or path, requires --target"`
	Target     string   `arg:"-t,--target" help:"target column"`
	Sep        string   `arg:"--sep" help:"field separator (default: detected from the url)"`
	Seed       *int64   `arg:"--seed" help:"split and model seed (default: 42)"`
	TestSize   *float64 `arg:"--test-size" help:"held-out fraction in (0, 1) (default: 0.3)"`
	Show       bool     `arg:"--show" help:"save the figure under --out-dir and open it"`
	Histogram  bool     `arg:"--histogram" help:"plot a histogram of the numeric columns"`
	Line       []string `arg:"--line" help:"plot Y against X: --line X Y"`
	Benchmark  bool     `arg:"--benchmark" help:"compare every model of the detected task"`
	Seeds      []int64  `arg:"--seeds" help:"extra benchmark seeds"`
	Parallel   bool     `arg:"--parallel" help:"run benchmark fits concurrently"`
	OutDir     string   `arg:"--out-dir" help:"figure directory (default: figures)"`
	Config     string   `arg:"--config" help:"config file (yaml, json or toml)"`
	LogLevel   string   `arg:"--log-level" help:"debug, info, warn or error"`
	NoProgress bool     `arg:"--no-progress" help:"hide progress bars"`
}

func (args) Description() string {
	return "trainedml: load a dataset, train or benchmark models and plot the data"
}

// opener displays a saved figure.
var opener = viz.Show

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	var a args
	p, err := arg.NewParser(arg.Config{Program: "trainedml"}, &a)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	switch err := p.Parse(argv); {
	case err == arg.ErrHelp:
		p.WriteHelp(stdout)
		return 0
	case err != nil:
		p.WriteUsage(stderr)
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	if len(a.Line) != 0 && len(a.Line) != 2 {
		p.WriteUsage(stderr)
		fmt.Fprintln(stderr, "error: --line takes exactly two columns: X Y")
		return 2
	}

	if err := execute(ctx, a, stdout, stderr); err != nil {
		report(stderr, err)
		return 1
	}
	return 0
}

// report prints err and its hints.
func report(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	for _, h := range errors.Hints(err) {
		fmt.Fprintf(w, "  hint: %s\n", h)
	}
}

func execute(ctx context.Context, a args, stdout, stderr io.Writer) error {
	cfg, err := config.Load(a.Config)
	if err != nil {
		return err
	}
	if a.LogLevel != "" {
		cfg.Logger.Level = a.LogLevel
	}
	if err := log.SetupLogger(cfg.Logger.Level, cfg.Logger.Format, stderr); err != nil {
		return err
	}
	seed := cfg.Seed
	if a.Seed != nil {
		seed = *a.Seed
	}
	testSize := cfg.TestSize
	if a.TestSize != nil {
		testSize = *a.TestSize
	}
	outDir := cfg.Output.Dir
	if a.OutDir != "" {
		outDir = a.OutDir
	}
	var progress io.Writer
	if cfg.Progress && !a.NoProgress {
		progress = stderr
	}

	loaderOpts := []datasets.Option{
		datasets.WithCacheDir(cfg.Cache.Dir),
		datasets.WithTimeout(cfg.HTTP.Timeout),
		datasets.WithMemoryEntries(cfg.Cache.MemoryEntries),
	}
	if progress != nil {
		loaderOpts = append(loaderOpts, datasets.WithProgress(progress))
	}
	loader, err := datasets.NewLoader(loaderOpts...)
	if err != nil {
		return err
	}

	req := datasets.Request{Name: a.Dataset, URL: a.URL, Target: a.Target, Sep: a.Sep}
	if a.URL == "" && a.Dataset == "" {
		req.Name = "iris"
	}
	source := req.Name
	if a.URL != "" {
		req.Name = ""
		source = a.URL
	}
	fmt.Fprintf(stdout, "Loading dataset %s ...\n", source)
	X, y, err := loader.LoadDataset(ctx, req)
	if err != nil {
		return err
	}

	classification := dataset.IsClassificationTarget(y)
	task := models.Regression
	if classification {
		task = models.Classification
	}

	modelName := a.Model
	if modelName == "" {
		modelName = trainedml.DefaultModel
		if task == models.Regression {
			modelName = "random_forest_regressor"
		}
	}
	tr, err := trainedml.New(
		trainedml.WithDataset(req.Name),
		trainedml.WithURL(req.URL),
		trainedml.WithTarget(req.Target),
		trainedml.WithSeparator(req.Sep),
		trainedml.WithModel(modelName),
		trainedml.WithSeed(seed),
		trainedml.WithTestSize(testSize),
		trainedml.WithLoader(loader),
	)
	if err != nil {
		return err
	}
	split, err := tr.LoadData(ctx)
	if err != nil {
		return err
	}
	train, test, features := split.Shapes()
	fmt.Fprintf(stdout, "Train: (%d, %d), Test: (%d, %d) (seed=%d)\n", train, features, test, features, seed)
	fmt.Fprintf(stdout, "Detected task: %s\n", task)

	if a.Benchmark {
		features, target, cerr := completeRows(X, y)
		if cerr != nil {
			return cerr
		}
		err = runBenchmark(ctx, a, task, features, target, seed, testSize, progress, stdout)
	} else {
		err = runSingle(ctx, tr, stdout)
	}
	if err != nil {
		return err
	}

	data, err := X.Concat(y)
	if err != nil {
		return err
	}
	return visualize(a, viz.New(data), outDir, stdout, stderr)
}

func runSingle(ctx context.Context, tr *trainedml.Trainer, stdout io.Writer) error {
	fmt.Fprintf(stdout, "Training %s ...\n", tr.ModelName())
	if err := tr.Fit(ctx); err != nil {
		return err
	}
	scores, err := tr.Evaluate()
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Evaluation:")
	for _, s := range scores {
		fmt.Fprintf(stdout, "%s: %.3f\n", s.Name, s.Value)
	}
	return nil
}

func runBenchmark(ctx context.Context, a args, task models.Task, X *dataset.Frame, y *dataset.Column, seed int64, testSize float64, progress, stdout io.Writer) error {
	fmt.Fprintln(stdout, "\n--- BENCHMARK ---")
	names := models.NamesFor(task)
	fmt.Fprintf(stdout, "Models (%s): %s\n", task, strings.Join(names, ", "))

	b, err := benchmark.New(names)
	if err != nil {
		return err
	}
	results, err := b.Run(ctx, X, y, benchmark.RunConfig{
		Seeds:    uniqueSeeds(append([]int64{seed}, a.Seeds...)),
		TestSize: testSize,
		Parallel: a.Parallel,
		Progress: progress,
	})
	if err != nil {
		return err
	}
	for _, r := range results {
		fmt.Fprintf(stdout, "\nModel: %s (seed %d)\n", r.Model, r.Seed)
		if r.Err != nil {
			fmt.Fprintf(stdout, "  failed: %v\n", r.Err)
			continue
		}
		for _, s := range r.Scores {
			fmt.Fprintf(stdout, "  %s: %.3f\n", s.Name, s.Value)
		}
		fmt.Fprintf(stdout, "  fit_time: %.4f s\n", r.FitTime.Seconds())
		fmt.Fprintf(stdout, "  predict_time: %.4f s\n", r.PredictTime.Seconds())
	}
	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, b.Summary())
	return nil
}

func uniqueSeeds(seeds []int64) []int64 {
	seen := make(map[int64]bool, len(seeds))
	out := seeds[:0]
	for _, s := range seeds {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// completeRows drops the rows with a missing feature or target.
func completeRows(X *dataset.Frame, y *dataset.Column) (*dataset.Frame, *dataset.Column, error) {
	all, err := X.Concat(y)
	if err != nil {
		return nil, nil, err
	}
	clean, _ := all.DropMissing()
	target, err := clean.Column(y.Name)
	if err != nil {
		return nil, nil, err
	}
	features, err := clean.Drop(y.Name)
	if err != nil {
		return nil, nil, err
	}
	return features, target, nil
}

func visualize(a args, v *viz.Visualizer, outDir string, stdout, stderr io.Writer) error {
	var (
		fig  *viz.Figure
		err  error
		kind string
		file string
	)
	switch {
	case len(a.Line) == 2:
		fmt.Fprintf(stdout, "Plotting %s against %s ...\n", a.Line[1], a.Line[0])
		fig, err = v.Line(a.Line[0], a.Line[1])
		kind, file = "line plot", "line.png"
	case a.Histogram:
		fmt.Fprintln(stdout, "Plotting the histogram of the numeric columns ...")
		fig, err = v.Histogram(v.Features(), true, viz.DefaultBins)
		kind, file = "histogram", "histogram.png"
	default:
		fmt.Fprintln(stdout, "Plotting the correlation heatmap ...")
		fig, err = v.Heatmap(v.Features(), "pearson", true)
		kind, file = "heatmap", "heatmap.png"
	}
	if err != nil {
		return err
	}
	if !a.Show {
		fmt.Fprintf(stdout, "Use --show to render the %s.\n", kind)
		return nil
	}
	path, err := fig.Save(filepath.Join(outDir, file))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved %s\n", path)
	if err := opener(path); err != nil {
		report(stderr, err)
	}
	return nil
}

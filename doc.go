// Package trainedml is an educational machine-learning toolkit: it loads a
// tabular dataset by name, URL or path, trains one of eight estimators
// behind a common interface, scores it and draws the usual exploratory
// plots.
//
// # Quick Start
//
//	tr, err := trainedml.New(
//	    trainedml.WithDataset("iris"),
//	    trainedml.WithModel("random_forest"),
//	    trainedml.WithSeed(42),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tr.Fit(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	scores, err := tr.Evaluate()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(scores) // accuracy=0.9556 precision=... recall=... f1=...
//
//	labels, err := tr.PredictLabels([][]float64{{5.1, 3.5, 1.4, 0.2}})
//
// # Packages
//
//   - dataset: columns, frames, CSV parsing and train/test splits
//   - datasets: the download cache and the registered datasets (iris, wine)
//   - models: the dispatch table from model names to estimators
//   - sklearn/...: the estimators (neighbors, linear_model, tree, ensemble)
//   - evaluation: task-appropriate score sets
//   - benchmark: multi-model, multi-seed comparisons
//   - analysis and viz: exploratory statistics and their plots
//   - server: the HTTP API around Trainer
//   - pkg/errors and pkg/log: typed errors and structured logging
//
// The trainedml command (cmd/trainedml) wires these together for single
// runs and benchmarks; trainedml-server (cmd/trainedml-server) serves the
// same Trainer over HTTP.
package trainedml

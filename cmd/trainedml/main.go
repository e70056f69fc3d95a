// Command trainedml trains and benchmarks models on a tabular dataset and
// draws exploratory plots.
//
//	trainedml --dataset iris --model random_forest --show
//	trainedml --dataset wine --benchmark --seeds 1 2 3
//	trainedml --url https://example.com/data.csv --target label --line x y --show
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

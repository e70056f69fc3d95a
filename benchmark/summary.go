package benchmark

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/trainedml/evaluation"
	"github.com/YuminosukeSato/trainedml/models"
)

// Stat is the mean and sample standard deviation of one quantity across
// seeds. Std is zero for a single run.
type Stat struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// ModelStats aggregates one model's results across seeds.
type ModelStats struct {
	Model    string          `json:"model"`
	Task     models.Task     `json:"task"`
	Runs     int             `json:"runs"`
	Failures int             `json:"failures"`
	Metrics  []string        `json:"metrics"`
	Scores   map[string]Stat `json:"scores"`
	// FitTime and PredictTime are in seconds.
	FitTime     Stat     `json:"fit_time"`
	PredictTime Stat     `json:"predict_time"`
	Errors      []string `json:"errors,omitempty"`
}

func meanStd(x []float64) Stat {
	switch len(x) {
	case 0:
		return Stat{Mean: math.NaN()}
	case 1:
		return Stat{Mean: x[0]}
	}
	m, s := stat.MeanStdDev(x, nil)
	return Stat{Mean: m, Std: s}
}

// Aggregate returns per-model statistics of the last run in model order.
// It is empty before Run.
func (b *Benchmark) Aggregate() []ModelStats {
	results := b.Results()
	if len(results) == 0 {
		return nil
	}

	out := make([]ModelStats, 0, len(b.names))
	for _, name := range b.names {
		ms := ModelStats{Model: name, Scores: make(map[string]Stat)}
		ms.Task, _ = models.TaskOf(name)
		values := make(map[string][]float64)
		var fit, predict []float64
		for _, r := range results {
			if r.Model != name {
				continue
			}
			ms.Runs++
			if r.Err != nil {
				ms.Failures++
				ms.Errors = append(ms.Errors, r.Err.Error())
				continue
			}
			for _, sc := range r.Scores {
				if _, ok := values[sc.Name]; !ok {
					ms.Metrics = append(ms.Metrics, sc.Name)
				}
				values[sc.Name] = append(values[sc.Name], sc.Value)
			}
			fit = append(fit, r.FitTime.Seconds())
			predict = append(predict, r.PredictTime.Seconds())
		}
		for metric, v := range values {
			ms.Scores[metric] = meanStd(v)
		}
		ms.FitTime = meanStd(fit)
		ms.PredictTime = meanStd(predict)
		out = append(out, ms)
	}
	return out
}

// Best returns the model with the highest mean primary metric (accuracy for
// classification, r2 for regression). ok is false when every model failed
// or Run has not been called.
func (b *Benchmark) Best() (model string, metric string, score float64, ok bool) {
	score = math.Inf(-1)
	for _, ms := range b.Aggregate() {
		m := evaluation.PrimaryMetric(ms.Task)
		s, found := ms.Scores[m]
		if !found || math.IsNaN(s.Mean) {
			continue
		}
		if s.Mean > score {
			model, metric, score, ok = ms.Model, m, s.Mean, true
		}
	}
	return model, metric, score, ok
}

// Summary formats every model's scores and timings followed by the best
// model. It returns "" before Run.
func (b *Benchmark) Summary() string {
	stats := b.Aggregate()
	if len(stats) == 0 {
		return ""
	}
	rule := strings.Repeat("=", 60)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\nBENCHMARK SUMMARY (run %s)\n%s\n", rule, b.RunID(), rule)
	for _, ms := range stats {
		fmt.Fprintf(&sb, "\n%s\n%s\n", ms.Model, strings.Repeat("-", 40))
		if ms.Runs > 1 {
			fmt.Fprintf(&sb, "  runs: %d (failed: %d)\n", ms.Runs, ms.Failures)
		}
		for _, e := range ms.Errors {
			fmt.Fprintf(&sb, "  error: %s\n", e)
		}
		if ms.Runs == ms.Failures {
			continue
		}
		for _, metric := range ms.Metrics {
			fmt.Fprintf(&sb, "  %s: %s\n", metric, formatStat(ms.Scores[metric], ms.Runs-ms.Failures, "%.4f"))
		}
		fmt.Fprintf(&sb, "  fit_time: %s\n", formatStat(ms.FitTime, ms.Runs-ms.Failures, "%.4fs"))
		fmt.Fprintf(&sb, "  predict_time: %s\n", formatStat(ms.PredictTime, ms.Runs-ms.Failures, "%.4fs"))
	}

	if model, metric, score, ok := b.Best(); ok {
		fmt.Fprintf(&sb, "\n%s\nBEST MODEL: %s (%s: %.4f)\n%s\n", rule, model, metric, score, rule)
	}
	return sb.String()
}

func formatStat(s Stat, n int, format string) string {
	if n > 1 {
		return fmt.Sprintf(format+" ± "+format, s.Mean, s.Std)
	}
	return fmt.Sprintf(format, s.Mean)
}

package log

// Attribute keys follow a dotted hierarchy ("model.name", "data.samples") so
// that JSON output can be filtered by prefix.

// Model and operation context.
const (
	// ModelNameKey identifies the model, using the dispatch-table name.
	// Examples: "knn", "random_forest", "ridge"
	ModelNameKey = "model.name"

	// TrainerIDKey identifies a trainer held by the HTTP server.
	TrainerIDKey = "trainer.id"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	// Examples: "datasets", "benchmark", "viz"
	ComponentKey = "ml.component"

	// TaskKey is either "classification" or "regression".
	TaskKey = "ml.task"
)

// Data shape and provenance.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"

	// DroppedRowsKey counts rows removed for missing values.
	DroppedRowsKey = "data.dropped_rows"

	// DatasetKey is the registered dataset name, empty for ad-hoc URLs.
	DatasetKey = "dataset.name"

	// URLKey is the remote location a CSV was loaded from.
	URLKey = "dataset.url"

	// TargetKey is the name of the target column.
	TargetKey = "dataset.target"

	// TestSizeKey is the held-out fraction used by the split.
	TestSizeKey = "data.test_size"
)

// Performance and metrics.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	R2ScoreKey    = "metrics.r2_score"
	IterationKey  = "training.iteration"

	// CacheHitKey reports whether a dataset was served from the local cache.
	CacheHitKey = "cache.hit"
)

// Reproducibility and runs.
const (
	RandomSeedKey = "config.random_seed"

	// RunIDKey identifies one benchmark run.
	RunIDKey = "run.id"

	// RequestIDKey carries the X-Request-ID of an HTTP request.
	RequestIDKey = "http.request_id"
)

// Error context.
const (
	ErrorKey      = "error"
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"

	// HintKey carries user-facing hints attached with errors.WithHint.
	HintKey = "error.hint"
)

// Standard values.
const (
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationEvaluate = "evaluate"
	OperationLoad     = "load"
	OperationPlot     = "plot"
	OperationBench    = "benchmark"
)

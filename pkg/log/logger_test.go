package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mlerrors "github.com/YuminosukeSato/trainedml/pkg/errors"
)

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ToLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLoggerJSON(t *testing.T) {
	previous := GetLogger()
	defer SetLogger(previous)
	defer mlerrors.SetZerologWarnFunc(nil)

	var buf bytes.Buffer
	require.NoError(t, SetupLogger("info", "json", &buf))

	logger := GetLogger().With(ModelNameKey, "knn")
	logger.Debug("hidden")
	logger.Info("fitted", SamplesKey, 105)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "fitted", entry["message"])
	assert.Equal(t, "knn", entry[ModelNameKey])
	assert.Equal(t, 105.0, entry[SamplesKey])
	assert.Equal(t, "info", entry["level"])

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	assert.True(t, logger.Enabled(context.Background(), LevelWarn))
}

func TestSetupLoggerRejectsUnknownFormat(t *testing.T) {
	err := SetupLogger("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestErrorFieldsCarryStackAndHint(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerologForTest(&buf))

	err := mlerrors.NewUnknownModelError("svm", []string{"knn", "logistic"})
	logger.Error("model lookup failed", err, ModelNameKey, "svm")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "trainedml: unknown model: svm", entry[ErrorKey])
	assert.NotEmpty(t, entry[StacktraceKey])
	assert.Equal(t, []interface{}{"available models: knn, logistic"}, entry[HintKey])
	assert.Equal(t, "*errors.UnknownModelError", entry[ErrorTypeKey])
}

func TestStacktraceFoundBelowWrappers(t *testing.T) {
	base := mlerrors.New("disk full")
	tests := []struct {
		name string
		err  error
	}{
		{"bare", base},
		{"hinted", mlerrors.WithHint(base, "free some space")},
		{"wrapped and hinted", mlerrors.WithHint(mlerrors.Wrap(base, "save model"), "free some space")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := extractStacktrace(tt.err)
			assert.NotEmpty(t, st)
			assert.Contains(t, st, "TestStacktraceFoundBelowWrappers")
		})
	}
	assert.Empty(t, extractStacktrace(fmt.Errorf("plain")))
}

func TestWarningsRoutedToLogger(t *testing.T) {
	previous := GetLogger()
	defer SetLogger(previous)
	defer mlerrors.SetZerologWarnFunc(nil)

	var buf bytes.Buffer
	require.NoError(t, SetupLogger("warn", "json", &buf))

	mlerrors.Warn(mlerrors.NewConvergenceWarning("Lasso", 1000, "increase max_iter"))

	assert.Contains(t, buf.String(), "Lasso failed to converge")
	assert.Contains(t, buf.String(), `"type":"ConvergenceWarning"`)
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	contextLogger := testLogger.With(ModelNameKey, "ridge", ComponentKey, "benchmark")
	contextLogger.Debug("dropped")
	contextLogger.Error("failed", fmt.Errorf("boom"), RandomSeedKey, 7)

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.True(t, testLogger.ContainsField(ModelNameKey, "ridge"))
	assert.True(t, testLogger.ContainsField(ErrorKey, "boom"))
	assert.True(t, testLogger.ContainsField(RandomSeedKey, 7.0))
	assert.False(t, testLogger.ContainsMessage("dropped"))

	testLogger.Clear()
	assert.False(t, testLogger.ContainsMessage("failed"))
}

func TestPairsDanglingKey(t *testing.T) {
	got := pairs([]any{"a", 1, "b"})
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].key)
	assert.Nil(t, got[1].value)
}

func zerologForTest(w *bytes.Buffer) zerolog.Logger {
	return zerolog.New(w).Level(zerolog.DebugLevel)
}

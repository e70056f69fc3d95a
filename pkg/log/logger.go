package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	mlerrors "github.com/YuminosukeSato/trainedml/pkg/errors"
)

var (
	globalMu     sync.RWMutex
	globalLogger Logger = newZerologLogger(zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger())
)

// SetupLogger configures the global logger.
//
// level is one of "debug", "info", "warn", "error". format is "json" for
// JSON lines or "console" for human-readable output. Library warnings raised
// through errors.Warn are routed to the new logger.
func SetupLogger(level, format string, w io.Writer) error {
	lvl, err := ToLogLevel(level)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}

	var out io.Writer = w
	switch strings.ToLower(format) {
	case "", "json":
	case "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	default:
		return mlerrors.NewValidationError("log.format", "must be json or console", format)
	}

	zl := zerolog.New(out).Level(toZerologLevel(lvl)).With().Timestamp().Logger()
	SetLogger(newZerologLogger(zl))

	mlerrors.SetZerologWarnFunc(func(warning error) {
		ev := zl.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.Object("warning", obj)
		}
		ev.Msg(warning.Error())
	})
	return nil
}

// SetLogger replaces the global logger.
func SetLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// GetLogger returns the global logger.
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, mlerrors.NewValidationError("log.level", "must be debug, info, warn or error", level)
	}
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// zerologLogger adapts zerolog.Logger to the Logger interface.
type zerologLogger struct {
	zl zerolog.Logger
}

func newZerologLogger(zl zerolog.Logger) *zerologLogger {
	return &zerologLogger{zl: zl}
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return newZerologLogger(zl)
}

func (l *zerologLogger) Debug(msg string, fields ...any) { l.log(l.zl.Debug(), msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any)  { l.log(l.zl.Info(), msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any)  { l.log(l.zl.Warn(), msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...any) { l.log(l.zl.Error(), msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for _, kv := range pairs(fields) {
		if err, ok := kv.value.(error); ok {
			ctx = ctx.Str(kv.key, err.Error())
			continue
		}
		ctx = ctx.Interface(kv.key, kv.value)
	}
	return &zerologLogger{zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	want := toZerologLevel(level)
	return want >= l.zl.GetLevel() && want >= zerolog.GlobalLevel()
}

func (l *zerologLogger) log(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	for _, kv := range pairs(fields) {
		if err, ok := kv.value.(error); ok {
			ev = ev.AnErr(kv.key, err)
			if st := extractStacktrace(err); st != "" {
				ev = ev.Str(StacktraceKey, st)
			}
			if hints := extractHints(err); len(hints) > 0 {
				ev = ev.Strs(HintKey, hints)
			}
			ev = ev.Str(ErrorTypeKey, fmt.Sprintf("%T", unwrapAll(err)))
			continue
		}
		ev = ev.Interface(kv.key, kv.value)
	}
	ev.Msg(msg)
}

type keyValue struct {
	key   string
	value any
}

// pairs turns alternating key/value fields into pairs. A leading error is
// keyed as "error". A dangling key gets a nil value.
func pairs(fields []any) []keyValue {
	if len(fields) == 0 {
		return nil
	}
	var out []keyValue
	if err, ok := fields[0].(error); ok {
		out = append(out, keyValue{key: ErrorKey, value: err})
		fields = fields[1:]
	}
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		var value any
		if i+1 < len(fields) {
			value = fields[i+1]
		}
		out = append(out, keyValue{key: key, value: value})
	}
	return out
}

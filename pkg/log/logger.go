package log

import (
	"io"
	"log/slog"
)

// SetupLogger configures the default slog logger with a JSON handler that
// also emits cockroachdb/errors stack traces for the "error" attribute.
func SetupLogger(w io.Writer, loglevel string) {
	level, _ := ParseLevel(loglevel)
	ops := slog.HandlerOptions{
		AddSource: level == LevelDebug,
		Level:     slog.Level(level),
	}
	handler := slog.NewJSONHandler(w, &ops)
	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

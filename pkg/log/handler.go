package log

import (
	"context"
	"log/slog"

	crdb "github.com/cockroachdb/errors"

	"github.com/YuminosukeSato/churnsel/pkg/errors"
)

// ErrFmtHandler is a slog handler that expands the "error" attribute: the
// cockroachdb/errors stack trace is added under "stacktrace", and a
// StageError anywhere in the chain contributes its stage, model, config and
// fold as separate attributes.
type ErrFmtHandler struct {
	handler slog.Handler
}

// WrapByErrFmtHandler wraps handler with ErrFmtHandler.
func WrapByErrFmtHandler(handler slog.Handler) slog.Handler {
	return &ErrFmtHandler{handler: handler}
}

func (eh *ErrFmtHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return eh.handler.Enabled(ctx, l)
}

func (eh *ErrFmtHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		err, _ = attr.Value.Any().(error)
		return false
	})
	if err == nil {
		return eh.handler.Handle(ctx, r)
	}

	if st := extractStacktrace(err); st != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, st))
	}
	var stage *errors.StageError
	if errors.As(err, &stage) {
		r.AddAttrs(slog.String(StageKey, stage.Stage))
		if stage.Model != "" {
			r.AddAttrs(slog.String(ModelNameKey, stage.Model))
		}
		if stage.Config != "" {
			r.AddAttrs(slog.String(ConfigKey, stage.Config))
		}
		if stage.Fold >= 0 {
			r.AddAttrs(slog.Int(FoldKey, stage.Fold))
		}
	}
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

// extractStacktrace returns the first safe detail, which for errors built
// with WithStack is the formatted stack.
func extractStacktrace(err error) string {
	for e := err; e != nil; e = crdb.UnwrapOnce(e) {
		if details := crdb.GetSafeDetails(e).SafeDetails; len(details) > 0 && details[0] != "" {
			return details[0]
		}
	}
	return ""
}

package log

import (
	"context"
	"log/slog"

	cerrors "github.com/cockroachdb/errors"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// ErrFmtHandler decorates records that carry an ErrAttrKey error with the
// captured stack, a stable error code and, for missing artifacts, the hint
// telling the operator what to run.
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
	var found error
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		found, _ = attr.Value.Any().(error)
		return false
	})
	if found == nil {
		return eh.handler.Handle(ctx, r)
	}

	if st := extractStacktrace(found); st != "" {
		r.AddAttrs(slog.String(StacktraceAttrKey, st))
	}
	code, hint := classify(found)
	r.AddAttrs(slog.String(ErrorCodeKey, code))
	if hint != "" {
		r.AddAttrs(slog.String(SuggestionKey, hint))
	}
	return eh.handler.Handle(ctx, r)
}

func (eh *ErrFmtHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithAttrs(attrs)}
}

func (eh *ErrFmtHandler) WithGroup(g string) slog.Handler {
	return &ErrFmtHandler{handler: eh.handler.WithGroup(g)}
}

// classify maps the typed errors of pkg/errors to a short code.
func classify(err error) (code, hint string) {
	var (
		notFound   *errors.NotFoundError
		invalid    *errors.DataValidationError
		notFitted  *errors.NotFittedError
		dimension  *errors.DimensionError
		validation *errors.ValidationError
		value      *errors.ValueError
		numerical  *errors.NumericalInstabilityError
		panicked   *errors.PanicError
	)
	switch {
	case errors.As(err, &notFound):
		return "not_found", notFound.Hint
	case errors.As(err, &invalid):
		return "data_validation", ""
	case errors.As(err, &notFitted):
		return "not_fitted", ""
	case errors.As(err, &dimension):
		return "dimension", ""
	case errors.As(err, &validation):
		return "invalid_setting", ""
	case errors.As(err, &value):
		return "invalid_value", ""
	case errors.As(err, &numerical):
		return "numerical", ""
	case errors.As(err, &panicked):
		return "panic", ""
	case errors.Is(err, errors.ErrTrialPruned):
		return "pruned", ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "cancelled", ""
	default:
		return "internal", ""
	}
}

// extractStacktrace returns the first safe detail of err, which for errors
// built with WithStack is the captured stack.
func extractStacktrace(err error) string {
	safeDetails := cerrors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

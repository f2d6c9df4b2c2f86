package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/agriml/pkg/errors"
)

// ZerologProvider is the default LoggerProvider. Every logger it hands out
// shares the provider's level, so SetLevel affects loggers created earlier.
type ZerologProvider struct {
	base  zerolog.Logger
	level atomic.Int64
}

type providerOptions struct {
	writers []io.Writer
	json    bool
}

// ProviderOption configures NewZerologProvider.
type ProviderOption func(*providerOptions)

// WithWriter adds an output. When no writer is given the provider writes to stderr.
func WithWriter(w io.Writer) ProviderOption {
	return func(o *providerOptions) {
		o.writers = append(o.writers, w)
	}
}

// WithJSON emits one JSON object per line instead of the human-readable console format.
func WithJSON() ProviderOption {
	return func(o *providerOptions) {
		o.json = true
	}
}

// NewZerologProvider creates a provider logging at or above level.
func NewZerologProvider(level Level, opts ...ProviderOption) *ZerologProvider {
	o := &providerOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.writers) == 0 {
		o.writers = []io.Writer{os.Stderr}
	}

	outs := make([]io.Writer, 0, len(o.writers))
	for _, w := range o.writers {
		if o.json {
			outs = append(outs, w)
			continue
		}
		outs = append(outs, zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: w != os.Stderr})
	}

	var out io.Writer = outs[0]
	if len(outs) > 1 {
		out = zerolog.MultiLevelWriter(outs...)
	}

	p := &ZerologProvider{
		base: zerolog.New(out).With().Timestamp().Logger(),
	}
	p.level.Store(int64(level))
	return p
}

// GetLogger implements LoggerProvider.
func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{p: p, zl: p.base}
}

// GetLoggerWithName implements LoggerProvider.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{p: p, zl: p.base.With().Str(ComponentKey, name).Logger()}
}

// SetLevel implements LoggerProvider.
func (p *ZerologProvider) SetLevel(level Level) {
	p.level.Store(int64(level))
}

// RouteWarnings sends pkg/errors warnings through this provider.
func (p *ZerologProvider) RouteWarnings() {
	logger := p.GetLoggerWithName("warnings")
	errors.SetZerologWarnFunc(func(w error) {
		logger.Warn(w.Error(), "warning", w)
	})
}

func (p *ZerologProvider) enabled(level Level) bool {
	return int64(level) >= p.level.Load()
}

type zerologLogger struct {
	p  *ZerologProvider
	zl zerolog.Logger
}

func (l *zerologLogger) Debug(msg string, fields ...any) { l.write(LevelDebug, msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any)  { l.write(LevelInfo, msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any)  { l.write(LevelWarn, msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...any) { l.write(LevelError, msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		ctx = ctx.Interface(fmt.Sprint(fields[i]), fields[i+1])
	}
	return &zerologLogger{p: l.p, zl: ctx.Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.p.enabled(level)
}

func (l *zerologLogger) write(level Level, msg string, fields []any) {
	if !l.p.enabled(level) {
		return
	}
	ev := l.zl.WithLevel(toZerologLevel(level))
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Err(err)
			if st := extractStacktrace(err); st != "" {
				ev = ev.Str(StacktraceAttrKey, st)
			}
			fields = fields[1:]
		}
	}
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			ev = ev.Interface("!BADKEY", fields[i])
			break
		}
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			ev = ev.Object(key, v)
		case error:
			ev = ev.AnErr(key, v)
		case time.Duration:
			ev = ev.Dur(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level >= LevelError:
		return zerolog.ErrorLevel
	case level >= LevelWarn:
		return zerolog.WarnLevel
	case level >= LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

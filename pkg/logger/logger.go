// Package logger wraps zerolog with request-scoped fields carried on the context.
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/freshmarket/storefront-backend/pkg/env"
	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	// Instance is stamped on every entry when set (dyno or pod name).
	Instance  string
	Level     zerolog.Level
	WarnStack bool
	Output    io.Writer
}

// Logger emits JSON lines enriched with the fields stored on the context.
type Logger struct {
	root      zerolog.Logger
	warnStack bool
}

type fieldsKey struct{}

// field keys whose values are customer contact details.
var maskedKeys = map[string]struct{}{
	"phone":         {},
	"contact_phone": {},
}

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	ctx := zerolog.New(writerFor(opts.Output)).With().Timestamp().Str("service", opts.ServiceName)
	if opts.Instance != "" {
		ctx = ctx.Str("instance", opts.Instance)
	}
	return &Logger{root: ctx.Logger().Level(level), warnStack: opts.WarnStack}
}

func writerFor(out io.Writer) io.Writer {
	if out == nil {
		out = os.Stdout
	}
	if strings.EqualFold(env.Get("LOG_FORMAT", "json"), "console") {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: env.Bool("LOG_NO_COLOR", false)}
	}
	return out
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(raw string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// MaskPhone keeps the last four digits of a phone number.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

func contextFields(ctx context.Context) map[string]any {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey{}).(map[string]any)
	return fields
}

// WithFields returns a context whose log entries carry the given fields.
// Earlier values for the same key are replaced.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(fields) == 0 {
		return ctx
	}
	prev := contextFields(ctx)
	merged := make(map[string]any, len(prev)+len(fields))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range fields {
		if s, ok := v.(string); ok {
			if _, mask := maskedKeys[k]; mask {
				v = MaskPhone(s)
			}
		}
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithCustomerID(ctx context.Context, customerID string) context.Context {
	return l.WithField(ctx, "customer_id", customerID)
}

func (l *Logger) WithOrderID(ctx context.Context, orderID string) context.Context {
	return l.WithField(ctx, "order_id", orderID)
}

func (l *Logger) emit(ctx context.Context, ev *zerolog.Event, msg string) {
	if fields := contextFields(ctx); len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	l.emit(ctx, l.root.Debug(), msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	l.emit(ctx, l.root.Info(), msg)
}

// Warn logs at warn level; a stack is attached only when WarnStack is set.
func (l *Logger) Warn(ctx context.Context, msg string) {
	ev := l.root.Warn()
	if l.warnStack {
		ev = ev.Str("stack", string(debug.Stack()))
	}
	l.emit(ctx, ev, msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error) {
	ev := l.root.Error().Str("stack", string(debug.Stack()))
	if err != nil {
		ev = ev.Err(err)
	}
	l.emit(ctx, ev, msg)
}

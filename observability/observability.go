// Package observability defines the logging and tracing hooks used across
// the editor pipeline. All components accept a Logger and default to the
// no-op implementation, so instrumentation is strictly opt-in.
package observability

import (
	"context"
	"log/slog"
)

// Logger is the structured logging contract injected into the editor
// surface, the render pipeline, and the export engine.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is a typed key/value pair attached to a log entry.
type Field interface {
	Key() string
	Value() interface{}
}

type stringField struct{ key, val string }

func (f stringField) Key() string        { return f.key }
func (f stringField) Value() interface{} { return f.val }

type intField struct {
	key string
	val int
}

func (f intField) Key() string        { return f.key }
func (f intField) Value() interface{} { return f.val }

type int64Field struct {
	key string
	val int64
}

func (f int64Field) Key() string        { return f.key }
func (f int64Field) Value() interface{} { return f.val }

type float64Field struct {
	key string
	val float64
}

func (f float64Field) Key() string        { return f.key }
func (f float64Field) Value() interface{} { return f.val }

type boolField struct {
	key string
	val bool
}

func (f boolField) Key() string        { return f.key }
func (f boolField) Value() interface{} { return f.val }

type errorField struct {
	key string
	err error
}

func (f errorField) Key() string        { return f.key }
func (f errorField) Value() interface{} { return f.err }

func String(key, value string) Field          { return stringField{key, value} }
func Int(key string, value int) Field         { return intField{key, value} }
func Int64(key string, value int64) Field     { return int64Field{key, value} }
func Float64(key string, value float64) Field { return float64Field{key, value} }
func Bool(key string, value bool) Field       { return boolField{key, value} }
func Error(key string, err error) Field       { return errorField{key, err} }

// NopLogger discards everything. It is the default for every component.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// SlogLogger adapts a *slog.Logger to the Logger contract. The server
// binary uses it; library code keeps the nop default.
type SlogLogger struct {
	L *slog.Logger
}

// NewSlogLogger wraps l, or slog.Default() when l is nil.
func NewSlogLogger(l *slog.Logger) SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return SlogLogger{L: l}
}

func slogArgs(fields []Field) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key(), f.Value())
	}
	return args
}

func (s SlogLogger) Debug(msg string, fields ...Field) { s.L.Debug(msg, slogArgs(fields)...) }
func (s SlogLogger) Info(msg string, fields ...Field)  { s.L.Info(msg, slogArgs(fields)...) }
func (s SlogLogger) Warn(msg string, fields ...Field)  { s.L.Warn(msg, slogArgs(fields)...) }
func (s SlogLogger) Error(msg string, fields ...Field) { s.L.Error(msg, slogArgs(fields)...) }
func (s SlogLogger) With(fields ...Field) Logger {
	return SlogLogger{L: s.L.With(slogArgs(fields)...)}
}

// Tracer provides tracing hooks around long-running operations
// (document load, page render, export).
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is one traced operation.
type Span interface {
	SetTag(key string, value interface{})
	SetError(err error)
	Finish()
}

type nopTracer struct{}

func (nopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, nopSpan{}
}

// NopTracer returns a tracer that does nothing.
func NopTracer() Tracer { return nopTracer{} }

type nopSpan struct{}

func (nopSpan) SetTag(string, interface{}) {}
func (nopSpan) SetError(error)             {}
func (nopSpan) Finish()                    {}

// Standard metric names emitted around the pipeline.
const (
	MetricLoadTime      = "editor.load.duration"
	MetricPageCount     = "editor.pages.count"
	MetricElementCount  = "editor.elements.count"
	MetricRenderTime    = "editor.render.duration"
	MetricRenderMisses  = "editor.render.cache_misses"
	MetricExportTime    = "editor.export.duration"
	MetricExportedBytes = "editor.export.bytes"
)

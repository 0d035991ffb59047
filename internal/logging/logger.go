// Package logging is the structured-logging surface of authkeeper. Components
// depend on Logger; cmd wires a slog (default) or zap backend.
package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Logger takes a message plus alternating key/value pairs:
//
//	log.Info(ctx, "login succeeded", "user_id", id, "record_id", rid)
//
// When ctx carries a sampled span, trace_id and span_id are appended.
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}

// Nop discards everything.
type Nop struct{}

func (Nop) Info(context.Context, string, ...any)  {}
func (Nop) Warn(context.Context, string, ...any)  {}
func (Nop) Error(context.Context, string, ...any) {}
func (n Nop) With(...any) Logger                  { return n }

// withTrace appends the span identifiers found in ctx to args.
func withTrace(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return args
	}
	return append(args, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}

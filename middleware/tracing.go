package middleware

import (
	"context"
)

type traceKey struct{}

// WithTrace returns a copy of ctx carrying fields for TracingMiddleware,
// typically a request or trace id. Fields from an outer call are kept
// unless overridden.
func WithTrace(ctx context.Context, fields map[string]any) context.Context {
	merged := make(map[string]any)
	if prev, ok := ctx.Value(traceKey{}).(map[string]any); ok {
		for k, v := range prev {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, traceKey{}, merged)
}

// TracingMiddleware copies the fields stored with WithTrace onto every
// statement, so that middleware further down logs them.
type TracingMiddleware struct{}

func NewTracing() *TracingMiddleware {
	return &TracingMiddleware{}
}

func (m *TracingMiddleware) Name() string {
	return "Tracing"
}

func (m *TracingMiddleware) Process(ctx context.Context, st *Statement, next StatementFunc) error {
	fields, _ := ctx.Value(traceKey{}).(map[string]any)
	if len(fields) > 0 {
		if st.Fields == nil {
			st.Fields = make(map[string]any, len(fields))
		}
		for k, v := range fields {
			st.Fields[k] = v
		}
	}
	return next(ctx, st)
}

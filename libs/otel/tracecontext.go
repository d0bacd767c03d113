package otelx

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

// W3C trace context is used directly rather than the global propagator, so
// outbox rows keep their parent even when tracing export is disabled.
var traceContext = propagation.TraceContext{}

// TraceContextStrings returns the traceparent and tracestate headers for the
// span in ctx, both empty when ctx carries no valid span.
func TraceContextStrings(ctx context.Context) (traceparent string, tracestate string) {
	carrier := propagation.MapCarrier{}
	traceContext.Inject(ctx, carrier)
	return carrier.Get("traceparent"), carrier.Get("tracestate")
}

// ContextWithTraceContext restores a remote span context captured by
// TraceContextStrings.
func ContextWithTraceContext(ctx context.Context, traceparent string, tracestate string) context.Context {
	if traceparent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": traceparent}
	if tracestate != "" {
		carrier.Set("tracestate", tracestate)
	}
	return traceContext.Extract(ctx, carrier)
}

/*
Package tracing provides lightweight request tracing for the gateway.

Spans follow OpenTelemetry concepts with a minimal zap-backed
implementation: trace context propagates via X-Trace-ID and X-Span-ID
headers, completed spans are collected on a buffered channel and logged
asynchronously.

	tracer := tracing.New("gateway", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "navigate")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing

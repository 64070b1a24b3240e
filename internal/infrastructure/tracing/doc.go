/*
Package tracing provides request tracing for debugging production issues.

# Overview

This package implements lightweight tracing to follow a request through the
API layer and the session domain. It follows OpenTelemetry concepts but with
a minimal implementation tailored to a single service.

# Features

- Span creation with parent-child relationships
- Trace adoption from X-Trace-ID / X-Span-ID request headers
- Automatic trace ID generation
- HTTP middleware for automatic instrumentation
- Emission into the structured log stream
- Low overhead with buffered span collection

# Usage

	// Create tracer
	tracer := tracing.New("backend", logger)

	// HTTP middleware
	router.Use(tracing.HTTPMiddleware(tracer))

	// Manual span creation
	span, ctx := tracer.StartSpan(ctx, "operation")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

	span.SetTag("key", "value")

# Performance

The tracing system is designed for minimal overhead:
- Buffered span collection (1000 spans)
- Async span processing
- Spans dropped, never blocking, when the buffer is full
*/
package tracing

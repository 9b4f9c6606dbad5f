/*
Package tracing records lightweight spans for HTTP requests and coordination
service calls.

Trace context travels in the X-Trace-ID and X-Span-ID headers. Finished spans
are buffered and written to the structured log by a single collector goroutine.

	tracer := tracing.New("pkgplane", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "coordination.read")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
*/
package tracing

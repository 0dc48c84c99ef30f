/*
Package tracing provides lightweight request tracing.

# Overview

Each HTTP request gets a trace ID (taken from X-Trace-ID when the caller
sends one) and a span. Handlers open child spans around slow operations
such as a shell connect or a provisioning submit. Finished spans are logged
by a background collector: failures at warn, everything else at debug.

# Usage

	tracer := tracing.New("homepanel", logger.Logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(c.Request.Context(), "shell.connect")
	defer span.End()
	span.SetTag("host", req.Host)

The trace ID is echoed back in the X-Trace-ID response header so operators
can correlate a client report with server logs.
*/
package tracing

// Package middleware wraps section generation in the backend's workers.
//
// A [Middleware] receives the request being generated and the next
// handler. Chains are built with [Chain]; the first middleware is the
// outermost:
//
//	chain := middleware.Chain(
//	    middleware.Logging(logger),
//	    middleware.Recover(logger),
//	    middleware.Timeout(30*time.Second),
//	)
//
// # Built-in Middleware
//
//   - [Logging] logs each generation and its outcome
//   - [Recover] converts generator panics into errors
//   - [Timeout] bounds generation time
//   - [Tracing] opens an OpenTelemetry span per generation
//   - [Metrics] records generation duration and count
//
// A generation error never fails the job: the backend answers the request
// with an empty response.
package middleware

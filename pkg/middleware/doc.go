// Package middleware provides observability middleware for harness
// dispatchers.
//
// # OpenTelemetry
//
// OpenTelemetry wraps every dispatched callback in a span named
// "vharness.dispatch":
//
//	h := harness.New(eng, harness.WithMiddleware(
//	    middleware.OpenTelemetry(middleware.WithTracerName("ui-tests")),
//	))
//
// The tracer comes from the global provider unless WithTracerProvider is
// given.
//
// # Prometheus Metrics
//
// Prometheus returns a Metrics value that counts and times dispatches as a
// middleware and counts render events as a subscriber. Register it as both:
//
//	m := middleware.Prometheus(middleware.WithRegistry(reg))
//	h := harness.New(eng,
//	    harness.WithMiddleware(m),
//	    harness.WithSubscriber(m),
//	)
//
// Every Metrics value registers its own collectors, on a fresh registry by
// default.
package middleware

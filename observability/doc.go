// Package observability traces and measures object creation.
//
// A CreationObserver installed on a factory opens one span per created
// object, nested along the dependency chain, and records creation counts
// and durations:
//
//	tp, _ := observability.InitTracer(ctx, cfg.Tracer("orders", "1.0.0", "production"))
//	mp, _ := observability.InitMeter(ctx, cfg.Meter("orders", "1.0.0", "production"))
//	obs, _ := observability.NewCreationObserver(tp, mp)
//	f.AddObserver(obs)
//
// Operation wraps coarse phases such as pre-instantiation and shutdown in
// a span with the same metrics. CheckHealth aggregates HealthCheckers into
// a ServiceHealth.
package observability

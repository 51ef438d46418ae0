// Package di is a typed facade over factory.Factory for wiring code that
// prefers constructors and generics to hand-built descriptors.
//
// Provide registers a constructor whose parameters are resolved from the
// factory by type; the returned object is managed like any other bean, so
// it takes part in circular-reference handling, hooks and ordered
// destruction.
//
// # Registration
//
//	di.Provide[*OrderService](f, "orderService", NewOrderService,
//	    di.WithMode(di.Lazy),
//	    di.WithRetryPolicy(di.DefaultRetryPolicy()),
//	)
//
// # Resolution
//
//	svc := di.MustResolve[*OrderService](ctx, f, "orderService")
//	all, err := di.ResolveAll[Handler](ctx, f)
package di

// Package bootstrap runs a factory as an application.
//
// An App loads nothing by itself: it takes a validated config embedding
// config.Settings, builds the logger and the factory from it, and then
// drives the lifecycle:
//
//  1. observability: creation spans and metrics when enabled
//  2. configure: the definitions file, then OnConfigure callbacks
//  3. pre-instantiation of non-lazy singletons
//  4. component start in dependency order, then OnStart and OnReady hooks
//  5. shutdown: OnStop hooks, component stop in reverse order, DestroyAll
//
// # Quick Start
//
//	cfg, err := config.LoadSettings("orders")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app, err := bootstrap.NewApp(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*config.Settings]) error {
//	    return di.Provide[*OrderService](a.Factory, "orderService", NewOrderService)
//	})
//	if err := app.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package bootstrap

package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/beankit/component"
	"github.com/kbukum/beankit/config"
	"github.com/kbukum/beankit/di"
	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/inspect"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/observability"
	"github.com/kbukum/beankit/validation"
)

// App owns a factory and drives it through the application lifecycle.
// The type parameter C is the config type; any struct embedding
// config.Settings satisfies Config.
//
// Example:
//
//	app, err := bootstrap.NewApp(&myConfig)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*MyConfig]) error {
//	    return di.Provide[*OrderService](a.Factory, "orderService", NewOrderService)
//	})
//	app.Run(context.Background())
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Factory    *factory.Factory
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App[C]) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook

	opts           *appOptions
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	shutdowns      []func(context.Context) error
	operation      *observability.Operation
	inspect        *inspect.Server
}

// NewApp creates an application from a typed config. It applies defaults,
// validates the config, initializes the logger and creates the factory
// with the infrastructure objects registered.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	s := cfg.GetSettings()
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            s.Name,
		Version:         s.Version,
		Cfg:             cfg,
		gracefulTimeout: 15 * time.Second,
		opts:            o,
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	// An injected logger serves every subsystem; otherwise each subsystem
	// takes its own logger so logging.levels applies.
	factoryLog, componentLog := o.logger, o.logger
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(s.Logging)
		app.Logger = logger.GetGlobalLogger()
		factoryLog = logger.Get("factory")
	}

	fopts := []factory.Option{
		factory.WithLogger(factoryLog),
		factory.WithCircularReferences(s.AllowCircularReferences),
		factory.WithRawInjection(s.AllowRawInjection),
		factory.WithOverriding(s.AllowOverriding),
	}
	app.Factory = factory.New(append(fopts, o.factoryOpts...)...)
	app.Components = component.NewRegistry(component.WithLogger(componentLog))
	app.Summary = NewSummary(s.Name, s.Version, o.summaryOut)
	app.operation = observability.NewOperation(nil, nil, app.Logger)

	if err := app.registerInfrastructure(); err != nil {
		return nil, err
	}
	return app, nil
}

// Settings returns the base settings of the config.
func (a *App[C]) Settings() *config.Settings {
	return a.Cfg.GetSettings()
}

func (a *App[C]) registerInfrastructure() error {
	objects := []struct {
		name string
		obj  any
	}{
		{di.Infra.Settings, a.Settings()},
		{di.Infra.Logger, a.Logger},
		{di.Infra.Validator, validation.Engine()},
		{di.Infra.Factory, a.Factory},
		{di.Infra.Components, a.Components},
	}
	for _, o := range objects {
		if err := di.Instance(a.Factory, o.name, o.obj); err != nil {
			return fmt.Errorf("registering %s: %w", o.name, err)
		}
	}
	return nil
}

// OnConfigure registers a callback that adds managed objects to the
// factory. Callbacks run after the definitions file is loaded and before
// pre-instantiation.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck verifies that every component reporting health is up.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	sh := a.Health(ctx)
	var unhealthy []string
	for _, h := range sh.Components {
		if h.Status != observability.HealthStatusUp {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Health aggregates the health of the components reporting it.
func (a *App[C]) Health(ctx context.Context) *observability.ServiceHealth {
	return observability.CheckHealth(ctx, a.Name, a.Version, a.Components.Checkers())
}

// Run executes the full lifecycle for long-running services:
// Observability → Configure → Pre-instantiate → Start components →
// OnStart hooks → ReadyCheck → OnReady hooks → block on signal → Shutdown.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		a.abort()
		return err
	}

	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)

	return a.stop()
}

// RunTask executes a finite task with the full startup and shutdown
// sequence. The task context is canceled on SIGINT/SIGTERM.
//
//	app.RunTask(ctx, func(ctx context.Context) error {
//	    return di.MustResolve[*Importer](ctx, app.Factory, "importer").Import(ctx)
//	})
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		a.abort()
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			a.Logger.Info("Received signal, canceling task", logger.Fields("signal", sig.String()))
			cancel()
		case <-taskCtx.Done():
		}
	}()

	taskErr := task(taskCtx)

	if stopErr := a.stop(); stopErr != nil {
		if taskErr != nil {
			return taskErr
		}
		return stopErr
	}
	return taskErr
}

// Start runs the startup sequence without blocking. Pair it with Shutdown
// when the caller manages the process lifecycle itself.
func (a *App[C]) Start(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		a.abort()
		return err
	}
	return nil
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	s := a.Settings()

	a.Logger.Info("Starting application", logger.Fields(
		logger.FieldService, a.Name,
		"version", a.Version,
		"environment", s.Environment,
	))

	if err := a.initObservability(ctx); err != nil {
		return fmt.Errorf("observability setup failed: %w", err)
	}

	if err := a.configure(ctx); err != nil {
		return fmt.Errorf("configuration failed: %w", err)
	}

	if s.PreInstantiate {
		err := a.operation.Run(ctx, observability.SpanPreInstantiate, a.Factory.PreInstantiateSingletons)
		if err != nil {
			return fmt.Errorf("pre-instantiation failed: %w", err)
		}
	}

	if s.Inspect.Enabled {
		if err := a.registerInspect(); err != nil {
			return err
		}
	}

	if err := a.operation.Run(ctx, observability.SpanStart, a.startComponents); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}

	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}

	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Summary.SetStartupDuration(time.Since(start))
	a.DisplaySummary(ctx)
	return nil
}

// initObservability installs the creation observer. Providers passed as
// options are used as is; otherwise OTLP exporters are built from the
// settings when tracing or metrics are enabled.
func (a *App[C]) initObservability(ctx context.Context) error {
	s := a.Settings()
	obs := s.Observability

	a.tracerProvider = a.opts.tracerProvider
	if a.tracerProvider == nil && obs.TracingEnabled {
		tp, err := observability.InitTracer(ctx, obs.Tracer(a.Name, a.Version, s.Environment))
		if err != nil {
			return err
		}
		a.tracerProvider = tp
		a.shutdowns = append(a.shutdowns, tp.Shutdown)
	}

	a.meterProvider = a.opts.meterProvider
	if a.meterProvider == nil && obs.MetricsEnabled {
		mp, err := observability.InitMeter(ctx, obs.Meter(a.Name, a.Version, s.Environment))
		if err != nil {
			return err
		}
		a.meterProvider = mp
		a.shutdowns = append(a.shutdowns, mp.Shutdown)
	}

	if a.tracerProvider == nil && a.meterProvider == nil {
		return nil
	}

	observer, err := observability.NewCreationObserver(a.tracerProvider, a.meterProvider)
	if err != nil {
		return err
	}
	a.Factory.AddObserver(observer)

	var metrics *observability.Metrics
	if a.meterProvider != nil {
		if metrics, err = observability.NewMetrics(a.meterProvider.Meter(observability.InstrumentationName)); err != nil {
			return err
		}
		if err := di.Instance(a.Factory, di.Infra.MeterProvider, a.meterProvider); err != nil {
			return err
		}
	}
	if a.tracerProvider != nil {
		if err := di.Instance(a.Factory, di.Infra.TracerProvider, a.tracerProvider); err != nil {
			return err
		}
	}
	a.operation = observability.NewOperation(a.tracerProvider, metrics, a.Logger)
	return di.Instance(a.Factory, di.Infra.Observer, observer)
}

// configure loads the definitions file and runs the configure callbacks.
func (a *App[C]) configure(ctx context.Context) error {
	if path := a.Settings().DefinitionsFile; path != "" {
		defs, err := config.LoadDefinitions(path)
		if err != nil {
			return err
		}
		if err := defs.Validate(); err != nil {
			return err
		}
		if err := defs.Register(a.Factory); err != nil {
			return err
		}
		a.Logger.Info("Definitions loaded", logger.Fields("file", path, logger.FieldCount, len(defs.Beans)))
	}

	if len(a.onConfigure) == 0 {
		return nil
	}
	a.Logger.Debug("Running configuration callbacks", logger.Fields(logger.FieldCount, len(a.onConfigure)))
	for _, fn := range a.onConfigure {
		if err := fn(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (a *App[C]) registerInspect() error {
	s := a.Settings()
	a.inspect = inspect.NewServer(s.Inspect.Addr, a.Factory, a.Health, a.Logger)
	return di.Instance(a.Factory, di.Infra.Inspect, a.inspect)
}

// startComponents discovers the singletons implementing component.Component
// and starts them in dependency order.
func (a *App[C]) startComponents(ctx context.Context) error {
	n, err := a.Components.Discover(ctx, a.Factory)
	if err != nil {
		return err
	}
	a.Logger.Debug("Components discovered", logger.Fields(logger.FieldCount, n))
	return a.Components.StartAll(ctx)
}

// DisplaySummary prints the startup summary with live health.
func (a *App[C]) DisplaySummary(ctx context.Context) {
	a.Summary.Display(ctx, a.Factory, a.Components, a.Health(ctx))
}

// WaitForSignal blocks until an OS interrupt/term signal or context cancellation.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal, graceful shutdown starting", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown performs graceful shutdown. Use when managing your own lifecycle.
func (a *App[C]) Shutdown(ctx context.Context) error {
	return a.stop()
}

// abort releases what a failed startup already acquired.
func (a *App[C]) abort() {
	if err := a.stop(); err != nil {
		a.Logger.Warn("Cleanup after failed startup reported errors", logger.Fields(logger.FieldError, err.Error()))
	}
}

// stop runs the OnStop hooks, stops the components in reverse start order,
// destroys the singletons and shuts down owned telemetry providers, all
// within the graceful timeout.
func (a *App[C]) stop() error {
	a.Logger.Info("Shutting down application", logger.Fields("timeout", a.gracefulTimeout.String()))

	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	record := func(msg string, err error) {
		if err == nil {
			return
		}
		a.Logger.Error(msg, logger.Fields(logger.FieldError, err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}

	record("OnStop hook error", runHooks(ctx, a.onStop))

	record("Shutdown completed with errors", a.operation.Run(ctx, observability.SpanShutdown, func(ctx context.Context) error {
		compErr := a.Components.StopAll(ctx)
		if err := a.Factory.DestroyAll(ctx); err != nil {
			if compErr == nil {
				return err
			}
			a.Logger.Error("Singleton destruction error", logger.Fields(logger.FieldError, err.Error()))
		}
		return compErr
	}))

	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		record("Telemetry shutdown error", a.shutdowns[i](ctx))
	}
	a.shutdowns = nil

	a.Logger.Info("Application shutdown complete")
	return shutdownErr
}

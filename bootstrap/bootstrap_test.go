package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/go-playground/validator/v10"

	"github.com/kbukum/beankit/config"
	"github.com/kbukum/beankit/di"
	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/inspect"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/observability"
	"github.com/kbukum/beankit/testutil"
	"github.com/kbukum/beankit/typeinfo"
)

type database struct {
	ev       *testutil.Recorder
	startErr error
}

func (d *database) Start(context.Context) error {
	d.ev.Add("start:db")
	return d.startErr
}

func (d *database) Stop(context.Context) error {
	d.ev.Add("stop:db")
	return nil
}

type server struct {
	ev *testutil.Recorder
	db *database
}

func (s *server) Start(context.Context) error {
	s.ev.Add("start:server")
	return nil
}

func (s *server) Stop(context.Context) error {
	s.ev.Add("stop:server")
	return nil
}

// resource is not a component; it is closed when singletons are destroyed.
type resource struct{ ev *testutil.Recorder }

func (r *resource) Close() error { r.ev.Add("close:resource"); return nil }

func newTestSettings(name string) *config.Settings {
	return &config.Settings{
		Name:                    name,
		Version:                 "1.0.0",
		Environment:             "development",
		AllowCircularReferences: true,
		AllowOverriding:         true,
		PreInstantiate:          true,
	}
}

func newTestApp(t *testing.T, s *config.Settings, opts ...Option) *App[*config.Settings] {
	t.Helper()
	opts = append([]Option{WithLogger(logger.Nop()), WithSummaryWriter(&bytes.Buffer{})}, opts...)
	app, err := NewApp(s, opts...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func provideGraph(ev *testutil.Recorder, dbStartErr error) func(context.Context, *App[*config.Settings]) error {
	return func(_ context.Context, a *App[*config.Settings]) error {
		f := a.Factory
		// The server is declared first but depends on the database.
		if err := di.Provide[*server](f, "server", func(db *database) *server { return &server{ev: ev, db: db} }); err != nil {
			return err
		}
		if err := di.Provide[*database](f, "database", func() *database { return &database{ev: ev, startErr: dbStartErr} }); err != nil {
			return err
		}
		return di.Provide[*resource](f, "resource", func() *resource { return &resource{ev: ev} })
	}
}

func TestNewApp(t *testing.T) {
	s := newTestSettings("orders")
	app := newTestApp(t, s)
	ctx := context.Background()

	if app.Name != "orders" || app.Version != "1.0.0" {
		t.Errorf("unexpected identity %s %s", app.Name, app.Version)
	}
	if app.Factory == nil || app.Components == nil || app.Summary == nil {
		t.Fatal("expected factory, components and summary")
	}
	if got := di.MustResolve[*config.Settings](ctx, app.Factory, di.Infra.Settings); got != s {
		t.Error("expected the settings to be registered")
	}
	if _, err := di.Resolve[*validator.Validate](ctx, app.Factory, di.Infra.Validator); err != nil {
		t.Errorf("expected the validator to be registered: %v", err)
	}
	if got := di.MustResolve[*factory.Factory](ctx, app.Factory, di.Infra.Factory); got != app.Factory {
		t.Error("expected the factory to be registered under its own name")
	}
	if s.Logging.ServiceName != "orders" {
		t.Errorf("expected defaults to be applied, got %+v", s.Logging)
	}
}

func TestNewAppInvalidConfig(t *testing.T) {
	s := newTestSettings("orders")
	s.Environment = "qa"
	if _, err := NewApp(s, WithLogger(logger.Nop())); err == nil || !strings.Contains(err.Error(), "config validation") {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestNewAppAppliesFactorySettings(t *testing.T) {
	s := newTestSettings("orders")
	s.AllowOverriding = false
	app := newTestApp(t, s)

	if err := di.Provide[*resource](app.Factory, "resource", func() *resource { return &resource{} }); err != nil {
		t.Fatal(err)
	}
	if err := di.Provide[*resource](app.Factory, "resource", func() *resource { return &resource{} }); err == nil {
		t.Error("expected overriding to be rejected")
	}
}

func TestStartAndShutdownOrder(t *testing.T) {
	ev := &testutil.Recorder{}
	app := newTestApp(t, newTestSettings("orders"))
	app.OnConfigure(provideGraph(ev, nil))
	app.OnStart(func(context.Context) error { ev.Add("hook:start"); return nil })
	app.OnReady(func(context.Context) error { ev.Add("hook:ready"); return nil })
	app.OnStop(func(context.Context) error { ev.Add("hook:stop"); return nil })

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := "start:db start:server hook:start hook:ready hook:stop stop:server stop:db close:resource"
	if got := ev.String(); got != want {
		t.Errorf("events = %q, want %q", got, want)
	}
}

func TestStartupFailureCleansUp(t *testing.T) {
	ev := &testutil.Recorder{}
	app := newTestApp(t, newTestSettings("orders"))
	app.OnConfigure(func(ctx context.Context, a *App[*config.Settings]) error {
		if err := provideGraph(ev, nil)(ctx, a); err != nil {
			return err
		}
		return di.Provide[*testutil.Component](a.Factory, "cache", func(s *server) *testutil.Component {
			return testutil.NewComponent("cache", ev)
		})
	})
	app.OnStart(func(context.Context) error { return fmt.Errorf("warmup failed") })

	err := app.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "warmup failed") {
		t.Fatalf("expected the hook error, got %v", err)
	}
	got := ev.String()
	if !strings.Contains(got, "start:cache stop:cache stop:server stop:db") {
		t.Errorf("expected components stopped in reverse order, got %q", got)
	}
	for _, closed := range []string{"close:cache", "close:resource"} {
		if !strings.Contains(got, closed) {
			t.Errorf("expected %s after a failed startup, got %q", closed, got)
		}
	}
}

func TestComponentStartFailure(t *testing.T) {
	ev := &testutil.Recorder{}
	app := newTestApp(t, newTestSettings("orders"))
	app.OnConfigure(provideGraph(ev, fmt.Errorf("connection refused")))

	err := app.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected the start error, got %v", err)
	}
	if got := ev.String(); got != "start:db close:resource" {
		t.Errorf("events = %q", got)
	}
}

func TestConfigureFailure(t *testing.T) {
	app := newTestApp(t, newTestSettings("orders"))
	app.OnConfigure(func(context.Context, *App[*config.Settings]) error { return fmt.Errorf("bad wiring") })

	if err := app.Start(context.Background()); err == nil || !strings.Contains(err.Error(), "configuration failed") {
		t.Errorf("expected a configuration error, got %v", err)
	}
}

func TestPreInstantiateDisabled(t *testing.T) {
	ev := &testutil.Recorder{}
	s := newTestSettings("orders")
	s.PreInstantiate = false
	app := newTestApp(t, s)
	app.OnConfigure(provideGraph(ev, nil))

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer app.Shutdown(ctx)

	if len(ev.Events()) != 0 {
		t.Errorf("expected nothing built or started, got %v", ev.Events())
	}
	if len(app.Components.Names()) != 0 {
		t.Errorf("expected no components, got %v", app.Components.Names())
	}
}

type greeter struct {
	Greeting string
	Name     string
}

func newGreeter(greeting string) *greeter { return &greeter{Greeting: greeting} }

func TestDefinitionsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "beans.yml")
	content := `
beans:
  - name: greeter
    type: Greeter
    non_public_access: true
    aliases: [hello]
    args:
      - index: 0
        value: hello
    properties:
      - name: name
        value: world
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	loader := typeinfo.NewLoader(nil)
	loader.Register(typeinfo.MustDefine[*greeter](typeinfo.Named("Greeter"), typeinfo.Constructor(newGreeter, "greeting")))

	s := newTestSettings("orders")
	s.DefinitionsFile = path
	app := newTestApp(t, s, WithFactoryOptions(factory.WithLoader(loader)))

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer app.Shutdown(ctx)

	g, err := di.Resolve[*greeter](ctx, app.Factory, "hello")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if g.Greeting != "hello" || g.Name != "world" {
		t.Errorf("unexpected greeter %+v", g)
	}
}

func TestDefinitionsFileMissing(t *testing.T) {
	s := newTestSettings("orders")
	s.DefinitionsFile = filepath.Join(t.TempDir(), "missing.yml")
	app := newTestApp(t, s)
	if err := app.Start(context.Background()); err == nil {
		t.Error("expected an error for a missing definitions file")
	}
}

func TestObservabilityProviders(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	ev := &testutil.Recorder{}
	app := newTestApp(t, newTestSettings("orders"), WithTracerProvider(tp), WithMeterProvider(mp))
	app.OnConfigure(provideGraph(ev, nil))

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := app.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	names := map[string]int{}
	for _, s := range recorder.Ended() {
		names[s.Name()]++
	}
	if names[observability.SpanCreate] != 3 {
		t.Errorf("expected 3 creation spans, got %v", names)
	}
	for _, op := range []string{observability.SpanPreInstantiate, observability.SpanStart, observability.SpanShutdown} {
		if names[op] != 1 {
			t.Errorf("expected one %s span, got %v", op, names)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "beankit.creations" {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected creation metrics")
	}

	if _, err := di.Resolve[*observability.CreationObserver](ctx, app.Factory, di.Infra.Observer); err != nil {
		t.Errorf("expected the observer to be registered: %v", err)
	}
}

func TestInspectServer(t *testing.T) {
	s := newTestSettings("orders")
	s.Inspect = config.InspectSettings{Enabled: true, Addr: "127.0.0.1:0"}
	var out bytes.Buffer
	app := newTestApp(t, s, WithSummaryWriter(&out))
	app.OnConfigure(provideGraph(&testutil.Recorder{}, nil))

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	srv, err := di.Resolve[*inspect.Server](ctx, app.Factory, di.Infra.Inspect)
	if err != nil {
		t.Fatalf("expected the inspect server to be registered: %v", err)
	}
	if !app.Components.Started(di.Infra.Inspect) {
		t.Error("expected the inspect server to be started as a component")
	}

	resp, err := http.Get("http://" + srv.Addr() + "/beans/server")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	if !strings.Contains(out.String(), "/beans/:name") {
		t.Errorf("expected the routes in the summary, got:\n%s", out.String())
	}
	if err := app.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestReadyCheck(t *testing.T) {
	ev := &testutil.Recorder{}
	app := newTestApp(t, newTestSettings("orders"))
	app.OnConfigure(func(_ context.Context, a *App[*config.Settings]) error {
		return di.Provide[*testutil.Component](a.Factory, "cache", func() *testutil.Component {
			c := testutil.NewComponent("cache", ev)
			c.SetHealth(observability.HealthStatusDegraded, "evictions high")
			return c
		})
	})

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("a failing ready check must not fail startup: %v", err)
	}
	defer app.Shutdown(ctx)

	err := app.ReadyCheck(ctx)
	if err == nil || !strings.Contains(err.Error(), "cache=degraded(evictions high)") {
		t.Errorf("unexpected ready check result %v", err)
	}
	if h := app.Health(ctx); h.Status != observability.HealthStatusDegraded {
		t.Errorf("expected degraded health, got %s", h.Status)
	}
}

func TestRunTask(t *testing.T) {
	ev := &testutil.Recorder{}
	app := newTestApp(t, newTestSettings("orders"))
	app.OnConfigure(provideGraph(ev, nil))

	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		srv := di.MustResolve[*server](ctx, app.Factory, "server")
		if srv.db == nil {
			return fmt.Errorf("server not wired")
		}
		ev.Add("task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}
	want := "start:db start:server task stop:server stop:db close:resource"
	if got := ev.String(); got != want {
		t.Errorf("events = %q, want %q", got, want)
	}
}

func TestRunTaskReturnsTaskError(t *testing.T) {
	app := newTestApp(t, newTestSettings("orders"))
	want := fmt.Errorf("import failed")
	if err := app.RunTask(context.Background(), func(context.Context) error { return want }); err != want {
		t.Errorf("expected the task error, got %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ev := &testutil.Recorder{}
	app := newTestApp(t, newTestSettings("orders"), WithGracefulTimeout(time.Second))
	app.OnConfigure(provideGraph(ev, nil))

	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error { cancel(); return nil })

	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.HasSuffix(ev.String(), "stop:server stop:db close:resource") {
		t.Errorf("expected an orderly shutdown, got %q", ev.String())
	}
}

func TestRunHooks(t *testing.T) {
	var calls []int
	hooks := []Hook{
		func(context.Context) error { calls = append(calls, 1); return nil },
		func(context.Context) error { return fmt.Errorf("boom") },
		func(context.Context) error { calls = append(calls, 3); return nil },
	}
	err := runHooks(context.Background(), hooks)
	if err == nil || !strings.Contains(err.Error(), "hook 1 failed") {
		t.Errorf("unexpected error %v", err)
	}
	if len(calls) != 1 {
		t.Errorf("expected hooks to stop at the first error, got %v", calls)
	}
}

func TestSummaryDisplay(t *testing.T) {
	ev := &testutil.Recorder{}
	var out bytes.Buffer
	s := newTestSettings("orders")
	app := newTestApp(t, s, WithSummaryWriter(&out))
	app.OnConfigure(func(ctx context.Context, a *App[*config.Settings]) error {
		if err := provideGraph(ev, nil)(ctx, a); err != nil {
			return err
		}
		return di.Provide[*resource](a.Factory, "reportResource", func() *resource { return &resource{ev: ev} }, di.WithMode(di.Lazy))
	})

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer app.Shutdown(ctx)

	text := out.String()
	for _, want := range []string{
		"orders v1.0.0 started",
		"📦 Components",
		"database",
		"💼 Managed Objects (4)",
		"server (initialized)",
		"reportResource (lazy)",
		"🔗 database",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}

func TestManagedObjects(t *testing.T) {
	app := newTestApp(t, newTestSettings("orders"))
	if err := di.Provide[*resource](app.Factory, "proto", func() *resource { return &resource{} }, di.WithMode(di.Prototype)); err != nil {
		t.Fatal(err)
	}
	objs := ManagedObjects(app.Factory)
	if len(objs) != 1 || objs[0].Status != "prototype" || objs[0].Scope != "prototype" {
		t.Errorf("unexpected managed objects %+v", objs)
	}
}

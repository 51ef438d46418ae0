package component

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kbukum/beankit/di"
	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/observability"
)

// mockComponent records Start and Stop calls into a shared log.
type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   *observability.Health
	calls    *[]string
}

func (m *mockComponent) Start(context.Context) error {
	*m.calls = append(*m.calls, "start:"+m.name)
	return m.startErr
}

func (m *mockComponent) Stop(context.Context) error {
	*m.calls = append(*m.calls, "stop:"+m.name)
	return m.stopErr
}

type healthyComponent struct {
	*mockComponent
}

func (h healthyComponent) CheckHealth(context.Context) observability.Health {
	return *h.health
}

func newTestRegistry() *Registry {
	return NewRegistry(WithLogger(logger.Nop()))
}

func TestRegisterDuplicate(t *testing.T) {
	r := newTestRegistry()
	var calls []string
	if err := r.Register("db", &mockComponent{name: "db", calls: &calls}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("db", &mockComponent{name: "db", calls: &calls}); err == nil {
		t.Error("expected error for duplicate registration")
	}
	if r.Get("db") == nil || r.Get("missing") != nil {
		t.Error("unexpected Get results")
	}
}

func TestStartStopRegistrationOrder(t *testing.T) {
	r := newTestRegistry()
	var calls []string
	for _, name := range []string{"db", "cache", "queue"} {
		if err := r.Register(name, &mockComponent{name: name, calls: &calls}); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if !r.Started("cache") {
		t.Error("expected cache to be started")
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	want := "start:db start:cache start:queue stop:queue stop:cache stop:db"
	if got := strings.Join(calls, " "); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
	if r.Started("cache") {
		t.Error("expected cache to be stopped")
	}
}

func TestStartAllRollsBackOnFailure(t *testing.T) {
	r := newTestRegistry()
	var calls []string
	r.Register("db", &mockComponent{name: "db", calls: &calls})
	r.Register("cache", &mockComponent{name: "cache", calls: &calls})
	r.Register("queue", &mockComponent{name: "queue", calls: &calls, startErr: fmt.Errorf("connection refused")})

	err := r.StartAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to start queue") {
		t.Fatalf("expected start failure for queue, got %v", err)
	}
	want := "start:db start:cache start:queue stop:cache stop:db"
	if got := strings.Join(calls, " "); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

func TestStopAllSkipsUnstarted(t *testing.T) {
	r := newTestRegistry()
	var calls []string
	r.Register("db", &mockComponent{name: "db", calls: &calls})

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("expected no calls for unstarted components, got %v", calls)
	}
}

func TestStopAllContinuesAfterErrors(t *testing.T) {
	r := newTestRegistry()
	var calls []string
	r.Register("db", &mockComponent{name: "db", calls: &calls, stopErr: fmt.Errorf("db stop failed")})
	r.Register("cache", &mockComponent{name: "cache", calls: &calls, stopErr: fmt.Errorf("cache stop failed")})
	if err := r.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	err := r.StopAll(context.Background())
	if err == nil {
		t.Fatal("expected error from StopAll")
	}
	if !strings.Contains(err.Error(), "db stop failed") || !strings.Contains(err.Error(), "cache stop failed") {
		t.Errorf("expected both failures in %q", err.Error())
	}
	if len(calls) != 4 {
		t.Errorf("expected both components stopped, got %v", calls)
	}
}

func TestCheckers(t *testing.T) {
	r := newTestRegistry()
	var calls []string
	r.Register("db", healthyComponent{&mockComponent{
		name:   "db",
		calls:  &calls,
		health: &observability.Health{Status: observability.HealthStatusDegraded, Message: "slow"},
	}})
	r.Register("cache", &mockComponent{name: "cache", calls: &calls})

	checkers := r.Checkers()
	if len(checkers) != 1 || checkers["db"] == nil {
		t.Fatalf("expected only db to report health, got %v", checkers)
	}
	sh := observability.CheckHealth(context.Background(), "svc", "1.0.0", checkers)
	if sh.Status != observability.HealthStatusDegraded || sh.Components[0].Name != "db" {
		t.Errorf("unexpected aggregated health %+v", sh)
	}
}

type database struct{ *mockComponent }

type server struct {
	*mockComponent
	db *database
}

type plainRepo struct{}

func TestDiscoverOrdersByDependencies(t *testing.T) {
	ctx := context.Background()
	f := factory.New()
	var calls []string

	// The server is registered first but depends on the database.
	if err := di.Provide[*server](f, "server", func(db *database) *server {
		return &server{mockComponent: &mockComponent{name: "server", calls: &calls}, db: db}
	}); err != nil {
		t.Fatal(err)
	}
	if err := di.Provide[*plainRepo](f, "repo", func() *plainRepo { return &plainRepo{} }); err != nil {
		t.Fatal(err)
	}
	if err := di.Provide[*database](f, "database", func() *database {
		return &database{&mockComponent{name: "database", calls: &calls}}
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.PreInstantiateSingletons(ctx); err != nil {
		t.Fatal(err)
	}

	r := newTestRegistry()
	n, err := r.Discover(ctx, f)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 components, got %d", n)
	}
	if got := strings.Join(r.Names(), ","); got != "database,server" {
		t.Errorf("expected the database first, got %s", got)
	}

	if err := r.StartAll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.StopAll(ctx); err != nil {
		t.Fatal(err)
	}
	want := "start:database start:server stop:server stop:database"
	if got := strings.Join(calls, " "); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}

	// A second discovery adds nothing.
	if n, _ := r.Discover(ctx, f); n != 0 {
		t.Errorf("expected no new components, got %d", n)
	}
}

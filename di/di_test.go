package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/factory"
)

type Repo struct{ DSN string }

type Service struct {
	Repo   *Repo
	Tenant string
}

type tenantKey struct{}

func NewRepo() *Repo { return &Repo{DSN: "primary"} }

func NewService(ctx context.Context, repo *Repo) (*Service, error) {
	tenant, _ := ctx.Value(tenantKey{}).(string)
	return &Service{Repo: repo, Tenant: tenant}, nil
}

type Handler interface{ Route() string }

type ordersHandler struct{}

func (ordersHandler) Route() string { return "/orders" }

type usersHandler struct{}

func (usersHandler) Route() string { return "/users" }

type closer struct{ closed bool }

func (c *closer) Close() error {
	c.closed = true
	return nil
}

func mustProvide[T any](t *testing.T, f *factory.Factory, name string, ctor any, opts ...ProvideOption) {
	t.Helper()
	if err := Provide[T](f, name, ctor, opts...); err != nil {
		t.Fatalf("Provide(%s): %v", name, err)
	}
}

func TestProvideAndResolve(t *testing.T) {
	f := factory.New()
	mustProvide[*Repo](t, f, "repo", NewRepo)
	mustProvide[*Service](t, f, "service", NewService)

	ctx := context.WithValue(context.Background(), tenantKey{}, "acme")
	svc, err := Resolve[*Service](ctx, f, "service")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	repo := MustResolve[*Repo](ctx, f, "repo")
	if svc.Repo != repo {
		t.Error("expected the service to share the singleton repo")
	}
	if svc.Tenant != "acme" {
		t.Errorf("expected the creation context to reach the constructor, got %q", svc.Tenant)
	}
	if !f.Graph().IsDependent("repo", "service") {
		t.Error("expected a dependency edge from repo to service")
	}
}

type session struct{ conn *closer }

func TestProvide_UnexportedType(t *testing.T) {
	f := factory.New()
	mustProvide[*closer](t, f, "conn", func() *closer { return &closer{} })
	mustProvide[*session](t, f, "session", func(c *closer) *session { return &session{conn: c} })

	ctx := context.Background()
	s, err := Resolve[*session](ctx, f, "session")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	byType, err := ResolveType[*session](ctx, f)
	if err != nil {
		t.Fatalf("ResolveType failed: %v", err)
	}
	if byType != s || s.conn != MustResolve[*closer](ctx, f, "conn") {
		t.Error("expected the unexported objects to be shared singletons")
	}
}

func TestProvide_InvalidConstructor(t *testing.T) {
	tests := []struct {
		name string
		ctor any
		want error
	}{
		{"not a function", "hello", errors.ErrInvalidDescriptor},
		{"no result", func() {}, errors.ErrInvalidDescriptor},
		{"wrong result", func() *Service { return nil }, errors.ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Provide[*Repo](factory.New(), "repo", tt.ctor)
			if !stderrors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestProvide_SingletonModeRejected(t *testing.T) {
	err := Provide[*Repo](factory.New(), "repo", NewRepo, WithMode(Singleton))
	if !stderrors.Is(err, errors.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestProvide_MissingDependency(t *testing.T) {
	f := factory.New()
	mustProvide[*Service](t, f, "service", NewService)

	_, err := Resolve[*Service](context.Background(), f, "service")
	if !stderrors.Is(err, errors.ErrNoMatchingCandidate) {
		t.Fatalf("expected ErrNoMatchingCandidate, got %v", err)
	}
}

func TestProvide_ParamNames(t *testing.T) {
	f := factory.New()
	mustProvide[*Repo](t, f, "primary", NewRepo)
	mustProvide[*Repo](t, f, "replica", func() *Repo { return &Repo{DSN: "replica"} })
	mustProvide[*Service](t, f, "service", NewService, WithParamNames("ctx", "replica"))

	svc := MustResolve[*Service](context.Background(), f, "service")
	if svc.Repo.DSN != "replica" {
		t.Errorf("expected the parameter name to pick replica, got %q", svc.Repo.DSN)
	}
}

func TestProvide_DescriptorOptions(t *testing.T) {
	f := factory.New()
	mustProvide[*Repo](t, f, "primary", NewRepo, WithDescriptor(descriptor.AsPrimary()))
	mustProvide[*Repo](t, f, "replica", func() *Repo { return &Repo{DSN: "replica"} })

	repo, err := ResolveType[*Repo](context.Background(), f)
	if err != nil {
		t.Fatalf("ResolveType failed: %v", err)
	}
	if repo.DSN != "primary" {
		t.Errorf("expected the primary, got %q", repo.DSN)
	}
}

func TestResolve_Errors(t *testing.T) {
	f := factory.New()
	mustProvide[*Repo](t, f, "repo", NewRepo)
	ctx := context.Background()

	if _, err := Resolve[*Repo](ctx, f, "nonexistent"); !stderrors.Is(err, errors.ErrMissingDescriptor) {
		t.Errorf("expected ErrMissingDescriptor, got %v", err)
	}
	if _, err := Resolve[*Service](ctx, f, "repo"); !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if _, ok := TryResolve[*Repo](ctx, f, "nonexistent"); ok {
		t.Error("expected TryResolve to report false for a missing object")
	}
	if repo, ok := TryResolve[*Repo](ctx, f, "repo"); !ok || repo == nil {
		t.Error("expected TryResolve to find repo")
	}
}

func TestMustResolvePanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		if msg := fmt.Sprint(r); !strings.Contains(msg, "nonexistent") {
			t.Errorf("expected the name in the panic message, got %q", msg)
		}
	}()
	MustResolve[*Repo](context.Background(), factory.New(), "nonexistent")
}

func TestResolveAll(t *testing.T) {
	f := factory.New()
	mustProvide[Handler](t, f, "orders", func() Handler { return ordersHandler{} })
	mustProvide[Handler](t, f, "users", func() Handler { return usersHandler{} })

	handlers, err := ResolveAll[Handler](context.Background(), f)
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}
	var routes []string
	for _, h := range handlers {
		routes = append(routes, h.Route())
	}
	if want := []string{"/orders", "/users"}; !slices.Equal(routes, want) {
		t.Errorf("routes = %v, want %v", routes, want)
	}

	none, err := ResolveAll[*Service](context.Background(), f)
	if err != nil || len(none) != 0 {
		t.Errorf("expected no services, got %v (%v)", none, err)
	}
}

func TestModesAndRegistrations(t *testing.T) {
	f := factory.New()
	mustProvide[*Repo](t, f, "eager", NewRepo)
	mustProvide[*Repo](t, f, "lazy", NewRepo, WithMode(Lazy))
	mustProvide[*Repo](t, f, "proto", NewRepo, WithMode(Prototype))
	if err := Instance(f, "manual", &Repo{DSN: "manual"}); err != nil {
		t.Fatalf("Instance failed: %v", err)
	}

	if err := f.PreInstantiateSingletons(context.Background()); err != nil {
		t.Fatalf("PreInstantiateSingletons failed: %v", err)
	}

	got := Registrations(f)
	want := []RegistrationInfo{
		{Key: "eager", Mode: Eager, Initialized: true},
		{Key: "lazy", Mode: Lazy, Initialized: false},
		{Key: "manual", Mode: Singleton, Initialized: true},
		{Key: "proto", Mode: Prototype, Initialized: false},
	}
	if !slices.Equal(got, want) {
		t.Errorf("Registrations() = %+v, want %+v", got, want)
	}

	ctx := context.Background()
	if MustResolve[*Repo](ctx, f, "proto") == MustResolve[*Repo](ctx, f, "proto") {
		t.Error("expected a new prototype per lookup")
	}
}

func TestRegistrationModeString(t *testing.T) {
	tests := map[RegistrationMode]string{
		Eager:               "eager",
		Lazy:                "lazy",
		Singleton:           "singleton",
		Prototype:           "prototype",
		RegistrationMode(9): "mode(9)",
	}
	for mode, want := range tests {
		if got := mode.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestRetryPolicy(t *testing.T) {
	f := factory.New()
	attempts := 0
	ctor := func() (*Repo, error) {
		attempts++
		if attempts < 3 {
			return nil, fmt.Errorf("dial failed")
		}
		return NewRepo(), nil
	}
	policy := &RetryPolicy{MaxAttempts: 3, InitialBackoffMs: 1, MaxBackoffMs: 2, BackoffMultiplier: 2}
	mustProvide[*Repo](t, f, "repo", ctor, WithRetryPolicy(policy))

	if _, err := Resolve[*Repo](context.Background(), f, "repo"); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	f := factory.New()
	dialErr := fmt.Errorf("dial failed")
	policy := &RetryPolicy{MaxAttempts: 2, InitialBackoffMs: 1, MaxBackoffMs: 1, BackoffMultiplier: 1}
	mustProvide[*Repo](t, f, "repo", func() (*Repo, error) { return nil, dialErr }, WithRetryPolicy(policy))

	_, err := Resolve[*Repo](context.Background(), f, "repo")
	if !stderrors.Is(err, errors.ErrConstructionFailed) {
		t.Fatalf("expected ErrConstructionFailed, got %v", err)
	}
	if !stderrors.Is(err, dialErr) {
		t.Errorf("expected the constructor error in the chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("expected the attempt count in %q", err.Error())
	}
}

func TestRetryPolicy_ContextCancelled(t *testing.T) {
	f := factory.New()
	policy := &RetryPolicy{MaxAttempts: 5, InitialBackoffMs: 10000, MaxBackoffMs: 10000, BackoffMultiplier: 1}
	mustProvide[*Repo](t, f, "repo", func() (*Repo, error) { return nil, fmt.Errorf("down") }, WithRetryPolicy(policy))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Resolve[*Repo](ctx, f, "repo")
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the deadline to stop retries, got %v", err)
	}
}

func TestCircuitBreakerGuardsConstructor(t *testing.T) {
	f := factory.New()
	calls := 0
	ctor := func() (*Repo, error) {
		calls++
		return nil, fmt.Errorf("down")
	}
	mustProvide[*Repo](t, f, "repo", ctor,
		WithCircuitBreaker(&CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeoutMs: 60000}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = Resolve[*Repo](ctx, f, "repo")
	}
	_, err := Resolve[*Repo](ctx, f, "repo")
	if err == nil || !strings.Contains(err.Error(), "circuit open") {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected the constructor to stop after 2 calls, got %d", calls)
	}
}

func TestCircuitBreakerStates(t *testing.T) {
	cb := NewCircuitBreaker(&CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeoutMs: 1})
	if cb.IsOpen() {
		t.Fatal("new breaker must be closed")
	}
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}
	time.Sleep(5 * time.Millisecond)
	if cb.IsOpen() {
		t.Fatal("expected half-open after the recovery timeout")
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %v", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after success, got %v", cb.State())
	}
}

func TestResolver(t *testing.T) {
	f := factory.New()
	n := 0
	mustProvide[*Repo](t, f, "repo", func() *Repo {
		n++
		return &Repo{DSN: fmt.Sprintf("conn-%d", n)}
	}, WithMode(Prototype))

	next := Resolver[*Repo](f, "repo")
	a, _ := next(context.Background())
	b, _ := next(context.Background())
	if a.DSN != "conn-1" || b.DSN != "conn-2" {
		t.Errorf("expected a fresh object per call, got %q and %q", a.DSN, b.DSN)
	}
}

func TestRefreshAndClose(t *testing.T) {
	f := factory.New()
	var built []*closer
	mustProvide[*closer](t, f, "conn", func() *closer {
		c := &closer{}
		built = append(built, c)
		return c
	})
	ctx := context.Background()

	first := MustResolve[*closer](ctx, f, "conn")
	refreshed, err := Refresh(ctx, f, "conn")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if refreshed == any(first) {
		t.Error("expected Refresh to build a new object")
	}
	if !first.closed {
		t.Error("expected the old object to be closed on refresh")
	}

	if err := Close(ctx, f); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(built) != 2 || !built[1].closed {
		t.Error("expected Close to close the current object")
	}
}

func TestInfraNames(t *testing.T) {
	names := []string{
		Infra.Settings, Infra.Logger, Infra.Validator, Infra.Factory,
		Infra.TracerProvider, Infra.MeterProvider, Infra.Observer,
		Infra.Components, Infra.Inspect,
	}
	seen := map[string]bool{}
	for _, n := range names {
		if n == "" {
			t.Error("expected every infrastructure name to be set")
		}
		if seen[n] {
			t.Errorf("duplicate infrastructure name %q", n)
		}
		seen[n] = true
	}
}

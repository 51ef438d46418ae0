package factory

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/lifecycle"
	"github.com/kbukum/beankit/typeinfo"
)

func TestGetBean_SingletonAndPrototype(t *testing.T) {
	f := New()
	mustRegister(t, f, "repo", descriptor.For[*Repo](descriptor.WithProperty("name", "users")))
	mustRegister(t, f, "temp", descriptor.For[*Repo](descriptor.AsPrototype()))

	r1 := mustGet(t, f, "repo").(*Repo)
	r2 := mustGet(t, f, "repo").(*Repo)
	if r1 != r2 {
		t.Error("singleton returned two different instances")
	}
	if r1.Name != "users" {
		t.Errorf("expected name 'users', got %q", r1.Name)
	}

	p1 := mustGet(t, f, "temp")
	p2 := mustGet(t, f, "temp")
	if p1 == p2 {
		t.Error("prototype returned the same instance twice")
	}

	if ok, _ := f.IsSingleton("repo"); !ok {
		t.Error("expected repo to be a singleton")
	}
	if ok, _ := f.IsPrototype("temp"); !ok {
		t.Error("expected temp to be a prototype")
	}
}

func TestGetBean_Missing(t *testing.T) {
	f := New()
	_, err := f.GetBean(context.Background(), "nope")
	if !stderrors.Is(err, errors.ErrMissingDescriptor) {
		t.Fatalf("expected ErrMissingDescriptor, got %v", err)
	}
}

func TestGetBean_ConcurrentSingletonBuiltOnce(t *testing.T) {
	var built atomic.Int32
	f := New()
	mustRegister(t, f, "repo", descriptor.New(descriptor.WithSupplier(func(context.Context) (any, error) {
		built.Add(1)
		return &Repo{Name: "shared"}, nil
	})))

	const workers = 16
	results := make([]any, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			obj, err := f.GetBean(context.Background(), "repo")
			if err != nil {
				t.Errorf("GetBean: %v", err)
				return
			}
			results[i] = obj
		}()
	}
	wg.Wait()

	if n := built.Load(); n != 1 {
		t.Errorf("expected supplier to run once, ran %d times", n)
	}
	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent callers observed different instances")
		}
	}
}

func TestGetBean_CircularSingletons(t *testing.T) {
	f := New()
	mustRegister(t, f, "a", descriptor.For[*Node](descriptor.WithProperty("name", "a"), descriptor.WithRef("next", "b")))
	mustRegister(t, f, "b", descriptor.For[*Node](descriptor.WithProperty("name", "b"), descriptor.WithRef("next", "c")))
	mustRegister(t, f, "c", descriptor.For[*Node](descriptor.WithProperty("name", "c"), descriptor.WithRef("next", "a")))

	a := mustGet(t, f, "a").(*Node)
	if a.Next == nil || a.Next.Next == nil || a.Next.Next.Next != a {
		t.Fatal("expected a -> b -> c -> a")
	}
	if a.Next.Name != "b" || a.Next.Next.Name != "c" {
		t.Errorf("unexpected chain %s -> %s", a.Next.Name, a.Next.Next.Name)
	}
	if !f.Graph().IsDependent("a", "c") {
		t.Error("expected c to be recorded as depending on a")
	}
}

func TestGetBean_CircularSingletonsDisabled(t *testing.T) {
	f := New(WithCircularReferences(false))
	mustRegister(t, f, "a", descriptor.For[*Node](descriptor.WithRef("next", "b")))
	mustRegister(t, f, "b", descriptor.For[*Node](descriptor.WithRef("next", "a")))

	_, err := f.GetBean(context.Background(), "a")
	if !stderrors.Is(err, errors.ErrAlreadyInCreation) {
		t.Fatalf("expected ErrAlreadyInCreation, got %v", err)
	}
}

func TestGetBean_CircularPrototypes(t *testing.T) {
	f := New()
	mustRegister(t, f, "a", descriptor.For[*Node](descriptor.AsPrototype(), descriptor.WithRef("next", "b")))
	mustRegister(t, f, "b", descriptor.For[*Node](descriptor.AsPrototype(), descriptor.WithRef("next", "a")))

	_, err := f.GetBean(context.Background(), "a")
	if !stderrors.Is(err, errors.ErrAlreadyInCreation) {
		t.Fatalf("expected ErrAlreadyInCreation, got %v", err)
	}
}

func TestGetBean_CircularDependsOn(t *testing.T) {
	f := New()
	mustRegister(t, f, "a", descriptor.For[*Repo](descriptor.WithDependsOn("b")))
	mustRegister(t, f, "b", descriptor.For[*Repo](descriptor.WithDependsOn("a")))

	_, err := f.GetBean(context.Background(), "a")
	if !stderrors.Is(err, errors.ErrCircularDependsOn) {
		t.Fatalf("expected ErrCircularDependsOn, got %v", err)
	}
}

func TestGetBean_DependsOnBuildsFirst(t *testing.T) {
	var order []string
	f := New()
	mustRegister(t, f, "first", descriptor.New(descriptor.WithSupplier(func(context.Context) (any, error) {
		order = append(order, "first")
		return &Repo{}, nil
	})))
	mustRegister(t, f, "second", descriptor.New(
		descriptor.WithDependsOn("first"),
		descriptor.WithSupplier(func(context.Context) (any, error) {
			order = append(order, "second")
			return &Repo{}, nil
		}),
	))

	mustGet(t, f, "second")
	if len(order) != 2 || order[0] != "first" {
		t.Fatalf("expected [first second], got %v", order)
	}
}

func TestGetBean_InheritedDescriptor(t *testing.T) {
	f := New()
	mustRegister(t, f, "base", descriptor.For[*Settings](
		descriptor.AsAbstract(),
		descriptor.WithProperty("host", "db.local"),
		descriptor.WithProperty("port", "5432"),
		descriptor.WithProperty("user", "root"),
	))
	mustRegister(t, f, "child", descriptor.New(
		descriptor.WithParent("base"),
		descriptor.WithProperty("user", "app"),
	))

	s := mustGet(t, f, "child").(*Settings)
	if s.Host != "db.local" || s.Port != 5432 || s.User != "app" {
		t.Errorf("unexpected settings %+v", *s)
	}

	_, err := f.GetBean(context.Background(), "base")
	if !stderrors.Is(err, errors.ErrAbstractDescriptor) {
		t.Fatalf("expected ErrAbstractDescriptor, got %v", err)
	}
}

func TestGetBean_Aliases(t *testing.T) {
	f := New()
	mustRegister(t, f, "repo", descriptor.For[*Repo]())
	if err := f.Alias("repo", "store"); err != nil {
		t.Fatalf("Alias: %v", err)
	}
	if mustGet(t, f, "store") != mustGet(t, f, "repo") {
		t.Error("alias resolved to a different instance")
	}
}

func TestGetBean_FailedCreationCanBeRetried(t *testing.T) {
	attempts := 0
	f := New()
	mustRegister(t, f, "flaky", descriptor.New(descriptor.WithSupplier(func(context.Context) (any, error) {
		attempts++
		if attempts == 1 {
			return nil, stderrors.New("not yet")
		}
		return &Repo{Name: "ok"}, nil
	})))

	_, err := f.GetBean(context.Background(), "flaky")
	if !stderrors.Is(err, errors.ErrConstructionFailed) {
		t.Fatalf("expected ErrConstructionFailed, got %v", err)
	}
	if f.cache.Contains("flaky") {
		t.Fatal("failed singleton must not be cached")
	}
	if r := mustGet(t, f, "flaky").(*Repo); r.Name != "ok" {
		t.Errorf("expected retried instance, got %+v", r)
	}
}

func TestGetBean_PanickingPrototypeInitClearsMark(t *testing.T) {
	calls := 0
	f := New()
	mustRegister(t, f, "fragile", descriptor.New(
		descriptor.AsPrototype(),
		descriptor.WithInitMethod("Init"),
		descriptor.WithSupplier(func(context.Context) (any, error) {
			calls++
			return &Fragile{panics: calls == 1}, nil
		}),
	))

	ctx, _ := lifecycle.WithCreation(context.Background())
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the init method to panic")
			}
		}()
		_, _ = f.GetBean(ctx, "fragile")
	}()

	if _, err := f.GetBean(ctx, "fragile"); err != nil {
		t.Fatalf("expected the prototype to build again on the same context, got %v", err)
	}
}

func TestGetBean_Visibility(t *testing.T) {
	tests := []struct {
		name    string
		opts    []descriptor.Option
		wantErr bool
	}{
		{"unexported type", nil, true},
		{"non-public access", []descriptor.Option{descriptor.WithNonPublicAccess()}, false},
		{"supplier", []descriptor.Option{descriptor.WithSupplier(func(context.Context) (any, error) {
			return &hiddenRepo{Name: "supplied"}, nil
		})}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := New()
			mustRegister(t, f, "repo", descriptor.For[*hiddenRepo](tc.opts...))

			_, err := f.GetBean(context.Background(), "repo")
			if tc.wantErr {
				if !stderrors.Is(err, errors.ErrInvalidDescriptor) {
					t.Fatalf("expected ErrInvalidDescriptor, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetBean: %v", err)
			}
		})
	}
}

func TestGetBeanOfType_Mismatch(t *testing.T) {
	f := New()
	mustRegister(t, f, "repo", descriptor.For[*Repo]())

	_, err := f.GetBeanOfType(context.Background(), "repo", reflect.TypeFor[*Settings]())
	if !stderrors.Is(err, errors.ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestRegisterSingleton(t *testing.T) {
	f := New()
	repo := &Repo{Name: "manual"}
	if err := f.RegisterSingleton("repo", repo); err != nil {
		t.Fatalf("RegisterSingleton: %v", err)
	}
	if mustGet(t, f, "repo") != repo {
		t.Error("expected the registered instance")
	}
	if err := f.RegisterSingleton("repo", &Repo{}); err == nil {
		t.Error("expected an error registering the same name twice")
	}
}

func TestCustomScope(t *testing.T) {
	var log []string
	f := New()
	scope := lifecycle.NewMapScope()
	if err := f.RegisterScope("session", scope); err != nil {
		t.Fatalf("RegisterScope: %v", err)
	}
	mustRegister(t, f, "res", descriptor.New(
		descriptor.WithScope("session"),
		descriptor.WithSupplier(resourceSupplier("res", &log)),
	))

	first := mustGet(t, f, "res")
	if mustGet(t, f, "res") != first {
		t.Error("expected the scoped instance to be shared within the scope")
	}

	if err := f.DestroyScopedBean(context.Background(), "res"); err != nil {
		t.Fatalf("DestroyScopedBean: %v", err)
	}
	if len(log) != 1 || log[0] != "res" {
		t.Errorf("expected res to be closed, got %v", log)
	}
	if mustGet(t, f, "res") == first {
		t.Error("expected a new instance after destroying the scoped one")
	}

	scope.Close()
	if len(log) != 2 {
		t.Errorf("expected scope close to destroy the new instance, got %v", log)
	}
}

func TestCustomScope_ConcurrentMissBuildsOnce(t *testing.T) {
	var (
		log   []string
		built atomic.Int32
	)
	f := New()
	scope := lifecycle.NewMapScope()
	if err := f.RegisterScope("session", scope); err != nil {
		t.Fatalf("RegisterScope: %v", err)
	}
	mustRegister(t, f, "res", descriptor.New(
		descriptor.WithScope("session"),
		descriptor.WithSupplier(func(context.Context) (any, error) {
			n := built.Add(1)
			return &Resource{Name: fmt.Sprintf("res-%d", n), log: &log}, nil
		}),
	))

	start := make(chan struct{})
	held := make([]any, 8)
	var wg sync.WaitGroup
	for i := range held {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			obj, err := f.GetBean(context.Background(), "res")
			if err != nil {
				t.Errorf("GetBean: %v", err)
				return
			}
			held[i] = obj
		}(i)
	}
	close(start)
	wg.Wait()

	if n := built.Load(); n != 1 {
		t.Fatalf("expected one scoped instance, built %d", n)
	}
	for _, obj := range held {
		if obj != held[0] {
			t.Fatal("expected every caller to receive the same instance")
		}
	}

	scope.Close()
	if len(log) != 1 || log[0] != held[0].(*Resource).Name {
		t.Errorf("expected the held instance to be closed, got %v", log)
	}
}

func TestCustomScope_Missing(t *testing.T) {
	f := New()
	mustRegister(t, f, "req", descriptor.For[*Repo](descriptor.WithScope("request")))

	_, err := f.GetBean(context.Background(), "req")
	if !stderrors.Is(err, errors.ErrMissingScope) {
		t.Fatalf("expected ErrMissingScope, got %v", err)
	}
	if err := f.RegisterScope("singleton", lifecycle.NewMapScope()); err == nil {
		t.Error("expected replacing a built-in scope to fail")
	}
}

func TestDestroyAll_DependentsFirst(t *testing.T) {
	var log []string
	f := New()
	mustRegister(t, f, "b", descriptor.New(descriptor.WithSupplier(resourceSupplier("b", &log))))
	mustRegister(t, f, "a", descriptor.New(
		descriptor.WithSupplier(resourceSupplier("a", &log)),
		descriptor.WithRef("dep", "b"),
	))

	a := mustGet(t, f, "a").(*Resource)
	if a.Dep == nil || a.Dep.Name != "b" {
		t.Fatal("expected a to reference b")
	}

	if err := f.DestroyAll(context.Background()); err != nil {
		t.Fatalf("DestroyAll: %v", err)
	}
	if len(log) != 2 || log[0] != "a" || log[1] != "b" {
		t.Errorf("expected [a b], got %v", log)
	}
	if len(f.SingletonNames()) != 0 {
		t.Errorf("expected no singletons after DestroyAll, got %v", f.SingletonNames())
	}
}

func TestDestroyBean_Prototype(t *testing.T) {
	var log []string
	f := New()
	mustRegister(t, f, "p", descriptor.New(
		descriptor.AsPrototype(),
		descriptor.WithSupplier(resourceSupplier("p", &log)),
	))

	obj := mustGet(t, f, "p")
	if err := f.DestroyAll(context.Background()); err != nil {
		t.Fatalf("DestroyAll: %v", err)
	}
	if len(log) != 0 {
		t.Fatalf("prototypes must not be tracked, got %v", log)
	}
	if err := f.DestroyBean(context.Background(), "p", obj); err != nil {
		t.Fatalf("DestroyBean: %v", err)
	}
	if len(log) != 1 {
		t.Errorf("expected explicit destruction, got %v", log)
	}
}

func TestRemoveDescriptor_DestroysSingleton(t *testing.T) {
	var log []string
	f := New()
	mustRegister(t, f, "r", descriptor.New(descriptor.WithSupplier(resourceSupplier("r", &log))))
	mustGet(t, f, "r")

	if err := f.RemoveDescriptor("r"); err != nil {
		t.Fatalf("RemoveDescriptor: %v", err)
	}
	if len(log) != 1 {
		t.Errorf("expected the singleton to be destroyed, got %v", log)
	}
	if f.ContainsBean("r") {
		t.Error("expected r to be gone")
	}
}

func TestParentFactory(t *testing.T) {
	parent := New()
	mustRegister(t, parent, "repo", descriptor.For[*Repo](descriptor.WithProperty("name", "parent")))

	child := New(WithParent(parent))
	child.Loader().Register(typeinfo.MustDefine[*Service](typeinfo.Constructor(NewService, "repo")))
	mustRegister(t, child, "service", descriptor.For[*Service]())

	if !child.ContainsBean("repo") {
		t.Error("expected child to see the parent's repo")
	}
	if child.ContainsLocalBean("repo") {
		t.Error("repo must not be local to the child")
	}

	svc := mustGet(t, child, "service").(*Service)
	if svc.Repo != mustGet(t, parent, "repo") {
		t.Error("expected the parent's repo to be injected")
	}
}

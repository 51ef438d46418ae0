package registry

import (
	stderrors "errors"
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
)

type engine struct{}

func mustRegister(t *testing.T, r *Registry, name string, d *descriptor.Descriptor) {
	t.Helper()
	if err := r.Register(name, d); err != nil {
		t.Fatalf("Register(%s): %v", name, err)
	}
}

func TestRegisterGetContains(t *testing.T) {
	r := New()
	d := descriptor.For[*engine]()
	mustRegister(t, r, "engine", d)

	got, err := r.Get("engine")
	if err != nil || got != d {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if !r.Contains("engine") || r.Contains("other") {
		t.Error("Contains() mismatch")
	}
	if _, err := r.Get("other"); !stderrors.Is(err, errors.ErrMissingDescriptor) {
		t.Errorf("expected MissingDescriptor, got %v", err)
	}
	if err := r.Register("", d); !stderrors.Is(err, errors.ErrInvalidDescriptor) {
		t.Errorf("expected InvalidDescriptor for empty name, got %v", err)
	}
	if err := r.Register("bad", descriptor.New()); !stderrors.Is(err, errors.ErrInvalidDescriptor) {
		t.Errorf("expected InvalidDescriptor, got %v", err)
	}
}

func TestOverridingDisabled(t *testing.T) {
	r := New(WithOverriding(false))
	mustRegister(t, r, "a", descriptor.For[*engine]())
	err := r.Register("a", descriptor.For[*engine]())
	if !stderrors.Is(err, errors.ErrDescriptorOverride) {
		t.Fatalf("expected DescriptorOverride, got %v", err)
	}
}

func TestNamesKeepRegistrationOrder(t *testing.T) {
	r := New()
	for _, n := range []string{"c", "a", "b"} {
		mustRegister(t, r, n, descriptor.For[*engine]())
	}
	mustRegister(t, r, "a", descriptor.For[*engine]())
	if got := r.Names(); !slices.Equal(got, []string{"c", "a", "b"}) {
		t.Errorf("Names() = %v", got)
	}
	if err := r.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := r.Names(); !slices.Equal(got, []string{"c", "b"}) {
		t.Errorf("Names() after remove = %v", got)
	}
	if err := r.Remove("a"); !stderrors.Is(err, errors.ErrMissingDescriptor) {
		t.Errorf("expected MissingDescriptor, got %v", err)
	}
}

func TestResolvedMergesChainAndCaches(t *testing.T) {
	r := New()
	mustRegister(t, r, "base", descriptor.For[*engine](
		descriptor.AsAbstract(),
		descriptor.WithProperty("a", 1),
		descriptor.WithProperty("b", 2),
		descriptor.WithProperty("c", 3),
	))
	mustRegister(t, r, "mid", descriptor.New(descriptor.WithParent("base"), descriptor.WithProperty("b", 20)))
	mustRegister(t, r, "leaf", descriptor.New(descriptor.WithParent("mid"), descriptor.WithProperty("d", 4)))

	leaf, err := r.Resolved("leaf")
	if err != nil {
		t.Fatalf("Resolved: %v", err)
	}
	if leaf.Properties.Len() != 4 || leaf.Abstract {
		t.Errorf("unexpected resolved descriptor: props=%v abstract=%v", leaf.Properties.Names(), leaf.Abstract)
	}
	if pv, _ := leaf.Properties.Get("b"); pv.Value != 20 {
		t.Errorf("b = %v", pv.Value)
	}
	if leaf.Type != reflect.TypeFor[*engine]() {
		t.Errorf("type = %v", leaf.Type)
	}

	again, _ := r.Resolved("leaf")
	if again != leaf {
		t.Error("resolved descriptor should be cached")
	}
}

func TestResolvedInvalidatedTransitively(t *testing.T) {
	r := New()
	var reset []string
	r.OnReset(func(name string) { reset = append(reset, name) })

	mustRegister(t, r, "base", descriptor.For[*engine](descriptor.WithProperty("a", 1)))
	mustRegister(t, r, "mid", descriptor.New(descriptor.WithParent("base")))
	mustRegister(t, r, "leaf", descriptor.New(descriptor.WithParent("mid")))

	before, _ := r.Resolved("leaf")
	reset = nil

	mustRegister(t, r, "base", descriptor.For[*engine](descriptor.WithProperty("a", 2)))

	after, err := r.Resolved("leaf")
	if err != nil {
		t.Fatalf("Resolved: %v", err)
	}
	if after == before {
		t.Fatal("re-registering a root must invalidate transitive children")
	}
	if pv, _ := after.Properties.Get("a"); pv.Value != 2 {
		t.Errorf("a = %v, want 2", pv.Value)
	}
	if !slices.Equal(reset, []string{"base", "mid", "leaf"}) {
		t.Errorf("reset listeners saw %v", reset)
	}
}

func TestResolvedChainErrors(t *testing.T) {
	r := New()
	mustRegister(t, r, "a", descriptor.New(descriptor.WithParent("b")))
	mustRegister(t, r, "b", descriptor.New(descriptor.WithParent("a")))
	mustRegister(t, r, "orphan", descriptor.New(descriptor.WithParent("nobody")))

	if _, err := r.Resolved("a"); !stderrors.Is(err, errors.ErrCyclicParentage) {
		t.Errorf("expected CyclicParentage, got %v", err)
	}
	if _, err := r.Resolved("orphan"); !stderrors.Is(err, errors.ErrMissingParent) {
		t.Errorf("expected MissingParent, got %v", err)
	}
	if _, err := r.Resolved("none"); !stderrors.Is(err, errors.ErrMissingDescriptor) {
		t.Errorf("expected MissingDescriptor, got %v", err)
	}
}

func TestParentLookup(t *testing.T) {
	parent := New()
	mustRegister(t, parent, "template", descriptor.For[*engine](descriptor.WithProperty("x", 1)))
	mustRegister(t, parent, "svc", descriptor.For[*engine](descriptor.WithProperty("y", 1)))

	child := New(WithParentLookup(parent))
	mustRegister(t, child, "fromParent", descriptor.New(descriptor.WithParent("template")))
	mustRegister(t, child, "svc", descriptor.New(descriptor.WithParent("svc"), descriptor.WithProperty("z", 2)))

	rd, err := child.Resolved("fromParent")
	if err != nil {
		t.Fatalf("Resolved: %v", err)
	}
	if !rd.Properties.Contains("x") {
		t.Error("parent registry properties not inherited")
	}

	rd, err = child.Resolved("svc")
	if err != nil {
		t.Fatalf("Resolved self-named parent: %v", err)
	}
	if !rd.Properties.Contains("y") || !rd.Properties.Contains("z") {
		t.Errorf("unexpected properties %v", rd.Properties.Names())
	}
}

func TestAliases(t *testing.T) {
	r := New()
	mustRegister(t, r, "engine", descriptor.For[*engine]())

	if err := r.RegisterAlias("engine", "motor"); err != nil {
		t.Fatalf("RegisterAlias: %v", err)
	}
	if err := r.RegisterAlias("motor", "drive"); err != nil {
		t.Fatalf("RegisterAlias: %v", err)
	}
	if r.Canonical("drive") != "engine" {
		t.Errorf("Canonical(drive) = %q", r.Canonical("drive"))
	}
	if got := r.Aliases("engine"); !slices.Equal(got, []string{"drive", "motor"}) {
		t.Errorf("Aliases() = %v", got)
	}
	if _, err := r.Get("drive"); err != nil {
		t.Errorf("Get via alias: %v", err)
	}
	if err := r.RegisterAlias("drive", "engine"); err == nil {
		t.Error("expected alias cycle error")
	}
	if err := r.RemoveAlias("motor"); err != nil {
		t.Fatalf("RemoveAlias: %v", err)
	}
	if r.IsAlias("motor") {
		t.Error("alias not removed")
	}
}

func TestGeneratedNames(t *testing.T) {
	r := New()
	n1, err := r.RegisterGenerated(descriptor.For[*engine]())
	if err != nil {
		t.Fatalf("RegisterGenerated: %v", err)
	}
	n2, _ := r.RegisterGenerated(descriptor.For[*engine]())
	if n1 != "*registry.engine#0" || n2 != "*registry.engine#1" {
		t.Errorf("generated %q, %q", n1, n2)
	}
	n3, _ := r.RegisterGenerated(descriptor.New(descriptor.WithParent(n1)))
	if n3 != n1+"$child#0" {
		t.Errorf("generated child name %q", n3)
	}
}

func TestFreezeSnapshotRevalidated(t *testing.T) {
	r := New()
	mustRegister(t, r, "a", descriptor.For[*engine]())
	r.Freeze()
	if !r.IsFrozen() {
		t.Fatal("IsFrozen() = false")
	}
	mustRegister(t, r, "b", descriptor.For[*engine]())
	if got := r.Names(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Names() after frozen mutation = %v", got)
	}
}

func TestConcurrentResolved(t *testing.T) {
	r := New()
	mustRegister(t, r, "base", descriptor.For[*engine]())
	mustRegister(t, r, "child", descriptor.New(descriptor.WithParent("base")))

	var wg sync.WaitGroup
	results := make([]*descriptor.Descriptor, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = r.Resolved("child")
		}(i)
	}
	wg.Wait()
	for _, rd := range results[1:] {
		if rd != results[0] {
			t.Fatal("concurrent Resolved returned different descriptors")
		}
	}
}

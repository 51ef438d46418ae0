package factory

import (
	"context"
	stderrors "errors"
	"reflect"
	"slices"
	"testing"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/typeinfo"
)

func cyclicNodes(t *testing.T, f *Factory) {
	t.Helper()
	mustRegister(t, f, "a", descriptor.For[*Node](descriptor.WithProperty("name", "a"), descriptor.WithRef("next", "b")))
	mustRegister(t, f, "b", descriptor.For[*Node](descriptor.WithProperty("name", "b"), descriptor.WithRef("next", "a")))
}

func wrapNode(target string) AfterInitFunc {
	return func(_ context.Context, obj any, name string) (any, error) {
		if name != target {
			return obj, nil
		}
		n := obj.(*Node)
		return &Node{Name: "wrapped-" + n.Name, Next: n.Next}, nil
	}
}

func TestBeforeInstantiationShortcut(t *testing.T) {
	f := New()
	var afterInit []string
	_ = f.AddHook(BeforeInstantiationFunc(func(_ context.Context, typ reflect.Type, name string) (any, error) {
		if typ == reflect.TypeFor[*Repo]() {
			return &Repo{Name: "substitute"}, nil
		}
		return nil, nil
	}))
	_ = f.AddHook(AfterInitFunc(func(_ context.Context, obj any, name string) (any, error) {
		afterInit = append(afterInit, name)
		return obj, nil
	}))
	mustRegister(t, f, "repo", descriptor.For[*Repo](descriptor.WithProperty("name", "configured")))

	r := mustGet(t, f, "repo").(*Repo)
	if r.Name != "substitute" {
		t.Errorf("expected the substitute without properties applied, got %q", r.Name)
	}
	if len(afterInit) != 1 || afterInit[0] != "repo" {
		t.Errorf("expected after-init hooks on the substitute, got %v", afterInit)
	}
}

func TestAddHook_RejectsNonHooks(t *testing.T) {
	f := New()
	if err := f.AddHook(&Repo{}); !stderrors.Is(err, errors.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRawInjectionDespiteWrapping(t *testing.T) {
	f := New()
	_ = f.AddHook(wrapNode("a"))
	cyclicNodes(t, f)

	_, err := f.GetBean(context.Background(), "a")
	if !stderrors.Is(err, errors.ErrRawInjectionDespiteWrapping) {
		t.Fatalf("expected ErrRawInjectionDespiteWrapping, got %v", err)
	}
}

func TestRawInjectionAllowed(t *testing.T) {
	f := New(WithRawInjection(true))
	_ = f.AddHook(wrapNode("a"))
	cyclicNodes(t, f)

	a := mustGet(t, f, "a").(*Node)
	if a.Name != "wrapped-a" {
		t.Errorf("expected the wrapped object, got %q", a.Name)
	}
	b := mustGet(t, f, "b").(*Node)
	if b.Next == nil || b.Next.Name != "a" {
		t.Errorf("expected b to hold the raw a, got %+v", b.Next)
	}
}

type proxyHook struct{}

func (proxyHook) EarlyReference(obj any, name string) (any, error) {
	if name != "a" {
		return nil, nil
	}
	return &Node{Name: "proxy-a"}, nil
}

func (proxyHook) AfterInitialization(_ context.Context, obj any, _ string) (any, error) {
	return obj, nil
}

func TestEarlyReferenceHook(t *testing.T) {
	f := New()
	if err := f.AddHook(proxyHook{}); err != nil {
		t.Fatalf("AddHook: %v", err)
	}
	cyclicNodes(t, f)

	a := mustGet(t, f, "a").(*Node)
	if a.Name != "proxy-a" {
		t.Fatalf("expected the early proxy to be exposed, got %q", a.Name)
	}
	b := mustGet(t, f, "b").(*Node)
	if b.Next != a {
		t.Error("expected b to reference the same proxy")
	}
}

type vetoHook struct{ veto string }

func (h vetoHook) AfterInstantiation(_ context.Context, _ any, name string) (bool, error) {
	return name != h.veto, nil
}

type propertyHook struct{}

func (propertyHook) TransformProperties(_ context.Context, pvs *descriptor.PropertyValues, _ any, name string) (*descriptor.PropertyValues, error) {
	if name == "upper" {
		pvs.Add("name", "UPPER")
	}
	return pvs, nil
}

func TestPopulationHooks(t *testing.T) {
	f := New()
	_ = f.AddHook(vetoHook{veto: "vetoed"})
	_ = f.AddHook(propertyHook{})
	mustRegister(t, f, "vetoed", descriptor.For[*Repo](descriptor.WithProperty("name", "x")))
	mustRegister(t, f, "upper", descriptor.For[*Repo](descriptor.WithProperty("name", "lower")))

	if r := mustGet(t, f, "vetoed").(*Repo); r.Name != "" {
		t.Errorf("expected population to be skipped, got %q", r.Name)
	}
	if r := mustGet(t, f, "upper").(*Repo); r.Name != "UPPER" {
		t.Errorf("expected the transformed value, got %q", r.Name)
	}
}

type mergedHook struct{ seen []string }

func (h *mergedHook) PostProcessMergedDescriptor(_ *descriptor.Descriptor, _ reflect.Type, name string) error {
	h.seen = append(h.seen, name)
	return nil
}

func TestMergedDescriptorHookRunsOnce(t *testing.T) {
	f := New()
	h := &mergedHook{}
	_ = f.AddHook(h)
	mustRegister(t, f, "p", descriptor.For[*Repo](descriptor.AsPrototype()))

	mustGet(t, f, "p")
	mustGet(t, f, "p")
	if len(h.seen) != 1 {
		t.Errorf("expected one call, got %v", h.seen)
	}
}

type typeHook struct{}

func (typeHook) PredictType(t reflect.Type, _ string) reflect.Type {
	if t == reflect.TypeFor[*English]() {
		return reflect.TypeFor[*French]()
	}
	return nil
}

func TestTypePredictionHook(t *testing.T) {
	f := New()
	_ = f.AddHook(typeHook{})
	mustRegister(t, f, "greeter", descriptor.For[*English]())

	if typ, _ := f.TypeOf("greeter"); typ != reflect.TypeFor[*French]() {
		t.Errorf("expected the predicted type, got %v", typ)
	}
}

func TestLifecycleCallbacks(t *testing.T) {
	f := New()
	mustRegister(t, f, "lc", descriptor.For[*Lifecycle](
		descriptor.WithInitMethod("Start"),
		descriptor.WithDestroyMethod("Stop"),
	))

	lc := mustGet(t, f, "lc").(*Lifecycle)
	if lc.name != "lc" {
		t.Errorf("expected the managed name, got %q", lc.name)
	}
	if want := []string{"afterPropertiesSet", "start"}; !slices.Equal(lc.Events, want) {
		t.Errorf("init events = %v, want %v", lc.Events, want)
	}

	if err := f.DestroyAll(context.Background()); err != nil {
		t.Fatalf("DestroyAll: %v", err)
	}
	if want := []string{"afterPropertiesSet", "start", "destroy", "stop"}; !slices.Equal(lc.Events, want) {
		t.Errorf("events = %v, want %v", lc.Events, want)
	}
}

func TestLifecycleCallbacks_MissingInitMethod(t *testing.T) {
	f := New()
	mustRegister(t, f, "lc", descriptor.For[*Lifecycle](descriptor.WithInitMethod("Boot")))

	_, err := f.GetBean(context.Background(), "lc")
	if !stderrors.Is(err, errors.ErrConstructionFailed) {
		t.Fatalf("expected ErrConstructionFailed, got %v", err)
	}
}

type destructionHook struct{ names []string }

func (h *destructionHook) BeforeDestruction(_ context.Context, _ any, name string) error {
	h.names = append(h.names, name)
	return nil
}

func (h *destructionHook) RequiresDestruction(obj any) bool {
	_, ok := obj.(*Repo)
	return ok
}

func TestDestructionHook(t *testing.T) {
	f := New()
	h := &destructionHook{}
	_ = f.AddHook(h)
	mustRegister(t, f, "repo", descriptor.For[*Repo]())
	mustRegister(t, f, "settings", descriptor.For[*Settings]())
	mustGet(t, f, "repo")
	mustGet(t, f, "settings")

	if err := f.DestroyAll(context.Background()); err != nil {
		t.Fatalf("DestroyAll: %v", err)
	}
	if len(h.names) != 1 || h.names[0] != "repo" {
		t.Errorf("expected only repo to be handed to the hook, got %v", h.names)
	}
}

type recordingObserver struct {
	before []string
	after  []string
}

func (o *recordingObserver) BeforeCreate(ctx context.Context, name, _ string) context.Context {
	o.before = append(o.before, name)
	return ctx
}

func (o *recordingObserver) AfterCreate(_ context.Context, name string, _ error) {
	o.after = append(o.after, name)
}

func TestCreationObserver(t *testing.T) {
	f := New()
	o := &recordingObserver{}
	f.AddObserver(o)
	f.Loader().Register(typeinfo.MustDefine[*Service](typeinfo.Constructor(NewService, "repo")))
	mustRegister(t, f, "repo", descriptor.For[*Repo]())
	mustRegister(t, f, "service", descriptor.For[*Service]())

	mustGet(t, f, "service")
	if want := []string{"service", "repo"}; !slices.Equal(o.before, want) {
		t.Errorf("before = %v, want %v", o.before, want)
	}
	if want := []string{"repo", "service"}; !slices.Equal(o.after, want) {
		t.Errorf("after = %v, want %v", o.after, want)
	}
}

type ReadyProbe struct{ ready bool }

func (p *ReadyProbe) SingletonsReady(context.Context) error {
	p.ready = true
	return nil
}

func TestPreInstantiateSingletons(t *testing.T) {
	f := New()
	mustRegister(t, f, "eager", descriptor.For[*Repo]())
	mustRegister(t, f, "lazy", descriptor.For[*Settings](descriptor.AsLazy()))
	mustRegister(t, f, "proto", descriptor.For[*Node](descriptor.AsPrototype()))
	mustRegister(t, f, "probe", descriptor.For[*ReadyProbe]())
	mustRegister(t, f, "conn", descriptor.For[*ConnFactoryBean]())

	if err := f.PreInstantiateSingletons(context.Background()); err != nil {
		t.Fatalf("PreInstantiateSingletons: %v", err)
	}

	built := f.SingletonNames()
	for _, name := range []string{"eager", "probe", "conn"} {
		if !slices.Contains(built, name) {
			t.Errorf("expected %s to be built, got %v", name, built)
		}
	}
	if slices.Contains(built, "lazy") {
		t.Error("lazy singleton must not be pre-instantiated")
	}
	fb, _ := f.cache.GetFinished("conn")
	if fb.(*ConnFactoryBean).calls != 0 {
		t.Error("the product of a plain FactoryBean must stay lazy")
	}
	probe := mustGet(t, f, "probe").(*ReadyProbe)
	if !probe.ready {
		t.Error("expected SingletonsReady to be called")
	}
}

type namingHook struct{}

func (namingHook) BeforeInitialization(_ context.Context, obj any, _ string) (any, error) {
	if r, ok := obj.(*Repo); ok {
		r.Name = "hooked:" + r.Name
	}
	return obj, nil
}

type NamingHookBean struct{ namingHook }

func TestRegisterHookBeans(t *testing.T) {
	f := New()
	mustRegister(t, f, "hook", descriptor.For[*NamingHookBean]())
	mustRegister(t, f, "repo", descriptor.For[*Repo](descriptor.WithProperty("name", "r")))

	if err := f.RegisterHookBeans(context.Background()); err != nil {
		t.Fatalf("RegisterHookBeans: %v", err)
	}
	if len(f.Hooks()) != 1 {
		t.Fatalf("expected one hook, got %d", len(f.Hooks()))
	}
	if r := mustGet(t, f, "repo").(*Repo); r.Name != "hooked:r" {
		t.Errorf("expected the hook to run, got %q", r.Name)
	}
}

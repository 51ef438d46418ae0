package factory

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/typeinfo"
)

var greeterType = reflect.TypeFor[Greeter]()

func greetWith(t *testing.T, obj any) string {
	t.Helper()
	g, ok := obj.(Greeter)
	if !ok {
		t.Fatalf("expected a Greeter, got %T", obj)
	}
	return g.Greet()
}

func TestGetBeanByType(t *testing.T) {
	tests := []struct {
		name    string
		english []descriptor.Option
		french  []descriptor.Option
		want    string
		wantErr error
	}{
		{name: "no primary", wantErr: errors.ErrNoUniqueCandidate},
		{name: "primary wins", french: []descriptor.Option{descriptor.AsPrimary()}, want: "bonjour"},
		{
			name:    "two primaries",
			english: []descriptor.Option{descriptor.AsPrimary()},
			french:  []descriptor.Option{descriptor.AsPrimary()},
			wantErr: errors.ErrAmbiguousPrimary,
		},
		{name: "excluded candidate", english: []descriptor.Option{descriptor.ExcludedFromAutowire()}, want: "bonjour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New()
			mustRegister(t, f, "english", descriptor.For[*English](tt.english...))
			mustRegister(t, f, "french", descriptor.For[*French](tt.french...))

			obj, err := f.GetBeanByType(context.Background(), greeterType)
			if tt.wantErr != nil {
				if !stderrors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetBeanByType: %v", err)
			}
			if got := greetWith(t, obj); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_InjectionPointName(t *testing.T) {
	f := New()
	mustRegister(t, f, "english", descriptor.For[*English]())
	mustRegister(t, f, "french", descriptor.For[*French]())
	if err := f.Alias("french", "fr"); err != nil {
		t.Fatalf("Alias: %v", err)
	}

	for _, name := range []string{"french", "fr"} {
		v, err := f.Resolve(context.Background(), &DependencyDescriptor{Type: greeterType, Name: name, Required: true}, "")
		if err != nil {
			t.Fatalf("Resolve(%s): %v", name, err)
		}
		if got := greetWith(t, v.Interface()); got != "bonjour" {
			t.Errorf("Resolve(%s) = %q", name, got)
		}
	}
}

func TestResolve_Optional(t *testing.T) {
	f := New()
	v, err := f.Resolve(context.Background(), &DependencyDescriptor{Type: greeterType}, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v.IsValid() {
		t.Errorf("expected an invalid value, got %v", v)
	}

	_, err = f.Resolve(context.Background(), &DependencyDescriptor{Type: greeterType, Required: true}, "")
	if !stderrors.Is(err, errors.ErrNoMatchingCandidate) {
		t.Fatalf("expected ErrNoMatchingCandidate, got %v", err)
	}
}

func TestResolve_Qualifier(t *testing.T) {
	f := New()
	mustRegister(t, f, "english", descriptor.For[*English](descriptor.WithQualifier("lang", "en")))
	mustRegister(t, f, "french", descriptor.For[*French](
		descriptor.WithQualifier("lang", "fr"),
		descriptor.WithAttribute("region", "eu"),
	))

	tests := []struct {
		name string
		q    *descriptor.Qualifier
		want string
	}{
		{name: "qualifier value", q: &descriptor.Qualifier{Type: "lang", Value: "en"}, want: "hello"},
		{name: "descriptor attribute", q: &descriptor.Qualifier{Type: "lang", Attributes: map[string]any{"region": "eu"}}, want: "bonjour"},
		{name: "name as value", q: &descriptor.Qualifier{Type: "other", Value: "french"}, want: "bonjour"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := f.Resolve(context.Background(), &DependencyDescriptor{Type: greeterType, Required: true, Qualifier: tt.q}, "")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got := greetWith(t, v.Interface()); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_PrimaryAcrossFactories(t *testing.T) {
	t.Run("local primary beats inherited primary", func(t *testing.T) {
		parent := New()
		mustRegister(t, parent, "english", descriptor.For[*English](descriptor.AsPrimary()))
		child := New(WithParent(parent))
		mustRegister(t, child, "french", descriptor.For[*French](descriptor.AsPrimary()))

		obj, err := child.GetBeanByType(context.Background(), greeterType)
		if err != nil {
			t.Fatalf("GetBeanByType: %v", err)
		}
		if got := greetWith(t, obj); got != "bonjour" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("inherited primary beats local non-primary", func(t *testing.T) {
		parent := New()
		mustRegister(t, parent, "english", descriptor.For[*English](descriptor.AsPrimary()))
		child := New(WithParent(parent))
		mustRegister(t, child, "french", descriptor.For[*French]())

		obj, err := child.GetBeanByType(context.Background(), greeterType)
		if err != nil {
			t.Fatalf("GetBeanByType: %v", err)
		}
		if got := greetWith(t, obj); got != "hello" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("two inherited primaries", func(t *testing.T) {
		parent := New()
		mustRegister(t, parent, "english", descriptor.For[*English](descriptor.AsPrimary()))
		mustRegister(t, parent, "french", descriptor.For[*French](descriptor.AsPrimary()))
		child := New(WithParent(parent))

		_, err := child.GetBeanByType(context.Background(), greeterType)
		if !stderrors.Is(err, errors.ErrAmbiguousPrimary) {
			t.Fatalf("expected ErrAmbiguousPrimary, got %v", err)
		}
	})
}

func TestResolve_Collections(t *testing.T) {
	f := New()
	f.Loader().Register(typeinfo.MustDefine[*Chorus](typeinfo.Constructor(NewChorus, "voices")))
	mustRegister(t, f, "english", descriptor.For[*English]())
	mustRegister(t, f, "french", descriptor.For[*French]())
	mustRegister(t, f, "chorus", descriptor.For[*Chorus]())

	c := mustGet(t, f, "chorus").(*Chorus)
	if len(c.Voices) != 2 || c.Voices[0].Greet() != "hello" || c.Voices[1].Greet() != "bonjour" {
		t.Fatalf("unexpected voices %v", c.Voices)
	}

	v, err := f.Resolve(context.Background(), &DependencyDescriptor{Type: reflect.TypeFor[map[string]Greeter](), Required: true}, "")
	if err != nil {
		t.Fatalf("Resolve(map): %v", err)
	}
	m := v.Interface().(map[string]Greeter)
	if len(m) != 2 || m["english"].Greet() != "hello" || m["french"].Greet() != "bonjour" {
		t.Errorf("unexpected map %v", m)
	}

	_, err = f.Resolve(context.Background(), &DependencyDescriptor{Type: reflect.TypeFor[[1]Greeter](), Required: true}, "")
	if !stderrors.Is(err, errors.ErrNoUniqueCandidate) {
		t.Fatalf("expected ErrNoUniqueCandidate for an undersized array, got %v", err)
	}
	if be, ok := errors.AsBeanError(err); !ok || be.Details["capacity"] != 1 {
		t.Errorf("expected capacity detail 1, got %v", err)
	}

	v, err = f.Resolve(context.Background(), &DependencyDescriptor{Type: reflect.TypeFor[[3]Greeter](), Required: true}, "")
	if err != nil {
		t.Fatalf("Resolve(array): %v", err)
	}
	arr := v.Interface().([3]Greeter)
	if arr[0].Greet() != "hello" || arr[1].Greet() != "bonjour" || arr[2] != nil {
		t.Errorf("unexpected array %v", arr)
	}
}

func TestResolve_EmptyCollectionForSingleConstructor(t *testing.T) {
	f := New()
	f.Loader().Register(typeinfo.MustDefine[*Chorus](typeinfo.Constructor(NewChorus, "voices")))
	mustRegister(t, f, "chorus", descriptor.For[*Chorus]())

	c := mustGet(t, f, "chorus").(*Chorus)
	if c.Voices == nil || len(c.Voices) != 0 {
		t.Errorf("expected an empty, non-nil slice, got %#v", c.Voices)
	}
}

type FactoryHolder struct {
	Factory *Factory
	Repo    *Repo
}

func TestAutowireProperties(t *testing.T) {
	t.Run("by name", func(t *testing.T) {
		f := New()
		mustRegister(t, f, "repo", descriptor.For[*Repo]())
		mustRegister(t, f, "svc", descriptor.For[*Service](descriptor.WithAutowire(descriptor.AutowireByName)))

		svc := mustGet(t, f, "svc").(*Service)
		if svc.Repo != mustGet(t, f, "repo") {
			t.Error("expected repo to be autowired by name")
		}
	})

	t.Run("by type", func(t *testing.T) {
		f := New()
		mustRegister(t, f, "store", descriptor.For[*Repo]())
		mustRegister(t, f, "holder", descriptor.For[*FactoryHolder](descriptor.WithAutowire(descriptor.AutowireByType)))

		h := mustGet(t, f, "holder").(*FactoryHolder)
		if h.Repo != mustGet(t, f, "store") {
			t.Error("expected repo to be autowired by type")
		}
		if h.Factory != f {
			t.Error("expected the factory itself to be injected")
		}
		if !f.Graph().IsDependent("store", "holder") {
			t.Error("expected holder to depend on store")
		}
	})

	t.Run("by type leaves unmatched properties alone", func(t *testing.T) {
		f := New()
		mustRegister(t, f, "svc", descriptor.For[*Service](descriptor.WithAutowire(descriptor.AutowireByType)))

		if svc := mustGet(t, f, "svc").(*Service); svc.Repo != nil {
			t.Errorf("expected no repo, got %+v", svc.Repo)
		}
	})

	t.Run("dependency check", func(t *testing.T) {
		f := New()
		mustRegister(t, f, "svc", descriptor.For[*Service](descriptor.WithDependencyCheck(descriptor.CheckObjects)))

		_, err := f.GetBean(context.Background(), "svc")
		if !stderrors.Is(err, errors.ErrUnsatisfiedDependency) {
			t.Fatalf("expected ErrUnsatisfiedDependency, got %v", err)
		}
	})
}

func TestNamesForType(t *testing.T) {
	f := New()
	mustRegister(t, f, "english", descriptor.For[*English]())
	mustRegister(t, f, "french", descriptor.For[*French](descriptor.AsPrototype()))
	mustRegister(t, f, "abstract", descriptor.For[*English](descriptor.AsAbstract()))
	if err := f.RegisterSingleton("manual", &English{}); err != nil {
		t.Fatalf("RegisterSingleton: %v", err)
	}

	all := f.NamesForType(greeterType, true, true)
	if len(all) != 3 || all[0] != "english" || all[1] != "french" || all[2] != "manual" {
		t.Errorf("NamesForType(incl. non-singletons) = %v", all)
	}
	singletons := f.NamesForType(greeterType, false, true)
	if len(singletons) != 2 || singletons[0] != "english" || singletons[1] != "manual" {
		t.Errorf("NamesForType(singletons) = %v", singletons)
	}

	f.Freeze()
	if again := f.NamesForType(greeterType, true, true); len(again) != 3 {
		t.Errorf("frozen lookup = %v", again)
	}
}

func TestBeansOfType(t *testing.T) {
	f := New()
	mustRegister(t, f, "english", descriptor.For[*English]())
	mustRegister(t, f, "french", descriptor.For[*French]())
	mustRegister(t, f, "repo", descriptor.For[*Repo]())

	beans, err := f.BeansOfType(context.Background(), greeterType, true, true)
	if err != nil {
		t.Fatalf("BeansOfType: %v", err)
	}
	if len(beans) != 2 {
		t.Fatalf("expected 2 greeters, got %v", beans)
	}
	if _, ok := beans["english"].(*English); !ok {
		t.Errorf("unexpected english %T", beans["english"])
	}
}

func TestTypeOf(t *testing.T) {
	f := New()
	mustRegister(t, f, "repo", descriptor.For[*Repo]())
	f.Loader().Register(typeinfo.MustDefine[*Settings]())
	mustRegister(t, f, "named", descriptor.New(descriptor.WithTypeName(typeinfo.TypeName(reflect.TypeFor[*Settings]()))))

	if typ, err := f.TypeOf("repo"); err != nil || typ != reflect.TypeFor[*Repo]() {
		t.Errorf("TypeOf(repo) = %v, %v", typ, err)
	}
	if typ, err := f.TypeOf("named"); err != nil || typ != reflect.TypeFor[*Settings]() {
		t.Errorf("TypeOf(named) = %v, %v", typ, err)
	}
	if !f.IsTypeMatch("repo", reflect.TypeFor[*Repo]()) || f.IsTypeMatch("repo", greeterType) {
		t.Error("unexpected IsTypeMatch result")
	}
	if len(f.SingletonNames()) != 0 {
		t.Errorf("type inspection must not build objects, built %v", f.SingletonNames())
	}
}

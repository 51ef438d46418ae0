package typeinfo

import (
	"fmt"
	"go/token"
	"reflect"
	"sort"
	"sync"
)

// Info is the introspection record for one managed type: its constructors,
// its static factory routines and its settable properties.
type Info struct {
	Type reflect.Type
	Name string

	ctors     []*Routine
	factories map[string][]*Routine
	methods   map[string][]*Routine
	abstract  bool

	propsOnce sync.Once
	props     map[string]*Property
	propOrder []string
}

// Option configures an Info built with Define.
type Option func(*Info) error

// Define builds the Info for T from the given options.
func Define[T any](opts ...Option) (*Info, error) {
	return DefineType(reflect.TypeFor[T](), opts...)
}

// MustDefine is Define that panics on error.
func MustDefine[T any](opts ...Option) *Info {
	info, err := Define[T](opts...)
	if err != nil {
		panic(err)
	}
	return info
}

// DefineType builds the Info for t from the given options.
func DefineType(t reflect.Type, opts ...Option) (*Info, error) {
	info := newInfo(t)
	for _, opt := range opts {
		if err := opt(info); err != nil {
			return nil, fmt.Errorf("typeinfo: define %s: %w", info.Name, err)
		}
	}
	return info, nil
}

func newInfo(t reflect.Type) *Info {
	return &Info{
		Type:      t,
		Name:      TypeName(t),
		factories: make(map[string][]*Routine),
		methods:   make(map[string][]*Routine),
		abstract:  t.Kind() == reflect.Interface,
	}
}

// Named overrides the name the type is registered under in a Loader.
func Named(name string) Option {
	return func(i *Info) error {
		i.Name = name
		return nil
	}
}

// Constructor adds a public constructor. fn must return the defined type.
func Constructor(fn any, paramNames ...string) Option {
	return constructor(fn, true, paramNames)
}

// HiddenConstructor adds a constructor only usable when non-public access is allowed.
func HiddenConstructor(fn any, paramNames ...string) Option {
	return constructor(fn, false, paramNames)
}

func constructor(fn any, public bool, paramNames []string) Option {
	return func(i *Info) error {
		r, err := NewRoutine("new", fn, public, paramNames...)
		if err != nil {
			return err
		}
		if r.Out == nil || !r.Out.AssignableTo(i.Type) && !(i.Type.Kind() == reflect.Interface && r.Out.Implements(i.Type)) {
			return fmt.Errorf("constructor %s does not produce %s", r, i.Type)
		}
		r.Name = i.Name
		i.ctors = append(i.ctors, r)
		return nil
	}
}

// Factory adds a static factory routine under name. Several routines may
// share a name; they are the overloads tried by factory-routine resolution.
func Factory(name string, fn any, paramNames ...string) Option {
	return func(i *Info) error {
		r, err := NewRoutine(name, fn, true, paramNames...)
		if err != nil {
			return err
		}
		i.factories[name] = append(i.factories[name], r)
		return nil
	}
}

// Method adds an instance-bound routine under name. fn takes the receiver as
// its first parameter. Methods declared on the type itself are found
// without registration.
func Method(name string, fn any, paramNames ...string) Option {
	return func(i *Info) error {
		r, err := NewMethodRoutine(name, fn, token.IsExported(name), paramNames...)
		if err != nil {
			return err
		}
		if !i.Type.AssignableTo(r.Receiver) {
			return fmt.Errorf("method %s takes receiver %s, not %s", name, r.Receiver, i.Type)
		}
		i.methods[name] = append(i.methods[name], r)
		return nil
	}
}

// Abstract marks the type as non-instantiable.
func Abstract() Option {
	return func(i *Info) error {
		i.abstract = true
		return nil
	}
}

// Public reports whether the type's name is exported.
func (i *Info) Public() bool { return IsPublic(i.Type) }

// Abstract reports whether the type cannot be instantiated.
func (i *Info) Abstract() bool { return i.abstract }

// Constructors returns the registered constructors. A pointer-to-struct
// type without registered constructors has a zero-value constructor.
func (i *Info) Constructors() []*Routine {
	if len(i.ctors) > 0 {
		return append([]*Routine(nil), i.ctors...)
	}
	if zc := i.ZeroConstructor(); zc != nil {
		return []*Routine{zc}
	}
	return nil
}

// DeclaredConstructors returns only the explicitly registered constructors.
func (i *Info) DeclaredConstructors() []*Routine {
	return append([]*Routine(nil), i.ctors...)
}

// ZeroConstructor returns a routine producing a fresh zero value of the
// type, or nil when the type has no usable zero value.
func (i *Info) ZeroConstructor() *Routine {
	t := i.Type
	if i.abstract {
		return nil
	}
	var mk func() reflect.Value
	switch {
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		mk = func() reflect.Value { return reflect.New(t.Elem()) }
	case t.Kind() == reflect.Struct:
		mk = func() reflect.Value { return reflect.New(t).Elem() }
	case t.Kind() == reflect.Map:
		mk = func() reflect.Value { return reflect.MakeMap(t) }
	case t.Kind() == reflect.Slice:
		mk = func() reflect.Value { return reflect.MakeSlice(t, 0, 0) }
	default:
		return nil
	}
	return &Routine{
		Name:   i.Name,
		Public: true,
		Static: true,
		Out:    t,
		call:   func([]reflect.Value) []reflect.Value { return []reflect.Value{mk()} },
	}
}

// FactoryRoutines returns the static routines registered under name.
func (i *Info) FactoryRoutines(name string) []*Routine {
	return append([]*Routine(nil), i.factories[name]...)
}

// MethodRoutines returns the instance-bound routines named name: the
// registered ones plus the method declared on the type, if any.
func (i *Info) MethodRoutines(name string) []*Routine {
	out := append([]*Routine(nil), i.methods[name]...)
	if m, ok := i.Type.MethodByName(name); ok {
		if r, err := methodRoutine(m); err == nil {
			out = append(out, r)
		}
	}
	return out
}

// FactoryNames returns the names of all registered static factory routines, sorted.
func (i *Info) FactoryNames() []string {
	names := make([]string, 0, len(i.factories))
	for n := range i.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TypeName returns the natural lookup name of a type, e.g. "*app.Service".
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// IsPublic reports whether a type is visible outside its package. Unnamed
// composite types are public when their element types are.
func IsPublic(t reflect.Type) bool {
	if t.Name() != "" {
		return t.PkgPath() == "" || token.IsExported(t.Name())
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Chan:
		return IsPublic(t.Elem())
	case reflect.Map:
		return IsPublic(t.Key()) && IsPublic(t.Elem())
	}
	return true
}

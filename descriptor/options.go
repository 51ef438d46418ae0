package descriptor

import "reflect"

// Option configures a Descriptor built with New.
type Option func(*Descriptor)

// New builds a descriptor from options.
func New(opts ...Option) *Descriptor {
	d := &Descriptor{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// For builds a descriptor producing T.
func For[T any](opts ...Option) *Descriptor {
	return New(append([]Option{WithType(reflect.TypeFor[T]())}, opts...)...)
}

// WithType sets the produced type.
func WithType(t reflect.Type) Option {
	return func(d *Descriptor) { d.Type = t }
}

// WithTypeName sets a type name resolved through the factory's type loader.
func WithTypeName(name string) Option {
	return func(d *Descriptor) { d.TypeName = name }
}

// WithParent names the descriptor this one inherits from.
func WithParent(name string) Option {
	return func(d *Descriptor) { d.Parent = name }
}

// WithScope sets the scope name.
func WithScope(scope string) Option {
	return func(d *Descriptor) { d.Scope = scope }
}

// AsPrototype is WithScope(ScopePrototype).
func AsPrototype() Option { return WithScope(ScopePrototype) }

// AsAbstract marks the descriptor as a template only.
func AsAbstract() Option {
	return func(d *Descriptor) { d.Abstract = true }
}

// AsLazy defers creation of a singleton until first requested.
func AsLazy() Option {
	return func(d *Descriptor) { d.LazyInit = true }
}

// AsPrimary makes the descriptor win among several type-compatible candidates.
func AsPrimary() Option {
	return func(d *Descriptor) { d.Primary = true }
}

// AsStrict disables lenient constructor resolution.
func AsStrict() Option {
	return func(d *Descriptor) { d.Strict = true }
}

// WithNonPublicAccess permits unexported types and hidden constructors.
func WithNonPublicAccess() Option {
	return func(d *Descriptor) { d.NonPublicAccess = true }
}

// ExcludedFromAutowire removes the descriptor from type-based candidate search.
func ExcludedFromAutowire() Option {
	return func(d *Descriptor) { d.ExcludeFromAutowire = true }
}

// WithAutowire sets the autowire mode.
func WithAutowire(mode AutowireMode) Option {
	return func(d *Descriptor) { d.Autowire = mode }
}

// WithDependencyCheck sets the dependency check policy.
func WithDependencyCheck(c DependencyCheck) Option {
	return func(d *Descriptor) { d.DependencyCheck = c }
}

// WithDependsOn names objects that must be created before this one.
func WithDependsOn(names ...string) Option {
	return func(d *Descriptor) { d.DependsOn = append(d.DependsOn, names...) }
}

// WithArg sets the argument at a position.
func WithArg(index int, value any) Option {
	return func(d *Descriptor) { d.Args.AddIndexed(index, &ValueHolder{Value: value}) }
}

// WithArgs adds generic arguments in order.
func WithArgs(values ...any) Option {
	return func(d *Descriptor) {
		for _, v := range values {
			d.Args.AddGeneric(&ValueHolder{Value: v})
		}
	}
}

// WithNamedArg adds a generic argument matched to the parameter named name.
func WithNamedArg(name string, value any) Option {
	return func(d *Descriptor) { d.Args.AddGeneric(&ValueHolder{Value: value, Name: name}) }
}

// WithTypedArg adds a generic argument matched to parameters of type t.
func WithTypedArg(t reflect.Type, value any) Option {
	return func(d *Descriptor) { d.Args.AddGeneric(&ValueHolder{Value: value, Type: t}) }
}

// WithProperty assigns a property.
func WithProperty(name string, value any) Option {
	return func(d *Descriptor) { d.Properties.Add(name, value) }
}

// WithRef assigns a property to a reference to another managed object.
func WithRef(property, bean string) Option {
	return WithProperty(property, RefTo(bean))
}

// WithInitMethod names a method invoked after properties are set.
func WithInitMethod(name string) Option {
	return func(d *Descriptor) { d.InitMethod = name; d.EnforceInit = true }
}

// WithDestroyMethod names a method invoked when the object is destroyed.
func WithDestroyMethod(name string) Option {
	return func(d *Descriptor) { d.DestroyMethod = name; d.EnforceDestroy = true }
}

// WithFactoryMethod names a static routine registered for the type.
func WithFactoryMethod(name string) Option {
	return func(d *Descriptor) { d.FactoryMethod = name }
}

// WithFactoryBean names a method on another managed object.
func WithFactoryBean(bean, method string) Option {
	return func(d *Descriptor) { d.FactoryBean = bean; d.FactoryMethod = method }
}

// WithSupplier sets a function producing the instance directly.
func WithSupplier(fn Supplier) Option {
	return func(d *Descriptor) { d.Supplier = fn }
}

// WithLookupMethod makes method return the managed object bean on every call.
func WithLookupMethod(method, bean string) Option {
	return func(d *Descriptor) {
		d.Overrides.Add(&MethodOverride{Method: method, Kind: LookupOverride, Bean: bean})
	}
}

// WithReplacedMethod routes method to the MethodReplacer named replacer.
func WithReplacedMethod(method, replacer string) Option {
	return func(d *Descriptor) {
		d.Overrides.Add(&MethodOverride{Method: method, Kind: ReplaceOverride, Bean: replacer})
	}
}

// WithQualifier attaches a qualifier.
func WithQualifier(typ, value string) Option {
	return func(d *Descriptor) { d.AddQualifier(&Qualifier{Type: typ, Value: value}) }
}

// WithAttribute stores a metadata attribute.
func WithAttribute(key string, value any) Option {
	return func(d *Descriptor) { d.SetAttribute(key, value) }
}

// WithDescription sets a human-readable description.
func WithDescription(text string) Option {
	return func(d *Descriptor) { d.Description = text }
}

// AsSynthetic marks the descriptor as created by the container.
func AsSynthetic() Option {
	return func(d *Descriptor) { d.Synthetic = true }
}

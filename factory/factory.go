package factory

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/beankit/convert"
	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/lifecycle"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/registry"
	"github.com/kbukum/beankit/typeinfo"
)

// Factory builds and manages objects from the descriptors in its registry.
// It is safe for concurrent use.
type Factory struct {
	id        string
	parent    *Factory
	registry  *registry.Registry
	cache     *lifecycle.SingletonCache
	loader    *typeinfo.Loader
	converter *convert.Converter
	strategy  InstantiationStrategy
	log       *logger.Logger

	allowCircular     bool
	allowRawInjection bool

	hooks hookSet

	mu              sync.RWMutex
	observers       []CreationObserver
	scopes          map[string]lifecycle.Scope
	resolvable      map[reflect.Type]any
	resolvableOrder []reflect.Type
	manual          []string
	created         map[string]bool
	products        map[string]any
	typeCache       map[typeCacheKey][]string
	suppressed      []error
}

type options struct {
	parent            *Factory
	loader            *typeinfo.Loader
	converter         *convert.Converter
	strategy          InstantiationStrategy
	log               *logger.Logger
	allowCircular     bool
	allowRawInjection bool
	registryOpts      []registry.Option
}

// Option configures a Factory.
type Option func(*options)

// WithParent makes unknown names resolve in p. Candidates found in p are
// inherited rather than local.
func WithParent(p *Factory) Option {
	return func(o *options) { o.parent = p }
}

// WithLoader sets the type loader used for descriptors naming their type.
func WithLoader(l *typeinfo.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithConverter sets the converter applied to arguments and property values.
func WithConverter(c *convert.Converter) Option {
	return func(o *options) { o.converter = c }
}

// WithStrategy sets the instantiation strategy.
func WithStrategy(s InstantiationStrategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithCircularReferences controls whether singletons are exposed early to
// break circular references. Enabled by default.
func WithCircularReferences(allow bool) Option {
	return func(o *options) { o.allowCircular = allow }
}

// WithRawInjection permits injecting the raw version of a singleton that is
// later wrapped by a hook. Disabled by default.
func WithRawInjection(allow bool) Option {
	return func(o *options) { o.allowRawInjection = allow }
}

// WithOverriding controls whether a descriptor may be replaced by
// registering another one under the same name.
func WithOverriding(allow bool) Option {
	return func(o *options) { o.registryOpts = append(o.registryOpts, registry.WithOverriding(allow)) }
}

// WithNameGenerator sets the generator naming descriptors registered without a name.
func WithNameGenerator(g registry.NameGenerator) Option {
	return func(o *options) { o.registryOpts = append(o.registryOpts, registry.WithNameGenerator(g)) }
}

// New creates a factory with an empty registry.
func New(opts ...Option) *Factory {
	o := &options{allowCircular: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.loader == nil {
		var parentLoader *typeinfo.Loader
		if o.parent != nil {
			parentLoader = o.parent.loader
		}
		o.loader = typeinfo.NewLoader(parentLoader)
	}
	if o.converter == nil {
		o.converter = convert.New()
	}
	if o.strategy == nil {
		o.strategy = &InterceptingStrategy{Generator: FuncFieldGenerator{}}
	}

	id := uuid.NewString()
	log := o.log.WithFields(logger.Fields(logger.FieldContainerID, id))
	regOpts := append([]registry.Option{registry.WithLogger(log)}, o.registryOpts...)
	if o.parent != nil {
		regOpts = append(regOpts, registry.WithParentLookup(o.parent.registry))
	}

	f := &Factory{
		id:                id,
		parent:            o.parent,
		registry:          registry.New(regOpts...),
		cache:             lifecycle.NewSingletonCache(log),
		loader:            o.loader,
		converter:         o.converter,
		strategy:          o.strategy,
		log:               log,
		allowCircular:     o.allowCircular,
		allowRawInjection: o.allowRawInjection,
		scopes:            make(map[string]lifecycle.Scope),
		resolvable:        make(map[reflect.Type]any),
		created:           make(map[string]bool),
		products:          make(map[string]any),
	}
	f.registry.OnReset(f.onReset)
	f.RegisterResolvableDependency(reflect.TypeFor[*Factory](), f)
	return f
}

// ID identifies the factory in logs.
func (f *Factory) ID() string { return f.id }

// Parent returns the parent factory, or nil.
func (f *Factory) Parent() *Factory { return f.parent }

// Registry returns the descriptor registry.
func (f *Factory) Registry() *registry.Registry { return f.registry }

// Loader returns the type loader.
func (f *Factory) Loader() *typeinfo.Loader { return f.loader }

// Converter returns the value converter.
func (f *Factory) Converter() *convert.Converter { return f.converter }

// Graph returns the dependency graph between managed objects.
func (f *Factory) Graph() *lifecycle.DependencyGraph { return f.cache.Graph() }

// Logger returns the factory logger.
func (f *Factory) Logger() *logger.Logger { return f.log }

// Register adds a descriptor under name.
func (f *Factory) Register(name string, d *descriptor.Descriptor) error {
	if err := f.registry.Register(name, d); err != nil {
		return err
	}
	f.clearTypeCache()
	return nil
}

// RegisterGenerated adds a descriptor under a generated name and returns it.
func (f *Factory) RegisterGenerated(d *descriptor.Descriptor) (string, error) {
	name, err := f.registry.RegisterGenerated(d)
	if err != nil {
		return "", err
	}
	f.clearTypeCache()
	return name, nil
}

// RemoveDescriptor deletes a descriptor and destroys its singleton, if any.
func (f *Factory) RemoveDescriptor(name string) error {
	return f.registry.Remove(name)
}

// Alias registers alias as another name for name.
func (f *Factory) Alias(name, alias string) error {
	if err := f.registry.RegisterAlias(name, alias); err != nil {
		return err
	}
	f.clearTypeCache()
	return nil
}

// Freeze marks the configuration as final; type lookups are cached from
// then on.
func (f *Factory) Freeze() {
	f.registry.Freeze()
	f.clearTypeCache()
}

// onReset runs when a descriptor is replaced or removed.
func (f *Factory) onReset(name string) {
	f.clearTypeCache()
	f.mu.Lock()
	delete(f.products, name)
	delete(f.created, name)
	f.mu.Unlock()
	if f.cache.Contains(name) {
		if err := f.cache.DestroySingleton(context.Background(), name); err != nil {
			f.log.Warn("destroying singleton of reset descriptor failed", logger.MergeWithError(logger.BeanFields(name, "reset"), err))
		}
	}
}

// RegisterSingleton stores an existing object as a finished singleton. It
// takes part in type-based lookups but is not built, populated or
// initialized by the factory.
func (f *Factory) RegisterSingleton(name string, obj any) error {
	if err := f.cache.Register(name, obj); err != nil {
		return errors.InvalidDescriptor(name, err.Error())
	}
	f.mu.Lock()
	if !f.registry.Contains(name) && !slices.Contains(f.manual, name) {
		f.manual = append(f.manual, name)
	}
	f.mu.Unlock()
	f.clearTypeCache()
	return nil
}

// RegisterScope makes a custom scope available under name.
func (f *Factory) RegisterScope(name string, s lifecycle.Scope) error {
	if name == descriptor.ScopeSingleton || name == descriptor.ScopePrototype {
		return errors.InvalidDescriptor(name, "cannot replace the built-in scope '"+name+"'")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes[name] = s
	return nil
}

// Scope returns the custom scope registered under name.
func (f *Factory) Scope(name string) (lifecycle.Scope, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.scopes[name]
	return s, ok
}

// ScopeNames returns the registered custom scope names.
func (f *Factory) ScopeNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.scopes))
	for n := range f.scopes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// RegisterResolvableDependency injects value wherever t is required,
// without value being a managed object. value may be a ValueProducer.
func (f *Factory) RegisterResolvableDependency(t reflect.Type, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.resolvable[t]; !ok {
		f.resolvableOrder = append(f.resolvableOrder, t)
	}
	f.resolvable[t] = value
}

// AddHook registers a collaborator implementing one or more hook
// interfaces. Adding the same hook again moves it to the end.
func (f *Factory) AddHook(h any) error {
	if h == nil || !isHook(h) {
		return errors.InvalidConfig("value does not implement any hook interface")
	}
	f.hooks.add(h)
	return nil
}

// Hooks returns the registered hooks in order.
func (f *Factory) Hooks() []any { return f.hooks.list() }

// AddObserver registers a creation observer.
func (f *Factory) AddObserver(o CreationObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, o)
}

// Descriptor returns the resolved descriptor of name, looking through the
// parent chain.
func (f *Factory) Descriptor(name string) (*descriptor.Descriptor, error) {
	beanName := f.transformedName(name)
	if !f.registry.Contains(beanName) && f.parent != nil {
		return f.parent.Descriptor(beanName)
	}
	return f.registry.Resolved(beanName)
}

// DescriptorNames returns the names of all local descriptors in
// registration order.
func (f *Factory) DescriptorNames() []string { return f.registry.Names() }

// SingletonNames returns the names of local finished singletons.
func (f *Factory) SingletonNames() []string { return f.cache.Names() }

// ManualSingletonNames returns the names given to RegisterSingleton.
func (f *Factory) ManualSingletonNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.manual)
}

func (f *Factory) markCreated(name string) {
	f.mu.Lock()
	f.created[name] = true
	f.mu.Unlock()
}

func (f *Factory) unmarkCreated(name string) {
	f.mu.Lock()
	delete(f.created, name)
	f.mu.Unlock()
}

func (f *Factory) wasCreated(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.created[name]
}

func (f *Factory) observerList() []CreationObserver {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.observers)
}

package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"

	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/logger"
)

// CreateFunc builds one singleton. It receives a context carrying the
// creation context of the task.
type CreateFunc func(ctx context.Context) (any, error)

// EarlyFactory produces the early reference of a singleton under
// construction. It is invoked at most once.
type EarlyFactory func() (any, error)

// DestroyFunc tears down one managed object.
type DestroyFunc func(ctx context.Context) error

// SingletonCache holds finished singletons, early references of singletons
// under construction and the factories producing those early references.
//
// A single creation lock is held across each creation attempt. The lock is
// owned by the task whose creation context acquired it; nested creations on
// that task re-enter it.
type SingletonCache struct {
	creation sync.Mutex

	mu          sync.RWMutex
	finished    map[string]any
	early       map[string]any
	factories   map[string]EarlyFactory
	registered  []string
	inCreation  map[string]bool
	destroying  bool
	disposables map[string]DestroyFunc
	disposeSeq  []string

	graph *DependencyGraph
	log   *logger.Logger
}

// NewSingletonCache creates an empty cache.
func NewSingletonCache(log *logger.Logger) *SingletonCache {
	if log == nil {
		log = logger.Nop()
	}
	return &SingletonCache{
		finished:    make(map[string]any),
		early:       make(map[string]any),
		factories:   make(map[string]EarlyFactory),
		inCreation:  make(map[string]bool),
		disposables: make(map[string]DestroyFunc),
		graph:       NewDependencyGraph(),
		log:         log,
	}
}

// Graph returns the dependency graph consulted at destruction time.
func (c *SingletonCache) Graph() *DependencyGraph { return c.graph }

// acquire takes the creation lock unless the task already holds it.
func (c *SingletonCache) acquire(cc *CreationContext) func() {
	if !cc.Owns(c) {
		c.creation.Lock()
	}
	cc.enter(c)
	return func() {
		if cc.exit(c) {
			c.creation.Unlock()
		}
	}
}

// Register stores a finished singleton directly. It fails if name is
// already held.
func (c *SingletonCache) Register(name string, obj any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.finished[name]; ok {
		return fmt.Errorf("could not register object under name '%s': there is already an object bound", name)
	}
	c.addLocked(name, obj)
	return nil
}

func (c *SingletonCache) addLocked(name string, obj any) {
	c.finished[name] = obj
	delete(c.early, name)
	delete(c.factories, name)
	if !slices.Contains(c.registered, name) {
		c.registered = append(c.registered, name)
	}
}

// GetFinished returns a finished singleton only.
func (c *SingletonCache) GetFinished(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.finished[name]
	return obj, ok
}

// GetOrCreate returns the finished singleton or creates it with fn under the
// creation lock. A failed creation leaves no state behind for name.
func (c *SingletonCache) GetOrCreate(ctx context.Context, name string, fn CreateFunc) (obj any, err error) {
	if obj, ok := c.GetFinished(name); ok {
		return obj, nil
	}
	ctx, cc := WithCreation(ctx)
	release := c.acquire(cc)
	defer release()

	c.mu.Lock()
	if obj, ok := c.finished[name]; ok {
		c.mu.Unlock()
		return obj, nil
	}
	if c.destroying {
		c.mu.Unlock()
		return nil, errors.CreationNotAllowed(name)
	}
	if c.inCreation[name] {
		c.mu.Unlock()
		return nil, errors.AlreadyInCreation(name).WithDetail("path", append(cc.Path(), name))
	}
	c.inCreation[name] = true
	c.mu.Unlock()

	c.log.Debug("creating shared instance", logger.BeanFields(name, "create"))

	committed := false
	defer func() {
		if committed {
			return
		}
		c.mu.Lock()
		delete(c.inCreation, name)
		c.mu.Unlock()
		c.Remove(name)
	}()

	obj, err = fn(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	delete(c.inCreation, name)
	c.addLocked(name, obj)
	c.mu.Unlock()
	committed = true
	return obj, nil
}

// IsInCreation reports whether name is currently being created.
func (c *SingletonCache) IsInCreation(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inCreation[name]
}

// ExposeEarly stores the factory for the early reference of a singleton
// under construction, unless the singleton is already finished.
func (c *SingletonCache) ExposeEarly(name string, f EarlyFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.finished[name]; ok {
		return
	}
	c.factories[name] = f
	delete(c.early, name)
	if !slices.Contains(c.registered, name) {
		c.registered = append(c.registered, name)
	}
	c.log.Debug("eagerly caching early reference", logger.BeanFields(name, "expose"))
}

// ResolveEarly returns the finished singleton or, for a singleton this task
// is creating, its early reference. The early factory runs at most once.
// Tasks not holding the creation lock see nothing for a singleton in
// creation and block in GetOrCreate until it is finished.
func (c *SingletonCache) ResolveEarly(ctx context.Context, name string) (any, bool, error) {
	c.mu.RLock()
	if obj, ok := c.finished[name]; ok {
		c.mu.RUnlock()
		return obj, true, nil
	}
	inCreation := c.inCreation[name]
	c.mu.RUnlock()
	if !inCreation || !FromContext(ctx).Owns(c) {
		return nil, false, nil
	}

	c.mu.Lock()
	if obj, ok := c.early[name]; ok {
		c.mu.Unlock()
		return obj, true, nil
	}
	f, ok := c.factories[name]
	if !ok {
		c.mu.Unlock()
		return nil, false, nil
	}
	delete(c.factories, name)
	c.mu.Unlock()

	obj, err := f()
	if err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	c.early[name] = obj
	c.mu.Unlock()
	c.log.Debug("returning early reference of singleton in creation", logger.BeanFields(name, "early"))
	return obj, true, nil
}

// EarlyReference returns the cached early reference without invoking a
// factory.
func (c *SingletonCache) EarlyReference(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok := c.early[name]
	return obj, ok
}

// Remove evicts name from every tier.
func (c *SingletonCache) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.finished, name)
	delete(c.early, name)
	delete(c.factories, name)
	c.registered = slices.DeleteFunc(c.registered, func(n string) bool { return n == name })
}

// Contains reports whether a finished singleton is held under name.
func (c *SingletonCache) Contains(name string) bool {
	_, ok := c.GetFinished(name)
	return ok
}

// Names returns the names of finished or early-exposed singletons in
// registration order.
func (c *SingletonCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.registered)
}

// Count returns the number of registered singletons.
func (c *SingletonCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.registered)
}

// RegisterDisposable records how to destroy name. Later registrations are
// destroyed first.
func (c *SingletonCache) RegisterDisposable(name string, fn DestroyFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.disposables[name]; !ok {
		c.disposeSeq = append(c.disposeSeq, name)
	}
	c.disposables[name] = fn
}

// IsDestroying reports whether DestroyAll is running.
func (c *SingletonCache) IsDestroying() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.destroying
}

// DestroyAll destroys every singleton with a destruction callback, each one
// after everything depending on it, and clears all tiers. Creation attempts
// made while it runs fail. Destruction errors are logged and returned
// joined; they do not stop the remaining destructions.
func (c *SingletonCache) DestroyAll(ctx context.Context) error {
	ctx, cc := WithCreation(ctx)
	release := c.acquire(cc)
	defer release()

	c.mu.Lock()
	c.destroying = true
	names := slices.Clone(c.disposeSeq)
	c.mu.Unlock()

	c.log.Debug("destroying singletons", logger.Fields(logger.FieldCount, len(names)))

	var errs []error
	for i := len(names) - 1; i >= 0; i-- {
		errs = append(errs, c.DestroySingleton(ctx, names[i]))
	}

	c.graph.Clear()
	c.mu.Lock()
	c.finished = make(map[string]any)
	c.early = make(map[string]any)
	c.factories = make(map[string]EarlyFactory)
	c.registered = nil
	c.disposables = make(map[string]DestroyFunc)
	c.disposeSeq = nil
	c.destroying = false
	c.mu.Unlock()
	return stderrors.Join(errs...)
}

// DestroySingleton evicts name and destroys it after everything depending on it.
func (c *SingletonCache) DestroySingleton(ctx context.Context, name string) error {
	c.Remove(name)
	c.mu.Lock()
	fn := c.disposables[name]
	delete(c.disposables, name)
	c.disposeSeq = slices.DeleteFunc(c.disposeSeq, func(n string) bool { return n == name })
	c.mu.Unlock()
	return c.destroy(ctx, name, fn)
}

func (c *SingletonCache) destroy(ctx context.Context, name string, fn DestroyFunc) error {
	var errs []error
	for _, dependent := range c.graph.takeDependents(name) {
		errs = append(errs, c.DestroySingleton(ctx, dependent))
	}
	if fn != nil {
		c.log.Debug("destroying singleton", logger.BeanFields(name, "destroy"))
		if err := fn(ctx); err != nil {
			c.log.Warn("destruction callback failed", logger.MergeWithError(logger.BeanFields(name, "destroy"), err))
			errs = append(errs, fmt.Errorf("destroy %s: %w", name, err))
		}
	}
	c.graph.Remove(name)
	return stderrors.Join(errs...)
}

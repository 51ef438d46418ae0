package component

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/lifecycle"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/observability"
)

// DefaultStopTimeout bounds each component's Stop call.
const DefaultStopTimeout = 10 * time.Second

type entry struct {
	name      string
	component Component
}

// Registry starts components in dependency order and stops them in reverse.
// Components found in a factory are ordered by its dependency graph; any
// other ordering falls back to registration order.
type Registry struct {
	entries     []*entry
	lookup      map[string]*entry
	started     []*entry
	graph       *lifecycle.DependencyGraph
	stopTimeout time.Duration
	log         *logger.Logger
	mu          sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithStopTimeout bounds each Stop call.
func WithStopTimeout(d time.Duration) Option {
	return func(r *Registry) { r.stopTimeout = d }
}

// WithLogger sets the registry logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// NewRegistry creates an empty component registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		lookup:      make(map[string]*entry),
		stopTimeout: DefaultStopTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get("components")
	} else {
		r.log = r.log.WithComponent("components")
	}
	return r
}

// Register adds a component under name.
func (r *Registry) Register(name string, c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(name, c)
}

func (r *Registry) registerLocked(name string, c Component) error {
	if _, exists := r.lookup[name]; exists {
		return errors.InvalidConfig(fmt.Sprintf("component %s already registered", name))
	}
	e := &entry{name: name, component: c}
	r.entries = append(r.entries, e)
	r.lookup[name] = e
	r.log.Debug("Component registered", logger.Fields(logger.FieldBean, name))
	return nil
}

// Discover registers every finished singleton of f that implements
// Component and adopts f's dependency graph for ordering. It returns the
// number of components added.
func (r *Registry) Discover(ctx context.Context, f *factory.Factory) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.graph = f.Graph()
	added := 0
	for _, name := range f.SingletonNames() {
		if _, exists := r.lookup[name]; exists {
			continue
		}
		obj, err := f.GetBean(ctx, name)
		if err != nil {
			return added, err
		}
		c, ok := obj.(Component)
		if !ok {
			continue
		}
		if err := r.registerLocked(name, c); err != nil {
			return added, err
		}
		added++
	}
	r.log.Debug("Components discovered", logger.Fields(logger.FieldCount, added))
	return added, nil
}

// order returns the entries so that every component follows the components
// it depends on.
func (r *Registry) order() []*entry {
	if r.graph == nil || len(r.entries) < 2 {
		return r.entries
	}
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	levels, err := r.graph.Levels(names)
	if err != nil {
		r.log.Warn("Components form a dependency cycle, using registration order", logger.Fields(logger.FieldError, err.Error()))
		return r.entries
	}
	ordered := make([]*entry, 0, len(r.entries))
	for _, level := range levels {
		for _, name := range level {
			ordered = append(ordered, r.lookup[name])
		}
	}
	return ordered
}

// StartAll starts all components in dependency order. When one fails, the
// components already started are stopped again in reverse order.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := r.order()
	r.log.Info("Starting all components", logger.Fields(logger.FieldCount, len(ordered)))

	for _, e := range ordered {
		if r.isStarted(e) {
			continue
		}
		r.log.Debug("Starting component", logger.Fields(logger.FieldBean, e.name))
		if err := e.component.Start(ctx); err != nil {
			r.log.Error("Component start failed", logger.Fields(logger.FieldBean, e.name, logger.FieldError, err.Error()))
			if stopErr := r.stopLocked(ctx); stopErr != nil {
				r.log.Warn("Rollback after failed start reported errors", logger.Fields(logger.FieldError, stopErr.Error()))
			}
			return fmt.Errorf("failed to start %s: %w", e.name, err)
		}
		r.started = append(r.started, e)
	}

	r.log.Info("All components started successfully")
	return nil
}

func (r *Registry) isStarted(e *entry) bool {
	for _, s := range r.started {
		if s == e {
			return true
		}
	}
	return false
}

// StopAll stops the started components in reverse start order. Every
// component is stopped even when an earlier one fails.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Info("Stopping all components", logger.Fields(logger.FieldCount, len(r.started)))
	if err := r.stopLocked(ctx); err != nil {
		return err
	}
	r.log.Info("All components stopped successfully")
	return nil
}

func (r *Registry) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(r.started) - 1; i >= 0; i-- {
		e := r.started[i]
		r.log.Debug("Stopping component", logger.Fields(logger.FieldBean, e.name))

		stopCtx, cancel := context.WithTimeout(ctx, r.stopTimeout)
		if err := e.component.Stop(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", e.name, err))
			r.log.Error("Component stop failed", logger.Fields(logger.FieldBean, e.name, logger.FieldError, err.Error()))
		} else {
			r.log.Debug("Component stopped", logger.Fields(logger.FieldBean, e.name))
		}
		cancel()
	}
	r.started = nil

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", stderrors.Join(errs...))
	}
	return nil
}

// Checkers returns the components that report their health, keyed by name.
func (r *Registry) Checkers() map[string]observability.HealthChecker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]observability.HealthChecker)
	for _, e := range r.entries {
		if hc, ok := e.component.(observability.HealthChecker); ok {
			out[e.name] = hc
		}
	}
	return out
}

// Get returns the component registered under name, or nil.
func (r *Registry) Get(name string) Component {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.lookup[name]; ok {
		return e.component
	}
	return nil
}

// Names returns the component names in start order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ordered := r.order()
	names := make([]string, len(ordered))
	for i, e := range ordered {
		names[i] = e.name
	}
	return names
}

// Started reports whether the named component is running.
func (r *Registry) Started(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.lookup[name]; ok {
		return r.isStarted(e)
	}
	return false
}

// Package registry stores named descriptors and flattens parent chains into
// cached resolved descriptors.
package registry

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/logger"
)

// ParentLookup resolves descriptors the registry does not hold itself,
// normally those of a parent factory.
type ParentLookup interface {
	ResolvedDescriptor(name string) (*descriptor.Descriptor, error)
}

// ResetListener is told about every name whose resolved descriptor was
// invalidated by a mutation.
type ResetListener func(name string)

// Registry is the blueprint registry. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]*descriptor.Descriptor
	order       []string
	aliases     map[string]string

	resolvedMu sync.RWMutex
	resolved   map[string]*descriptor.Descriptor

	frozen      atomic.Bool
	frozenNames atomic.Pointer[[]string]

	allowOverriding bool
	parent          ParentLookup
	nameGenerator   NameGenerator
	listeners       []ResetListener
	log             *logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithOverriding controls whether a name may be registered twice.
func WithOverriding(allow bool) Option {
	return func(r *Registry) { r.allowOverriding = allow }
}

// WithParentLookup sets the resolver for parent names not held locally.
func WithParentLookup(p ParentLookup) Option {
	return func(r *Registry) { r.parent = p }
}

// WithNameGenerator replaces the default name generator.
func WithNameGenerator(g NameGenerator) Option {
	return func(r *Registry) { r.nameGenerator = g }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// New creates an empty registry. Overriding is allowed by default.
func New(opts ...Option) *Registry {
	r := &Registry{
		descriptors:     make(map[string]*descriptor.Descriptor),
		aliases:         make(map[string]string),
		resolved:        make(map[string]*descriptor.Descriptor),
		allowOverriding: true,
		nameGenerator:   DefaultNameGenerator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Nop()
	}
	return r
}

// SetParentLookup sets the resolver for parent names not held locally.
func (r *Registry) SetParentLookup(p ParentLookup) {
	r.mu.Lock()
	r.parent = p
	r.mu.Unlock()
	r.clearResolved()
}

// OnReset registers a listener for invalidated names.
func (r *Registry) OnReset(l ResetListener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// AllowOverriding reports whether re-registration is permitted.
func (r *Registry) AllowOverriding() bool { return r.allowOverriding }

// Register stores a descriptor under name, replacing an existing one when
// overriding is allowed. The resolved descriptors of name and of every
// descriptor inheriting from it are invalidated.
func (r *Registry) Register(name string, d *descriptor.Descriptor) error {
	if name == "" {
		return errors.InvalidDescriptor(name, "descriptor name must not be empty")
	}
	if d == nil {
		return errors.InvalidDescriptor(name, "descriptor must not be nil")
	}
	if err := d.Validate(); err != nil {
		return errors.InvalidDescriptor(name, err.Error())
	}

	r.mu.Lock()
	_, exists := r.descriptors[name]
	if exists && !r.allowOverriding {
		r.mu.Unlock()
		return errors.DescriptorOverride(name)
	}
	if target, isAlias := r.aliases[name]; isAlias {
		if !r.allowOverriding {
			r.mu.Unlock()
			return errors.InvalidDescriptor(name, "name is already an alias for '"+target+"'")
		}
		delete(r.aliases, name)
	}
	r.descriptors[name] = d
	if !exists {
		r.order = append(r.order, name)
	}
	r.refreshFrozenNamesLocked()
	r.mu.Unlock()

	if exists {
		r.log.Debug("overriding descriptor", logger.Fields(logger.FieldBean, name, logger.FieldType, d.TypeLabel()))
		r.reset(name)
	} else {
		r.log.Debug("registered descriptor", logger.Fields(logger.FieldBean, name, logger.FieldType, d.TypeLabel()))
		r.clearResolvedChildren(name)
	}
	return nil
}

// RegisterGenerated stores a descriptor under a generated name and returns it.
func (r *Registry) RegisterGenerated(d *descriptor.Descriptor) (string, error) {
	name := r.nameGenerator.Generate(d, r)
	if err := r.Register(name, d); err != nil {
		return "", err
	}
	return name, nil
}

// Remove deletes the descriptor registered under name.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	if _, ok := r.descriptors[name]; !ok {
		r.mu.Unlock()
		return errors.MissingDescriptor(name)
	}
	delete(r.descriptors, name)
	r.order = slices.DeleteFunc(r.order, func(n string) bool { return n == name })
	r.refreshFrozenNamesLocked()
	r.mu.Unlock()

	r.log.Debug("removed descriptor", logger.Fields(logger.FieldBean, name))
	r.reset(name)
	return nil
}

// Get returns the descriptor registered under name or one of its aliases.
func (r *Registry) Get(name string) (*descriptor.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[r.canonicalLocked(name)]
	if !ok {
		return nil, errors.MissingDescriptor(name)
	}
	return d, nil
}

// Contains reports whether a descriptor is registered under name. Aliases
// do not count.
func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptors[name]
	return ok
}

// Names returns all registered names in registration order. Once frozen,
// the snapshot taken at the last mutation is returned.
func (r *Registry) Names() []string {
	if r.frozen.Load() {
		if snap := r.frozenNames.Load(); snap != nil {
			return slices.Clone(*snap)
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Count returns the number of registered descriptors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}

// Freeze marks the registry as configured. Mutation remains possible; it
// refreshes the name snapshot and invalidates caches as before.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
	r.refreshFrozenNamesLocked()
}

// IsFrozen reports whether Freeze was called.
func (r *Registry) IsFrozen() bool { return r.frozen.Load() }

func (r *Registry) refreshFrozenNamesLocked() {
	if !r.frozen.Load() {
		return
	}
	snap := slices.Clone(r.order)
	r.frozenNames.Store(&snap)
}

// Resolved returns the resolved descriptor of name: the parent chain merged
// root first and cached until a descriptor along the chain changes.
func (r *Registry) Resolved(name string) (*descriptor.Descriptor, error) {
	name = r.Canonical(name)

	r.resolvedMu.RLock()
	rd, ok := r.resolved[name]
	r.resolvedMu.RUnlock()
	if ok {
		return rd, nil
	}

	r.resolvedMu.Lock()
	defer r.resolvedMu.Unlock()
	if rd, ok := r.resolved[name]; ok {
		return rd, nil
	}
	rd, err := r.merge(name)
	if err != nil {
		return nil, err
	}
	r.resolved[name] = rd
	return rd, nil
}

// ResolvedDescriptor implements ParentLookup so a registry can back the
// parent chain of a child registry.
func (r *Registry) ResolvedDescriptor(name string) (*descriptor.Descriptor, error) {
	return r.Resolved(name)
}

func (r *Registry) merge(name string) (*descriptor.Descriptor, error) {
	r.mu.RLock()
	parentLookup := r.parent
	var (
		chain []*descriptor.Descriptor
		names []string
		root  *descriptor.Descriptor
	)
	seen := make(map[string]bool)
	cur := name
	for {
		d, ok := r.descriptors[cur]
		if !ok {
			r.mu.RUnlock()
			if cur == name {
				return nil, errors.MissingDescriptor(name)
			}
			prev := names[len(names)-1]
			if parentLookup == nil {
				return nil, errors.MissingParent(prev, cur)
			}
			pd, err := parentLookup.ResolvedDescriptor(cur)
			if err != nil {
				return nil, errors.MissingParent(prev, cur).WithCause(err)
			}
			root = pd
			r.mu.RLock()
			break
		}
		if seen[cur] {
			r.mu.RUnlock()
			return nil, errors.CyclicParentage(name, append(names, cur))
		}
		seen[cur] = true
		chain = append(chain, d)
		names = append(names, cur)
		if d.Parent == "" {
			break
		}
		next := r.canonicalLocked(d.Parent)
		if next == cur {
			// a parent named like the child refers to the parent factory
			r.mu.RUnlock()
			if parentLookup == nil {
				return nil, errors.MissingParent(cur, d.Parent)
			}
			pd, err := parentLookup.ResolvedDescriptor(next)
			if err != nil {
				return nil, errors.MissingParent(cur, d.Parent).WithCause(err)
			}
			root = pd
			r.mu.RLock()
			break
		}
		cur = next
	}
	r.mu.RUnlock()

	slices.Reverse(chain)
	if root != nil {
		chain = append([]*descriptor.Descriptor{root}, chain...)
	}
	return descriptor.Merge(chain...).Prepare(), nil
}

// reset invalidates name and its descendants and notifies listeners.
func (r *Registry) reset(name string) {
	for _, n := range r.invalidate(name) {
		r.notify(n)
	}
}

func (r *Registry) clearResolvedChildren(name string) {
	// descendants may have resolved name through the parent lookup
	for _, n := range r.invalidate(name) {
		if n != name {
			r.notify(n)
		}
	}
}

func (r *Registry) notify(name string) {
	r.mu.RLock()
	listeners := slices.Clone(r.listeners)
	r.mu.RUnlock()
	for _, l := range listeners {
		l(name)
	}
}

// invalidate drops the resolved descriptor of name and of every descriptor
// naming it as parent, directly or transitively. It returns the affected names.
func (r *Registry) invalidate(name string) []string {
	r.mu.RLock()
	children := make(map[string][]string)
	for n, d := range r.descriptors {
		if d.Parent != "" && n != d.Parent {
			p := r.canonicalLocked(d.Parent)
			children[p] = append(children[p], n)
		}
	}
	r.mu.RUnlock()

	var affected []string
	visited := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		if visited[n] {
			return
		}
		visited[n] = true
		affected = append(affected, n)
		kids := children[n]
		slices.Sort(kids)
		for _, c := range kids {
			walk(c)
		}
	}
	walk(name)

	r.resolvedMu.Lock()
	for _, n := range affected {
		delete(r.resolved, n)
	}
	r.resolvedMu.Unlock()
	return affected
}

func (r *Registry) clearResolved() {
	r.resolvedMu.Lock()
	r.resolved = make(map[string]*descriptor.Descriptor)
	r.resolvedMu.Unlock()
}

package lifecycle

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/beankit/errors"
)

type creationKey struct{}

// CreationContext is the per-task state of a creation in progress: the
// prototypes currently being built and the caches whose creation lock the
// task holds. It travels inside context.Context and must not be shared
// with goroutines started during a creation.
type CreationContext struct {
	ID string

	mu         sync.Mutex
	prototypes map[string]int
	owned      map[*SingletonCache]int
	path       []string
}

// NewCreationContext creates an empty creation context.
func NewCreationContext() *CreationContext {
	return &CreationContext{
		ID:         uuid.NewString(),
		prototypes: make(map[string]int),
		owned:      make(map[*SingletonCache]int),
	}
}

// FromContext returns the creation context carried by ctx, or nil.
func FromContext(ctx context.Context) *CreationContext {
	if ctx == nil {
		return nil
	}
	cc, _ := ctx.Value(creationKey{}).(*CreationContext)
	return cc
}

// WithCreation returns ctx carrying a creation context, reusing the one
// already present.
func WithCreation(ctx context.Context) (context.Context, *CreationContext) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cc := FromContext(ctx); cc != nil {
		return ctx, cc
	}
	cc := NewCreationContext()
	return context.WithValue(ctx, creationKey{}, cc), cc
}

// BeginPrototype marks a prototype as being built by this task. A prototype
// already in creation means a circular prototype reference.
func (c *CreationContext) BeginPrototype(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prototypes[name] > 0 {
		return errors.AlreadyInCreation(name).WithDetail("path", c.pathLocked(name))
	}
	c.prototypes[name]++
	return nil
}

// EndPrototype clears the mark set by BeginPrototype.
func (c *CreationContext) EndPrototype(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prototypes[name] <= 1 {
		delete(c.prototypes, name)
		return
	}
	c.prototypes[name]--
}

// PrototypeInCreation reports whether this task is building the prototype.
func (c *CreationContext) PrototypeInCreation(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prototypes[name] > 0
}

// Push records name as the innermost object under construction.
func (c *CreationContext) Push(name string) {
	c.mu.Lock()
	c.path = append(c.path, name)
	c.mu.Unlock()
}

// Pop removes the innermost object under construction.
func (c *CreationContext) Pop() {
	c.mu.Lock()
	if n := len(c.path); n > 0 {
		c.path = c.path[:n-1]
	}
	c.mu.Unlock()
}

// Path returns the names under construction, outermost first.
func (c *CreationContext) Path() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.path...)
}

// Current returns the innermost name under construction, or "".
func (c *CreationContext) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.path); n > 0 {
		return c.path[n-1]
	}
	return ""
}

func (c *CreationContext) pathLocked(next string) []string {
	return append(append([]string(nil), c.path...), next)
}

// Owns reports whether this task holds the creation lock of cache.
func (c *CreationContext) Owns(cache *SingletonCache) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owned[cache] > 0
}

func (c *CreationContext) enter(cache *SingletonCache) (first bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owned[cache]++
	return c.owned[cache] == 1
}

func (c *CreationContext) exit(cache *SingletonCache) (last bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owned[cache]--
	if c.owned[cache] <= 0 {
		delete(c.owned, cache)
		return true
	}
	return false
}

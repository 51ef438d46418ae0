package typeinfo

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Loader resolves type names and types to introspection records. A loader
// consults its own registrations first and then its parent. Types that were
// never registered get a record derived from reflection alone.
type Loader struct {
	parent *Loader
	temp   bool

	mu      sync.RWMutex
	byName  map[string]*Info
	byType  map[reflect.Type]*Info
	derived map[reflect.Type]*Info
}

// NewLoader creates a loader with an optional parent.
func NewLoader(parent *Loader) *Loader {
	return &Loader{
		parent:  parent,
		byName:  make(map[string]*Info),
		byType:  make(map[reflect.Type]*Info),
		derived: make(map[reflect.Type]*Info),
	}
}

// Temp returns a child loader for type matching that must not commit
// registrations to this loader.
func (l *Loader) Temp() *Loader {
	t := NewLoader(l)
	t.temp = true
	return t
}

// IsTemp reports whether the loader is a temporary type-matching loader.
func (l *Loader) IsTemp() bool { return l.temp }

// Parent returns the parent loader, or nil.
func (l *Loader) Parent() *Loader { return l.parent }

// Register adds records under their names and types. A later registration
// replaces an earlier one with the same name.
func (l *Loader) Register(infos ...*Info) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, info := range infos {
		l.byName[info.Name] = info
		l.byType[info.Type] = info
		delete(l.derived, info.Type)
	}
}

// Define builds the record of t and registers it.
func (l *Loader) Define(t reflect.Type, opts ...Option) error {
	info, err := DefineType(t, opts...)
	if err != nil {
		return err
	}
	l.Register(info)
	return nil
}

// Load resolves a registered type name.
func (l *Loader) Load(name string) (*Info, error) {
	for cur := l; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		info, ok := cur.byName[name]
		cur.mu.RUnlock()
		if ok {
			return info, nil
		}
	}
	return nil, fmt.Errorf("typeinfo: type %q is not known to the loader", name)
}

// Lookup returns the registered record of t, searching the parent chain.
func (l *Loader) Lookup(t reflect.Type) (*Info, bool) {
	for cur := l; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		info, ok := cur.byType[t]
		cur.mu.RUnlock()
		if ok {
			return info, true
		}
	}
	return nil, false
}

// Info returns the record of t: the registered one if any, otherwise one
// derived from reflection and cached.
func (l *Loader) Info(t reflect.Type) *Info {
	if info, ok := l.Lookup(t); ok {
		return info
	}
	root := l
	for root.temp && root.parent != nil {
		root = root.parent
	}
	root.mu.Lock()
	defer root.mu.Unlock()
	if info, ok := root.derived[t]; ok {
		return info
	}
	info := newInfo(t)
	root.derived[t] = info
	return info
}

// Names returns all registered names visible from this loader, sorted.
func (l *Loader) Names() []string {
	seen := make(map[string]struct{})
	for cur := l; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		for n := range cur.byName {
			seen[n] = struct{}{}
		}
		cur.mu.RUnlock()
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

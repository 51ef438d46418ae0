package descriptor

import (
	"maps"
	"slices"
	"sort"
)

// OverrideKind selects how an overridden method is redirected.
type OverrideKind int

const (
	// LookupOverride makes the method return a managed object looked up at
	// call time.
	LookupOverride OverrideKind = iota
	// ReplaceOverride routes the method to a MethodReplacer object.
	ReplaceOverride
)

// MethodOverride redirects one method of the produced object.
type MethodOverride struct {
	Method string
	Kind   OverrideKind
	// Bean names the object returned by a lookup override, or the replacer
	// of a replace override. An empty lookup name resolves by return type.
	Bean string
}

// MethodOverrides is the set of overridden methods keyed by method name.
type MethodOverrides struct {
	byMethod map[string]*MethodOverride
}

// Add registers an override, replacing one for the same method.
func (m *MethodOverrides) Add(o *MethodOverride) {
	if m.byMethod == nil {
		m.byMethod = make(map[string]*MethodOverride)
	}
	m.byMethod[o.Method] = o
}

// Get returns the override for a method.
func (m *MethodOverrides) Get(method string) (*MethodOverride, bool) {
	o, ok := m.byMethod[method]
	return o, ok
}

// List returns the overrides sorted by method name.
func (m *MethodOverrides) List() []*MethodOverride {
	out := make([]*MethodOverride, 0, len(m.byMethod))
	for _, o := range m.byMethod {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}

// IsEmpty reports whether no method is overridden.
func (m *MethodOverrides) IsEmpty() bool { return len(m.byMethod) == 0 }

// Clone returns a copy of the set.
func (m *MethodOverrides) Clone() MethodOverrides {
	var out MethodOverrides
	for _, o := range m.byMethod {
		c := *o
		out.Add(&c)
	}
	return out
}

func (m *MethodOverrides) merge(other MethodOverrides) {
	for _, o := range other.byMethod {
		c := *o
		m.Add(&c)
	}
}

// Qualifier narrows candidate matching beyond the raw type. Type names the
// kind of qualifier, Value is its default attribute.
type Qualifier struct {
	Type       string
	Value      string
	Attributes map[string]any
}

// Attribute returns a qualifier attribute. "value" falls back to Value.
func (q *Qualifier) Attribute(key string) (any, bool) {
	if v, ok := q.Attributes[key]; ok {
		return v, true
	}
	if key == "value" && q.Value != "" {
		return q.Value, true
	}
	return nil, false
}

func (q *Qualifier) clone() *Qualifier {
	c := *q
	c.Attributes = maps.Clone(q.Attributes)
	return &c
}

// Attributes is a string-keyed metadata store.
type Attributes struct {
	m map[string]any
}

// Attribute returns the value stored under key.
func (a *Attributes) Attribute(key string) (any, bool) {
	v, ok := a.m[key]
	return v, ok
}

// SetAttribute stores a value under key. A nil value removes the key.
func (a *Attributes) SetAttribute(key string, value any) {
	if value == nil {
		delete(a.m, key)
		return
	}
	if a.m == nil {
		a.m = make(map[string]any)
	}
	a.m[key] = value
}

// AttributeNames returns the stored keys, sorted.
func (a *Attributes) AttributeNames() []string {
	return slices.Sorted(maps.Keys(a.m))
}

// AttributeAccessor is implemented by anything carrying metadata attributes.
type AttributeAccessor interface {
	Attribute(key string) (any, bool)
	SetAttribute(key string, value any)
	AttributeNames() []string
}

var _ AttributeAccessor = (*Attributes)(nil)

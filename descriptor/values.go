package descriptor

import (
	"reflect"
	"slices"
)

// Ref is a reference to another managed object by name. It is resolved when
// the referencing descriptor is built.
type Ref struct {
	Name string
	// ToParent resolves the name in the parent factory only.
	ToParent bool
}

// RefTo returns a reference to name.
func RefTo(name string) Ref { return Ref{Name: name} }

// ValueHolder is one constructor or factory routine argument.
type ValueHolder struct {
	Value any
	// Type narrows matching to parameters of this type.
	Type reflect.Type
	// Name narrows matching to the parameter with this name.
	Name string
}

func (h *ValueHolder) clone() *ValueHolder {
	c := *h
	return &c
}

// ConstructorArgs holds the arguments configured for a constructor or
// factory routine: by position, and generic ones matched by type or name.
type ConstructorArgs struct {
	indexed map[int]*ValueHolder
	generic []*ValueHolder
}

// AddIndexed sets the argument at a position.
func (a *ConstructorArgs) AddIndexed(index int, h *ValueHolder) {
	if a.indexed == nil {
		a.indexed = make(map[int]*ValueHolder)
	}
	a.indexed[index] = h
}

// AddGeneric adds an argument matched by type or name rather than position.
func (a *ConstructorArgs) AddGeneric(h *ValueHolder) {
	a.generic = append(a.generic, h)
}

// Indexed returns the argument at a position.
func (a *ConstructorArgs) Indexed(index int) (*ValueHolder, bool) {
	h, ok := a.indexed[index]
	return h, ok
}

// Indexes returns the configured positions in ascending order.
func (a *ConstructorArgs) Indexes() []int {
	out := make([]int, 0, len(a.indexed))
	for i := range a.indexed {
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

// Generic returns the generic arguments in the order they were added.
func (a *ConstructorArgs) Generic() []*ValueHolder {
	return slices.Clone(a.generic)
}

// Count returns the number of configured arguments.
func (a *ConstructorArgs) Count() int { return len(a.indexed) + len(a.generic) }

// IsEmpty reports whether no argument is configured.
func (a *ConstructorArgs) IsEmpty() bool { return a.Count() == 0 }

// MinCount is the least number of parameters a routine needs to accept
// these arguments: the highest configured position plus one, or the total
// count if that is larger.
func (a *ConstructorArgs) MinCount() int {
	n := len(a.generic) + len(a.indexed)
	for i := range a.indexed {
		if i+1 > n {
			n = i + 1
		}
	}
	return n
}

// Match finds the argument for parameter index of type t named name. Unused
// generic arguments are tried in order, skipping those already consumed.
func (a *ConstructorArgs) Match(index int, t reflect.Type, name string, used map[*ValueHolder]bool) *ValueHolder {
	if h, ok := a.indexed[index]; ok && holderFits(h, t, name) {
		return h
	}
	for _, h := range a.generic {
		if used[h] {
			continue
		}
		if h.Name != "" && name != "" && h.Name != name {
			continue
		}
		if h.Type != nil && t != nil && h.Type != t {
			continue
		}
		if h.Type == nil && h.Name == "" && t != nil && !valueFits(h.Value, t) {
			continue
		}
		return h
	}
	return nil
}

func holderFits(h *ValueHolder, t reflect.Type, name string) bool {
	if h.Type != nil && t != nil && h.Type != t {
		return false
	}
	return h.Name == "" || name == "" || h.Name == name
}

// valueFits reports whether an untyped generic argument can be passed as
// is. Values needing resolution or conversion only match on the caller's
// untyped fallback pass.
func valueFits(v any, t reflect.Type) bool {
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return true
		}
		return false
	}
	return reflect.TypeOf(v).AssignableTo(t)
}

// Clone returns a deep copy of the holders.
func (a *ConstructorArgs) Clone() ConstructorArgs {
	var out ConstructorArgs
	for i, h := range a.indexed {
		out.AddIndexed(i, h.clone())
	}
	for _, h := range a.generic {
		out.AddGeneric(h.clone())
	}
	return out
}

// merge applies other on top: positions are unioned with other winning,
// generic arguments are appended.
func (a *ConstructorArgs) merge(other ConstructorArgs) {
	for i, h := range other.indexed {
		a.AddIndexed(i, h.clone())
	}
	for _, h := range other.generic {
		a.AddGeneric(h.clone())
	}
}

// PropertyValue is one configured property assignment.
type PropertyValue struct {
	Name  string
	Value any
	// Optional skips the assignment when the target has no such property.
	Optional bool
}

// PropertyValues is an ordered set of property assignments keyed by name.
type PropertyValues struct {
	list []*PropertyValue
}

// Add sets a property, replacing an earlier assignment of the same name in place.
func (p *PropertyValues) Add(name string, value any) {
	p.AddValue(&PropertyValue{Name: name, Value: value})
}

// AddValue sets a property assignment, replacing one of the same name in place.
func (p *PropertyValues) AddValue(pv *PropertyValue) {
	for i, cur := range p.list {
		if cur.Name == pv.Name {
			p.list[i] = pv
			return
		}
	}
	p.list = append(p.list, pv)
}

// Get returns the assignment for name.
func (p *PropertyValues) Get(name string) (*PropertyValue, bool) {
	for _, pv := range p.list {
		if pv.Name == name {
			return pv, true
		}
	}
	return nil, false
}

// Contains reports whether name is assigned.
func (p *PropertyValues) Contains(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Remove drops the assignment for name.
func (p *PropertyValues) Remove(name string) {
	p.list = slices.DeleteFunc(p.list, func(pv *PropertyValue) bool { return pv.Name == name })
}

// List returns the assignments in order.
func (p *PropertyValues) List() []*PropertyValue { return slices.Clone(p.list) }

// Names returns the assigned property names in order.
func (p *PropertyValues) Names() []string {
	out := make([]string, len(p.list))
	for i, pv := range p.list {
		out[i] = pv.Name
	}
	return out
}

// Len returns the number of assignments.
func (p *PropertyValues) Len() int { return len(p.list) }

// Clone returns a deep copy of the assignments. Values are shared.
func (p *PropertyValues) Clone() PropertyValues {
	out := PropertyValues{list: make([]*PropertyValue, len(p.list))}
	for i, pv := range p.list {
		c := *pv
		out.list[i] = &c
	}
	return out
}

func (p *PropertyValues) merge(other PropertyValues) {
	for _, pv := range other.list {
		c := *pv
		p.AddValue(&c)
	}
}

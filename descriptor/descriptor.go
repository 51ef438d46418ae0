// Package descriptor defines the blueprint of one managed object: what type
// to build, how to build it, what to inject and how to tear it down.
//
// Descriptors are mutable while they are configured. A descriptor naming a
// parent is never built directly; the registry merges the parent chain into
// a resolved descriptor first (see Merge).
package descriptor

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// Scope names understood by every factory.
const (
	ScopeSingleton = "singleton"
	ScopePrototype = "prototype"
)

// AutowireMode controls which collaborators are injected without explicit
// configuration.
type AutowireMode int

const (
	AutowireNo AutowireMode = iota
	AutowireByName
	AutowireByType
	AutowireConstructor
)

func (m AutowireMode) String() string {
	switch m {
	case AutowireByName:
		return "byName"
	case AutowireByType:
		return "byType"
	case AutowireConstructor:
		return "constructor"
	}
	return "no"
}

// ParseAutowireMode parses the names produced by String.
func ParseAutowireMode(s string) (AutowireMode, error) {
	switch strings.ToLower(s) {
	case "", "no":
		return AutowireNo, nil
	case "byname":
		return AutowireByName, nil
	case "bytype":
		return AutowireByType, nil
	case "constructor":
		return AutowireConstructor, nil
	}
	return AutowireNo, fmt.Errorf("unknown autowire mode %q", s)
}

// DependencyCheck is the policy for properties left unset after population.
type DependencyCheck int

const (
	CheckNone DependencyCheck = iota
	CheckObjects
	CheckSimple
	CheckAll
)

func (c DependencyCheck) String() string {
	switch c {
	case CheckObjects:
		return "objects"
	case CheckSimple:
		return "simple"
	case CheckAll:
		return "all"
	}
	return "none"
}

// ParseDependencyCheck parses the names produced by String.
func ParseDependencyCheck(s string) (DependencyCheck, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CheckNone, nil
	case "objects":
		return CheckObjects, nil
	case "simple":
		return CheckSimple, nil
	case "all":
		return CheckAll, nil
	}
	return CheckNone, fmt.Errorf("unknown dependency check %q", s)
}

// Supplier produces an instance directly, ahead of constructors and factory routines.
type Supplier func(ctx context.Context) (any, error)

// Descriptor describes how to build one managed object.
type Descriptor struct {
	// Type is the produced type. TypeName is resolved through the factory's
	// type loader when Type is nil.
	Type     reflect.Type
	TypeName string
	Parent   string
	// Scope is ScopeSingleton, ScopePrototype or a custom scope name. Empty
	// means singleton.
	Scope string

	Abstract            bool
	LazyInit            bool
	Primary             bool
	ExcludeFromAutowire bool
	Autowire            AutowireMode
	DependencyCheck     DependencyCheck
	DependsOn           []string

	// Strict disables lenient constructor resolution: equally weighted
	// candidates are an error instead of the first one winning.
	Strict bool
	// NonPublicAccess permits unexported types and hidden constructors.
	NonPublicAccess bool

	Supplier Supplier
	// FactoryBean names the managed object whose method FactoryMethod
	// produces the instance. With FactoryBean empty, FactoryMethod is a
	// static routine registered for Type.
	FactoryBean   string
	FactoryMethod string

	Args       ConstructorArgs
	Properties PropertyValues
	Overrides  MethodOverrides
	Qualifiers map[string]*Qualifier

	InitMethod     string
	DestroyMethod  string
	EnforceInit    bool
	EnforceDestroy bool

	// Synthetic descriptors are created by the container rather than the application.
	Synthetic   bool
	Description string

	Attributes

	state *state
}

// IsSingleton reports whether the descriptor has singleton scope.
func (d *Descriptor) IsSingleton() bool {
	return d.Scope == "" || d.Scope == ScopeSingleton
}

// IsPrototype reports whether the descriptor has prototype scope.
func (d *Descriptor) IsPrototype() bool { return d.Scope == ScopePrototype }

// AutowireCandidate reports whether the descriptor takes part in type-based candidate search.
func (d *Descriptor) AutowireCandidate() bool { return !d.ExcludeFromAutowire }

// HasArgs reports whether constructor or factory arguments are configured.
func (d *Descriptor) HasArgs() bool { return !d.Args.IsEmpty() }

// AddQualifier attaches a qualifier keyed by its type.
func (d *Descriptor) AddQualifier(q *Qualifier) {
	if d.Qualifiers == nil {
		d.Qualifiers = make(map[string]*Qualifier)
	}
	d.Qualifiers[q.Type] = q
}

// Qualifier returns the qualifier of the given type.
func (d *Descriptor) Qualifier(typ string) (*Qualifier, bool) {
	q, ok := d.Qualifiers[typ]
	return q, ok
}

// TypeLabel returns the most precise printable name of the produced type.
func (d *Descriptor) TypeLabel() string {
	if d.Type != nil {
		return d.Type.String()
	}
	return d.TypeName
}

// Validate checks the descriptor for combinations that can never be built.
func (d *Descriptor) Validate() error {
	if !d.Overrides.IsEmpty() && d.FactoryMethod != "" {
		return fmt.Errorf("method overrides cannot be combined with a factory routine")
	}
	if d.FactoryBean != "" && d.FactoryMethod == "" {
		return fmt.Errorf("factory object %q is set without a factory routine", d.FactoryBean)
	}
	if d.Type == nil && d.TypeName == "" && d.Parent == "" && d.FactoryMethod == "" && d.Supplier == nil && !d.Abstract {
		return fmt.Errorf("no type, parent, factory routine or supplier given")
	}
	if d.Type != nil && !d.Overrides.IsEmpty() {
		st := d.Type
		if st.Kind() == reflect.Pointer {
			st = st.Elem()
		}
		if st.Kind() != reflect.Struct {
			return fmt.Errorf("method overrides need a struct type, got %s", d.Type)
		}
	}
	return nil
}

// Clone returns a deep copy without any cached resolution state.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	c.DependsOn = slices.Clone(d.DependsOn)
	c.Args = d.Args.Clone()
	c.Properties = d.Properties.Clone()
	c.Overrides = d.Overrides.Clone()
	c.Qualifiers = nil
	for _, q := range d.Qualifiers {
		c.AddQualifier(q.clone())
	}
	c.Attributes = Attributes{m: maps.Clone(d.Attributes.m)}
	c.state = nil
	return &c
}

// Override applies a child descriptor on top of the receiver, which is
// normally a deep copy of the parent. Non-empty fields of the child win.
// Arguments, properties, overrides, qualifiers and attributes are unioned
// with the child's entries replacing the parent's. Abstract, Primary,
// ExcludeFromAutowire, Strict, NonPublicAccess and Synthetic are always
// taken from the child. LazyInit is only switched on, never off.
func (d *Descriptor) Override(child *Descriptor) {
	if child.Type != nil {
		d.Type = child.Type
		d.TypeName = child.TypeName
	} else if child.TypeName != "" {
		d.Type = nil
		d.TypeName = child.TypeName
	}
	if child.Scope != "" {
		d.Scope = child.Scope
	}
	d.Abstract = child.Abstract
	d.Primary = child.Primary
	d.ExcludeFromAutowire = child.ExcludeFromAutowire
	d.Strict = child.Strict
	d.NonPublicAccess = child.NonPublicAccess
	d.Synthetic = child.Synthetic
	if child.LazyInit {
		d.LazyInit = true
	}
	if child.Autowire != AutowireNo {
		d.Autowire = child.Autowire
	}
	if child.DependencyCheck != CheckNone {
		d.DependencyCheck = child.DependencyCheck
	}
	if len(child.DependsOn) > 0 {
		d.DependsOn = slices.Clone(child.DependsOn)
	}
	if child.Supplier != nil {
		d.Supplier = child.Supplier
	}
	if child.FactoryBean != "" {
		d.FactoryBean = child.FactoryBean
	}
	if child.FactoryMethod != "" {
		d.FactoryMethod = child.FactoryMethod
	}
	d.Args.merge(child.Args)
	d.Properties.merge(child.Properties)
	d.Overrides.merge(child.Overrides)
	for _, q := range child.Qualifiers {
		d.AddQualifier(q.clone())
	}
	for _, k := range child.AttributeNames() {
		v, _ := child.Attribute(k)
		d.SetAttribute(k, v)
	}
	if child.InitMethod != "" {
		d.InitMethod = child.InitMethod
		d.EnforceInit = child.EnforceInit
	}
	if child.DestroyMethod != "" {
		d.DestroyMethod = child.DestroyMethod
		d.EnforceDestroy = child.EnforceDestroy
	}
	if child.Description != "" {
		d.Description = child.Description
	}
	d.state = nil
}

// Merge flattens a parent chain, root first, into a self-contained resolved
// descriptor. The inputs are not modified.
func Merge(chain ...*Descriptor) *Descriptor {
	if len(chain) == 0 {
		return nil
	}
	out := chain[0].Clone()
	for _, child := range chain[1:] {
		out.Override(child)
	}
	out.Parent = ""
	if out.Scope == "" {
		out.Scope = ScopeSingleton
	}
	return out
}

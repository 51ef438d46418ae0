package factory

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/lifecycle"
	"github.com/kbukum/beankit/logger"
)

// DependencyDescriptor describes one injection point.
type DependencyDescriptor struct {
	// Type is the required type. Slices, arrays and maps keyed by string
	// collect every matching object.
	Type reflect.Type
	// Name is the name implied by the injection point, such as a parameter
	// or property name. A candidate with this name or alias wins ties.
	Name string
	// Required makes a missing candidate an error.
	Required bool
	// Eager allows building objects only to learn their type.
	Eager bool
	// Qualifier narrows the candidates beyond their type.
	Qualifier *descriptor.Qualifier
	// Point labels the injection point in errors.
	Point string

	descriptor.Attributes
}

func (dd *DependencyDescriptor) point() string {
	if dd.Point != "" {
		return dd.Point
	}
	if dd.Name != "" {
		return "'" + dd.Name + "'"
	}
	return "type " + dd.Type.String()
}

// candidate is one object able to satisfy an injection point.
type candidate struct {
	name      string
	local     bool
	fromTable bool
	value     any
}

// Resolve finds the value for an injection point. requestingName is the
// object being built, used to exclude self references and to record
// dependency edges; it may be empty. When dd is optional and nothing
// matches, the returned reflect.Value is invalid.
func (f *Factory) Resolve(ctx context.Context, dd *DependencyDescriptor, requestingName string) (reflect.Value, error) {
	if dd == nil || dd.Type == nil {
		return reflect.Value{}, errors.InvalidConfig("dependency descriptor requires a type")
	}
	ctx, _ = lifecycle.WithCreation(ctx)
	t := dd.Type

	if value, ok := f.resolvableValue(t); ok {
		obj, err := f.produceResolvable(ctx, value)
		if err != nil {
			return reflect.Value{}, err
		}
		if v, ok := valueAs(obj, t); ok {
			return v, nil
		}
	}

	if v, ok, err := f.resolveMultiple(ctx, dd, requestingName); err != nil || ok {
		return v, err
	}

	cands := f.findAutowireCandidates(ctx, requestingName, t, dd, false)
	if len(cands) == 0 {
		if dd.Required {
			return reflect.Value{}, errors.NoMatchingCandidate(t.String(), dd.point())
		}
		return reflect.Value{}, nil
	}

	chosen := cands[0]
	if len(cands) > 1 {
		c, found, err := f.determineAutowireCandidate(cands, dd)
		if err != nil {
			return reflect.Value{}, err
		}
		if !found {
			if !dd.Required && isMultiShape(t) {
				return reflect.Value{}, nil
			}
			return reflect.Value{}, errors.NoUniqueCandidate(t.String(), namesOf(cands))
		}
		chosen = c
	}

	obj, err := f.candidateValue(ctx, chosen, requestingName)
	if err != nil {
		return reflect.Value{}, err
	}
	if obj == nil {
		if dd.Required {
			return reflect.Value{}, errors.NoMatchingCandidate(t.String(), dd.point())
		}
		return reflect.Value{}, nil
	}
	v, ok := valueAs(obj, t)
	if !ok {
		return reflect.Value{}, errors.TypeMismatch(chosen.name, t.String(), typeLabel(obj))
	}
	return v, nil
}

// resolvableValue returns the value registered for exactly t.
func (f *Factory) resolvableValue(t reflect.Type) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.resolvable[t]
	return v, ok
}

func (f *Factory) produceResolvable(ctx context.Context, value any) (any, error) {
	if p, ok := value.(ValueProducer); ok {
		return p(ctx)
	}
	return value, nil
}

// candidateValue returns the object behind c, building it if needed, and
// records the dependency edge to requestingName.
func (f *Factory) candidateValue(ctx context.Context, c candidate, requestingName string) (any, error) {
	if c.fromTable {
		return f.produceResolvable(ctx, c.value)
	}
	obj, err := f.GetBean(ctx, c.name)
	if err != nil {
		return nil, err
	}
	if requestingName != "" {
		f.Graph().Register(f.transformedName(c.name), requestingName)
	}
	return obj, nil
}

func isMultiShape(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return true
	case reflect.Map:
		return t.Key().Kind() == reflect.String
	}
	return false
}

// resolveMultiple collects every candidate for slice, array and string-keyed
// map shapes. It reports false when t is not such a shape or nothing
// matched, leaving the caller to look for an object of the container type.
func (f *Factory) resolveMultiple(ctx context.Context, dd *DependencyDescriptor, requestingName string) (reflect.Value, bool, error) {
	t := dd.Type
	if !isMultiShape(t) {
		return reflect.Value{}, false, nil
	}
	elem := t.Elem()
	cands := f.findAutowireCandidates(ctx, requestingName, elem, dd, true)
	if len(cands) == 0 {
		return reflect.Value{}, false, nil
	}

	keys := make([]string, 0, len(cands))
	values := make([]reflect.Value, 0, len(cands))
	for _, c := range cands {
		obj, err := f.candidateValue(ctx, c, requestingName)
		if err != nil {
			return reflect.Value{}, false, err
		}
		if obj == nil {
			continue
		}
		v, ok := valueAs(obj, elem)
		if !ok {
			return reflect.Value{}, false, errors.TypeMismatch(c.name, elem.String(), typeLabel(obj))
		}
		keys = append(keys, c.name)
		values = append(values, v)
	}

	switch t.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(t, 0, len(values))
		return reflect.Append(out, values...), true, nil
	case reflect.Array:
		if len(values) > t.Len() {
			return reflect.Value{}, false, errors.NoUniqueCandidate(t.String(), namesOf(cands)).
				WithDetail("capacity", t.Len())
		}
		out := reflect.New(t).Elem()
		for i, v := range values {
			out.Index(i).Set(v)
		}
		return out, true, nil
	default:
		out := reflect.MakeMapWithSize(t, len(values))
		for i, v := range values {
			out.SetMapIndex(reflect.ValueOf(keys[i]).Convert(t.Key()), v)
		}
		return out, true, nil
	}
}

// findAutowireCandidates returns the objects assignable to t that may be
// injected into dd: for single-valued points the values of the resolvable
// table first, then local and inherited names in discovery order. Self references are only considered
// when nothing else matches a single-valued injection point.
func (f *Factory) findAutowireCandidates(ctx context.Context, requestingName string, t reflect.Type, dd *DependencyDescriptor, multiple bool) []candidate {
	var out []candidate

	f.mu.RLock()
	for _, rt := range f.resolvableOrder {
		if multiple {
			break
		}
		value := f.resolvable[rt]
		if _, isProducer := value.(ValueProducer); isProducer {
			if rt.AssignableTo(t) {
				out = append(out, candidate{name: "(resolvable " + rt.String() + ")", local: true, fromTable: true, value: value})
			}
			continue
		}
		if isInstance(value, t) {
			out = append(out, candidate{name: "(resolvable " + rt.String() + ")", local: true, fromTable: true, value: value})
		}
	}
	f.mu.RUnlock()

	names := f.namesForTypeIncludingAncestors(ctx, t, true, dd.Eager)
	var selfRefs []candidate
	for _, c := range names {
		if !f.isAutowireCandidate(c.name, dd) {
			continue
		}
		if f.isSelfReference(requestingName, c.name) {
			selfRefs = append(selfRefs, c)
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 && !multiple {
		out = append(out, selfRefs...)
	}
	if len(out) > 0 {
		f.log.Debug("found autowire candidates", logger.Fields(
			logger.FieldBean, requestingName,
			logger.FieldType, t.String(),
			logger.FieldCandidates, namesOf(out),
		))
	}
	return out
}

// namesForTypeIncludingAncestors returns the local names for t followed by
// the names found in ancestors that are not shadowed locally.
func (f *Factory) namesForTypeIncludingAncestors(ctx context.Context, t reflect.Type, includeNonSingletons, allowEagerInit bool) []candidate {
	var out []candidate
	local := f.namesForTypeCached(ctx, t, includeNonSingletons, allowEagerInit)
	for _, n := range local {
		out = append(out, candidate{name: n, local: true})
	}
	if f.parent == nil {
		return out
	}
	for _, pc := range f.parent.namesForTypeIncludingAncestors(ctx, t, includeNonSingletons, allowEagerInit) {
		if slices.Contains(local, pc.name) || f.ContainsLocalBean(pc.name) {
			continue
		}
		out = append(out, candidate{name: pc.name})
	}
	return out
}

// isSelfReference reports whether candidateName is the requesting object or
// is produced by it.
func (f *Factory) isSelfReference(requestingName, candidateName string) bool {
	if requestingName == "" || candidateName == "" {
		return false
	}
	beanName := f.transformedName(candidateName)
	if requestingName == beanName {
		return true
	}
	if !f.registry.Contains(beanName) {
		return false
	}
	rd, err := f.registry.Resolved(beanName)
	return err == nil && rd.FactoryBean != "" && f.transformedName(rd.FactoryBean) == requestingName
}

// isAutowireCandidate applies the descriptor's candidate flag and the
// injection point's qualifier to a name found by type.
func (f *Factory) isAutowireCandidate(name string, dd *DependencyDescriptor) bool {
	beanName := f.transformedName(name)
	var rd *descriptor.Descriptor
	if f.ContainsBean(beanName) {
		if d, err := f.Descriptor(beanName); err == nil {
			rd = d
		}
	}
	if rd != nil && !rd.AutowireCandidate() {
		return false
	}
	if dd.Qualifier == nil {
		return true
	}
	return qualifierMatches(dd.Qualifier, rd, f.namesFor(beanName))
}

// namesFor returns name and its aliases, including those registered in
// ancestors.
func (f *Factory) namesFor(beanName string) []string {
	names := append([]string{beanName}, f.registry.Aliases(beanName)...)
	if f.parent != nil && !f.ContainsLocalBean(beanName) {
		names = append(names, f.parent.namesFor(beanName)[1:]...)
	}
	return names
}

// qualifierMatches reports whether a candidate satisfies q. Each expected
// attribute, including the qualifier value, is looked up on the candidate's
// qualifier of the same type and then on its descriptor attributes. An
// expected value that is the candidate's name or alias also matches.
func qualifierMatches(q *descriptor.Qualifier, rd *descriptor.Descriptor, names []string) bool {
	var dq *descriptor.Qualifier
	if rd != nil {
		dq, _ = rd.Qualifier(q.Type)
	}
	expected := make(map[string]any, len(q.Attributes)+1)
	for k, v := range q.Attributes {
		expected[k] = v
	}
	if q.Value != "" {
		expected["value"] = q.Value
	}
	if len(expected) == 0 {
		return dq != nil
	}
	for key, want := range expected {
		var actual any
		var ok bool
		if dq != nil {
			actual, ok = dq.Attribute(key)
		}
		if !ok && rd != nil {
			actual, ok = rd.Attribute(key)
		}
		if !ok {
			if s, isString := want.(string); key == "value" && isString && slices.Contains(names, s) {
				continue
			}
			return false
		}
		if !attributeEqual(actual, want) {
			return false
		}
	}
	return true
}

func attributeEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// determineAutowireCandidate breaks ties between several candidates: a
// primary candidate wins, then one whose name matches the injection point
// or that is a registered resolvable value.
func (f *Factory) determineAutowireCandidate(cands []candidate, dd *DependencyDescriptor) (candidate, bool, error) {
	primary, found, err := f.determinePrimaryCandidate(cands, dd)
	if err != nil || found {
		return primary, found, err
	}
	for _, c := range cands {
		if c.fromTable {
			return c, true, nil
		}
		if dd.Name != "" && slices.Contains(f.namesFor(f.transformedName(c.name)), dd.Name) {
			return c, true, nil
		}
	}
	return candidate{}, false, nil
}

// determinePrimaryCandidate returns the unique primary candidate. A local
// primary beats an inherited one; two primaries of the same locality are
// ambiguous.
func (f *Factory) determinePrimaryCandidate(cands []candidate, dd *DependencyDescriptor) (candidate, bool, error) {
	var primary candidate
	found := false
	for _, c := range cands {
		if !f.isPrimary(c) {
			continue
		}
		if !found {
			primary, found = c, true
			continue
		}
		switch {
		case c.local == primary.local:
			return candidate{}, false, errors.AmbiguousPrimary(dd.Type.String(), namesOf(cands))
		case c.local:
			primary = c
		}
	}
	return primary, found, nil
}

func (f *Factory) isPrimary(c candidate) bool {
	if c.fromTable {
		return false
	}
	beanName := f.transformedName(c.name)
	if !f.ContainsBean(beanName) {
		return false
	}
	rd, err := f.Descriptor(beanName)
	return err == nil && rd.Primary
}

// valueAs returns obj as a value of type t.
func valueAs(obj any, t reflect.Type) (reflect.Value, bool) {
	if obj == nil {
		return reflect.Zero(t), nillable(t)
	}
	rv := reflect.ValueOf(obj)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, false
	}
	out := reflect.New(t).Elem()
	out.Set(rv)
	return out, true
}

package factory

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
)

// resolved marks a value that needs no further resolution, such as an
// autowired property.
type resolved struct{ v any }

// resolveValue turns a configured value into the object to inject:
// references are fetched, inner descriptors are built and slices and maps
// are resolved element by element. Anything else is returned as is.
func (f *Factory) resolveValue(ctx context.Context, beanName string, rd *descriptor.Descriptor, what string, value any) (any, error) {
	switch v := value.(type) {
	case resolved:
		return v.v, nil
	case descriptor.Ref:
		return f.resolveRef(ctx, beanName, what, v)
	case *descriptor.Ref:
		return f.resolveRef(ctx, beanName, what, *v)
	case *descriptor.Descriptor:
		return f.resolveInner(ctx, beanName, what, v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			r, err := f.resolveValue(ctx, beanName, rd, fmt.Sprintf("%s element %d", what, i), e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			r, err := f.resolveValue(ctx, beanName, rd, fmt.Sprintf("%s entry %q", what, k), e)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	}
	return value, nil
}

// needsResolution reports whether a configured value must be resolved on
// every creation rather than once.
func needsResolution(value any) bool {
	switch v := value.(type) {
	case descriptor.Ref, *descriptor.Ref, *descriptor.Descriptor:
		return true
	case []any:
		for _, e := range v {
			if needsResolution(e) {
				return true
			}
		}
	case map[string]any:
		for _, e := range v {
			if needsResolution(e) {
				return true
			}
		}
	}
	return false
}

func (f *Factory) resolveRef(ctx context.Context, beanName, what string, ref descriptor.Ref) (any, error) {
	if ref.ToParent {
		if f.parent == nil {
			return nil, errors.UnsatisfiedDependency(beanName, what, "reference to '"+ref.Name+"' in parent factory, but there is no parent")
		}
		obj, err := f.parent.GetBean(ctx, ref.Name)
		if err != nil {
			return nil, errors.UnsatisfiedDependency(beanName, what, "cannot resolve reference to '"+ref.Name+"' in parent factory").WithCause(err)
		}
		return obj, nil
	}
	obj, err := f.GetBean(ctx, ref.Name)
	if err != nil {
		return nil, errors.UnsatisfiedDependency(beanName, what, "cannot resolve reference to '"+ref.Name+"'").WithCause(err)
	}
	f.Graph().Register(f.transformedName(ref.Name), beanName)
	return obj, nil
}

// resolveInner builds an anonymous descriptor nested in a value. Inner
// singletons are destroyed together with the object containing them.
func (f *Factory) resolveInner(ctx context.Context, beanName, what string, inner *descriptor.Descriptor) (any, error) {
	innerName := fmt.Sprintf("(inner)#%p", inner)
	var rd *descriptor.Descriptor
	if inner.Parent != "" {
		parent, err := f.Descriptor(inner.Parent)
		if err != nil {
			return nil, errors.UnsatisfiedDependency(beanName, what, "cannot resolve parent of inner descriptor").WithCause(err)
		}
		rd = descriptor.Merge(parent, inner).Prepare()
	} else {
		rd = descriptor.Merge(inner).Prepare()
	}
	obj, err := f.createBean(ctx, innerName, rd, nil)
	if err != nil {
		return nil, errors.UnsatisfiedDependency(beanName, what, "cannot create inner object").WithCause(err)
	}
	if rd.IsSingleton() {
		f.Graph().Register(innerName, beanName)
	}
	if fb, ok := obj.(FactoryBean); ok {
		return f.produce(ctx, fb, innerName, !rd.Synthetic)
	}
	return obj, nil
}

// resolveConstructorArgs resolves every configured argument ahead of
// constructor selection. The returned map links each resolved holder to the
// configured one it came from.
func (f *Factory) resolveConstructorArgs(ctx context.Context, beanName string, rd *descriptor.Descriptor) (*descriptor.ConstructorArgs, map[*descriptor.ValueHolder]*descriptor.ValueHolder, error) {
	out := &descriptor.ConstructorArgs{}
	source := make(map[*descriptor.ValueHolder]*descriptor.ValueHolder)
	for _, i := range rd.Args.Indexes() {
		h, _ := rd.Args.Indexed(i)
		v, err := f.resolveValue(ctx, beanName, rd, fmt.Sprintf("constructor argument %d", i), h.Value)
		if err != nil {
			return nil, nil, err
		}
		rh := &descriptor.ValueHolder{Value: v, Type: h.Type, Name: h.Name}
		out.AddIndexed(i, rh)
		source[rh] = h
	}
	for _, h := range rd.Args.Generic() {
		v, err := f.resolveValue(ctx, beanName, rd, "constructor argument", h.Value)
		if err != nil {
			return nil, nil, err
		}
		rh := &descriptor.ValueHolder{Value: v, Type: h.Type, Name: h.Name}
		out.AddGeneric(rh)
		source[rh] = h
	}
	return out, source, nil
}

// typeOf returns the dynamic type of v, or nil.
func typeOf(v any) reflect.Type {
	if v == nil {
		return nil
	}
	return reflect.TypeOf(v)
}

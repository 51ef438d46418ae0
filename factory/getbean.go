package factory

import (
	"context"
	"reflect"
	"strings"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/lifecycle"
	"github.com/kbukum/beankit/logger"
)

// GetBean returns the object managed under name, building it if needed.
// "&name" returns a FactoryBean itself instead of its product.
func (f *Factory) GetBean(ctx context.Context, name string) (any, error) {
	return f.doGetBean(ctx, name, nil, nil, false)
}

// GetBeanWithArgs builds the object under name with explicit constructor or
// factory routine arguments. The arguments are only used when an instance
// is actually created.
func (f *Factory) GetBeanWithArgs(ctx context.Context, name string, args ...any) (any, error) {
	if args == nil {
		args = []any{}
	}
	return f.doGetBean(ctx, name, nil, args, false)
}

// GetBeanOfType returns the object under name converted to t. An object
// that is neither assignable nor convertible is a TypeMismatch.
func (f *Factory) GetBeanOfType(ctx context.Context, name string, t reflect.Type) (any, error) {
	return f.doGetBean(ctx, name, t, nil, false)
}

// GetBeanByType returns the unique object assignable to t, applying the
// same disambiguation as dependency resolution.
func (f *Factory) GetBeanByType(ctx context.Context, t reflect.Type) (any, error) {
	v, err := f.Resolve(ctx, &DependencyDescriptor{Type: t, Required: true, Eager: true}, "")
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// ContainsBean reports whether name is known to this factory or an ancestor,
// as a descriptor or as a registered singleton.
func (f *Factory) ContainsBean(name string) bool {
	beanName := f.transformedName(name)
	if f.cache.Contains(beanName) || f.registry.Contains(beanName) {
		return !isFactoryDereference(name) || f.isFactoryBean(beanName)
	}
	return f.parent != nil && f.parent.ContainsBean(originalName(name, beanName))
}

// ContainsLocalBean reports whether name is known to this factory itself.
func (f *Factory) ContainsLocalBean(name string) bool {
	beanName := f.transformedName(name)
	return f.cache.Contains(beanName) || f.registry.Contains(beanName)
}

// IsSingleton reports whether GetBean always returns the same instance for name.
func (f *Factory) IsSingleton(name string) (bool, error) {
	beanName := f.transformedName(name)
	if obj, ok := f.cache.GetFinished(beanName); ok {
		if fb, isFB := obj.(FactoryBean); isFB && !isFactoryDereference(name) {
			return fb.IsSingleton(), nil
		}
		return true, nil
	}
	if !f.registry.Contains(beanName) && f.parent != nil {
		return f.parent.IsSingleton(originalName(name, beanName))
	}
	rd, err := f.registry.Resolved(beanName)
	if err != nil {
		return false, err
	}
	if !rd.IsSingleton() {
		return false, nil
	}
	if f.isFactoryBean(beanName) && !isFactoryDereference(name) {
		fbObj, err := f.GetBean(context.Background(), FactoryBeanPrefix+beanName)
		if err != nil {
			return false, err
		}
		return fbObj.(FactoryBean).IsSingleton(), nil
	}
	return true, nil
}

// IsPrototype reports whether GetBean returns a new instance for name each time.
func (f *Factory) IsPrototype(name string) (bool, error) {
	beanName := f.transformedName(name)
	if !f.registry.Contains(beanName) {
		if f.parent != nil && !f.cache.Contains(beanName) {
			return f.parent.IsPrototype(originalName(name, beanName))
		}
		return false, nil
	}
	rd, err := f.registry.Resolved(beanName)
	if err != nil {
		return false, err
	}
	if rd.IsPrototype() {
		return !isFactoryDereference(name) || f.isFactoryBean(beanName), nil
	}
	if isFactoryDereference(name) || !f.isFactoryBean(beanName) {
		return false, nil
	}
	fbObj, err := f.GetBean(context.Background(), FactoryBeanPrefix+beanName)
	if err != nil {
		return false, err
	}
	return !fbObj.(FactoryBean).IsSingleton(), nil
}

func isFactoryDereference(name string) bool {
	return strings.HasPrefix(name, FactoryBeanPrefix)
}

// transformedName strips FactoryBean prefixes and resolves aliases.
func (f *Factory) transformedName(name string) string {
	return f.registry.Canonical(strings.TrimLeft(name, FactoryBeanPrefix))
}

// originalName restores the dereference prefix on a canonical name.
func originalName(name, beanName string) string {
	if isFactoryDereference(name) {
		return FactoryBeanPrefix + beanName
	}
	return beanName
}

func (f *Factory) doGetBean(ctx context.Context, name string, required reflect.Type, args []any, typeCheckOnly bool) (any, error) {
	beanName := f.transformedName(name)
	ctx, cc := lifecycle.WithCreation(ctx)

	if args == nil {
		shared, ok, err := f.cache.ResolveEarly(ctx, beanName)
		if err != nil {
			return nil, errors.ConstructionFailed(beanName, "early reference", err)
		}
		if ok {
			if f.cache.IsInCreation(beanName) {
				f.log.Debug("returning early reference of singleton that is not fully initialized yet", logger.BeanFields(beanName, "get"))
			}
			obj, err := f.objectForInstance(ctx, shared, name, beanName, nil)
			if err != nil {
				return nil, err
			}
			return f.adapt(beanName, obj, required)
		}
	}

	if cc.PrototypeInCreation(beanName) {
		return nil, errors.AlreadyInCreation(beanName).WithDetail("path", append(cc.Path(), beanName))
	}

	if f.parent != nil && !f.registry.Contains(beanName) {
		return f.parent.doGetBean(ctx, originalName(name, beanName), required, args, typeCheckOnly)
	}

	if !typeCheckOnly {
		f.markCreated(beanName)
	}

	obj, err := f.getLocal(ctx, name, beanName, args)
	if err != nil {
		if !typeCheckOnly {
			f.unmarkCreated(beanName)
		}
		return nil, err
	}
	return f.adapt(beanName, obj, required)
}

func (f *Factory) getLocal(ctx context.Context, name, beanName string, args []any) (any, error) {
	rd, err := f.registry.Resolved(beanName)
	if err != nil {
		return nil, err
	}
	if rd.Abstract {
		return nil, errors.AbstractDescriptor(beanName)
	}

	for _, dep := range rd.DependsOn {
		if f.Graph().IsDependent(beanName, dep) {
			return nil, errors.CircularDependsOn(beanName, dep)
		}
		f.Graph().Register(dep, beanName)
		if _, err := f.GetBean(ctx, dep); err != nil {
			return nil, errors.ConstructionFailed(beanName, "depends-on '"+dep+"'", err)
		}
	}

	cc := lifecycle.FromContext(ctx)
	var obj any
	switch {
	case rd.IsSingleton():
		obj, err = f.cache.GetOrCreate(ctx, beanName, func(ctx context.Context) (any, error) {
			return f.createBean(ctx, beanName, rd, args)
		})
	case rd.IsPrototype():
		obj, err = f.createMarked(cc, beanName, func() (any, error) {
			return f.createBean(ctx, beanName, rd, args)
		})
	default:
		scope, ok := f.Scope(rd.Scope)
		if !ok {
			return nil, errors.MissingScope(beanName, rd.Scope)
		}
		// Marked before the scope is entered: a scope may serialize
		// creation per name, and a cycle must fail rather than wait on itself.
		obj, err = f.createMarked(cc, beanName, func() (any, error) {
			return scope.Get(ctx, beanName, func(ctx context.Context) (any, error) {
				return f.createBean(ctx, beanName, rd, args)
			})
		})
	}
	if err != nil {
		return nil, err
	}
	return f.objectForInstance(ctx, obj, name, beanName, rd)
}

// createMarked runs create with beanName marked as in creation on cc, so
// a nested request for the same name fails instead of recursing.
func (f *Factory) createMarked(cc *lifecycle.CreationContext, beanName string, create func() (any, error)) (any, error) {
	if err := cc.BeginPrototype(beanName); err != nil {
		return nil, err
	}
	defer cc.EndPrototype(beanName)
	return create()
}

// adapt converts obj to required when one is given.
func (f *Factory) adapt(beanName string, obj any, required reflect.Type) (any, error) {
	if required == nil {
		return obj, nil
	}
	if obj != nil && reflect.TypeOf(obj).AssignableTo(required) {
		return obj, nil
	}
	v, err := f.converter.Convert(obj, required)
	if err != nil {
		actual := "<nil>"
		if obj != nil {
			actual = reflect.TypeOf(obj).String()
		}
		return nil, errors.TypeMismatch(beanName, required.String(), actual).WithCause(err)
	}
	return v.Interface(), nil
}

// objectForInstance returns the exposed object for a managed instance: the
// instance itself, or the product of a FactoryBean unless name dereferences it.
func (f *Factory) objectForInstance(ctx context.Context, instance any, name, beanName string, rd *descriptor.Descriptor) (any, error) {
	if isFactoryDereference(name) {
		if instance == nil {
			return nil, nil
		}
		if _, ok := instance.(FactoryBean); !ok {
			return nil, errors.TypeMismatch(beanName, "factory.FactoryBean", reflect.TypeOf(instance).String())
		}
		return instance, nil
	}
	fb, ok := instance.(FactoryBean)
	if !ok {
		return instance, nil
	}
	synthetic := rd != nil && rd.Synthetic
	return f.productOf(ctx, fb, beanName, !synthetic)
}

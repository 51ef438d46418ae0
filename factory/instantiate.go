package factory

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/typeinfo"
)

// InstantiationRequest is one call of a selected constructor or factory
// routine.
type InstantiationRequest struct {
	Name       string
	Descriptor *descriptor.Descriptor
	Routine    *typeinfo.Routine
	// Receiver is the factory object of an instance-bound routine.
	Receiver reflect.Value
	Args     []reflect.Value
	Factory  *Factory
}

// InstantiationStrategy produces the raw instance for a request.
type InstantiationStrategy interface {
	Instantiate(ctx context.Context, req *InstantiationRequest) (any, error)
}

// SimpleStrategy calls the routine directly. It rejects descriptors that
// declare method overrides.
type SimpleStrategy struct{}

// Instantiate implements InstantiationStrategy.
func (SimpleStrategy) Instantiate(_ context.Context, req *InstantiationRequest) (any, error) {
	if !req.Descriptor.Overrides.IsEmpty() {
		return nil, fmt.Errorf("method overrides are not supported by direct construction")
	}
	return call(req)
}

// SubclassGenerator turns a freshly built instance into one whose
// overridden methods are intercepted.
type SubclassGenerator interface {
	Generate(ctx context.Context, obj any, req *InstantiationRequest) (any, error)
}

// InterceptingStrategy calls the routine directly and hands instances of
// descriptors declaring method overrides to Generator.
type InterceptingStrategy struct {
	Generator SubclassGenerator
}

// Instantiate implements InstantiationStrategy.
func (s *InterceptingStrategy) Instantiate(ctx context.Context, req *InstantiationRequest) (any, error) {
	obj, err := call(req)
	if err != nil || req.Descriptor.Overrides.IsEmpty() {
		return obj, err
	}
	if s.Generator == nil {
		return nil, fmt.Errorf("method overrides declared but no generator configured")
	}
	return s.Generator.Generate(ctx, obj, req)
}

func call(req *InstantiationRequest) (obj any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", req.Routine, r)
		}
	}()
	v, err := req.Routine.Call(req.Receiver, req.Args)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// createInstance produces the raw instance through the supplier, a factory
// routine, a selected constructor or the no-argument constructor.
func (f *Factory) createInstance(ctx context.Context, beanName string, rd *descriptor.Descriptor, t reflect.Type, args []any) (any, error) {
	if rd.Supplier != nil {
		return rd.Supplier(ctx)
	}
	if rd.FactoryMethod != "" {
		return f.instantiateUsingFactoryMethod(ctx, beanName, rd, t, args)
	}
	if t == nil {
		return nil, errors.InvalidDescriptor(beanName, "descriptor declares no type")
	}
	info := f.loader.Info(t)

	if args == nil {
		if res, ok := rd.CachedResolution(); ok && res.Routine != nil {
			if res.ArgsResolved && len(res.Args) == 0 {
				return f.instantiate(ctx, beanName, rd, res.Routine, reflect.Value{}, nil)
			}
			return f.autowireConstructor(ctx, beanName, rd, info, nil, nil)
		}
	}

	chosen, err := f.constructorsFromHooks(t, beanName)
	if err != nil {
		return nil, err
	}
	if chosen != nil || rd.Autowire == descriptor.AutowireConstructor || rd.HasArgs() || args != nil {
		return f.autowireConstructor(ctx, beanName, rd, info, chosen, args)
	}

	// a type with a single constructor taking parameters is built through it
	if declared := visibleRoutines(info.DeclaredConstructors(), rd); len(declared) == 1 && declared[0].ParamCount() > 0 {
		return f.autowireConstructor(ctx, beanName, rd, info, declared, nil)
	}
	return f.instantiateDefault(ctx, beanName, rd, info)
}

func (f *Factory) instantiateDefault(ctx context.Context, beanName string, rd *descriptor.Descriptor, info *typeinfo.Info) (any, error) {
	for _, r := range visibleRoutines(info.Constructors(), rd) {
		if r.ParamCount() == 0 {
			rd.CacheResolution(descriptor.Resolution{Routine: r, ArgsResolved: true, Args: []reflect.Value{}})
			return f.instantiate(ctx, beanName, rd, r, reflect.Value{}, nil)
		}
	}
	return nil, errors.NoMatchingConstructor(beanName, "no default constructor found for type "+info.Type.String())
}

func (f *Factory) constructorsFromHooks(t reflect.Type, beanName string) ([]*typeinfo.Routine, error) {
	for _, h := range hooksOf[ConstructorHook](&f.hooks) {
		rs, err := h.DetermineConstructors(t, beanName)
		if err != nil {
			return nil, err
		}
		if rs != nil {
			return rs, nil
		}
	}
	return nil, nil
}

func (f *Factory) instantiate(ctx context.Context, beanName string, rd *descriptor.Descriptor, r *typeinfo.Routine, receiver reflect.Value, args []reflect.Value) (any, error) {
	if args == nil {
		args = []reflect.Value{}
	}
	return f.strategy.Instantiate(ctx, &InstantiationRequest{
		Name:       beanName,
		Descriptor: rd,
		Routine:    r,
		Receiver:   receiver,
		Args:       args,
		Factory:    f,
	})
}

package di

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/beankit/factory"
)

// Resolve looks up the object registered under name and asserts it is a T.
//
// Example:
//
//	repo, err := di.Resolve[*OrderRepository](ctx, f, "orderRepository")
//	if err != nil {
//	    return fmt.Errorf("failed to get order repository: %w", err)
//	}
func Resolve[T any](ctx context.Context, f *factory.Factory, name string) (T, error) {
	var zero T
	obj, err := f.GetBeanOfType(ctx, name, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	result, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("di: %s is %T, expected %T", name, obj, zero)
	}
	return result, nil
}

// MustResolve is Resolve that panics on error. Meant for wiring code that
// cannot continue without the object.
func MustResolve[T any](ctx context.Context, f *factory.Factory, name string) T {
	result, err := Resolve[T](ctx, f, name)
	if err != nil {
		panic(fmt.Sprintf("di: failed to resolve %s: %v", name, err))
	}
	return result
}

// TryResolve returns the zero value and false when the object is missing,
// fails to build or has another type.
//
//	if metrics, ok := di.TryResolve[MetricsClient](ctx, f, "metrics"); ok {
//	    metrics.RecordEvent(...)
//	}
func TryResolve[T any](ctx context.Context, f *factory.Factory, name string) (T, bool) {
	result, err := Resolve[T](ctx, f, name)
	if err != nil {
		var zero T
		return zero, false
	}
	return result, true
}

// ResolveType returns the single object assignable to T, honoring primary
// markers when several match.
func ResolveType[T any](ctx context.Context, f *factory.Factory) (T, error) {
	var zero T
	obj, err := f.GetBeanByType(ctx, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	result, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("di: object of type %T is not a %T", obj, zero)
	}
	return result, nil
}

// ResolveAll returns every object assignable to T in registration order.
func ResolveAll[T any](ctx context.Context, f *factory.Factory) ([]T, error) {
	v, err := f.Resolve(ctx, &factory.DependencyDescriptor{
		Type:  reflect.TypeFor[[]T](),
		Eager: true,
	}, "")
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface().([]T), nil
}

// Resolver returns a function that resolves name on each call. Handy for
// handing a prototype or a lazily built object to code that must not see
// the factory.
func Resolver[T any](f *factory.Factory, name string) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Resolve[T](ctx, f, name)
	}
}

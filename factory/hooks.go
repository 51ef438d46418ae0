package factory

import (
	"context"
	"reflect"
	"slices"
	"sync"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/typeinfo"
)

// Hooks are collaborators consulted while managed objects are built. A hook
// implements any subset of the interfaces below and is registered once with
// AddHook; hooks run in registration order.

// BeforeInstantiationHook may return a substitute for the object about to be
// built. A non-nil result skips construction, population and initialization;
// only AfterInitHooks are applied to it.
type BeforeInstantiationHook interface {
	BeforeInstantiation(ctx context.Context, t reflect.Type, name string) (any, error)
}

// AfterInstantiationHook may veto property population by returning false.
type AfterInstantiationHook interface {
	AfterInstantiation(ctx context.Context, obj any, name string) (bool, error)
}

// PropertyValuesHook transforms the property values about to be applied.
// Returning nil skips property application.
type PropertyValuesHook interface {
	TransformProperties(ctx context.Context, pvs *descriptor.PropertyValues, obj any, name string) (*descriptor.PropertyValues, error)
}

// MergedDescriptorHook sees each resolved descriptor once, after the first
// instance has been created.
type MergedDescriptorHook interface {
	PostProcessMergedDescriptor(d *descriptor.Descriptor, t reflect.Type, name string) error
}

// BeforeInitHook runs before init callbacks. It may return a wrapped object;
// a nil result keeps the current one.
type BeforeInitHook interface {
	BeforeInitialization(ctx context.Context, obj any, name string) (any, error)
}

// AfterInitHook runs after init callbacks. It may return a wrapped object;
// a nil result keeps the current one.
type AfterInitHook interface {
	AfterInitialization(ctx context.Context, obj any, name string) (any, error)
}

// EarlyReferenceHook decorates the early reference of a singleton exposed
// to break a circular reference.
type EarlyReferenceHook interface {
	EarlyReference(obj any, name string) (any, error)
}

// TypePredictionHook predicts the final type of an object before it exists.
type TypePredictionHook interface {
	PredictType(t reflect.Type, name string) reflect.Type
}

// ConstructorHook nominates the candidate constructors for a type. Returning
// nil leaves the choice to the factory.
type ConstructorHook interface {
	DetermineConstructors(t reflect.Type, name string) ([]*typeinfo.Routine, error)
}

// DestructionHook runs before an object is destroyed.
type DestructionHook interface {
	BeforeDestruction(ctx context.Context, obj any, name string) error
	RequiresDestruction(obj any) bool
}

// BeforeInitFunc adapts a function to BeforeInitHook.
type BeforeInitFunc func(ctx context.Context, obj any, name string) (any, error)

// BeforeInitialization implements BeforeInitHook.
func (f BeforeInitFunc) BeforeInitialization(ctx context.Context, obj any, name string) (any, error) {
	return f(ctx, obj, name)
}

// AfterInitFunc adapts a function to AfterInitHook.
type AfterInitFunc func(ctx context.Context, obj any, name string) (any, error)

// AfterInitialization implements AfterInitHook.
func (f AfterInitFunc) AfterInitialization(ctx context.Context, obj any, name string) (any, error) {
	return f(ctx, obj, name)
}

// BeforeInstantiationFunc adapts a function to BeforeInstantiationHook.
type BeforeInstantiationFunc func(ctx context.Context, t reflect.Type, name string) (any, error)

// BeforeInstantiation implements BeforeInstantiationHook.
func (f BeforeInstantiationFunc) BeforeInstantiation(ctx context.Context, t reflect.Type, name string) (any, error) {
	return f(ctx, t, name)
}

// EarlyReferenceFunc adapts a function to EarlyReferenceHook.
type EarlyReferenceFunc func(obj any, name string) (any, error)

// EarlyReference implements EarlyReferenceHook.
func (f EarlyReferenceFunc) EarlyReference(obj any, name string) (any, error) {
	return f(obj, name)
}

// hookSet keeps the registered hooks with a per-interface view.
type hookSet struct {
	mu  sync.RWMutex
	all []any
}

func isHook(h any) bool {
	switch h.(type) {
	case BeforeInstantiationHook, AfterInstantiationHook, PropertyValuesHook, MergedDescriptorHook,
		BeforeInitHook, AfterInitHook, EarlyReferenceHook, TypePredictionHook, ConstructorHook, DestructionHook:
		return true
	}
	return false
}

// add appends h, moving it to the end if already present.
func (s *hookSet) add(h any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all = slices.DeleteFunc(s.all, func(x any) bool { return sameInstance(x, h) })
	s.all = append(s.all, h)
}

func (s *hookSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.all)
}

func (s *hookSet) list() []any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.all)
}

// hooksOf returns the registered hooks implementing T.
func hooksOf[T any](s *hookSet) []T {
	var out []T
	for _, h := range s.list() {
		if t, ok := h.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

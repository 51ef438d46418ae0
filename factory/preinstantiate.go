package factory

import (
	"context"
	"reflect"
	"time"

	"github.com/kbukum/beankit/lifecycle"
	"github.com/kbukum/beankit/logger"
)

var hookTypes = []reflect.Type{
	reflect.TypeFor[BeforeInstantiationHook](),
	reflect.TypeFor[AfterInstantiationHook](),
	reflect.TypeFor[PropertyValuesHook](),
	reflect.TypeFor[MergedDescriptorHook](),
	reflect.TypeFor[BeforeInitHook](),
	reflect.TypeFor[AfterInitHook](),
	reflect.TypeFor[EarlyReferenceHook](),
	reflect.TypeFor[TypePredictionHook](),
	reflect.TypeFor[ConstructorHook](),
	reflect.TypeFor[DestructionHook](),
}

func isHookType(t reflect.Type) bool {
	for _, ht := range hookTypes {
		if t.Implements(ht) {
			return true
		}
	}
	return false
}

// RegisterHookBeans builds every concrete descriptor whose type implements
// a hook interface and adds it as a hook, in registration order. It is
// meant to run before any other object is requested.
func (f *Factory) RegisterHookBeans(ctx context.Context) error {
	ctx, _ = lifecycle.WithCreation(ctx)
	for _, name := range f.registry.Names() {
		rd, err := f.registry.Resolved(name)
		if err != nil {
			return err
		}
		if rd.Abstract {
			continue
		}
		t := f.predictType(name, rd)
		if t == nil || !isHookType(t) {
			continue
		}
		obj, err := f.GetBean(ctx, name)
		if err != nil {
			return err
		}
		if err := f.AddHook(obj); err != nil {
			return err
		}
		f.log.Debug("registered hook", logger.Fields(logger.FieldBean, name, logger.FieldType, t.String()))
	}
	return nil
}

// PreInstantiateSingletons builds every non-abstract, non-lazy singleton in
// registration order, then calls SingletonsReady on those implementing
// SmartInitializer. A FactoryBean's product is only built when the factory
// is a SmartFactoryBean asking for eager init.
func (f *Factory) PreInstantiateSingletons(ctx context.Context) error {
	ctx, _ = lifecycle.WithCreation(ctx)
	start := time.Now()
	names := f.registry.Names()
	count := 0
	for _, name := range names {
		rd, err := f.registry.Resolved(name)
		if err != nil {
			return err
		}
		if rd.Abstract || !rd.IsSingleton() || rd.LazyInit {
			continue
		}
		if f.isFactoryBean(name) {
			obj, err := f.GetBean(ctx, FactoryBeanPrefix+name)
			if err != nil {
				return err
			}
			if sfb, ok := obj.(SmartFactoryBean); ok && sfb.IsEagerInit() {
				if _, err := f.GetBean(ctx, name); err != nil {
					return err
				}
			}
		} else if _, err := f.GetBean(ctx, name); err != nil {
			return err
		}
		count++
	}

	for _, name := range append(names, f.ManualSingletonNames()...) {
		obj, ok := f.cache.GetFinished(name)
		if !ok {
			continue
		}
		if si, ok := obj.(SmartInitializer); ok {
			if err := si.SingletonsReady(ctx); err != nil {
				return err
			}
		}
	}

	f.log.Info("pre-instantiated singletons", logger.Fields(
		logger.FieldCount, count,
		"duration", time.Since(start).String(),
	))
	return nil
}

package factory

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/logger"
)

const afterPropertiesSet = "AfterPropertiesSet"

// initialize runs aware callbacks, before-init hooks, init callbacks and
// after-init hooks. It returns the object to expose, which hooks may have
// wrapped.
func (f *Factory) initialize(ctx context.Context, beanName string, obj any, rd *descriptor.Descriptor) (any, error) {
	if obj == nil {
		return nil, nil
	}
	if a, ok := obj.(NameAware); ok {
		a.SetBeanName(beanName)
	}
	if a, ok := obj.(FactoryAware); ok {
		a.SetBeanFactory(f)
	}

	wrapped := obj
	if rd == nil || !rd.Synthetic {
		var err error
		if wrapped, err = f.applyBeforeInit(ctx, wrapped, beanName); err != nil {
			return nil, err
		}
	}

	if err := f.invokeInitMethods(ctx, beanName, wrapped, rd); err != nil {
		return nil, err
	}

	if rd == nil || !rd.Synthetic {
		var err error
		if wrapped, err = f.applyAfterInit(ctx, wrapped, beanName); err != nil {
			return nil, err
		}
	}
	return wrapped, nil
}

func (f *Factory) applyBeforeInit(ctx context.Context, obj any, beanName string) (any, error) {
	result := obj
	for _, h := range hooksOf[BeforeInitHook](&f.hooks) {
		next, err := h.BeforeInitialization(ctx, result, beanName)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return result, nil
		}
		result = next
	}
	return result, nil
}

func (f *Factory) applyAfterInit(ctx context.Context, obj any, beanName string) (any, error) {
	result := obj
	for _, h := range hooksOf[AfterInitHook](&f.hooks) {
		next, err := h.AfterInitialization(ctx, result, beanName)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return result, nil
		}
		result = next
	}
	return result, nil
}

func (f *Factory) invokeInitMethods(ctx context.Context, beanName string, obj any, rd *descriptor.Descriptor) error {
	init, isInit := obj.(Initializer)
	if isInit {
		f.log.Debug("invoking AfterPropertiesSet", logger.BeanFields(beanName, "init"))
		if err := init.AfterPropertiesSet(ctx); err != nil {
			return err
		}
	}
	if rd == nil || rd.InitMethod == "" || (isInit && rd.InitMethod == afterPropertiesSet) {
		return nil
	}
	found, err := invokeLifecycleMethod(ctx, obj, rd.InitMethod)
	if !found {
		if rd.EnforceInit {
			return fmt.Errorf("could not find an init method named '%s' on %T", rd.InitMethod, obj)
		}
		f.log.Debug("no default init method found", logger.Fields(logger.FieldBean, beanName, "method", rd.InitMethod))
		return nil
	}
	return err
}

// invokeLifecycleMethod calls an exported method taking nothing or a
// context and returning nothing or an error.
func invokeLifecycleMethod(ctx context.Context, obj any, name string) (found bool, err error) {
	m := reflect.ValueOf(obj).MethodByName(name)
	if !m.IsValid() {
		return false, nil
	}
	mt := m.Type()
	var in []reflect.Value
	switch {
	case mt.NumIn() == 0:
	case mt.NumIn() == 1 && mt.In(0) == contextType:
		in = []reflect.Value{reflect.ValueOf(&ctx).Elem()}
	default:
		return true, fmt.Errorf("method '%s' of %T must take no arguments or a context.Context", name, obj)
	}
	if mt.NumOut() > 1 || (mt.NumOut() == 1 && mt.Out(0) != errorType) {
		return true, fmt.Errorf("method '%s' of %T must return nothing or an error", name, obj)
	}
	out := m.Call(in)
	if len(out) == 1 && !out[0].IsNil() {
		return true, out[0].Interface().(error)
	}
	return true, nil
}

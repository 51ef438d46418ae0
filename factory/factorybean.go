package factory

import (
	"context"
	"reflect"

	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/logger"
)

var factoryBeanType = reflect.TypeFor[FactoryBean]()

// productOf returns the object produced by fb. Products of singleton
// factories held in the singleton cache are cached under the factory's name.
func (f *Factory) productOf(ctx context.Context, fb FactoryBean, beanName string, postProcess bool) (any, error) {
	if fb.IsSingleton() && f.cache.Contains(beanName) {
		f.mu.RLock()
		obj, ok := f.products[beanName]
		f.mu.RUnlock()
		if ok {
			return obj, nil
		}
		obj, err := f.produce(ctx, fb, beanName, postProcess)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if existing, ok := f.products[beanName]; ok {
			return existing, nil
		}
		f.products[beanName] = obj
		return obj, nil
	}
	return f.produce(ctx, fb, beanName, postProcess)
}

func (f *Factory) produce(ctx context.Context, fb FactoryBean, beanName string, postProcess bool) (any, error) {
	obj, err := fb.Object(ctx)
	if err != nil {
		return nil, errors.ConstructionFailed(beanName, "factory object", err)
	}
	if !postProcess || obj == nil {
		return obj, nil
	}
	f.log.Debug("post-processing factory product", logger.BeanFields(beanName, "product"))
	obj, err = f.applyAfterInit(ctx, obj, beanName)
	if err != nil {
		return nil, errors.ConstructionFailed(beanName, "post-processing of factory product", err)
	}
	return obj, nil
}

// isFactoryBean reports whether the object under beanName is, or will be,
// a FactoryBean.
func (f *Factory) isFactoryBean(beanName string) bool {
	if obj, ok := f.cache.GetFinished(beanName); ok {
		_, isFB := obj.(FactoryBean)
		return isFB
	}
	if !f.registry.Contains(beanName) {
		if f.parent != nil {
			return f.parent.isFactoryBean(beanName)
		}
		return false
	}
	rd, err := f.registry.Resolved(beanName)
	if err != nil {
		return false
	}
	if v, known := rd.IsFactoryBeanCached(); known {
		return v
	}
	t := f.predictType(beanName, rd)
	v := t != nil && implements(t, factoryBeanType)
	rd.CacheIsFactoryBean(v)
	return v
}

// factoryProductType returns the type produced by the FactoryBean under
// beanName. Without allowInit only the ObjectTypeAttribute of the
// descriptor and an already built factory are consulted.
func (f *Factory) factoryProductType(ctx context.Context, beanName string, allowInit bool) reflect.Type {
	if obj, ok := f.cache.GetFinished(beanName); ok {
		if fb, isFB := obj.(FactoryBean); isFB {
			return fb.ObjectType()
		}
		return nil
	}
	if rd, err := f.registry.Resolved(beanName); err == nil {
		if v, ok := rd.Attribute(ObjectTypeAttribute); ok {
			if t, ok := v.(reflect.Type); ok {
				return t
			}
		}
	}
	if !allowInit {
		return nil
	}
	obj, err := f.doGetBean(ctx, FactoryBeanPrefix+beanName, nil, nil, true)
	if err != nil {
		f.log.Debug("factory object could not be built for type check", logger.MergeWithError(logger.BeanFields(beanName, "type-check"), err))
		return nil
	}
	if fb, ok := obj.(FactoryBean); ok {
		return fb.ObjectType()
	}
	return nil
}

func implements(t, iface reflect.Type) bool {
	return t.Implements(iface)
}

package factory

import (
	"context"
	"reflect"
	"slices"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/lifecycle"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/typeinfo"
)

type typeCacheKey struct {
	t                    reflect.Type
	includeNonSingletons bool
	allowEagerInit       bool
}

func (f *Factory) clearTypeCache() {
	f.mu.Lock()
	f.typeCache = nil
	f.mu.Unlock()
}

func isInstance(obj any, t reflect.Type) bool {
	return obj != nil && reflect.TypeOf(obj).AssignableTo(t)
}

// IsTypeMatch reports whether the object under name is assignable to t,
// building FactoryBeans if needed to learn their product type.
func (f *Factory) IsTypeMatch(name string, t reflect.Type) bool {
	return f.isTypeMatch(context.Background(), name, t, true)
}

// isTypeMatch takes the context of the calling task so that a FactoryBean
// built for the check joins a creation already in progress.
func (f *Factory) isTypeMatch(ctx context.Context, name string, t reflect.Type, allowFactoryBeanInit bool) bool {
	beanName := f.transformedName(name)
	deref := isFactoryDereference(name)

	obj, ok := f.cache.GetFinished(beanName)
	if !ok {
		obj, ok = f.cache.EarlyReference(beanName)
	}
	if ok {
		if fb, isFB := obj.(FactoryBean); isFB {
			if !deref {
				pt := fb.ObjectType()
				return pt != nil && pt.AssignableTo(t)
			}
			return isInstance(obj, t)
		}
		return !deref && isInstance(obj, t)
	}

	if !f.registry.Contains(beanName) && f.parent != nil {
		return f.parent.isTypeMatch(ctx, originalName(name, beanName), t, allowFactoryBeanInit)
	}
	rd, err := f.registry.Resolved(beanName)
	if err != nil {
		return false
	}
	predicted := f.predictType(beanName, rd)
	if predicted == nil {
		return false
	}
	if implements(predicted, factoryBeanType) {
		if !deref {
			pt := f.factoryProductType(ctx, beanName, allowFactoryBeanInit)
			return pt != nil && pt.AssignableTo(t)
		}
		return predicted.AssignableTo(t)
	}
	return !deref && predicted.AssignableTo(t)
}

// TypeOf returns the type of the object under name without building it,
// except for FactoryBeans whose product type is unknown otherwise.
func (f *Factory) TypeOf(name string) (reflect.Type, error) {
	beanName := f.transformedName(name)
	deref := isFactoryDereference(name)
	if obj, ok := f.cache.GetFinished(beanName); ok {
		if fb, isFB := obj.(FactoryBean); isFB && !deref {
			return fb.ObjectType(), nil
		}
		return typeOf(obj), nil
	}
	if !f.registry.Contains(beanName) && f.parent != nil {
		return f.parent.TypeOf(originalName(name, beanName))
	}
	rd, err := f.registry.Resolved(beanName)
	if err != nil {
		return nil, err
	}
	predicted := f.predictType(beanName, rd)
	if predicted != nil && implements(predicted, factoryBeanType) && !deref {
		return f.factoryProductType(context.Background(), beanName, true), nil
	}
	if deref && (predicted == nil || !implements(predicted, factoryBeanType)) {
		return nil, nil
	}
	return predicted, nil
}

// predictType returns the type an object built from rd will have, without
// building it.
func (f *Factory) predictType(beanName string, rd *descriptor.Descriptor) reflect.Type {
	if tt := rd.TargetType(); tt != nil {
		return tt
	}
	var t reflect.Type
	switch {
	case rd.FactoryMethod != "":
		t = f.factoryMethodType(rd)
	case rd.Type != nil:
		t = rd.Type
	case rd.TypeName != "":
		if info, err := f.loader.Load(rd.TypeName); err == nil {
			t = info.Type
		}
	}
	if t == nil {
		return nil
	}
	for _, h := range hooksOf[TypePredictionHook](&f.hooks) {
		if p := h.PredictType(t, beanName); p != nil {
			return p
		}
	}
	return t
}

// factoryMethodType returns the common result type of the factory routines
// rd may use, or nil when they disagree.
func (f *Factory) factoryMethodType(rd *descriptor.Descriptor) reflect.Type {
	if res, ok := rd.CachedResolution(); ok && res.Routine != nil {
		return res.Routine.Out
	}
	var candidates []*typeinfo.Routine
	if rd.FactoryBean != "" {
		fbName := f.transformedName(rd.FactoryBean)
		var fbType reflect.Type
		if obj, ok := f.cache.GetFinished(fbName); ok {
			fbType = typeOf(obj)
		} else if frd, err := f.Descriptor(fbName); err == nil {
			fbType = f.predictType(fbName, frd)
		}
		if fbType == nil {
			return nil
		}
		candidates = f.loader.Info(fbType).MethodRoutines(rd.FactoryMethod)
	} else {
		t := rd.Type
		if t == nil && rd.TypeName != "" {
			if info, err := f.loader.Load(rd.TypeName); err == nil {
				t = info.Type
			}
		}
		if t == nil {
			return nil
		}
		candidates = f.loader.Info(t).FactoryRoutines(rd.FactoryMethod)
	}
	var common reflect.Type
	for _, c := range candidates {
		if c.Out == nil {
			continue
		}
		if common == nil {
			common = c.Out
		} else if common != c.Out {
			return nil
		}
	}
	return common
}

// NamesForType returns the local names whose objects are assignable to t,
// descriptors in registration order followed by registered singletons. A
// FactoryBean matches by its product type under its name, or by its own
// type under "&name". Without allowEagerInit no object is built to answer.
func (f *Factory) NamesForType(t reflect.Type, includeNonSingletons, allowEagerInit bool) []string {
	return f.namesForTypeCached(context.Background(), t, includeNonSingletons, allowEagerInit)
}

func (f *Factory) namesForTypeCached(ctx context.Context, t reflect.Type, includeNonSingletons, allowEagerInit bool) []string {
	if !f.registry.IsFrozen() {
		return f.namesForType(ctx, t, includeNonSingletons, allowEagerInit)
	}
	key := typeCacheKey{t: t, includeNonSingletons: includeNonSingletons, allowEagerInit: allowEagerInit}
	f.mu.RLock()
	names, ok := f.typeCache[key]
	f.mu.RUnlock()
	if ok {
		return slices.Clone(names)
	}
	names = f.namesForType(ctx, t, includeNonSingletons, allowEagerInit)
	f.mu.Lock()
	if f.typeCache == nil {
		f.typeCache = make(map[typeCacheKey][]string)
	}
	f.typeCache[key] = names
	f.mu.Unlock()
	return slices.Clone(names)
}

func (f *Factory) namesForType(ctx context.Context, t reflect.Type, includeNonSingletons, allowEagerInit bool) []string {
	var out []string
	for _, name := range f.registry.Names() {
		rd, err := f.registry.Resolved(name)
		if err != nil {
			f.log.Debug("ignoring descriptor during type lookup", logger.MergeWithError(logger.BeanFields(name, "type-check"), err))
			continue
		}
		if rd.Abstract {
			continue
		}
		if !allowEagerInit && rd.FactoryBean != "" {
			fbName := f.transformedName(rd.FactoryBean)
			if f.isFactoryBean(fbName) && !f.cache.Contains(fbName) {
				continue
			}
		}
		allowFactoryBeanInit := allowEagerInit || f.cache.Contains(name)
		if !f.isFactoryBean(name) {
			if (includeNonSingletons || rd.IsSingleton()) && f.isTypeMatch(ctx, name, t, allowFactoryBeanInit) {
				out = append(out, name)
			}
			continue
		}
		if (includeNonSingletons || (allowFactoryBeanInit && rd.IsSingleton())) && f.isTypeMatch(ctx, name, t, allowFactoryBeanInit) {
			out = append(out, name)
		} else if f.isTypeMatch(ctx, FactoryBeanPrefix+name, t, allowFactoryBeanInit) {
			out = append(out, FactoryBeanPrefix+name)
		}
	}

	for _, name := range f.ManualSingletonNames() {
		if f.registry.Contains(name) {
			continue
		}
		obj, ok := f.cache.GetFinished(name)
		if !ok {
			continue
		}
		if fb, isFB := obj.(FactoryBean); isFB {
			if pt := fb.ObjectType(); (includeNonSingletons || fb.IsSingleton()) && pt != nil && pt.AssignableTo(t) {
				out = append(out, name)
				continue
			}
			if isInstance(obj, t) {
				out = append(out, FactoryBeanPrefix+name)
			}
			continue
		}
		if isInstance(obj, t) {
			out = append(out, name)
		}
	}
	return out
}

// BeansOfType returns the local objects assignable to t keyed by name. An
// object that cannot be built only because an object it needs is itself in
// creation is skipped and recorded; other failures are returned.
func (f *Factory) BeansOfType(ctx context.Context, t reflect.Type, includeNonSingletons, allowEagerInit bool) (map[string]any, error) {
	ctx, cc := lifecycle.WithCreation(ctx)
	out := make(map[string]any)
	for _, name := range f.namesForTypeCached(ctx, t, includeNonSingletons, allowEagerInit) {
		obj, err := f.GetBean(ctx, name)
		if err != nil {
			if inCreation := innermostInCreation(err); inCreation != "" &&
				(f.cache.IsInCreation(inCreation) || cc.PrototypeInCreation(inCreation)) {
				f.log.Warn("skipping object that depends on an object currently in creation",
					logger.MergeWithError(logger.Fields(logger.FieldBean, name, "in_creation", inCreation), err))
				f.recordSuppressed(err)
				continue
			}
			return nil, err
		}
		out[name] = obj
	}
	return out, nil
}

// innermostInCreation returns the name reported by the innermost
// AlreadyInCreation error of the chain, or "".
func innermostInCreation(err error) string {
	name := ""
	for e := err; e != nil; {
		if be, ok := e.(*errors.BeanError); ok && be.Code == errors.ErrCodeAlreadyInCreation {
			name = be.Bean
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return name
}

func (f *Factory) recordSuppressed(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suppressed = append(f.suppressed, err)
}

// SuppressedErrors returns the advisory failures skipped by BeansOfType.
func (f *Factory) SuppressedErrors() []error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.suppressed)
}

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

// createBean builds, populates and initializes one instance for a resolved
// descriptor. Failures are reported as errors carrying beanName.
func (f *Factory) createBean(ctx context.Context, beanName string, rd *descriptor.Descriptor, args []any) (obj any, err error) {
	observers := f.observerList()
	for _, o := range observers {
		ctx = o.BeforeCreate(ctx, beanName, scopeName(rd))
	}
	defer func() {
		for i := len(observers) - 1; i >= 0; i-- {
			observers[i].AfterCreate(ctx, beanName, err)
		}
	}()

	cc := lifecycle.FromContext(ctx)
	cc.Push(beanName)
	defer cc.Pop()

	f.log.Debug("creating instance", logger.Fields(logger.FieldBean, beanName, logger.FieldScope, scopeName(rd), logger.FieldCreationID, cc.ID))

	t, err := f.beanType(beanName, rd)
	if err != nil {
		return nil, err
	}

	if shortcut, err := f.resolveBeforeInstantiation(ctx, beanName, rd, t); err != nil {
		return nil, creationError(beanName, "before-instantiation", err)
	} else if shortcut != nil {
		return shortcut, nil
	}

	obj, err = f.doCreateBean(ctx, beanName, rd, t, args)
	if err != nil {
		return nil, err
	}
	f.log.Debug("finished creating instance", logger.BeanFields(beanName, "create"))
	return obj, nil
}

func scopeName(rd *descriptor.Descriptor) string {
	if rd.Scope == "" {
		return descriptor.ScopeSingleton
	}
	return rd.Scope
}

// beanType resolves the declared type of rd, enforcing visibility. A nil
// type is valid for descriptors built by a supplier or an instance factory.
// Supplier-built types skip the visibility check since the engine never
// constructs them.
func (f *Factory) beanType(beanName string, rd *descriptor.Descriptor) (reflect.Type, error) {
	t := rd.Type
	if t == nil && rd.TypeName != "" {
		info, err := f.loader.Load(rd.TypeName)
		if err != nil {
			return nil, errors.InvalidDescriptor(beanName, err.Error())
		}
		t = info.Type
	}
	if t != nil && rd.Supplier == nil && !rd.NonPublicAccess && !typeinfo.IsPublic(t) {
		return nil, errors.InvalidDescriptor(beanName, "type "+t.String()+" is not public and non-public access is not allowed")
	}
	return t, nil
}

// resolveBeforeInstantiation offers the before-instantiation hooks a
// chance to supply the instance. A substitute only gets after-init hooks.
func (f *Factory) resolveBeforeInstantiation(ctx context.Context, beanName string, rd *descriptor.Descriptor, t reflect.Type) (any, error) {
	if apply, known := rd.ShortcutResolved(); known && !apply {
		return nil, nil
	}
	var obj any
	if !rd.Synthetic && t != nil {
		for _, h := range hooksOf[BeforeInstantiationHook](&f.hooks) {
			sub, err := h.BeforeInstantiation(ctx, t, beanName)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				obj = sub
				break
			}
		}
		if obj != nil {
			var err error
			if obj, err = f.applyAfterInit(ctx, obj, beanName); err != nil {
				return nil, err
			}
		}
	}
	rd.SetShortcutResolved(obj != nil)
	return obj, nil
}

func (f *Factory) doCreateBean(ctx context.Context, beanName string, rd *descriptor.Descriptor, t reflect.Type, args []any) (any, error) {
	raw, err := f.createInstance(ctx, beanName, rd, t, args)
	if err != nil {
		return nil, creationError(beanName, "instantiation", err)
	}
	if raw != nil {
		rd.SetTargetType(reflect.TypeOf(raw))
	}

	if rd.MarkPostProcessed() {
		for _, h := range hooksOf[MergedDescriptorHook](&f.hooks) {
			if err := h.PostProcessMergedDescriptor(rd, reflect.TypeOf(raw), beanName); err != nil {
				return nil, creationError(beanName, "post-processing of merged descriptor", err)
			}
		}
	}

	earlyExposure := rd.IsSingleton() && f.allowCircular && f.cache.IsInCreation(beanName)
	if earlyExposure {
		f.cache.ExposeEarly(beanName, func() (any, error) {
			return f.earlyReference(beanName, rd, raw)
		})
	}

	if err := f.populate(ctx, beanName, rd, raw); err != nil {
		return nil, creationError(beanName, "population", err)
	}
	exposed, err := f.initialize(ctx, beanName, raw, rd)
	if err != nil {
		return nil, creationError(beanName, "initialization", err)
	}

	if earlyExposure {
		if early, ok := f.cache.EarlyReference(beanName); ok {
			if sameInstance(exposed, raw) {
				exposed = early
			} else if !f.allowRawInjection && f.Graph().HasDependents(beanName) {
				var actual []string
				for _, dep := range f.Graph().Dependents(beanName) {
					if !f.removeIfCreatedForTypeCheckOnly(dep) {
						actual = append(actual, dep)
					}
				}
				if len(actual) > 0 {
					return nil, errors.RawInjectionDespiteWrapping(beanName, actual)
				}
			}
		}
	}

	if err := f.registerDisposable(beanName, exposed, rd); err != nil {
		return nil, creationError(beanName, "registration of destruction callback", err)
	}
	return exposed, nil
}

// earlyReference lets early-reference hooks decorate the raw instance.
func (f *Factory) earlyReference(beanName string, rd *descriptor.Descriptor, raw any) (any, error) {
	obj := raw
	if rd.Synthetic {
		return obj, nil
	}
	for _, h := range hooksOf[EarlyReferenceHook](&f.hooks) {
		next, err := h.EarlyReference(obj, beanName)
		if err != nil {
			return nil, creationError(beanName, "early reference", err)
		}
		if next != nil {
			obj = next
		}
	}
	return obj, nil
}

// removeIfCreatedForTypeCheckOnly evicts a singleton that was only built to
// answer a type check. It reports false for objects that were requested for use.
func (f *Factory) removeIfCreatedForTypeCheckOnly(name string) bool {
	if f.wasCreated(name) {
		return false
	}
	f.cache.Remove(name)
	return true
}

// creationError wraps err unless it already reports a failure of name.
func creationError(name, phase string, err error) error {
	if be, ok := err.(*errors.BeanError); ok && be.Bean == name {
		return be
	}
	return errors.ConstructionFailed(name, phase, err)
}

// sameInstance compares object identity, including for non-comparable
// dynamic types such as maps, slices and funcs.
func sameInstance(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		if va.Kind() == reflect.Slice && va.Len() != vb.Len() {
			return false
		}
		return va.Pointer() == vb.Pointer()
	}
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return false
}

// namesOf returns the names of candidates.
func namesOf(cs []candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.name)
	}
	return slices.Clip(out)
}

package factory

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/logger"
)

const destroyMethod = "Destroy"

// disposable destroys one managed object: destruction hooks first, then
// Disposer.Destroy or an inferred io.Closer, then the configured destroy
// method.
type disposable struct {
	name    string
	obj     any
	method  string
	enforce bool
	hooks   []DestructionHook
	log     *logger.Logger
}

func (f *Factory) newDisposable(beanName string, obj any, rd *descriptor.Descriptor) *disposable {
	d := &disposable{name: beanName, obj: obj, log: f.log}
	if rd != nil {
		d.method, d.enforce = rd.DestroyMethod, rd.EnforceDestroy
	}
	for _, h := range hooksOf[DestructionHook](&f.hooks) {
		if h.RequiresDestruction(obj) {
			d.hooks = append(d.hooks, h)
		}
	}
	return d
}

func (d *disposable) needed() bool {
	if len(d.hooks) > 0 || d.method != "" {
		return true
	}
	switch d.obj.(type) {
	case Disposer, io.Closer:
		return true
	}
	return false
}

func (d *disposable) destroy(ctx context.Context) error {
	var errs []error
	for _, h := range d.hooks {
		if err := h.BeforeDestruction(ctx, d.obj, d.name); err != nil {
			errs = append(errs, err)
		}
	}

	disposer, isDisposer := d.obj.(Disposer)
	switch {
	case isDisposer:
		d.log.Debug("invoking Destroy", logger.BeanFields(d.name, "destroy"))
		if err := disposer.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	case d.method == "":
		if c, ok := d.obj.(io.Closer); ok {
			d.log.Debug("closing inferred closer", logger.BeanFields(d.name, "destroy"))
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if d.method != "" && !(isDisposer && d.method == destroyMethod) {
		found, err := invokeLifecycleMethod(ctx, d.obj, d.method)
		switch {
		case !found && d.enforce:
			errs = append(errs, fmt.Errorf("could not find a destroy method named '%s' on %T", d.method, d.obj))
		case err != nil:
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// registerDisposable records how to destroy a singleton or scoped object.
// Prototypes are never tracked.
func (f *Factory) registerDisposable(beanName string, obj any, rd *descriptor.Descriptor) error {
	if obj == nil || rd.IsPrototype() {
		return nil
	}
	d := f.newDisposable(beanName, obj, rd)
	if !d.needed() {
		return nil
	}
	if rd.IsSingleton() {
		f.cache.RegisterDisposable(beanName, d.destroy)
		return nil
	}
	scope, ok := f.Scope(rd.Scope)
	if !ok {
		return errors.MissingScope(beanName, rd.Scope)
	}
	scope.RegisterDestructionCallback(beanName, func() {
		if err := d.destroy(context.Background()); err != nil {
			f.log.Warn("destruction of scoped object failed", logger.MergeWithError(logger.BeanFields(beanName, "destroy"), err))
		}
	})
	return nil
}

// DestroyBean destroys an object built for name, typically a prototype the
// factory does not track.
func (f *Factory) DestroyBean(ctx context.Context, name string, obj any) error {
	beanName := f.transformedName(name)
	var rd *descriptor.Descriptor
	if f.registry.Contains(beanName) {
		var err error
		if rd, err = f.registry.Resolved(beanName); err != nil {
			return err
		}
	}
	return f.newDisposable(beanName, obj, rd).destroy(ctx)
}

// DestroyScopedBean removes the object held for name by its custom scope
// and destroys it.
func (f *Factory) DestroyScopedBean(ctx context.Context, name string) error {
	beanName := f.transformedName(name)
	rd, err := f.registry.Resolved(beanName)
	if err != nil {
		return err
	}
	if rd.IsSingleton() || rd.IsPrototype() {
		return errors.InvalidDescriptor(beanName, "cannot destroy a non-scoped object as a scoped one")
	}
	scope, ok := f.Scope(rd.Scope)
	if !ok {
		return errors.MissingScope(beanName, rd.Scope)
	}
	obj, ok := scope.Remove(beanName)
	if !ok {
		return nil
	}
	return f.newDisposable(beanName, obj, rd).destroy(ctx)
}

// DestroySingleton destroys one singleton after everything depending on it.
func (f *Factory) DestroySingleton(ctx context.Context, name string) error {
	beanName := f.transformedName(name)
	f.mu.Lock()
	delete(f.products, beanName)
	f.mu.Unlock()
	return f.cache.DestroySingleton(ctx, beanName)
}

// DestroyAll destroys every singleton, dependents before their
// dependencies, and clears all caches. It is meant to be called once at
// shutdown.
func (f *Factory) DestroyAll(ctx context.Context) error {
	f.log.Debug("destroying singletons", logger.Fields(logger.FieldCount, f.cache.Count()))
	err := f.cache.DestroyAll(ctx)
	f.mu.Lock()
	f.products = make(map[string]any)
	f.manual = nil
	f.created = make(map[string]bool)
	f.mu.Unlock()
	f.clearTypeCache()
	if err != nil {
		f.log.Warn("errors during singleton destruction", logger.MergeWithError(nil, err))
	}
	return err
}

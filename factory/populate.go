package factory

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/beankit/descriptor"
	"github.com/kbukum/beankit/errors"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/typeinfo"
)

var anyType = reflect.TypeFor[any]()

// populate applies autowired and configured property values to obj.
func (f *Factory) populate(ctx context.Context, beanName string, rd *descriptor.Descriptor, obj any) error {
	if obj == nil {
		if rd.Properties.Len() > 0 {
			return fmt.Errorf("cannot apply property values to a nil instance")
		}
		return nil
	}

	if !rd.Synthetic {
		for _, h := range hooksOf[AfterInstantiationHook](&f.hooks) {
			proceed, err := h.AfterInstantiation(ctx, obj, beanName)
			if err != nil {
				return err
			}
			if !proceed {
				return nil
			}
		}
	}

	w := typeinfo.Wrap(obj, f.loader.Info(reflect.TypeOf(obj)))
	pvs := rd.Properties.Clone()

	switch rd.Autowire {
	case descriptor.AutowireByName:
		if err := f.autowireByName(ctx, beanName, w, &pvs); err != nil {
			return err
		}
	case descriptor.AutowireByType:
		if err := f.autowireByType(ctx, beanName, w, &pvs); err != nil {
			return err
		}
	}

	current := &pvs
	for _, h := range hooksOf[PropertyValuesHook](&f.hooks) {
		next, err := h.TransformProperties(ctx, current, obj, beanName)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		current = next
	}

	if rd.DependencyCheck != descriptor.CheckNone {
		if err := checkDependencies(beanName, rd, w, current); err != nil {
			return err
		}
	}
	return f.applyPropertyValues(ctx, beanName, rd, w, current)
}

// unsatisfiedNonSimple returns the writable, non-simple properties without
// a configured value.
func unsatisfiedNonSimple(w *typeinfo.Wrapper, pvs *descriptor.PropertyValues) []string {
	var out []string
	for _, name := range w.Info().PropertyNames() {
		p, _ := w.Info().Property(name)
		if pvs.Contains(name) || typeinfo.IsSimple(p.Type) || !w.IsWritable(name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (f *Factory) autowireByName(ctx context.Context, beanName string, w *typeinfo.Wrapper, pvs *descriptor.PropertyValues) error {
	for _, prop := range unsatisfiedNonSimple(w, pvs) {
		if !f.ContainsBean(prop) {
			f.log.Debug("not autowiring property by name: no matching object", logger.Fields(logger.FieldBean, beanName, "property", prop))
			continue
		}
		obj, err := f.GetBean(ctx, prop)
		if err != nil {
			return errors.UnsatisfiedDependency(beanName, "property '"+prop+"'", "autowiring by name failed").WithCause(err)
		}
		pvs.Add(prop, resolved{obj})
		f.Graph().Register(f.transformedName(prop), beanName)
	}
	return nil
}

func (f *Factory) autowireByType(ctx context.Context, beanName string, w *typeinfo.Wrapper, pvs *descriptor.PropertyValues) error {
	for _, prop := range unsatisfiedNonSimple(w, pvs) {
		pt, _ := w.PropertyType(prop)
		if pt == anyType {
			continue
		}
		dd := &DependencyDescriptor{Type: pt, Required: false, Eager: true, Point: "property '" + prop + "'"}
		v, err := f.Resolve(ctx, dd, beanName)
		if err != nil {
			return errors.UnsatisfiedDependency(beanName, dd.Point, "autowiring by type failed").WithCause(err)
		}
		if v.IsValid() && !(nillable(v.Type()) && v.IsNil()) {
			pvs.Add(prop, resolved{v.Interface()})
		}
	}
	return nil
}

// checkDependencies fails for writable properties left unset under the
// descriptor's dependency check.
func checkDependencies(beanName string, rd *descriptor.Descriptor, w *typeinfo.Wrapper, pvs *descriptor.PropertyValues) error {
	for _, name := range w.Info().PropertyNames() {
		p, _ := w.Info().Property(name)
		if !w.IsWritable(name) || pvs.Contains(name) {
			continue
		}
		simple := typeinfo.IsSimple(p.Type)
		unsatisfied := rd.DependencyCheck == descriptor.CheckAll ||
			(simple && rd.DependencyCheck == descriptor.CheckSimple) ||
			(!simple && rd.DependencyCheck == descriptor.CheckObjects)
		if unsatisfied {
			return errors.UnsatisfiedDependency(beanName, "property '"+name+"'",
				"set this property value or disable dependency checking for this descriptor")
		}
	}
	return nil
}

func (f *Factory) applyPropertyValues(ctx context.Context, beanName string, rd *descriptor.Descriptor, w *typeinfo.Wrapper, pvs *descriptor.PropertyValues) error {
	for _, pv := range pvs.List() {
		pt, ok := w.PropertyType(pv.Name)
		if !ok || !w.IsWritable(pv.Name) {
			if pv.Optional {
				continue
			}
			return fmt.Errorf("invalid property '%s' of %s: not writable or has no setter", pv.Name, w.Info().Name)
		}
		v, err := f.resolveValue(ctx, beanName, rd, "property '"+pv.Name+"'", pv.Value)
		if err != nil {
			return err
		}
		conv, err := f.converter.Convert(v, pt)
		if err != nil {
			return errors.UnsatisfiedDependency(beanName, "property '"+pv.Name+"'", "could not convert value of type "+typeLabel(v)).WithCause(err)
		}
		if err := w.SetProperty(pv.Name, conv); err != nil {
			return err
		}
	}
	return nil
}

package typeinfo

import (
	"fmt"
	"reflect"
)

// Wrapper gives property access to one instance.
type Wrapper struct {
	value reflect.Value
	info  *Info
}

// Wrap wraps an instance. info may be nil, in which case it is derived from
// the instance's dynamic type.
func Wrap(instance any, info *Info) *Wrapper {
	v := reflect.ValueOf(instance)
	if info == nil || v.IsValid() && info.Type != v.Type() {
		info = newInfo(v.Type())
	}
	return &Wrapper{value: v, info: info}
}

// Instance returns the wrapped instance.
func (w *Wrapper) Instance() any { return w.value.Interface() }

// Value returns the wrapped instance as a reflect.Value.
func (w *Wrapper) Value() reflect.Value { return w.value }

// Info returns the introspection record of the instance's type.
func (w *Wrapper) Info() *Info { return w.info }

// PropertyType returns the declared type of a property.
func (w *Wrapper) PropertyType(name string) (reflect.Type, bool) {
	p, ok := w.info.Property(name)
	if !ok {
		return nil, false
	}
	return p.Type, true
}

// IsWritable reports whether the property exists and can be written on this instance.
func (w *Wrapper) IsWritable(name string) bool {
	p, ok := w.info.Property(name)
	if !ok {
		return false
	}
	if p.setter != nil {
		return true
	}
	_, err := w.field(p)
	return err == nil
}

// SetProperty writes a value that is already assignable to the property type.
func (w *Wrapper) SetProperty(name string, v reflect.Value) error {
	p, ok := w.info.Property(name)
	if !ok {
		return fmt.Errorf("typeinfo: %s has no property %q", w.info.Name, name)
	}
	if !v.IsValid() {
		v = reflect.Zero(p.Type)
	}
	if !v.Type().AssignableTo(p.Type) {
		return fmt.Errorf("typeinfo: cannot assign %s to property %q of type %s", v.Type(), name, p.Type)
	}
	if p.setter != nil {
		out := p.setter.Func.Call([]reflect.Value{w.value, v})
		if len(out) == 1 && !out[0].IsNil() {
			return fmt.Errorf("typeinfo: set %q: %w", name, out[0].Interface().(error))
		}
		return nil
	}
	f, err := w.field(p)
	if err != nil {
		return err
	}
	f.Set(v)
	return nil
}

// Property reads the current value of a property. Setter-only properties
// are not readable.
func (w *Wrapper) Property(name string) (reflect.Value, error) {
	p, ok := w.info.Property(name)
	if !ok {
		return reflect.Value{}, fmt.Errorf("typeinfo: %s has no property %q", w.info.Name, name)
	}
	if p.index == nil {
		return reflect.Value{}, fmt.Errorf("typeinfo: property %q of %s is write-only", name, w.info.Name)
	}
	s := w.value
	if s.Kind() == reflect.Pointer {
		if s.IsNil() {
			return reflect.Value{}, fmt.Errorf("typeinfo: nil %s", w.info.Name)
		}
		s = s.Elem()
	}
	f, err := s.FieldByIndexErr(p.index)
	if err != nil {
		return reflect.Value{}, err
	}
	return f, nil
}

func (w *Wrapper) field(p *Property) (reflect.Value, error) {
	if p.index == nil {
		return reflect.Value{}, fmt.Errorf("typeinfo: property %q has no field", p.Name)
	}
	if w.value.Kind() != reflect.Pointer || w.value.IsNil() {
		return reflect.Value{}, fmt.Errorf("typeinfo: properties of %s are only writable through a non-nil pointer", w.info.Name)
	}
	f, err := w.value.Elem().FieldByIndexErr(p.index)
	if err != nil {
		return reflect.Value{}, err
	}
	if !f.CanSet() {
		return reflect.Value{}, fmt.Errorf("typeinfo: property %q of %s is not settable", p.Name, w.info.Name)
	}
	return f, nil
}

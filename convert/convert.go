// Package convert turns configured raw values into the types declared by
// constructor parameters, factory routine parameters and properties.
// Scalars go through spf13/cast; slices, arrays, maps and pointers are
// converted element by element. Custom conversions can be registered per
// target type.
package convert

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// Func converts a raw value into the registered target type.
type Func func(raw any) (any, error)

// Converter converts values to target types. It is safe for concurrent use.
type Converter struct {
	mu     sync.RWMutex
	custom map[reflect.Type]Func
}

// New creates a converter with no custom conversions.
func New() *Converter {
	return &Converter{custom: make(map[reflect.Type]Func)}
}

// Register installs a custom conversion for a target type. It takes
// precedence over the built-in rules.
func (c *Converter) Register(target reflect.Type, fn Func) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custom[target] = fn
}

// Registered reports whether a custom conversion exists for the target type.
func (c *Converter) Registered(target reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.custom[target]
	return ok
}

var (
	durationType = reflect.TypeFor[time.Duration]()
	timeType     = reflect.TypeFor[time.Time]()
)

// Convert converts raw to target. A value already assignable to target is
// returned as is.
func (c *Converter) Convert(raw any, target reflect.Type) (reflect.Value, error) {
	if raw == nil {
		return reflect.Zero(target), nil
	}
	if rv, ok := raw.(reflect.Value); ok {
		if !rv.IsValid() {
			return reflect.Zero(target), nil
		}
		raw = rv.Interface()
	}
	return c.convertValue(reflect.ValueOf(raw), target)
}

func (c *Converter) convertValue(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	if v.Type().AssignableTo(target) {
		return assign(v, target), nil
	}

	c.mu.RLock()
	fn, ok := c.custom[target]
	c.mu.RUnlock()
	if ok {
		out, err := fn(v.Interface())
		if err != nil {
			return reflect.Value{}, mismatch(v, target, err)
		}
		ov := reflect.ValueOf(out)
		if !ov.IsValid() {
			return reflect.Zero(target), nil
		}
		if !ov.Type().AssignableTo(target) {
			return reflect.Value{}, mismatch(v, target, fmt.Errorf("custom conversion returned %s", ov.Type()))
		}
		return assign(ov, target), nil
	}

	if v.Kind() == reflect.Pointer && !v.IsNil() && target.Kind() != reflect.Pointer {
		return c.convertValue(v.Elem(), target)
	}

	switch target {
	case durationType:
		d, err := cast.ToDurationE(v.Interface())
		if err != nil {
			return reflect.Value{}, mismatch(v, target, err)
		}
		return reflect.ValueOf(d), nil
	case timeType:
		t, err := cast.ToTimeE(v.Interface())
		if err != nil {
			return reflect.Value{}, mismatch(v, target, err)
		}
		return reflect.ValueOf(t), nil
	}

	switch target.Kind() {
	case reflect.Pointer:
		elem, err := c.convertValue(v, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(target.Elem())
		p.Elem().Set(elem)
		return p, nil
	case reflect.String:
		s, err := cast.ToStringE(v.Interface())
		if err != nil {
			return reflect.Value{}, mismatch(v, target, err)
		}
		return reflect.ValueOf(s).Convert(target), nil
	case reflect.Bool:
		b, err := cast.ToBoolE(v.Interface())
		if err != nil {
			return reflect.Value{}, mismatch(v, target, err)
		}
		return reflect.ValueOf(b).Convert(target), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(v.Interface())
		if err != nil {
			return reflect.Value{}, mismatch(v, target, err)
		}
		out := reflect.New(target).Elem()
		if out.OverflowInt(n) {
			return reflect.Value{}, mismatch(v, target, fmt.Errorf("%d overflows %s", n, target))
		}
		out.SetInt(n)
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := cast.ToUint64E(v.Interface())
		if err != nil {
			return reflect.Value{}, mismatch(v, target, err)
		}
		out := reflect.New(target).Elem()
		if out.OverflowUint(n) {
			return reflect.Value{}, mismatch(v, target, fmt.Errorf("%d overflows %s", n, target))
		}
		out.SetUint(n)
		return out, nil
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(v.Interface())
		if err != nil {
			return reflect.Value{}, mismatch(v, target, err)
		}
		out := reflect.New(target).Elem()
		out.SetFloat(f)
		return out, nil
	case reflect.Slice:
		return c.toSlice(v, target)
	case reflect.Array:
		return c.toArray(v, target)
	case reflect.Map:
		return c.toMap(v, target)
	}

	if v.Type().ConvertibleTo(target) && v.Kind() == target.Kind() {
		return v.Convert(target), nil
	}
	return reflect.Value{}, mismatch(v, target, nil)
}

func elements(v reflect.Value) []reflect.Value {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]reflect.Value, v.Len())
		for i := range out {
			out[i] = v.Index(i)
		}
		return out
	case reflect.String:
		// comma-separated lists, as written in configuration files
		s := strings.TrimSpace(v.String())
		if s == "" {
			return nil
		}
		parts := strings.Split(s, ",")
		out := make([]reflect.Value, len(parts))
		for i, p := range parts {
			out[i] = reflect.ValueOf(strings.TrimSpace(p))
		}
		return out
	}
	return []reflect.Value{v}
}

func (c *Converter) toSlice(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	elems := elements(v)
	out := reflect.MakeSlice(target, len(elems), len(elems))
	for i, e := range elems {
		cv, err := c.convertValue(unwrapInterface(e), target.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(cv)
	}
	return out, nil
}

func (c *Converter) toArray(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	elems := elements(v)
	if len(elems) > target.Len() {
		return reflect.Value{}, mismatch(v, target, fmt.Errorf("%d elements do not fit", len(elems)))
	}
	out := reflect.New(target).Elem()
	for i, e := range elems {
		cv, err := c.convertValue(unwrapInterface(e), target.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		out.Index(i).Set(cv)
	}
	return out, nil
}

func (c *Converter) toMap(v reflect.Value, target reflect.Type) (reflect.Value, error) {
	if v.Kind() != reflect.Map {
		m, err := cast.ToStringMapE(v.Interface())
		if err != nil {
			return reflect.Value{}, mismatch(v, target, err)
		}
		v = reflect.ValueOf(m)
	}
	out := reflect.MakeMapWithSize(target, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := c.convertValue(unwrapInterface(iter.Key()), target.Key())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("key %v: %w", iter.Key(), err)
		}
		e, err := c.convertValue(unwrapInterface(iter.Value()), target.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("value for %v: %w", iter.Key(), err)
		}
		out.SetMapIndex(k, e)
	}
	return out, nil
}

func unwrapInterface(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	return v
}

func assign(v reflect.Value, target reflect.Type) reflect.Value {
	if v.Type() == target {
		return v
	}
	out := reflect.New(target).Elem()
	out.Set(v)
	return out
}

func mismatch(v reflect.Value, target reflect.Type, cause error) error {
	if cause != nil {
		return fmt.Errorf("cannot convert %s to %s: %w", v.Type(), target, cause)
	}
	return fmt.Errorf("cannot convert %s to %s", v.Type(), target)
}

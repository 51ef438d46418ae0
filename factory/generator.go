package factory

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/beankit/descriptor"
)

// OverrideTag names the method a func-typed field stands in for when the
// field name differs from it.
const OverrideTag = "override"

var errorType = reflect.TypeFor[error]()

// FuncFieldGenerator intercepts overridden methods through func-typed
// struct fields. For each override it binds the field named after the
// method, or tagged `override:"Method"`, to a function that looks up or
// replaces the call at call time. Other fields are left untouched.
//
// A bound function takes its context from its first parameter when that is
// a context.Context. Functions without an error result panic on failure.
type FuncFieldGenerator struct{}

// Generate implements SubclassGenerator.
func (FuncFieldGenerator) Generate(_ context.Context, obj any, req *InstantiationRequest) (any, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("method overrides need a non-nil struct pointer, got %T", obj)
	}
	sv := v.Elem()
	for _, o := range req.Descriptor.Overrides.List() {
		field, ok := overrideField(sv, o.Method)
		if !ok {
			return nil, fmt.Errorf("no func field for overridden method '%s' on %s", o.Method, v.Type())
		}
		if !field.CanSet() {
			return nil, fmt.Errorf("func field for overridden method '%s' on %s is not settable", o.Method, v.Type())
		}
		ft := field.Type()
		switch o.Kind {
		case descriptor.LookupOverride:
			if ft.NumOut() == 0 || ft.NumOut() > 2 || (ft.NumOut() == 2 && ft.Out(1) != errorType) {
				return nil, fmt.Errorf("lookup method '%s' must return T or (T, error), got %s", o.Method, ft)
			}
			field.Set(lookupFunc(ft, o, req.Factory))
		case descriptor.ReplaceOverride:
			field.Set(replaceFunc(ft, o, req.Factory, obj))
		}
	}
	return obj, nil
}

func overrideField(sv reflect.Value, method string) (reflect.Value, bool) {
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if sf.Type.Kind() == reflect.Func && sf.Tag.Get(OverrideTag) == method {
			return sv.Field(i), true
		}
	}
	if sf, ok := st.FieldByName(method); ok && sf.Type.Kind() == reflect.Func {
		return sv.FieldByIndex(sf.Index), true
	}
	return reflect.Value{}, false
}

func lookupFunc(ft reflect.Type, o *descriptor.MethodOverride, fac *Factory) reflect.Value {
	return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		ctx := callContext(ft, in)
		var (
			obj any
			err error
		)
		if o.Bean != "" {
			obj, err = fac.GetBean(ctx, o.Bean)
		} else {
			obj, err = fac.GetBeanByType(ctx, ft.Out(0))
		}
		return funcResults(ft, obj, err)
	})
}

func replaceFunc(ft reflect.Type, o *descriptor.MethodOverride, fac *Factory, target any) reflect.Value {
	return reflect.MakeFunc(ft, func(in []reflect.Value) []reflect.Value {
		ctx := callContext(ft, in)
		args := make([]any, len(in))
		for i, a := range in {
			args[i] = a.Interface()
		}
		repl, err := fac.GetBean(ctx, o.Bean)
		if err != nil {
			return funcResults(ft, nil, err)
		}
		r, ok := repl.(MethodReplacer)
		if !ok {
			return funcResults(ft, nil, fmt.Errorf("'%s' does not implement MethodReplacer", o.Bean))
		}
		res, err := r.Reimplement(ctx, target, o.Method, args)
		return funcResults(ft, res, err)
	})
}

func callContext(ft reflect.Type, in []reflect.Value) context.Context {
	if ft.NumIn() > 0 && ft.In(0) == contextType && len(in) > 0 && !in[0].IsNil() {
		return in[0].Interface().(context.Context)
	}
	return context.Background()
}

// funcResults builds the results of a generated function from a value and
// an error.
func funcResults(ft reflect.Type, obj any, err error) []reflect.Value {
	n := ft.NumOut()
	out := make([]reflect.Value, n)
	for i := range out {
		out[i] = reflect.Zero(ft.Out(i))
	}
	valueIdx := n - 1
	if n > 0 && ft.Out(n-1) == errorType {
		if err != nil {
			out[n-1] = reflect.ValueOf(&err).Elem()
			return out
		}
		valueIdx = n - 2
	} else if err != nil {
		panic(err)
	}
	if valueIdx >= 0 && obj != nil {
		vt := ft.Out(valueIdx)
		ov := reflect.ValueOf(obj)
		if !ov.Type().AssignableTo(vt) {
			mismatch := fmt.Errorf("result of type %s is not assignable to %s", ov.Type(), vt)
			if n > valueIdx+1 {
				out[n-1] = reflect.ValueOf(&mismatch).Elem()
				return out
			}
			panic(mismatch)
		}
		slot := reflect.New(vt).Elem()
		slot.Set(ov)
		out[valueIdx] = slot
	}
	return out
}

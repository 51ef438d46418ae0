package typeinfo

import (
	"fmt"
	"reflect"
	"strings"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Routine is one invocable constructor or factory routine with declared
// parameter types.
type Routine struct {
	Name       string
	Params     []reflect.Type
	ParamNames []string
	Variadic   bool
	Public     bool
	// Static routines are called without a receiver. Instance-bound routines
	// take the factory object as their receiver.
	Static bool
	// Receiver is the receiver type of an instance-bound routine.
	Receiver reflect.Type
	// Out is the produced type, nil for a void routine.
	Out reflect.Type

	returnsErr bool
	fn         reflect.Value
	call       func(args []reflect.Value) []reflect.Value
	bound      bool
}

// NewRoutine describes a Go function called without a receiver. The function
// may return nothing, (T), (error) or (T, error).
func NewRoutine(name string, fn any, public bool, paramNames ...string) (*Routine, error) {
	return newFuncRoutine(name, fn, public, 0, paramNames)
}

// NewMethodRoutine describes a Go function whose first parameter is the
// receiver supplied at call time.
func NewMethodRoutine(name string, fn any, public bool, paramNames ...string) (*Routine, error) {
	return newFuncRoutine(name, fn, public, 1, paramNames)
}

// MustRoutine is NewRoutine that panics on error.
func MustRoutine(name string, fn any, public bool, paramNames ...string) *Routine {
	r, err := NewRoutine(name, fn, public, paramNames...)
	if err != nil {
		panic(err)
	}
	return r
}

func newFuncRoutine(name string, fn any, public bool, skip int, paramNames []string) (*Routine, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return nil, fmt.Errorf("typeinfo: routine %q must be a function, got %T", name, fn)
	}
	if v.Type().NumIn() < skip {
		return nil, fmt.Errorf("typeinfo: routine %q must take its receiver as first parameter", name)
	}
	r, err := fromFuncType(name, v.Type(), skip)
	if err != nil {
		return nil, err
	}
	r.fn = v
	r.Public = public
	r.Static = skip == 0
	r.bound = skip == 1
	if skip == 1 {
		r.Receiver = v.Type().In(0)
	}
	if len(paramNames) > 0 {
		if len(paramNames) != len(r.Params) {
			return nil, fmt.Errorf("typeinfo: routine %q declares %d parameter names for %d parameters", name, len(paramNames), len(r.Params))
		}
		r.ParamNames = append([]string(nil), paramNames...)
	}
	return r, nil
}

// methodRoutine describes a reflected method; the receiver is supplied at call time.
func methodRoutine(m reflect.Method) (*Routine, error) {
	r, err := fromFuncType(m.Name, m.Type, 1)
	if err != nil {
		return nil, err
	}
	r.fn = m.Func
	r.Public = m.IsExported()
	r.bound = true
	r.Receiver = m.Type.In(0)
	return r, nil
}

func fromFuncType(name string, ft reflect.Type, skip int) (*Routine, error) {
	r := &Routine{Name: name, Variadic: ft.IsVariadic()}
	for i := skip; i < ft.NumIn(); i++ {
		r.Params = append(r.Params, ft.In(i))
	}
	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			r.returnsErr = true
		} else {
			r.Out = ft.Out(0)
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, fmt.Errorf("typeinfo: routine %q must return (T, error), second result is %s", name, ft.Out(1))
		}
		r.Out = ft.Out(0)
		r.returnsErr = true
	default:
		return nil, fmt.Errorf("typeinfo: routine %q returns %d values", name, ft.NumOut())
	}
	return r, nil
}

// ParamCount returns the number of declared parameters.
func (r *Routine) ParamCount() int { return len(r.Params) }

// IsVoid reports whether the routine produces no value.
func (r *Routine) IsVoid() bool { return r.Out == nil }

// ParamName returns the declared name of parameter i, or "".
func (r *Routine) ParamName(i int) string {
	if i < len(r.ParamNames) {
		return r.ParamNames[i]
	}
	return ""
}

// Call invokes the routine. receiver is ignored for static routines. A
// routine returning (T, error) reports the error; a nil error with no value
// yields the zero reflect.Value.
func (r *Routine) Call(receiver reflect.Value, args []reflect.Value) (reflect.Value, error) {
	if len(args) != len(r.Params) {
		return reflect.Value{}, fmt.Errorf("typeinfo: %s expects %d arguments, got %d", r, len(r.Params), len(args))
	}
	in := args
	if r.bound {
		if !receiver.IsValid() {
			return reflect.Value{}, fmt.Errorf("typeinfo: %s needs a receiver", r)
		}
		in = append([]reflect.Value{receiver}, args...)
	}
	var out []reflect.Value
	switch {
	case r.call != nil:
		out = r.call(in)
	case r.Variadic:
		out = r.fn.CallSlice(in)
	default:
		out = r.fn.Call(in)
	}
	return r.results(out)
}

func (r *Routine) results(out []reflect.Value) (reflect.Value, error) {
	if r.returnsErr {
		errVal := out[len(out)-1]
		if !errVal.IsNil() {
			return reflect.Value{}, errVal.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return reflect.Value{}, nil
	}
	return out[0], nil
}

// String renders the routine as name(T1, T2).
func (r *Routine) String() string {
	parts := make([]string, len(r.Params))
	for i, p := range r.Params {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s(%s)", r.Name, strings.Join(parts, ", "))
}

// SameParams reports whether both routines declare identical parameter types.
func (r *Routine) SameParams(o *Routine) bool {
	if len(r.Params) != len(o.Params) {
		return false
	}
	for i := range r.Params {
		if r.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}
